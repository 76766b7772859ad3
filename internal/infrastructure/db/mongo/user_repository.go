package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taskhive/task-system/internal/core/domain"
)

const usersCollection = "users"

// UserRepository implements ports.UserRepository against the users collection.
// Transaction participation is carried by the context: calls made with a
// session context read from that transaction's snapshot.
type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

type credentialsDoc struct {
	ID       primitive.ObjectID `bson:"_id"`
	Username string             `bson:"username"`
	Password string             `bson:"password"`
	Email    string             `bson:"email"`
}

// FindByEmail returns the credential projection for email. The projection
// excludes the role list so failed logins never touch the roles collection.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.Credentials, error) {
	opts := options.FindOne().SetProjection(bson.M{
		"_id":      1,
		"username": 1,
		"password": 1,
		"email":    1,
	})

	var doc credentialsDoc
	if err := r.coll.FindOne(ctx, bson.M{"email": email}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	return &domain.Credentials{
		ID:           doc.ID.Hex(),
		Username:     doc.Username,
		Email:        doc.Email,
		PasswordHash: doc.Password,
	}, nil
}

// UpdatePassword replaces the stored digest and returns the modified count.
func (r *UserRepository) UpdatePassword(ctx context.Context, email, digest string) (int64, error) {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{"$set": bson.M{"password": digest}},
	)
	if err != nil {
		return 0, fmt.Errorf("update password: %w", err)
	}
	return result.ModifiedCount, nil
}

// FindRoleRefsByEmail returns the user's ordered role-id list, or an empty
// slice when the user or its roles are absent.
func (r *UserRepository) FindRoleRefsByEmail(ctx context.Context, email string) ([]string, error) {
	opts := options.FindOne().SetProjection(bson.M{"roles": 1})

	var doc struct {
		Roles []primitive.ObjectID `bson:"roles"`
	}
	if err := r.coll.FindOne(ctx, bson.M{"email": email}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find role refs: %w", err)
	}

	refs := make([]string, 0, len(doc.Roles))
	for _, id := range doc.Roles {
		refs = append(refs, id.Hex())
	}
	return refs, nil
}

// EnsureIndexes creates the unique indexes backing the user invariants.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}
