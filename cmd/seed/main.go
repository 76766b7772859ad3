// Package main seeds the database with the role hierarchy and one user per
// level. It is a one-off administrative operation guarded by the
// CAN_SEED_DATABASE environment variable; it is never part of the runtime
// path.
package main

import (
	"context"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskhive/task-system/internal/infrastructure/config"
	mongodb "github.com/taskhive/task-system/internal/infrastructure/db/mongo"
	"github.com/taskhive/task-system/internal/pkg/password"
	"github.com/taskhive/task-system/pkg/logger"
)

const seedPassword = "Password123$"

func main() {
	log := logger.Init(logger.Options{Level: "info", Pretty: true})

	if os.Getenv("CAN_SEED_DATABASE") != "1" {
		log.Fatal().Msg("refusing to seed: set CAN_SEED_DATABASE=1 to allow this operation")
	}

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()

	if err := truncateCollections(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to truncate collections")
	}
	log.Info().Msg("all collections truncated")

	if err := seedUsers(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to seed users")
	}
	log.Info().Msg("database seeded successfully")
}

func truncateCollections(ctx context.Context, db *mongo.Database) error {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, err := db.Collection(name).DeleteMany(ctx, bson.M{}); err != nil {
			return err
		}
	}
	return nil
}

// seedUsers creates one role and one user per hierarchy level. Each user is
// provisioned with the accumulated role-id list, so the admin ends up holding
// basic, moderator, and admin.
func seedUsers(ctx context.Context, db *mongo.Database) error {
	users := []struct {
		Username string
		Email    string
	}{
		{Username: "basic", Email: "basic@example.com"},
		{Username: "moderator", Email: "moderator@example.com"},
		{Username: "admin", Email: "admin@example.com"},
	}

	digest, err := password.NewManager(bcrypt.DefaultCost).Hash(seedPassword)
	if err != nil {
		return err
	}

	var rolesAccumulator []primitive.ObjectID
	now := time.Now().UTC()

	for _, u := range users {
		roleResult, err := db.Collection("roles").InsertOne(ctx, bson.M{"name": u.Username})
		if err != nil {
			return err
		}
		rolesAccumulator = append(rolesAccumulator, roleResult.InsertedID.(primitive.ObjectID))

		roles := make([]primitive.ObjectID, len(rolesAccumulator))
		copy(roles, rolesAccumulator)

		if _, err := db.Collection("users").InsertOne(ctx, bson.M{
			"username":   u.Username,
			"email":      u.Email,
			"password":   digest,
			"roles":      roles,
			"created_at": now,
			"updated_at": now,
		}); err != nil {
			return err
		}
	}
	return nil
}
