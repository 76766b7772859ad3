package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taskhive/task-system/internal/core/domain"
	"github.com/taskhive/task-system/internal/core/ports"
)

const tasksCollection = "tasks"

// TaskRepository implements ports.TaskRepository against the tasks collection.
type TaskRepository struct {
	coll *mongo.Collection
}

func NewTaskRepository(db *mongo.Database) *TaskRepository {
	return &TaskRepository{coll: db.Collection(tasksCollection)}
}

type taskDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Name           string             `bson:"name"`
	AuthorID       string             `bson:"author_id"`
	AssignedUserID *string            `bson:"assigned_user_id"`
	Status         string             `bson:"status"`
	Filename       *string            `bson:"filename"`
	CreatedAt      time.Time          `bson:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at"`
}

// toDomain normalizes the internal identifier into Task.ID; the _id never
// leaves this package.
func (d *taskDoc) toDomain() *domain.Task {
	return &domain.Task{
		ID:             d.ID.Hex(),
		Name:           d.Name,
		AuthorID:       d.AuthorID,
		AssignedUserID: d.AssignedUserID,
		Status:         domain.TaskStatus(d.Status),
		Filename:       d.Filename,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
}

// parseID converts a hex id, reporting structural invalidity as
// ErrMalformedInput rather than absence.
func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: invalid task id %q", domain.ErrMalformedInput, id)
	}
	return oid, nil
}

// buildFilter translates the filter struct into a query document. Fields are
// applied only when explicitly provided; absence means the field is omitted
// from the filter entirely.
func buildFilter(f ports.TaskFilter) bson.M {
	filter := bson.M{}
	if f.AuthorID != "" {
		filter["author_id"] = f.AuthorID
	}
	if f.AssignedUserID != "" {
		filter["assigned_user_id"] = f.AssignedUserID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}

// Paginate returns one page of tasks and the full filtered count. The count
// runs against the same filter but independently of skip/limit, so the last
// page may return fewer documents than total suggests.
func (r *TaskRepository) Paginate(ctx context.Context, f ports.TaskFilter) ([]*domain.Task, int64, error) {
	filter := buildFilter(f)

	sortOrder := -1
	if f.Order == "asc" {
		sortOrder = 1
	}
	offset := int64((f.Page - 1) * f.Limit)

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: sortOrder}}).
		SetSkip(offset).
		SetLimit(int64(f.Limit))

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("paginate tasks: %w", err)
	}
	defer cursor.Close(ctx)

	var tasks []*domain.Task
	for cursor.Next(ctx) {
		var doc taskDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, fmt.Errorf("decode task: %w", err)
		}
		tasks = append(tasks, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, fmt.Errorf("paginate tasks: %w", err)
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	return tasks, total, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var doc taskDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	return doc.toDomain(), nil
}

// FindByFilename returns the id of the task currently owning filename, using
// a sparse projection. Absence is domain.ErrTaskNotFound.
func (r *TaskRepository) FindByFilename(ctx context.Context, filename string) (string, error) {
	opts := options.FindOne().SetProjection(bson.M{"_id": 1})

	var doc struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := r.coll.FindOne(ctx, bson.M{"filename": filename}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", domain.ErrTaskNotFound
		}
		return "", fmt.Errorf("find task by filename: %w", err)
	}
	return doc.ID.Hex(), nil
}

// Create inserts the task. Timestamps are set at write time, never
// caller-supplied.
func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) (string, error) {
	now := time.Now().UTC()
	doc := taskDoc{
		Name:           task.Name,
		AuthorID:       task.AuthorID,
		AssignedUserID: task.AssignedUserID,
		Status:         string(task.Status),
		Filename:       task.Filename,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	result, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", domain.ErrFilenameConflict
		}
		return "", fmt.Errorf("insert task: %w", err)
	}

	oid, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("insert task: unexpected inserted id type %T", result.InsertedID)
	}
	return oid.Hex(), nil
}

// Update applies a partial $set and returns the post-update document so the
// caller observes authoritative state in one round trip. updated_at is always
// refreshed, even for an empty change set.
func (r *TaskRepository) Update(ctx context.Context, id string, changes ports.TaskChanges) (*domain.Task, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if changes.Name != nil {
		set["name"] = *changes.Name
	}
	if changes.AssignedUserID != nil {
		set["assigned_user_id"] = *changes.AssignedUserID
	} else if changes.ClearAssignee {
		set["assigned_user_id"] = nil
	}
	if changes.Status != nil {
		set["status"] = string(*changes.Status)
	}
	if changes.Filename != nil {
		set["filename"] = *changes.Filename
	} else if changes.ClearFilename {
		set["filename"] = nil
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc taskDoc
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrTaskNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrFilenameConflict
		}
		return nil, fmt.Errorf("update task: %w", err)
	}
	return doc.toDomain(), nil
}

// ReleaseFilename sets the filename field of whichever task currently holds
// filename to newValue in one server-side operation. Match and set happen in
// the same atomic update, so concurrent claimants cannot both observe
// ownership; a false return means nothing matched (the filename already moved
// on).
func (r *TaskRepository) ReleaseFilename(ctx context.Context, filename string, newValue *string) (bool, error) {
	var value interface{}
	if newValue != nil {
		value = *newValue
	}

	result, err := r.coll.UpdateOne(ctx,
		bson.M{"filename": filename},
		bson.M{"$set": bson.M{"filename": value, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return false, fmt.Errorf("release filename: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

func (r *TaskRepository) Delete(ctx context.Context, id string) (bool, error) {
	oid, err := parseID(id)
	if err != nil {
		return false, err
	}

	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	return result.DeletedCount > 0, nil
}

// StreamAll opens a forward-only cursor over every task. The returned stream
// holds the cursor; Close releases it even after partial consumption.
func (r *TaskRepository) StreamAll(ctx context.Context) (ports.TaskStream, error) {
	cursor, err := r.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("stream tasks: %w", err)
	}
	return &taskStream{cursor: cursor}, nil
}

type taskStream struct {
	cursor *mongo.Cursor
}

func (s *taskStream) Next(ctx context.Context) bool {
	return s.cursor.Next(ctx)
}

func (s *taskStream) Task() (*domain.Task, error) {
	var doc taskDoc
	if err := s.cursor.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *taskStream) Err() error {
	return s.cursor.Err()
}

func (s *taskStream) Close(ctx context.Context) error {
	return s.cursor.Close(ctx)
}

// EnsureIndexes creates the tasks indexes. The partial unique index on
// filename backs the at-most-one-owner invariant: a lost race on a filename
// claim surfaces as a duplicate-key error instead of a silent overwrite.
func (r *TaskRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "filename", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"filename": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "author_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "assigned_user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}
