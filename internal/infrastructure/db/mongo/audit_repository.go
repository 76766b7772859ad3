package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/taskhive/task-system/internal/core/domain"
)

const taskEventsCollection = "task_events"

// AuditRepository persists task mutation events to the task_events audit
// collection. It implements ports.AuditRepository.
type AuditRepository struct {
	coll *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{coll: db.Collection(taskEventsCollection)}
}

func (r *AuditRepository) InsertEvent(ctx context.Context, event *domain.TaskEvent) error {
	doc := bson.M{
		"task_id":     event.TaskID,
		"action":      event.Action,
		"actor_id":    event.ActorID,
		"occurred_at": event.OccurredAt.UTC(),
		"recorded_at": time.Now().UTC(),
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert task event: %w", err)
	}
	return nil
}
