package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskhive/task-system/internal/core/domain"
	"github.com/taskhive/task-system/internal/core/ports"
	"github.com/taskhive/task-system/internal/pkg/metrics"
)

type auditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService returns an AuditService implementation that records task
// mutations into the audit trail.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Process persists one dispatched task event. Audit recording is best-effort
// from the originating request's point of view; failures here are surfaced to
// the dispatcher for logging and metrics only.
func (s *auditService) Process(ctx context.Context, in ports.TaskEventInput) error {
	start := time.Now()

	event := &domain.TaskEvent{
		TaskID:     in.TaskID,
		Action:     in.Action,
		ActorID:    in.ActorID,
		OccurredAt: start.UTC(),
	}

	if err := s.repo.InsertEvent(ctx, event); err != nil {
		metrics.AuditEventsTotal.WithLabelValues(in.Action, "error").Inc()
		return fmt.Errorf("record task event: %w", err)
	}

	metrics.AuditEventsTotal.WithLabelValues(in.Action, "ok").Inc()
	metrics.AuditProcessingDuration.WithLabelValues(in.Action).Observe(time.Since(start).Seconds())

	s.log.Debug().
		Str("task_id", in.TaskID).
		Str("action", in.Action).
		Str("actor_id", in.ActorID).
		Msg("task event recorded")

	return nil
}
