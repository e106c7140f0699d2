package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-rbac/internal/audit"
	jobmetrics "github.com/odyssey-erp/odyssey-rbac/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRecord persists one access-control audit event.
	TaskAuditRecord = "rbac:audit.record"
)

// NewAuditRecordTask constructs an Asynq task carrying the event. The event ID doubles as
// the task ID so duplicate enqueues collapse.
func NewAuditRecordTask(event audit.Event) (*asynq.Task, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("jobs: marshal audit event: %w", err)
	}
	return asynq.NewTask(TaskAuditRecord, data, asynq.TaskID(event.ID.String()), asynq.MaxRetry(5)), nil
}

// AuditInserter persists decoded events.
type AuditInserter interface {
	Insert(ctx context.Context, e audit.Event) error
}

// AuditRecordJob processes TaskAuditRecord tasks.
type AuditRecordJob struct {
	store   AuditInserter
	metrics *jobmetrics.Metrics
}

// NewAuditRecordJob wires the job to its store. metrics may be nil.
func NewAuditRecordJob(store AuditInserter, metrics *jobmetrics.Metrics) *AuditRecordJob {
	return &AuditRecordJob{store: store, metrics: metrics}
}

// Handle decodes and stores the event. Malformed payloads are not retried.
func (j *AuditRecordJob) Handle(ctx context.Context, t *asynq.Task) error {
	var event audit.Event
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		j.metrics.Drop(TaskAuditRecord)
		return fmt.Errorf("jobs: decode audit event: %v: %w", err, asynq.SkipRetry)
	}
	tracker := j.metrics.Track(TaskAuditRecord)
	if err := j.store.Insert(ctx, event); err != nil {
		return tracker.End(fmt.Errorf("jobs: insert audit event %s: %w", event.ID, err))
	}
	return tracker.End(nil)
}
