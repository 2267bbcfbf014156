package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeTokenPurge removes expired auth token records.
	TaskTypeTokenPurge = "auth:purge_tokens"
	// TaskTypeAuditTrim prunes old audit log rows.
	TaskTypeAuditTrim = "audit:trim"
)

// AuditTrimPayload bounds how much audit history to keep.
type AuditTrimPayload struct {
	KeepDays int `json:"keep_days"`
}

// NewTokenPurgeTask constructs the purge task.
func NewTokenPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskTypeTokenPurge, nil)
}

// NewAuditTrimTask constructs the audit trim task.
func NewAuditTrimTask(payload AuditTrimPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditTrim, data), nil
}

// TokenPurger removes expired token records.
type TokenPurger interface {
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

// HandleTokenPurgeTask deletes expired rows from auth_tokens. Redis entries
// expire on their own; this keeps the postgres audit copy in bounds.
func HandleTokenPurgeTask(purger TokenPurger, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		removed, err := purger.PurgeExpiredTokens(ctx)
		if err != nil {
			return err
		}
		if logger != nil && removed > 0 {
			logger.Info("purged expired tokens", slog.Int64("removed", removed))
		}
		return nil
	}
}

// HandleAuditTrimTask deletes audit rows older than the configured window.
func HandleAuditTrimTask(pool *pgxpool.Pool, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AuditTrimPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.KeepDays <= 0 {
			payload.KeepDays = 90
		}
		tag, err := pool.Exec(ctx, `DELETE FROM audit_logs WHERE occurred_at < NOW() - make_interval(days => $1)`, payload.KeepDays)
		if err != nil {
			return err
		}
		if logger != nil && tag.RowsAffected() > 0 {
			logger.Info("trimmed audit logs", slog.Int64("removed", tag.RowsAffected()))
		}
		return nil
	}
}
