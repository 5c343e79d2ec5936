package audit

import (
	"context"
	"database/sql"
)

var Schema = []string{
	`CREATE TABLE IF NOT EXISTS audit_events (
  id              UUID PRIMARY KEY,
  type            TEXT NOT NULL,
  actor_phone     TEXT NOT NULL DEFAULT '',
  target_phone    TEXT NOT NULL,
  channel         TEXT NOT NULL DEFAULT '',
  call_channel_id TEXT NOT NULL DEFAULT '',
  reason          TEXT NOT NULL DEFAULT '',
  created_at      TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS audit_events_target_idx ON audit_events (target_phone, created_at DESC)`,
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO audit_events (id, type, actor_phone, target_phone, channel, call_channel_id, reason, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`, e.ID, string(e.Type), e.ActorPhone, e.TargetPhone, e.Channel, e.CallChannelID, e.Reason, e.CreatedAt)
	return err
}
