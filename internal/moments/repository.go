package moments

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"callme/pkg/utils"
)

type Repository interface {
	Create(ctx context.Context, m Moment) error
	Get(ctx context.Context, id string) (Moment, error)
	// List returns moments created strictly before before, newest first.
	List(ctx context.Context, limit int, before time.Time) ([]Moment, error)
	Reactions(ctx context.Context, momentIDs []string) ([]Reaction, error)
	// ToggleReaction adds r, or removes it when the same user already reacted
	// with that emoji. It reports whether the reaction is now present.
	ToggleReaction(ctx context.Context, r Reaction) (bool, error)
}

var Schema = []string{
	`CREATE TABLE IF NOT EXISTS call_moments (
  id            UUID PRIMARY KEY,
  user_phone    TEXT NOT NULL,
  user_name     TEXT NOT NULL,
  target_phone  TEXT NOT NULL,
  target_name   TEXT NOT NULL,
  screenshot    TEXT NOT NULL,
  note          TEXT NOT NULL DEFAULT '',
  mood          TEXT NOT NULL,
  call_duration TEXT NOT NULL,
  created_at    TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS call_moments_created_idx ON call_moments (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS moment_reactions (
  moment_id  UUID NOT NULL REFERENCES call_moments(id) ON DELETE CASCADE,
  emoji      TEXT NOT NULL,
  phone      TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (moment_id, emoji, phone)
)`,
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const momentColumns = `id, user_phone, user_name, target_phone, target_name, screenshot, note, mood, call_duration, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMoment(row rowScanner) (Moment, error) {
	var m Moment
	err := row.Scan(
		&m.ID,
		&m.UserPhone,
		&m.UserName,
		&m.TargetPhone,
		&m.TargetName,
		&m.Screenshot,
		&m.Note,
		&m.Mood,
		&m.CallDuration,
		&m.Timestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Moment{}, ErrNotFound
	}
	return m, err
}

func (r *PostgresRepo) Create(ctx context.Context, m Moment) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO call_moments (`+momentColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`, m.ID, m.UserPhone, m.UserName, m.TargetPhone, m.TargetName, m.Screenshot, m.Note, m.Mood, m.CallDuration, m.Timestamp)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Moment, error) {
	return scanMoment(r.db.QueryRowContext(ctx, `SELECT `+momentColumns+` FROM call_moments WHERE id = $1`, id))
}

func (r *PostgresRepo) List(ctx context.Context, limit int, before time.Time) ([]Moment, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+momentColumns+`
FROM call_moments
WHERE created_at < $1
ORDER BY created_at DESC
LIMIT $2
`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Moment
	for rows.Next() {
		m, err := scanMoment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Reactions(ctx context.Context, momentIDs []string) ([]Reaction, error) {
	if len(momentIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT moment_id, emoji, phone, created_at
FROM moment_reactions
WHERE moment_id = ANY($1)
ORDER BY created_at
`, momentIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reaction
	for rows.Next() {
		var rc Reaction
		if err := rows.Scan(&rc.MomentID, &rc.Emoji, &rc.Phone, &rc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ToggleReaction(ctx context.Context, rc Reaction) (bool, error) {
	var present bool
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		// lock the moment row so concurrent toggles on it serialize
		var id string
		if err := tx.QueryRowContext(ctx, `SELECT id FROM call_moments WHERE id = $1 FOR UPDATE`, rc.MomentID).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		res, err := tx.ExecContext(ctx, `
DELETE FROM moment_reactions WHERE moment_id = $1 AND emoji = $2 AND phone = $3
`, rc.MomentID, rc.Emoji, rc.Phone)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx, `
INSERT INTO moment_reactions (moment_id, emoji, phone, created_at) VALUES ($1, $2, $3, $4)
`, rc.MomentID, rc.Emoji, rc.Phone, rc.CreatedAt)
		present = err == nil
		return err
	})
	return present, err
}
