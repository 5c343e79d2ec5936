package users

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"callme/pkg/utils"
)

// Repository is the persistence contract for users and their push credentials.
type Repository interface {
	GetOrCreate(ctx context.Context, phone string, now time.Time) (User, bool, error)
	Get(ctx context.Context, phone string) (User, error)
	FindByPhones(ctx context.Context, phones []string) ([]User, error)
	UpdateProfile(ctx context.Context, phone, name, avatarURL string, now time.Time) (User, error)
	SetAvailability(ctx context.Context, phone string, a Availability, now time.Time) (User, error)

	// ListInviteCandidates returns unavailable users holding a standard push credential.
	ListInviteCandidates(ctx context.Context) ([]User, error)
	MarkInvited(ctx context.Context, phones []string, at time.Time) error

	PutCredential(ctx context.Context, phone string, c PushCredential) error
	Credentials(ctx context.Context, phone string) ([]PushCredential, error)
	DeleteCredential(ctx context.Context, phone string, kind CredentialKind) error
}

// Schema is applied at startup via utils.Migrate.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
  phone              TEXT PRIMARY KEY,
  name               TEXT NOT NULL DEFAULT '',
  avatar_url         TEXT NOT NULL DEFAULT '',
  is_available       BOOLEAN NOT NULL DEFAULT TRUE,
  mood               TEXT NOT NULL DEFAULT '',
  last_online        TIMESTAMPTZ,
  last_moment_invite TIMESTAMPTZ,
  created_at         TIMESTAMPTZ NOT NULL,
  updated_at         TIMESTAMPTZ NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS push_credentials (
  phone         TEXT NOT NULL REFERENCES users(phone) ON DELETE CASCADE,
  kind          TEXT NOT NULL,
  token         TEXT NOT NULL,
  registered_at TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (phone, kind)
)`,
}

// PostgresRepo implements Repository on database/sql with the pgx driver.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const userColumns = `phone, name, avatar_url, is_available, mood, last_online, last_moment_invite, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	var lastOnline, lastInvite sql.NullTime
	if err := row.Scan(
		&u.Phone,
		&u.Name,
		&u.AvatarURL,
		&u.IsAvailable,
		&u.Mood,
		&lastOnline,
		&lastInvite,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	if lastOnline.Valid {
		t := lastOnline.Time
		u.LastOnline = &t
	}
	if lastInvite.Valid {
		t := lastInvite.Time
		u.LastMomentInvite = &t
	}
	return u, nil
}

func (r *PostgresRepo) GetOrCreate(ctx context.Context, phone string, now time.Time) (User, bool, error) {
	var (
		u       User
		created bool
	)
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO users (phone, created_at, updated_at)
VALUES ($1, $2, $2)
ON CONFLICT (phone) DO NOTHING
`, phone, now)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = n == 1

		u, err = scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
		return err
	})
	if err != nil {
		return User{}, false, err
	}
	return u, created, nil
}

func (r *PostgresRepo) Get(ctx context.Context, phone string) (User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
}

func (r *PostgresRepo) FindByPhones(ctx context.Context, phones []string) ([]User, error) {
	if len(phones) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE phone = ANY($1) ORDER BY phone`, phones)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *PostgresRepo) UpdateProfile(ctx context.Context, phone, name, avatarURL string, now time.Time) (User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `
UPDATE users SET name = $2, avatar_url = $3, updated_at = $4
WHERE phone = $1
RETURNING `+userColumns, phone, name, avatarURL, now))
}

func (r *PostgresRepo) SetAvailability(ctx context.Context, phone string, a Availability, now time.Time) (User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `
UPDATE users
SET is_available = $2,
    mood = $3,
    last_online = COALESCE($4, last_online),
    updated_at = $5
WHERE phone = $1
RETURNING `+userColumns, phone, a.IsAvailable, a.Mood, nullTime(a.LastOnline), now))
}

func (r *PostgresRepo) ListInviteCandidates(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT u.phone, u.name, u.avatar_url, u.is_available, u.mood, u.last_online, u.last_moment_invite, u.created_at, u.updated_at
FROM users u
JOIN push_credentials pc ON pc.phone = u.phone AND pc.kind = $1
WHERE u.is_available = FALSE
`, string(CredentialStandard))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *PostgresRepo) MarkInvited(ctx context.Context, phones []string, at time.Time) error {
	if len(phones) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_moment_invite = $2 WHERE phone = ANY($1)`, phones, at)
	return err
}

func (r *PostgresRepo) PutCredential(ctx context.Context, phone string, c PushCredential) error {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO push_credentials (phone, kind, token, registered_at)
SELECT $1, $2, $3, $4 WHERE EXISTS (SELECT 1 FROM users WHERE phone = $1)
ON CONFLICT (phone, kind) DO UPDATE SET token = EXCLUDED.token, registered_at = EXCLUDED.registered_at
`, phone, string(c.Kind), c.Token, c.RegisteredAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) Credentials(ctx context.Context, phone string) ([]PushCredential, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT kind, token, registered_at FROM push_credentials WHERE phone = $1 ORDER BY kind
`, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PushCredential
	for rows.Next() {
		var c PushCredential
		var kind string
		if err := rows.Scan(&kind, &c.Token, &c.RegisteredAt); err != nil {
			return nil, err
		}
		c.Kind = CredentialKind(kind)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) DeleteCredential(ctx context.Context, phone string, kind CredentialKind) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM push_credentials WHERE phone = $1 AND kind = $2`, phone, string(kind))
	return err
}

func collectUsers(rows *sql.Rows) ([]User, error) {
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
