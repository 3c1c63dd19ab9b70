package repo

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/user/entity"
)

// UserRepo provides data access for the users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users table if not exists (idempotent).
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  id VARCHAR(32) PRIMARY KEY,
  slack_user_id TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  email TEXT,
  preferences JSONB NOT NULL DEFAULT '{}'::jsonb,
  team_id TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const selectUser = `SELECT id, slack_user_id, name, email, preferences, team_id, created_at, updated_at FROM users`

// GetBySlackID returns the user with the given Slack account id or sql.ErrNoRows.
func (r *UserRepo) GetBySlackID(ctx context.Context, slackUserID string) (*entity.User, error) {
	var u entity.User
	if err := r.db.GetContext(ctx, &u, selectUser+` WHERE slack_user_id=$1`, slackUserID); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID returns the user with the given id or sql.ErrNoRows.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	var u entity.User
	if err := r.db.GetContext(ctx, &u, selectUser+` WHERE id=$1`, id); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateIfAbsent inserts u unless a row with the same slack_user_id exists.
// It reports whether a row was inserted.
func (r *UserRepo) CreateIfAbsent(ctx context.Context, u *entity.User) (bool, error) {
	const q = `INSERT INTO users (id, slack_user_id, name, email, preferences, team_id)
		VALUES (:id, :slack_user_id, :name, :email, :preferences, :team_id)
		ON CONFLICT (slack_user_id) DO NOTHING`
	if u.Preferences == nil {
		u.Preferences = entity.Preferences{}
	}
	res, err := r.db.NamedExecContext(ctx, q, u)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdatePreferences replaces the stored preferences and bumps updated_at.
// Returns sql.ErrNoRows if the id does not exist.
func (r *UserRepo) UpdatePreferences(ctx context.Context, id string, prefs entity.Preferences) (*entity.User, error) {
	const q = `UPDATE users SET preferences=$2, updated_at=NOW() WHERE id=$1
		RETURNING id, slack_user_id, name, email, preferences, team_id, created_at, updated_at`
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, id, prefs); err != nil {
		return nil, err
	}
	return &u, nil
}
