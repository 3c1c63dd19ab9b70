package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/task/entity"
)

// UpdateRepo provides data access for the task_updates table.
type UpdateRepo struct {
	db *sqlx.DB
}

func NewUpdateRepo(db *sqlx.DB) *UpdateRepo { return &UpdateRepo{db: db} }

// EnsureTable creates the task_updates table if not exists. Requires users and tasks.
func (r *UpdateRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS task_updates (
  id VARCHAR(32) PRIMARY KEY,
  content TEXT NOT NULL,
  status_change VARCHAR(16)
    CHECK (status_change IS NULL OR status_change IN ('pending','in_progress','completed','blocked')),
  attachments TEXT[] NOT NULL DEFAULT '{}',
  task_id VARCHAR(32) NOT NULL REFERENCES tasks(id),
  user_id VARCHAR(32) NOT NULL REFERENCES users(id),
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_task_updates_task_created ON task_updates(task_id, created_at DESC);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

type updateRow struct {
	entity.TaskUpdate
	AuthorName string `db:"author_name"`
}

func (row updateRow) detail() entity.UpdateDetail {
	if row.Attachments == nil {
		row.Attachments = pq.StringArray{}
	}
	return entity.UpdateDetail{TaskUpdate: row.TaskUpdate, Author: entity.Author{Name: row.AuthorName}}
}

// Create inserts u and fills its timestamps.
func (r *UpdateRepo) Create(ctx context.Context, u *entity.TaskUpdate) error {
	if u.Attachments == nil {
		u.Attachments = pq.StringArray{}
	}
	const q = `INSERT INTO task_updates (id, content, status_change, attachments, task_id, user_id)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`
	return r.db.QueryRowxContext(ctx, q,
		u.ID, u.Content, u.StatusChange, u.Attachments, u.TaskID, u.UserID,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
}

// GetDetail returns the update with its author name or sql.ErrNoRows.
func (r *UpdateRepo) GetDetail(ctx context.Context, id string) (*entity.UpdateDetail, error) {
	const q = `SELECT tu.id, tu.content, tu.status_change, tu.attachments, tu.task_id, tu.user_id,
		tu.created_at, tu.updated_at, a.name AS author_name
	  FROM task_updates tu JOIN users a ON a.id = tu.user_id WHERE tu.id=$1`
	var row updateRow
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		return nil, err
	}
	d := row.detail()
	return &d, nil
}

// UpdateQuery narrows ListForTasks.
type UpdateQuery struct {
	// PerTask keeps only the N most recent updates of each task; 0 keeps all.
	PerTask int
	// Since keeps only updates created at or after it.
	Since *time.Time
}

// ListForTasks returns the updates of the given tasks grouped by task id,
// each group newest first.
func (r *UpdateRepo) ListForTasks(ctx context.Context, taskIDs []string, q UpdateQuery) (map[string][]entity.UpdateDetail, error) {
	out := make(map[string][]entity.UpdateDetail, len(taskIDs))
	if len(taskIDs) == 0 {
		return out, nil
	}

	var (
		b    strings.Builder
		args = []any{pq.Array(taskIDs)}
	)
	b.WriteString(`SELECT ru.id, ru.content, ru.status_change, ru.attachments, ru.task_id, ru.user_id,
		ru.created_at, ru.updated_at, a.name AS author_name
	  FROM (SELECT tu.*, row_number() OVER (PARTITION BY tu.task_id ORDER BY tu.created_at DESC) AS rn
	          FROM task_updates tu WHERE tu.task_id = ANY($1)`)
	if q.Since != nil {
		args = append(args, *q.Since)
		fmt.Fprintf(&b, ` AND tu.created_at >= $%d`, len(args))
	}
	b.WriteString(`) ru JOIN users a ON a.id = ru.user_id`)
	if q.PerTask > 0 {
		args = append(args, q.PerTask)
		fmt.Fprintf(&b, ` WHERE ru.rn <= $%d`, len(args))
	}
	b.WriteString(` ORDER BY ru.task_id, ru.created_at DESC`)

	var rows []updateRow
	if err := r.db.SelectContext(ctx, &rows, b.String(), args...); err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.TaskID] = append(out[row.TaskID], row.detail())
	}
	return out, nil
}
