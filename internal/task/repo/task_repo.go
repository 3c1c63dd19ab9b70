package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/task/entity"
)

// TaskRepo provides data access for the tasks table using sqlx.
type TaskRepo struct {
	db *sqlx.DB
}

func NewTaskRepo(db *sqlx.DB) *TaskRepo { return &TaskRepo{db: db} }

// EnsureTable creates the tasks table if not exists (idempotent). Requires users.
func (r *TaskRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tasks (
  id VARCHAR(32) PRIMARY KEY,
  title TEXT NOT NULL CHECK (title <> ''),
  description TEXT,
  status VARCHAR(16) NOT NULL DEFAULT 'pending'
    CHECK (status IN ('pending','in_progress','completed','blocked')),
  priority VARCHAR(8) NOT NULL DEFAULT 'medium'
    CHECK (priority IN ('low','medium','high')),
  due_date DATE,
  slack_channel_id TEXT,
  user_id VARCHAR(32) NOT NULL REFERENCES users(id),
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_tasks_user_created ON tasks(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// taskRow is a task joined with its owner.
type taskRow struct {
	entity.Task
	OwnerName        string `db:"owner_name"`
	OwnerSlackUserID string `db:"owner_slack_user_id"`
}

func (row taskRow) detail() entity.TaskDetail {
	return entity.TaskDetail{
		Task: row.Task,
		Owner: entity.Owner{
			ID:          row.UserID,
			Name:        row.OwnerName,
			SlackUserID: row.OwnerSlackUserID,
		},
		Updates: []entity.UpdateDetail{},
	}
}

const selectTaskDetail = `SELECT t.id, t.title, t.description, t.status, t.priority, t.due_date,
	t.slack_channel_id, t.user_id, t.created_at, t.updated_at,
	u.name AS owner_name, u.slack_user_id AS owner_slack_user_id
  FROM tasks t JOIN users u ON u.id = t.user_id`

// Create inserts t and fills its timestamps from the database.
func (r *TaskRepo) Create(ctx context.Context, t *entity.Task) error {
	const q = `INSERT INTO tasks (id, title, description, status, priority, due_date, slack_channel_id, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at, updated_at`
	return r.db.QueryRowxContext(ctx, q,
		t.ID, t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.SlackChannelID, t.UserID,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

// Get returns the bare task row or sql.ErrNoRows.
func (r *TaskRepo) Get(ctx context.Context, id string) (*entity.Task, error) {
	const q = `SELECT id, title, description, status, priority, due_date, slack_channel_id, user_id, created_at, updated_at
		FROM tasks WHERE id=$1`
	var t entity.Task
	if err := r.db.GetContext(ctx, &t, q, id); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetDetail returns the task with its owner or sql.ErrNoRows. Updates are left empty.
func (r *TaskRepo) GetDetail(ctx context.Context, id string) (*entity.TaskDetail, error) {
	var row taskRow
	if err := r.db.GetContext(ctx, &row, selectTaskDetail+` WHERE t.id=$1`, id); err != nil {
		return nil, err
	}
	d := row.detail()
	return &d, nil
}

// ListByOwner returns the owner's tasks newest first. Empty statuses means
// any status; a non-nil dueBefore keeps only tasks due on or before it.
func (r *TaskRepo) ListByOwner(ctx context.Context, ownerID string, statuses []entity.Status, dueBefore *time.Time) ([]entity.TaskDetail, error) {
	var (
		b    strings.Builder
		args = []any{ownerID}
	)
	b.WriteString(selectTaskDetail)
	b.WriteString(` WHERE t.user_id=$1`)
	if len(statuses) > 0 {
		raw := make([]string, len(statuses))
		for i, s := range statuses {
			raw[i] = string(s)
		}
		args = append(args, pq.Array(raw))
		fmt.Fprintf(&b, ` AND t.status = ANY($%d)`, len(args))
	}
	if dueBefore != nil {
		args = append(args, *dueBefore)
		fmt.Fprintf(&b, ` AND t.due_date <= $%d`, len(args))
	}
	b.WriteString(` ORDER BY t.created_at DESC`)
	return r.list(ctx, b.String(), args...)
}

// ListCreatedSince returns every task created at or after since, newest first.
func (r *TaskRepo) ListCreatedSince(ctx context.Context, since time.Time) ([]entity.TaskDetail, error) {
	return r.list(ctx, selectTaskDetail+` WHERE t.created_at >= $1 ORDER BY t.created_at DESC`, since)
}

// ListOpenDueBetween returns non-completed tasks with from <= due_date <= to.
func (r *TaskRepo) ListOpenDueBetween(ctx context.Context, from, to time.Time) ([]entity.TaskDetail, error) {
	return r.list(ctx, selectTaskDetail+` WHERE t.status <> 'completed' AND t.due_date >= $1 AND t.due_date <= $2
		ORDER BY t.due_date ASC, t.created_at DESC`, from, to)
}

func (r *TaskRepo) list(ctx context.Context, q string, args ...any) ([]entity.TaskDetail, error) {
	var rows []taskRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]entity.TaskDetail, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.detail())
	}
	return out, nil
}

// Update writes the mutable fields of t and refreshes UpdatedAt.
// Returns sql.ErrNoRows if the task no longer exists.
func (r *TaskRepo) Update(ctx context.Context, t *entity.Task) error {
	const q = `UPDATE tasks SET title=$2, description=$3, status=$4, priority=$5, due_date=$6, updated_at=NOW()
		WHERE id=$1 RETURNING updated_at`
	return r.db.QueryRowxContext(ctx, q,
		t.ID, t.Title, t.Description, t.Status, t.Priority, t.DueDate,
	).Scan(&t.UpdatedAt)
}

// DeleteWithUpdates removes the task's updates and then the task in one
// transaction. Returns sql.ErrNoRows if the task did not exist.
func (r *TaskRepo) DeleteWithUpdates(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM task_updates WHERE task_id=$1`, id); err != nil {
		return fmt.Errorf("delete updates: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		err = sql.ErrNoRows
		return err
	}
	return tx.Commit()
}
