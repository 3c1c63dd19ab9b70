package entity

import (
	"fmt"
	"time"

	"github.com/lib/pq"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusBlocked}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusBlocked:
		return true
	}
	return false
}

// Open reports whether the status still needs work.
func (s Status) Open() bool { return s != StatusCompleted }

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("invalid status %q", raw)
	}
	return s, nil
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

func ParsePriority(raw string) (Priority, error) {
	p := Priority(raw)
	if !p.Valid() {
		return "", fmt.Errorf("invalid priority %q", raw)
	}
	return p, nil
}

// Task is a unit of work owned by one user.
type Task struct {
	ID             string     `db:"id" json:"id"`
	Title          string     `db:"title" json:"title"`
	Description    *string    `db:"description" json:"description"`
	Status         Status     `db:"status" json:"status"`
	Priority       Priority   `db:"priority" json:"priority"`
	DueDate        *time.Time `db:"due_date" json:"dueDate"`
	SlackChannelID *string    `db:"slack_channel_id" json:"slackChannelId"`
	UserID         string     `db:"user_id" json:"userId"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// Overdue reports whether the due date is strictly before now, regardless of status.
func (t Task) Overdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now)
}

// TaskUpdate is an immutable progress note attached to a task.
type TaskUpdate struct {
	ID           string         `db:"id" json:"id"`
	Content      string         `db:"content" json:"content"`
	StatusChange *Status        `db:"status_change" json:"statusChange"`
	Attachments  pq.StringArray `db:"attachments" json:"attachments"`
	TaskID       string         `db:"task_id" json:"taskId"`
	UserID       string         `db:"user_id" json:"userId"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updatedAt"`
}

// Owner is the projection of a user attached to task reads.
type Owner struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	SlackUserID string `json:"slackUserId"`
}

// Author is the projection of a user attached to update reads.
type Author struct {
	Name string `json:"name"`
}

// UpdateDetail is an update together with its author.
type UpdateDetail struct {
	TaskUpdate
	Author Author `json:"user"`
}

// TaskDetail is a task together with its owner and (some of) its updates,
// newest first.
type TaskDetail struct {
	Task
	Owner   Owner          `json:"user"`
	Updates []UpdateDetail `json:"updates"`
}

// NewTask carries the fields accepted on creation. Zero Status/Priority fall
// back to pending/medium.
type NewTask struct {
	Title          string
	Description    *string
	Status         Status
	Priority       Priority
	DueDate        *time.Time
	SlackChannelID *string
	UserID         string
}

// TaskFilter enumerates the options accepted by the owner task listing.
type TaskFilter struct {
	// Statuses restricts results to these statuses; empty means any.
	Statuses []Status
	// DueSoon restricts results to tasks due within the next 7 days,
	// overdue included. Tasks without a due date are excluded.
	DueSoon bool
}

// TaskPatch is a partial task update. Nil fields are left unchanged.
// UpdateContent, when non-empty, records a progress note authored by the
// acting user.
type TaskPatch struct {
	Title         *string
	Description   *string
	Status        *Status
	Priority      *Priority
	DueDate       *time.Time
	UpdateContent string
}

// WeeklyMetrics are the counts computed over the trailing week.
type WeeklyMetrics struct {
	TotalTasks int `json:"totalTasks"`
	Completed  int `json:"completed"`
	InProgress int `json:"inProgress"`
	Blocked    int `json:"blocked"`
	Overdue    int `json:"overdue"`
}

// WeeklySummary is the aggregate plus the tasks it was computed from.
type WeeklySummary struct {
	WeeklyMetrics
	Tasks []TaskDetail `json:"tasks"`
}
