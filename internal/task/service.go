package task

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/task/entity"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/task/repo"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/pkg/utilities"
)

const (
	// RecentUpdates is how many updates each task carries in owner listings.
	RecentUpdates = 3
	dueSoonWindow = 7 * 24 * time.Hour
	weekWindow    = 7 * 24 * time.Hour
)

// TaskStore is the task persistence surface; *repo.TaskRepo satisfies it.
type TaskStore interface {
	Create(ctx context.Context, t *entity.Task) error
	Get(ctx context.Context, id string) (*entity.Task, error)
	GetDetail(ctx context.Context, id string) (*entity.TaskDetail, error)
	ListByOwner(ctx context.Context, ownerID string, statuses []entity.Status, dueBefore *time.Time) ([]entity.TaskDetail, error)
	ListCreatedSince(ctx context.Context, since time.Time) ([]entity.TaskDetail, error)
	ListOpenDueBetween(ctx context.Context, from, to time.Time) ([]entity.TaskDetail, error)
	Update(ctx context.Context, t *entity.Task) error
	DeleteWithUpdates(ctx context.Context, id string) error
}

// UpdateStore is the task update persistence surface; *repo.UpdateRepo satisfies it.
type UpdateStore interface {
	Create(ctx context.Context, u *entity.TaskUpdate) error
	GetDetail(ctx context.Context, id string) (*entity.UpdateDetail, error)
	ListForTasks(ctx context.Context, taskIDs []string, q repo.UpdateQuery) (map[string][]entity.UpdateDetail, error)
}

// Service implements task CRUD, owner listings and the weekly aggregate.
// It holds no mutable state beyond its stores.
type Service struct {
	tasks   TaskStore
	updates UpdateStore
	now     func() time.Time
	newID   func() string
}

func NewService(tasks TaskStore, updates UpdateStore) *Service {
	return &Service{tasks: tasks, updates: updates, now: time.Now, newID: utilities.NewID}
}

// DeleteResult acknowledges a deletion.
type DeleteResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CreateTask persists a new task owned by in.UserID and returns it with its
// owner and an empty update list.
func (s *Service) CreateTask(ctx context.Context, in entity.NewTask) (*entity.TaskDetail, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, &ValidationError{Field: "title", Message: "Task title is required"}
	}
	if in.UserID == "" {
		return nil, &ValidationError{Field: "userId", Message: "Task owner is required"}
	}
	if in.Status == "" {
		in.Status = entity.StatusPending
	}
	if in.Priority == "" {
		in.Priority = entity.PriorityMedium
	}
	if !in.Status.Valid() {
		return nil, &ValidationError{Field: "status", Message: "Invalid status: " + string(in.Status)}
	}
	if !in.Priority.Valid() {
		return nil, &ValidationError{Field: "priority", Message: "Invalid priority: " + string(in.Priority)}
	}

	t := &entity.Task{
		ID:             s.newID(),
		Title:          title,
		Description:    in.Description,
		Status:         in.Status,
		Priority:       in.Priority,
		DueDate:        in.DueDate,
		SlackChannelID: in.SlackChannelID,
		UserID:         in.UserID,
	}
	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, &PersistenceError{Op: "create task", Err: err}
	}
	metrics.RecordTaskEvent("created")
	return s.mustGet(ctx, t.ID, "create task")
}

// GetTaskByID returns the task with its owner and every update, newest
// first. A missing task yields (nil, nil).
func (s *Service) GetTaskByID(ctx context.Context, id string) (*entity.TaskDetail, error) {
	d, err := s.tasks.GetDetail(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "fetch task", Err: err}
	}
	byTask, err := s.updates.ListForTasks(ctx, []string{d.ID}, repo.UpdateQuery{})
	if err != nil {
		return nil, &PersistenceError{Op: "fetch task", Err: err}
	}
	if ups := byTask[d.ID]; ups != nil {
		d.Updates = ups
	}
	return d, nil
}

// GetUserTasks lists the owner's tasks matching f, newest first, each with
// its RecentUpdates most recent updates.
func (s *Service) GetUserTasks(ctx context.Context, ownerID string, f entity.TaskFilter) ([]entity.TaskDetail, error) {
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, &ValidationError{Field: "status", Message: "Invalid status: " + string(st)}
		}
	}
	var dueBefore *time.Time
	if f.DueSoon {
		limit := s.now().Add(dueSoonWindow)
		dueBefore = &limit
	}
	tasks, err := s.tasks.ListByOwner(ctx, ownerID, f.Statuses, dueBefore)
	if err != nil {
		return nil, &PersistenceError{Op: "fetch tasks", Err: err}
	}
	if err := s.attachUpdates(ctx, tasks, repo.UpdateQuery{PerTask: RecentUpdates}); err != nil {
		return nil, &PersistenceError{Op: "fetch tasks", Err: err}
	}
	return tasks, nil
}

// UpdateTask applies patch and, when patch.UpdateContent is set, records a
// progress note by actingUserID. The note's StatusChange is the new status
// only if it differs from the status before the patch. Any resolved user may
// update a task.
func (s *Service) UpdateTask(ctx context.Context, id string, patch entity.TaskPatch, actingUserID string) (*entity.TaskDetail, error) {
	t, err := s.tasks.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: "update task", Err: err}
	}
	previous := t.Status

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, &ValidationError{Field: "title", Message: "Task title cannot be empty"}
		}
		t.Title = title
	}
	if patch.Description != nil {
		t.Description = patch.Description
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, &ValidationError{Field: "status", Message: "Invalid status: " + string(*patch.Status)}
		}
		t.Status = *patch.Status
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return nil, &ValidationError{Field: "priority", Message: "Invalid priority: " + string(*patch.Priority)}
		}
		t.Priority = *patch.Priority
	}
	if patch.DueDate != nil {
		t.DueDate = patch.DueDate
	}

	if err := s.tasks.Update(ctx, t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &PersistenceError{Op: "update task", Err: err}
	}
	metrics.RecordTaskEvent("updated")

	if content := strings.TrimSpace(patch.UpdateContent); content != "" {
		u := &entity.TaskUpdate{
			ID:          s.newID(),
			Content:     content,
			Attachments: pq.StringArray{},
			TaskID:      t.ID,
			UserID:      actingUserID,
		}
		if patch.Status != nil && *patch.Status != previous {
			changed := *patch.Status
			u.StatusChange = &changed
		}
		if err := s.updates.Create(ctx, u); err != nil {
			return nil, &PersistenceError{Op: "update task", Err: err}
		}
		metrics.RecordTaskEvent("note_added")
	}
	return s.mustGet(ctx, t.ID, "update task")
}

// AddTaskUpdate records a progress note without touching the task's status.
func (s *Service) AddTaskUpdate(ctx context.Context, taskID, userID, content string, attachments []string) (*entity.UpdateDetail, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &ValidationError{Field: "content", Message: "Update content is required"}
	}
	if _, err := s.tasks.Get(ctx, taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &PersistenceError{Op: "add update", Err: err}
	}
	if attachments == nil {
		attachments = []string{}
	}
	u := &entity.TaskUpdate{
		ID:          s.newID(),
		Content:     content,
		Attachments: pq.StringArray(attachments),
		TaskID:      taskID,
		UserID:      userID,
	}
	if err := s.updates.Create(ctx, u); err != nil {
		return nil, &PersistenceError{Op: "add update", Err: err}
	}
	metrics.RecordTaskEvent("note_added")
	d, err := s.updates.GetDetail(ctx, u.ID)
	if err != nil {
		return nil, &PersistenceError{Op: "add update", Err: err}
	}
	return d, nil
}

// DeleteTask removes the task and all of its updates. Only the owner may delete.
func (s *Service) DeleteTask(ctx context.Context, id, actingUserID string) (*DeleteResult, error) {
	t, err := s.tasks.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: "delete task", Err: err}
	}
	if t.UserID != actingUserID {
		return nil, ErrForbidden
	}
	if err := s.tasks.DeleteWithUpdates(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &PersistenceError{Op: "delete task", Err: err}
	}
	metrics.RecordTaskEvent("deleted")
	return &DeleteResult{Success: true, Message: "Task deleted successfully"}, nil
}

// GetWeeklySummary aggregates every task created in the trailing 7 days,
// across all users, with the updates also made in that window.
func (s *Service) GetWeeklySummary(ctx context.Context) (*entity.WeeklySummary, error) {
	now := s.now()
	since := now.Add(-weekWindow)
	tasks, err := s.tasks.ListCreatedSince(ctx, since)
	if err != nil {
		return nil, &PersistenceError{Op: "generate summary", Err: err}
	}
	if err := s.attachUpdates(ctx, tasks, repo.UpdateQuery{Since: &since}); err != nil {
		return nil, &PersistenceError{Op: "generate summary", Err: err}
	}
	return &entity.WeeklySummary{WeeklyMetrics: Aggregate(tasks, now), Tasks: tasks}, nil
}

// DueForReminder lists open tasks due between now and now+within.
func (s *Service) DueForReminder(ctx context.Context, within time.Duration) ([]entity.TaskDetail, error) {
	now := s.now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	tasks, err := s.tasks.ListOpenDueBetween(ctx, from, now.Add(within))
	if err != nil {
		return nil, &PersistenceError{Op: "fetch due tasks", Err: err}
	}
	return tasks, nil
}

// Aggregate computes the weekly counts. Overdue counts every task whose due
// date is strictly before now, whatever its status.
func Aggregate(tasks []entity.TaskDetail, now time.Time) entity.WeeklyMetrics {
	m := entity.WeeklyMetrics{TotalTasks: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case entity.StatusCompleted:
			m.Completed++
		case entity.StatusInProgress:
			m.InProgress++
		case entity.StatusBlocked:
			m.Blocked++
		}
		if t.Overdue(now) {
			m.Overdue++
		}
	}
	return m
}

func (s *Service) attachUpdates(ctx context.Context, tasks []entity.TaskDetail, q repo.UpdateQuery) error {
	if len(tasks) == 0 {
		return nil
	}
	ids := make([]string, len(tasks))
	for i := range tasks {
		ids[i] = tasks[i].ID
	}
	byTask, err := s.updates.ListForTasks(ctx, ids, q)
	if err != nil {
		return err
	}
	for i := range tasks {
		if ups := byTask[tasks[i].ID]; ups != nil {
			tasks[i].Updates = ups
		} else if tasks[i].Updates == nil {
			tasks[i].Updates = []entity.UpdateDetail{}
		}
	}
	return nil
}

// mustGet re-reads a task that was just written.
func (s *Service) mustGet(ctx context.Context, id, op string) (*entity.TaskDetail, error) {
	d, err := s.GetTaskByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, &PersistenceError{Op: op, Err: sql.ErrNoRows}
	}
	return d, nil
}
