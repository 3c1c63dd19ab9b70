package task

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/task/entity"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/task/repo"
)

// memDB backs both TaskStore and UpdateStore in tests, mirroring the SQL
// ordering and filtering of the real repositories.
type memDB struct {
	mu      sync.Mutex
	clock   func() time.Time
	users   map[string]entity.Owner
	tasks   map[string]entity.Task
	updates map[string]entity.TaskUpdate
	failOn  string
}

func newMemDB(clock func() time.Time) *memDB {
	return &memDB{
		clock:   clock,
		users:   map[string]entity.Owner{},
		tasks:   map[string]entity.Task{},
		updates: map[string]entity.TaskUpdate{},
	}
}

func (m *memDB) addUser(id, name string) {
	m.users[id] = entity.Owner{ID: id, Name: name, SlackUserID: "S" + id}
}

func (m *memDB) fail(op string) error {
	if m.failOn == op {
		return fmt.Errorf("%s: connection reset", op)
	}
	return nil
}

type memTasks struct{ *memDB }
type memUpdates struct{ *memDB }

func (m memTasks) Create(_ context.Context, t *entity.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("task.create"); err != nil {
		return err
	}
	t.CreatedAt = m.clock()
	t.UpdatedAt = t.CreatedAt
	m.tasks[t.ID] = *t
	return nil
}

func (m memTasks) Get(_ context.Context, id string) (*entity.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

func (m memTasks) detail(t entity.Task) entity.TaskDetail {
	return entity.TaskDetail{Task: t, Owner: m.users[t.UserID], Updates: []entity.UpdateDetail{}}
}

func (m memTasks) GetDetail(_ context.Context, id string) (*entity.TaskDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	d := m.detail(t)
	return &d, nil
}

func (m memTasks) filter(keep func(entity.Task) bool) []entity.TaskDetail {
	var out []entity.TaskDetail
	for _, t := range m.tasks {
		if keep(t) {
			out = append(out, m.detail(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if out == nil {
		out = []entity.TaskDetail{}
	}
	return out
}

func (m memTasks) ListByOwner(_ context.Context, ownerID string, statuses []entity.Status, dueBefore *time.Time) ([]entity.TaskDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("task.list"); err != nil {
		return nil, err
	}
	return m.filter(func(t entity.Task) bool {
		if t.UserID != ownerID {
			return false
		}
		if len(statuses) > 0 {
			found := false
			for _, s := range statuses {
				found = found || s == t.Status
			}
			if !found {
				return false
			}
		}
		if dueBefore != nil && (t.DueDate == nil || t.DueDate.After(*dueBefore)) {
			return false
		}
		return true
	}), nil
}

func (m memTasks) ListCreatedSince(_ context.Context, since time.Time) ([]entity.TaskDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(t entity.Task) bool { return !t.CreatedAt.Before(since) }), nil
}

func (m memTasks) ListOpenDueBetween(_ context.Context, from, to time.Time) ([]entity.TaskDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(t entity.Task) bool {
		return t.Status.Open() && t.DueDate != nil && !t.DueDate.Before(from) && !t.DueDate.After(to)
	}), nil
}

func (m memTasks) Update(_ context.Context, t *entity.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; !ok {
		return sql.ErrNoRows
	}
	t.UpdatedAt = m.clock()
	m.tasks[t.ID] = *t
	return nil
}

func (m memTasks) DeleteWithUpdates(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("task.delete"); err != nil {
		return err
	}
	if _, ok := m.tasks[id]; !ok {
		return sql.ErrNoRows
	}
	for uid, u := range m.updates {
		if u.TaskID == id {
			delete(m.updates, uid)
		}
	}
	delete(m.tasks, id)
	return nil
}

func (m memUpdates) Create(_ context.Context, u *entity.TaskUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.CreatedAt = m.clock()
	u.UpdatedAt = u.CreatedAt
	m.updates[u.ID] = *u
	return nil
}

func (m memUpdates) GetDetail(_ context.Context, id string) (*entity.UpdateDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.updates[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &entity.UpdateDetail{TaskUpdate: u, Author: entity.Author{Name: m.users[u.UserID].Name}}, nil
}

func (m memUpdates) ListForTasks(_ context.Context, ids []string, q repo.UpdateQuery) (map[string][]entity.UpdateDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := map[string][]entity.UpdateDetail{}
	for _, u := range m.updates {
		if !want[u.TaskID] || (q.Since != nil && u.CreatedAt.Before(*q.Since)) {
			continue
		}
		out[u.TaskID] = append(out[u.TaskID], entity.UpdateDetail{TaskUpdate: u, Author: entity.Author{Name: m.users[u.UserID].Name}})
	}
	for id, list := range out {
		sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
		if q.PerTask > 0 && len(list) > q.PerTask {
			list = list[:q.PerTask]
		}
		out[id] = list
	}
	return out, nil
}
