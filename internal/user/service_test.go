package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/user/entity"
)

// memStore is an in-memory Store keyed by slack id.
type memStore struct {
	mu      sync.Mutex
	bySlack map[string]*entity.User
	creates int
	failGet error
}

func newMemStore() *memStore { return &memStore{bySlack: map[string]*entity.User{}} }

func (m *memStore) GetBySlackID(_ context.Context, id string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	u, ok := m.bySlack[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.bySlack {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memStore) CreateIfAbsent(_ context.Context, u *entity.User) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bySlack[u.SlackUserID]; ok {
		return false, nil
	}
	cp := *u
	m.bySlack[u.SlackUserID] = &cp
	m.creates++
	return true, nil
}

func (m *memStore) UpdatePreferences(_ context.Context, id string, prefs entity.Preferences) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.bySlack {
		if u.ID == id {
			u.Preferences = prefs
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func newTestService(store Store) *Service {
	s := NewService(store)
	n := 0
	var mu sync.Mutex
	s.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("u%d", n)
	}
	return s
}

func TestFindOrCreateCreatesOnce(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	first, err := svc.FindOrCreate(ctx, "U1", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "U1", first.SlackUserID)
	assert.Equal(t, "Ada", first.Name)

	second, err := svc.FindOrCreate(ctx, "U1", "Someone Else")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ada", second.Name)
	assert.Equal(t, 1, store.creates)
}

func TestFindOrCreateConcurrent(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := svc.FindOrCreate(context.Background(), "U9", "Bo")
			if err == nil {
				ids[i] = u.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, store.creates)
}

func TestFindOrCreateValidation(t *testing.T) {
	svc := newTestService(newMemStore())
	_, err := svc.FindOrCreate(context.Background(), "  ", "x")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestFindOrCreateStoreError(t *testing.T) {
	store := newMemStore()
	store.failGet = errors.New("boom")
	svc := newTestService(store)
	_, err := svc.FindOrCreate(context.Background(), "U1", "Ada")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestUpdatePreferencesMerges(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()
	u, err := svc.FindOrCreate(ctx, "U1", "Ada")
	require.NoError(t, err)

	_, err = svc.UpdatePreferences(ctx, u.ID, entity.Preferences{"digest": true})
	require.NoError(t, err)
	got, err := svc.UpdatePreferences(ctx, u.ID, entity.Preferences{"tz": "UTC"})
	require.NoError(t, err)
	assert.Equal(t, entity.Preferences{"digest": true, "tz": "UTC"}, got.Preferences)
}

func TestUpdatePreferencesUnknownUser(t *testing.T) {
	svc := newTestService(newMemStore())
	_, err := svc.UpdatePreferences(context.Background(), "missing", entity.Preferences{"a": 1})
	assert.ErrorIs(t, err, ErrNotFound)
}
