package task

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/task/entity"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/user"
	userentity "github.com/ovaphlow/pitchfork/service-bulletin-go/internal/user/entity"
)

// asUser stands in for user.Middleware, resolving X-Slack-User-Id directly
// to a user id.
func asUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(user.HeaderSlackUserID)
		if id == "" {
			id = "alice"
		}
		u := &userentity.User{ID: id, SlackUserID: "S" + id, Name: id}
		next.ServeHTTP(w, r.WithContext(user.WithUser(r.Context(), u)))
	})
}

func newTestMux(t *testing.T, showDetail bool) (*fixture, http.Handler) {
	f := newFixture(t)
	mux := http.NewServeMux()
	NewHandler(f.svc, zap.NewNop().Sugar(), showDetail).Register(mux, asUser)
	return f, mux
}

func do(t *testing.T, h http.Handler, method, path, as, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if as != "" {
		req.Header.Set(user.HeaderSlackUserID, as)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHandlerCreateAndGet(t *testing.T) {
	_, h := newTestMux(t, true)

	rec := do(t, h, http.MethodPost, "/api/tasks", "alice",
		`{"title":"Ship it","priority":"high","dueDate":"2024-03-08","description":"soon"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[entity.TaskDetail](t, rec)
	assert.Equal(t, "alice", created.UserID)
	assert.Equal(t, entity.PriorityHigh, created.Priority)
	assert.Equal(t, entity.StatusPending, created.Status)
	require.NotNil(t, created.DueDate)
	assert.Equal(t, "2024-03-08", created.DueDate.Format("2006-01-02"))

	rec = do(t, h, http.MethodGet, "/api/tasks/"+created.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decode[entity.TaskDetail](t, rec).ID)
}

func TestHandlerCreateMissingTitle(t *testing.T) {
	_, h := newTestMux(t, true)
	rec := do(t, h, http.MethodPost, "/api/tasks", "alice", `{"description":"no title"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Task title is required", decode[map[string]string](t, rec)["error"])
}

func TestHandlerGetMissing(t *testing.T) {
	_, h := newTestMux(t, true)
	rec := do(t, h, http.MethodGet, "/api/tasks/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Task not found", decode[map[string]string](t, rec)["error"])
}

func TestHandlerListFilters(t *testing.T) {
	f, h := newTestMux(t, true)
	f.create(t, entity.NewTask{Title: "p", UserID: "alice", Status: entity.StatusPending})
	f.create(t, entity.NewTask{Title: "b", UserID: "alice", Status: entity.StatusBlocked})
	f.create(t, entity.NewTask{Title: "c", UserID: "alice", Status: entity.StatusCompleted})
	f.create(t, entity.NewTask{Title: "bob's", UserID: "bob", Status: entity.StatusPending})

	rec := do(t, h, http.MethodGet, "/api/tasks?status=pending,blocked", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]entity.TaskDetail](t, rec)
	require.Len(t, got, 2)

	rec = do(t, h, http.MethodGet, "/api/tasks?status=completed&status=pending", "alice", "")
	assert.Len(t, decode[[]entity.TaskDetail](t, rec), 2)

	rec = do(t, h, http.MethodGet, "/api/tasks?status=bogus", "alice", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerUpdateAddsNote(t *testing.T) {
	f, h := newTestMux(t, true)
	d := f.create(t, entity.NewTask{Title: "A", UserID: "alice"})

	rec := do(t, h, http.MethodPut, "/api/tasks/"+d.ID, "bob", `{"status":"blocked","updateContent":"waiting on review"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[entity.TaskDetail](t, rec)
	assert.Equal(t, entity.StatusBlocked, got.Status)
	require.Len(t, got.Updates, 1)
	require.NotNil(t, got.Updates[0].StatusChange)
	assert.Equal(t, entity.StatusBlocked, *got.Updates[0].StatusChange)

	rec = do(t, h, http.MethodPut, "/api/tasks/missing", "bob", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerAddUpdate(t *testing.T) {
	f, h := newTestMux(t, true)
	d := f.create(t, entity.NewTask{Title: "A", UserID: "alice"})

	rec := do(t, h, http.MethodPost, "/api/tasks/"+d.ID+"/updates", "alice", `{"attachments":["a.png"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/tasks/"+d.ID+"/updates", "alice", `{"content":"halfway","attachments":["a.png"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	up := decode[entity.UpdateDetail](t, rec)
	assert.Equal(t, "halfway", up.Content)
	assert.Equal(t, []string{"a.png"}, []string(up.Attachments))
	assert.Equal(t, "Alice", up.Author.Name)
}

func TestHandlerDeleteOwnership(t *testing.T) {
	f, h := newTestMux(t, true)
	d := f.create(t, entity.NewTask{Title: "A", UserID: "alice"})

	rec := do(t, h, http.MethodDelete, "/api/tasks/"+d.ID, "bob", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/tasks/"+d.ID, "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, DeleteResult{Success: true, Message: "Task deleted successfully"}, decode[DeleteResult](t, rec))
}

func TestHandlerWeekly(t *testing.T) {
	f, h := newTestMux(t, true)
	f.create(t, entity.NewTask{Title: "A", UserID: "alice", Status: entity.StatusCompleted})
	f.create(t, entity.NewTask{Title: "B", UserID: "bob", Status: entity.StatusBlocked})

	rec := do(t, h, http.MethodGet, "/api/tasks/summary/weekly", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.EqualValues(t, 2, body["totalTasks"])
	assert.EqualValues(t, 1, body["completed"])
	assert.EqualValues(t, 1, body["blocked"])
	assert.Len(t, body["tasks"], 2)
}

func TestHandlerInternalErrorHidesDetail(t *testing.T) {
	f, h := newTestMux(t, false)
	f.db.failOn = "task.list"

	rec := do(t, h, http.MethodGet, "/api/tasks", "alice", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "Internal server error", body["error"])
	assert.Equal(t, "Something went wrong", body["message"])
}

func TestParseStatuses(t *testing.T) {
	got := ParseStatuses([]string{"pending, blocked", "", "completed"})
	assert.Equal(t, []entity.Status{entity.StatusPending, entity.StatusBlocked, entity.StatusCompleted}, got)
	assert.Nil(t, ParseStatuses(nil))
}
