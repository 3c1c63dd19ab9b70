package task

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/task/entity"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/pkg/utilities"
)

// Handler exposes the task REST endpoints. Every route expects the caller to
// have been resolved by user.Middleware.
type Handler struct {
	svc        *Service
	logger     *zap.SugaredLogger
	showDetail bool
}

func NewHandler(svc *Service, logger *zap.SugaredLogger, showDetail bool) *Handler {
	return &Handler{svc: svc, logger: logger, showDetail: showDetail}
}

// Register mounts the task routes on mux, wrapping each with mw.
func (h *Handler) Register(mux *http.ServeMux, mw func(http.Handler) http.Handler) {
	mux.Handle("GET /api/tasks", mw(http.HandlerFunc(h.List)))
	mux.Handle("POST /api/tasks", mw(http.HandlerFunc(h.Create)))
	mux.Handle("GET /api/tasks/summary/weekly", mw(http.HandlerFunc(h.Weekly)))
	mux.Handle("GET /api/tasks/{id}", mw(http.HandlerFunc(h.Get)))
	mux.Handle("PUT /api/tasks/{id}", mw(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE /api/tasks/{id}", mw(http.HandlerFunc(h.Delete)))
	mux.Handle("POST /api/tasks/{id}/updates", mw(http.HandlerFunc(h.AddUpdate)))
}

// Date accepts "2006-01-02" or RFC 3339 in JSON bodies.
type Date struct{ time.Time }

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return errors.New("dueDate must be YYYY-MM-DD or RFC 3339")
	}
	d.Time = t
	return nil
}

func (d *Date) ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

type createRequest struct {
	Title          string  `json:"title"`
	Description    *string `json:"description"`
	Status         string  `json:"status"`
	Priority       string  `json:"priority"`
	DueDate        *Date   `json:"dueDate"`
	SlackChannelID *string `json:"slackChannelId"`
}

type updateRequest struct {
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	Status        *string `json:"status"`
	Priority      *string `json:"priority"`
	DueDate       *Date   `json:"dueDate"`
	UpdateContent string  `json:"updateContent"`
}

type addUpdateRequest struct {
	Content     string   `json:"content"`
	Attachments []string `json:"attachments"`
}

// List handles GET /api/tasks?status=a,b&dueSoon=true.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := user.FromContext(r.Context())
	if !ok {
		h.writeErr(w, r, errors.New("user not resolved"))
		return
	}
	f := entity.TaskFilter{
		Statuses: ParseStatuses(r.URL.Query()["status"]),
		DueSoon:  r.URL.Query().Get("dueSoon") == "true",
	}
	tasks, err := h.svc.GetUserTasks(r.Context(), u.ID, f)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, tasks)
}

// Get handles GET /api/tasks/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.GetTaskByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if d == nil {
		utilities.WriteError(w, http.StatusNotFound, "Task not found")
		return
	}
	utilities.WriteJSON(w, http.StatusOK, d)
}

// Create handles POST /api/tasks.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	u, ok := user.FromContext(r.Context())
	if !ok {
		h.writeErr(w, r, errors.New("user not resolved"))
		return
	}
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid task payload", "err", err)
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	d, err := h.svc.CreateTask(r.Context(), entity.NewTask{
		Title:          req.Title,
		Description:    req.Description,
		Status:         entity.Status(req.Status),
		Priority:       entity.Priority(req.Priority),
		DueDate:        req.DueDate.ptr(),
		SlackChannelID: req.SlackChannelID,
		UserID:         u.ID,
	})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, d)
}

// Update handles PUT /api/tasks/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	u, ok := user.FromContext(r.Context())
	if !ok {
		h.writeErr(w, r, errors.New("user not resolved"))
		return
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid task patch", "err", err)
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	patch := entity.TaskPatch{
		Title:         req.Title,
		Description:   req.Description,
		DueDate:       req.DueDate.ptr(),
		UpdateContent: req.UpdateContent,
	}
	if req.Status != nil {
		s := entity.Status(*req.Status)
		patch.Status = &s
	}
	if req.Priority != nil {
		p := entity.Priority(*req.Priority)
		patch.Priority = &p
	}
	d, err := h.svc.UpdateTask(r.Context(), r.PathValue("id"), patch, u.ID)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, d)
}

// AddUpdate handles POST /api/tasks/{id}/updates.
func (h *Handler) AddUpdate(w http.ResponseWriter, r *http.Request) {
	u, ok := user.FromContext(r.Context())
	if !ok {
		h.writeErr(w, r, errors.New("user not resolved"))
		return
	}
	var req addUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid update payload", "err", err)
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	d, err := h.svc.AddTaskUpdate(r.Context(), r.PathValue("id"), u.ID, req.Content, req.Attachments)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, d)
}

// Delete handles DELETE /api/tasks/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	u, ok := user.FromContext(r.Context())
	if !ok {
		h.writeErr(w, r, errors.New("user not resolved"))
		return
	}
	res, err := h.svc.DeleteTask(r.Context(), r.PathValue("id"), u.ID)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, res)
}

// Weekly handles GET /api/tasks/summary/weekly.
func (h *Handler) Weekly(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.GetWeeklySummary(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, sum)
}

// ParseStatuses accepts repeated and comma separated status values.
// Unknown values are kept so the service can reject them.
func ParseStatuses(raw []string) []entity.Status {
	var out []entity.Status
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, entity.Status(part))
			}
		}
	}
	return out
}

func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		utilities.WriteError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, ErrNotFound):
		utilities.WriteError(w, http.StatusNotFound, "Task not found")
	case errors.Is(err, ErrForbidden):
		utilities.WriteError(w, http.StatusForbidden, "Not authorized to delete this task")
	default:
		h.logger.Errorw("task request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		utilities.WriteInternal(w, err, h.showDetail)
	}
}
