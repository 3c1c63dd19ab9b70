package slackbot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/task/entity"
	userentity "github.com/ovaphlow/pitchfork/service-bulletin-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/pkg/utilities"
)

const (
	maxBody      = 1 << 20
	asyncTimeout = 30 * time.Second
	genericError = "Sorry, something went wrong. Please try again."
)

// SlackAPI is the subset of *slack.Client the bot calls.
type SlackAPI interface {
	OpenViewContext(ctx context.Context, triggerID string, view slack.ModalViewRequest) (*slack.ViewResponse, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Users resolves Slack identities to internal users.
type Users interface {
	FindOrCreate(ctx context.Context, slackUserID, name string) (*userentity.User, error)
}

// Tasks is the task capability the bot drives; *task.Service satisfies it.
type Tasks interface {
	CreateTask(ctx context.Context, in entity.NewTask) (*entity.TaskDetail, error)
	GetUserTasks(ctx context.Context, ownerID string, f entity.TaskFilter) ([]entity.TaskDetail, error)
	UpdateTask(ctx context.Context, id string, patch entity.TaskPatch, actingUserID string) (*entity.TaskDetail, error)
}

type Handler struct {
	api    SlackAPI
	secret string
	users  Users
	tasks  Tasks
	logger *zap.SugaredLogger
	now    func() time.Time
	// dispatch runs work after the HTTP acknowledgement has been sent.
	dispatch func(func())
}

func NewHandler(api SlackAPI, signingSecret string, users Users, tasks Tasks, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		api:      api,
		secret:   signingSecret,
		users:    users,
		tasks:    tasks,
		logger:   logger,
		now:      time.Now,
		dispatch: func(f func()) { go f() },
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("POST /slack/commands", h.verify(http.HandlerFunc(h.Command)))
	mux.Handle("POST /slack/interactions", h.verify(http.HandlerFunc(h.Interaction)))
}

// verify rejects requests that do not carry a valid Slack signature.
// The body is buffered and restored for the next handler.
func (h *Handler) verify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sv, err := slack.NewSecretsVerifier(r.Header, h.secret)
		if err != nil {
			h.logger.Warnw("slack signature headers rejected", "err", err)
			utilities.WriteError(w, http.StatusUnauthorized, "Invalid signature")
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
		if err != nil {
			utilities.WriteError(w, http.StatusBadRequest, "Unreadable body")
			return
		}
		if _, err := sv.Write(body); err != nil || sv.Ensure() != nil {
			h.logger.Warnw("slack signature mismatch", "path", r.URL.Path)
			utilities.WriteError(w, http.StatusUnauthorized, "Invalid signature")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// Command handles slash commands.
func (h *Handler) Command(w http.ResponseWriter, r *http.Request) {
	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "Malformed command")
		return
	}
	h.logger.Infow("slash command", "command", cmd.Command, "slack_user", cmd.UserID)

	switch cmd.Command {
	case "/create-task":
		h.openCreateModal(w, r, cmd)
	case "/update-task":
		h.openUpdateModal(w, r, cmd)
	case "/my-tasks":
		h.myTasks(w, r, cmd)
	default:
		writeMsg(w, slack.Msg{ResponseType: slack.ResponseTypeEphemeral, Text: "Unknown command " + cmd.Command})
	}
}

func (h *Handler) openCreateModal(w http.ResponseWriter, r *http.Request, cmd slack.SlashCommand) {
	u, err := h.users.FindOrCreate(r.Context(), cmd.UserID, cmd.UserName)
	if err != nil {
		h.logger.Errorw("resolve slack user failed", "slack_user", cmd.UserID, "err", err)
		writeMsg(w, ephemeral(genericError))
		return
	}
	view := createTaskModal(u.ID, cmd.ChannelID, h.now())
	if _, err := h.api.OpenViewContext(r.Context(), cmd.TriggerID, view); err != nil {
		h.logger.Errorw("open create modal failed", "err", err)
		writeMsg(w, ephemeral(genericError))
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) openUpdateModal(w http.ResponseWriter, r *http.Request, cmd slack.SlashCommand) {
	ctx := r.Context()
	u, err := h.users.FindOrCreate(ctx, cmd.UserID, cmd.UserName)
	if err != nil {
		h.logger.Errorw("resolve slack user failed", "slack_user", cmd.UserID, "err", err)
		writeMsg(w, ephemeral(genericError))
		return
	}
	tasks, err := h.tasks.GetUserTasks(ctx, u.ID, entity.TaskFilter{
		Statuses: []entity.Status{entity.StatusPending, entity.StatusInProgress, entity.StatusBlocked},
	})
	if err != nil {
		h.logger.Errorw("list tasks for update modal failed", "user_id", u.ID, "err", err)
		writeMsg(w, ephemeral(genericError))
		return
	}
	view := noTasksModal()
	if len(tasks) > 0 {
		view = updateTaskModal(tasks)
	}
	if _, err := h.api.OpenViewContext(ctx, cmd.TriggerID, view); err != nil {
		h.logger.Errorw("open update modal failed", "err", err)
		writeMsg(w, ephemeral(genericError))
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) myTasks(w http.ResponseWriter, r *http.Request, cmd slack.SlashCommand) {
	ctx := r.Context()
	u, err := h.users.FindOrCreate(ctx, cmd.UserID, cmd.UserName)
	if err != nil {
		h.logger.Errorw("resolve slack user failed", "slack_user", cmd.UserID, "err", err)
		writeMsg(w, ephemeral("❌ Failed to fetch your tasks. Please try again."))
		return
	}
	tasks, err := h.tasks.GetUserTasks(ctx, u.ID, entity.TaskFilter{})
	if err != nil {
		h.logger.Errorw("list tasks failed", "user_id", u.ID, "err", err)
		writeMsg(w, ephemeral("❌ Failed to fetch your tasks. Please try again."))
		return
	}
	writeMsg(w, myTasksMessage(tasks))
}

// Interaction handles modal submissions. The submission is acknowledged
// immediately and processed in the background.
func (h *Handler) Interaction(w http.ResponseWriter, r *http.Request) {
	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(r.FormValue("payload")), &cb); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "Malformed payload")
		return
	}
	if cb.Type != slack.InteractionTypeViewSubmission || cb.View.State == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	switch cb.View.CallbackID {
	case CallbackCreateTask:
		h.dispatch(func() { h.submitCreate(cb) })
	case CallbackUpdateTask:
		h.dispatch(func() { h.submitUpdate(cb) })
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) submitCreate(cb slack.InteractionCallback) {
	ctx, cancel := context.WithTimeout(context.Background(), asyncTimeout)
	defer cancel()

	var meta privateMetadata
	if err := json.Unmarshal([]byte(cb.View.PrivateMetadata), &meta); err != nil {
		h.logger.Errorw("bad modal metadata", "err", err)
		return
	}
	values := cb.View.State.Values

	in := entity.NewTask{
		Title:    values[blockTitle][actionTitle].Value,
		Priority: entity.Priority(values[blockPriority][actionPriority].SelectedOption.Value),
		UserID:   meta.UserID,
	}
	if in.Priority == "" {
		in.Priority = entity.PriorityMedium
	}
	if d := strings.TrimSpace(values[blockDescription][actionDesc].Value); d != "" {
		in.Description = &d
	}
	if meta.ChannelID != "" {
		in.SlackChannelID = &meta.ChannelID
	}
	if raw := values[blockDueDate][actionDueDate].SelectedDate; raw != "" {
		if due, err := time.Parse(time.DateOnly, raw); err == nil {
			in.DueDate = &due
		}
	}

	created, err := h.tasks.CreateTask(ctx, in)
	channel := meta.ChannelID
	if channel == "" {
		channel = cb.User.ID
	}
	if err != nil {
		h.logger.Errorw("slack task creation failed", "user_id", meta.UserID, "err", err)
		h.post(ctx, cb.User.ID, "❌ Failed to create task: "+err.Error())
		return
	}
	h.logger.Infow("slack task created", "task_id", created.ID, "user_id", meta.UserID)
	h.post(ctx, channel, createdText(created))
}

func (h *Handler) submitUpdate(cb slack.InteractionCallback) {
	ctx, cancel := context.WithTimeout(context.Background(), asyncTimeout)
	defer cancel()

	values := cb.View.State.Values
	taskID := values[blockTaskSelect][actionTask].SelectedOption.Value
	content := values[blockContent][actionContent].Value
	patch := entity.TaskPatch{UpdateContent: content}
	if s := values[blockStatus][actionStatus].SelectedOption.Value; s != "" {
		st := entity.Status(s)
		patch.Status = &st
	}

	fail := func(err error) {
		h.logger.Errorw("slack task update failed", "task_id", taskID, "err", err)
		h.post(ctx, cb.User.ID, "❌ Failed to update task: "+err.Error())
	}

	u, err := h.users.FindOrCreate(ctx, cb.User.ID, cb.User.Name)
	if err != nil {
		fail(err)
		return
	}
	if taskID == "" {
		fail(errors.New("no task selected"))
		return
	}
	updated, err := h.tasks.UpdateTask(ctx, taskID, patch, u.ID)
	if err != nil {
		fail(err)
		return
	}
	h.logger.Infow("slack task updated", "task_id", updated.ID, "user_id", u.ID)
	h.post(ctx, cb.User.ID, updatedText(updated, content))
}

func (h *Handler) post(ctx context.Context, channel, text string) {
	if _, _, err := h.api.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false)); err != nil {
		h.logger.Errorw("slack post failed", "channel", channel, "err", err)
	}
}

func ephemeral(text string) slack.Msg {
	return slack.Msg{ResponseType: slack.ResponseTypeEphemeral, Text: text}
}

func writeMsg(w http.ResponseWriter, msg slack.Msg) {
	utilities.WriteJSON(w, http.StatusOK, msg)
}
