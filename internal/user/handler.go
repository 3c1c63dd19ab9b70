package user

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/pkg/utilities"
)

const (
	HeaderSlackUserID   = "X-Slack-User-Id"
	HeaderSlackUserName = "X-Slack-User-Name"

	defaultSlackUserID = "test-user"
	defaultName        = "Test User"

	maxPeekBody = 1 << 20
)

type ctxKey struct{}

// WithUser stores u on ctx.
func WithUser(ctx context.Context, u *entity.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromContext returns the user resolved by Middleware, if any.
func FromContext(ctx context.Context) (*entity.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*entity.User)
	return u, ok && u != nil
}

// Middleware resolves the calling user from the X-Slack-User-Id header, the
// JSON body's slackUserId, or the test-user default, creating the row on
// first sight. The body is restored for downstream handlers.
func Middleware(svc *Service, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slackID := r.Header.Get(HeaderSlackUserID)
			if slackID == "" {
				slackID = peekSlackUserID(r)
			}
			if slackID == "" {
				slackID = defaultSlackUserID
			}
			name := r.Header.Get(HeaderSlackUserName)
			if name == "" {
				name = defaultName
			}
			u, err := svc.FindOrCreate(r.Context(), slackID, name)
			if err != nil {
				logger.Errorw("resolve user failed", "slack_user_id", slackID, "err", err)
				utilities.WriteError(w, http.StatusInternalServerError, "User authentication failed")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

func peekSlackUserID(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBody))
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var probe struct {
		SlackUserID string `json:"slackUserId"`
	}
	if json.Unmarshal(raw, &probe) != nil {
		return ""
	}
	return probe.SlackUserID
}

// Handler exposes the caller's own user record.
type Handler struct {
	svc        *Service
	logger     *zap.SugaredLogger
	showDetail bool
}

func NewHandler(svc *Service, logger *zap.SugaredLogger, showDetail bool) *Handler {
	return &Handler{svc: svc, logger: logger, showDetail: showDetail}
}

// Me handles GET /api/users/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := FromContext(r.Context())
	if !ok {
		utilities.WriteError(w, http.StatusUnauthorized, "user not resolved")
		return
	}
	utilities.WriteJSON(w, http.StatusOK, u)
}

// UpdatePreferences handles PUT /api/users/me/preferences.
func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	u, ok := FromContext(r.Context())
	if !ok {
		utilities.WriteError(w, http.StatusUnauthorized, "user not resolved")
		return
	}
	var req struct {
		Preferences entity.Preferences `json:"preferences"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid preferences payload", "err", err)
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	updated, err := h.svc.UpdatePreferences(r.Context(), u.ID, req.Preferences)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			utilities.WriteError(w, http.StatusBadRequest, verr.Message)
		case errors.Is(err, ErrNotFound):
			utilities.WriteError(w, http.StatusNotFound, "User not found")
		default:
			h.logger.Errorw("update preferences failed", "user_id", u.ID, "err", err)
			utilities.WriteInternal(w, err, h.showDetail)
		}
		return
	}
	utilities.WriteJSON(w, http.StatusOK, updated)
}
