package dashboard

import (
	"context"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/summary"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/task/entity"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/pkg/utilities"
)

// WeeklySource provides the trailing-week aggregate; *task.Service satisfies it.
type WeeklySource interface {
	GetWeeklySummary(ctx context.Context) (*entity.WeeklySummary, error)
}

// Weekly is the combined dashboard payload.
type Weekly struct {
	Metrics      entity.WeeklyMetrics      `json:"metrics"`
	Summary      summary.WeeklyReport      `json:"summary"`
	Celebrations summary.CelebrationReport `json:"celebrations"`
	Patterns     string                    `json:"patterns"`
	RawTasks     []entity.TaskDetail       `json:"rawTasks"`
}

type Handler struct {
	tasks      WeeklySource
	summarizer summary.Summarizer
	logger     *zap.SugaredLogger
	showDetail bool
}

func NewHandler(tasks WeeklySource, s summary.Summarizer, logger *zap.SugaredLogger, showDetail bool) *Handler {
	return &Handler{tasks: tasks, summarizer: s, logger: logger, showDetail: showDetail}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/dashboard/weekly", h.Weekly)
	mux.HandleFunc("GET /api/dashboard/celebrations", h.Celebrations)
}

// Build computes the dashboard. The three summarizer calls run concurrently.
func (h *Handler) Build(ctx context.Context) (*Weekly, error) {
	data, err := h.tasks.GetWeeklySummary(ctx)
	if err != nil {
		return nil, err
	}
	out := &Weekly{Metrics: data.WeeklyMetrics, RawTasks: data.Tasks}
	if out.RawTasks == nil {
		out.RawTasks = []entity.TaskDetail{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out.Summary = h.summarizer.WeeklySummary(gctx, data.Tasks)
		return nil
	})
	g.Go(func() error {
		out.Celebrations = h.summarizer.Celebrations(gctx, data.Tasks)
		return nil
	})
	g.Go(func() error {
		out.Patterns = h.summarizer.Patterns(gctx, data.WeeklyMetrics)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Weekly handles GET /api/dashboard/weekly.
func (h *Handler) Weekly(w http.ResponseWriter, r *http.Request) {
	out, err := h.Build(r.Context())
	if err != nil {
		h.logger.Errorw("weekly dashboard failed", "err", err)
		utilities.WriteInternal(w, err, h.showDetail)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, out)
}

// Celebrations handles GET /api/dashboard/celebrations.
func (h *Handler) Celebrations(w http.ResponseWriter, r *http.Request) {
	data, err := h.tasks.GetWeeklySummary(r.Context())
	if err != nil {
		h.logger.Errorw("celebrations failed", "err", err)
		utilities.WriteInternal(w, err, h.showDetail)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, h.summarizer.Celebrations(r.Context(), data.Tasks))
}
