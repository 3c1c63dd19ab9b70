package summary

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/completion"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/task/entity"
)

// per-operation generation settings
var (
	weeklyParams       = completion.Request{MaxTokens: 800, Temperature: 0.3}
	celebrationsParams = completion.Request{MaxTokens: 400, Temperature: 0.5}
	reminderParams     = completion.Request{MaxTokens: 100, Temperature: 0.7}
	patternsParams     = completion.Request{MaxTokens: 300, Temperature: 0.4}
)

// Remote asks the completer first and falls back locally on any failure.
type Remote struct {
	c        Completer
	fallback Fallback
	logger   *zap.SugaredLogger
}

var _ Summarizer = (*Remote)(nil)

func NewRemote(c Completer, logger *zap.SugaredLogger) *Remote {
	return &Remote{c: c, logger: logger}
}

func (r *Remote) complete(ctx context.Context, op, prompt string, params completion.Request) (string, error) {
	params.Prompt = prompt
	start := time.Now()
	text, err := r.c.Complete(ctx, params)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty completion")
	}
	if err != nil {
		metrics.RecordCompletion(op, "error", time.Since(start))
		r.logger.Warnw("text generation failed, using fallback", "operation", op, "err", err)
		return "", err
	}
	metrics.RecordCompletion(op, "ok", time.Since(start))
	return text, nil
}

func (r *Remote) WeeklySummary(ctx context.Context, tasks []entity.TaskDetail) WeeklyReport {
	prompt, err := weeklyPrompt(tasks)
	if err == nil {
		var text string
		if text, err = r.complete(ctx, "weekly_summary", prompt, weeklyParams); err == nil {
			return parseWeekly(text)
		}
	}
	return r.fallback.WeeklySummary(ctx, tasks)
}

func (r *Remote) Celebrations(ctx context.Context, tasks []entity.TaskDetail) CelebrationReport {
	completed := byStatus(tasks, entity.StatusCompleted)
	if len(completed) == 0 {
		return CelebrationReport{Celebrations: []Celebration{}, Mood: MoodNeutral, Highlights: []string{}}
	}
	prompt, err := celebrationsPrompt(completed)
	if err == nil {
		var text string
		if text, err = r.complete(ctx, "celebrations", prompt, celebrationsParams); err == nil {
			report, perr := parseCelebrations(text)
			if perr == nil {
				return report
			}
			r.logger.Warnw("unparseable celebrations reply, using fallback", "err", perr)
		}
	}
	return r.fallback.Celebrations(ctx, tasks)
}

func (r *Remote) Reminder(ctx context.Context, owner entity.Owner, t entity.Task) string {
	prompt, err := reminderPrompt(owner, t)
	if err == nil {
		var text string
		if text, err = r.complete(ctx, "reminder", prompt, reminderParams); err == nil {
			return strings.TrimSpace(text)
		}
	}
	return r.fallback.Reminder(ctx, owner, t)
}

func (r *Remote) Patterns(ctx context.Context, m entity.WeeklyMetrics) string {
	prompt, err := patternsPrompt(m)
	if err == nil {
		var text string
		if text, err = r.complete(ctx, "patterns", prompt, patternsParams); err == nil {
			return text
		}
	}
	return r.fallback.Patterns(ctx, m)
}
