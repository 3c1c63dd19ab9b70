// Package summary turns task lists into weekly reports, celebrations,
// reminders and pattern insights, either through a text generation service
// or a deterministic fallback.
package summary

import (
	"context"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/completion"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/task/entity"
)

// WeeklyReport is the parsed weekly digest.
type WeeklyReport struct {
	Celebrations []string `json:"celebrations"`
	FocusAreas   []string `json:"focusAreas"`
	Insights     []string `json:"insights"`
	FullText     string   `json:"fullText"`
}

type Celebration struct {
	User        string `json:"user"`
	Achievement string `json:"achievement"`
	Emoji       string `json:"emoji"`
}

const (
	MoodPositive  = "positive"
	MoodNeutral   = "neutral"
	MoodConcerned = "concerned"
)

type CelebrationReport struct {
	Celebrations []Celebration `json:"celebrations"`
	Mood         string        `json:"mood"`
	Highlights   []string      `json:"highlights"`
}

// Summarizer never fails: implementations absorb upstream errors and return
// a usable value.
type Summarizer interface {
	WeeklySummary(ctx context.Context, tasks []entity.TaskDetail) WeeklyReport
	Celebrations(ctx context.Context, tasks []entity.TaskDetail) CelebrationReport
	Reminder(ctx context.Context, owner entity.Owner, t entity.Task) string
	Patterns(ctx context.Context, m entity.WeeklyMetrics) string
}

// Completer is the text generation capability; *completion.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) (string, error)
}

// New returns a Remote summarizer when c is non-nil and a Fallback otherwise.
func New(c Completer, logger *zap.SugaredLogger) Summarizer {
	if c == nil {
		logger.Infow("text generation not configured, using fallback summaries")
		return Fallback{}
	}
	return NewRemote(c, logger)
}
