// Package notifier runs the scheduled Slack digest and due-date reminders.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/summary"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/task/entity"
)

const (
	JobDigest   = "weekly_digest"
	JobReminder = "due_reminder"

	// ReminderWindow is how far ahead a due date triggers a reminder.
	ReminderWindow = 24 * time.Hour
)

// ErrNoChannel is returned by Digest when no digest channel is configured.
var ErrNoChannel = errors.New("digest channel not configured")

// TaskSource is the read side of the task service the jobs need.
type TaskSource interface {
	GetWeeklySummary(ctx context.Context) (*entity.WeeklySummary, error)
	DueForReminder(ctx context.Context, within time.Duration) ([]entity.TaskDetail, error)
}

type Jobs struct {
	tasks      TaskSource
	summarizer summary.Summarizer
	poster     Poster
	channel    string
	logger     *zap.SugaredLogger
}

func NewJobs(tasks TaskSource, s summary.Summarizer, p Poster, digestChannel string, logger *zap.SugaredLogger) *Jobs {
	return &Jobs{tasks: tasks, summarizer: s, poster: p, channel: digestChannel, logger: logger}
}

// Digest posts the weekly metrics, AI summary and celebrations to the digest channel.
func (j *Jobs) Digest(ctx context.Context) (err error) {
	defer func() { metrics.RecordJobRun(JobDigest, err == nil) }()

	if j.channel == "" {
		return ErrNoChannel
	}
	data, err := j.tasks.GetWeeklySummary(ctx)
	if err != nil {
		return fmt.Errorf("weekly summary: %w", err)
	}
	report := j.summarizer.WeeklySummary(ctx, data.Tasks)
	cheers := j.summarizer.Celebrations(ctx, data.Tasks)

	if err := j.poster.Post(ctx, j.channel, digestText(data.WeeklyMetrics, report, cheers)); err != nil {
		return fmt.Errorf("post digest: %w", err)
	}
	j.logger.Infow("weekly digest posted", "channel", j.channel, "tasks", data.TotalTasks)
	return nil
}

// Remind sends a direct message to the owner of every open task due within
// ReminderWindow. It returns the number of reminders delivered. Delivery
// failures for one owner do not stop the rest.
func (j *Jobs) Remind(ctx context.Context) (sent int, err error) {
	defer func() { metrics.RecordJobRun(JobReminder, err == nil) }()

	due, err := j.tasks.DueForReminder(ctx, ReminderWindow)
	if err != nil {
		return 0, fmt.Errorf("due tasks: %w", err)
	}
	var errs []error
	for _, t := range due {
		if t.Owner.SlackUserID == "" {
			continue
		}
		text := j.summarizer.Reminder(ctx, t.Owner, t.Task)
		if perr := j.poster.Post(ctx, t.Owner.SlackUserID, text); perr != nil {
			j.logger.Warnw("reminder delivery failed", "task_id", t.ID, "slack_user", t.Owner.SlackUserID, "err", perr)
			errs = append(errs, perr)
			continue
		}
		sent++
	}
	j.logger.Infow("due reminders sent", "due", len(due), "sent", sent)
	return sent, errors.Join(errs...)
}

func digestText(m entity.WeeklyMetrics, report summary.WeeklyReport, cheers summary.CelebrationReport) string {
	var b strings.Builder
	b.WriteString("📊 *Weekly Team Digest*\n\n")
	fmt.Fprintf(&b, "Tasks: %d • ✅ Completed: %d • 🔄 In progress: %d • 🚨 Blocked: %d • ⏰ Overdue: %d\n",
		m.TotalTasks, m.Completed, m.InProgress, m.Blocked, m.Overdue)
	if s := strings.TrimSpace(report.FullText); s != "" {
		b.WriteString("\n")
		b.WriteString(s)
		b.WriteString("\n")
	}
	if len(cheers.Celebrations) > 0 {
		b.WriteString("\n🎉 *Shout-outs*\n")
		for _, c := range cheers.Celebrations {
			fmt.Fprintf(&b, "%s *%s*: %s\n", c.Emoji, c.User, c.Achievement)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
