package summary

import (
	"context"
	"fmt"
	"math"

	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/task/entity"
)

// Fallback computes every result locally from task counts.
type Fallback struct{}

var _ Summarizer = Fallback{}

func (Fallback) WeeklySummary(_ context.Context, tasks []entity.TaskDetail) WeeklyReport {
	completed := byStatus(tasks, entity.StatusCompleted)
	blocked := byStatus(tasks, entity.StatusBlocked)

	r := WeeklyReport{
		Celebrations: make([]string, 0, len(completed)),
		FocusAreas:   make([]string, 0, len(blocked)),
		Insights:     []string{fmt.Sprintf("%d total tasks tracked this week", len(tasks))},
		FullText: fmt.Sprintf("Weekly Summary: %d completed, %d blocked, %d total tasks.",
			len(completed), len(blocked), len(tasks)),
	}
	for _, t := range completed {
		r.Celebrations = append(r.Celebrations, t.Owner.Name+" completed: "+t.Title)
	}
	for _, t := range blocked {
		r.FocusAreas = append(r.FocusAreas, t.Owner.Name+" blocked on: "+t.Title)
	}
	return r
}

func (Fallback) Celebrations(_ context.Context, tasks []entity.TaskDetail) CelebrationReport {
	completed := byStatus(tasks, entity.StatusCompleted)
	r := CelebrationReport{
		Celebrations: make([]Celebration, 0, len(completed)),
		Mood:         MoodNeutral,
		Highlights:   make([]string, 0, len(completed)),
	}
	for _, t := range completed {
		r.Celebrations = append(r.Celebrations, Celebration{
			User:        t.Owner.Name,
			Achievement: "Completed: " + t.Title,
			Emoji:       "🎉",
		})
		r.Highlights = append(r.Highlights, t.Owner.Name+" finished "+t.Title)
	}
	if len(completed) > 0 {
		r.Mood = MoodPositive
	}
	return r
}

func (Fallback) Reminder(_ context.Context, owner entity.Owner, t entity.Task) string {
	return fmt.Sprintf("Hi %s, gentle reminder about \"%s\" - how's it going?", owner.Name, t.Title)
}

func (Fallback) Patterns(_ context.Context, m entity.WeeklyMetrics) string {
	rate := 0
	if m.TotalTasks > 0 {
		rate = int(math.Round(float64(m.Completed) / float64(m.TotalTasks) * 100))
	}
	tail := "Good progress overall!"
	if m.Blocked > 0 {
		tail = fmt.Sprintf("%d tasks are currently blocked and may need attention.", m.Blocked)
	}
	return fmt.Sprintf("Team completed %d%% of tasks this week. %s", rate, tail)
}

func byStatus(tasks []entity.TaskDetail, s entity.Status) []entity.TaskDetail {
	var out []entity.TaskDetail
	for _, t := range tasks {
		if t.Status == s {
			out = append(out, t)
		}
	}
	return out
}
