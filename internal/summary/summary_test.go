package summary

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/completion"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/task/entity"
)

func task(owner, title string, s entity.Status) entity.TaskDetail {
	return entity.TaskDetail{
		Task:  entity.Task{Title: title, Status: s, Priority: entity.PriorityMedium},
		Owner: entity.Owner{Name: owner},
	}
}

var sample = []entity.TaskDetail{
	task("Ada", "Launch beta", entity.StatusCompleted),
	task("Bo", "Fix login", entity.StatusCompleted),
	task("Cy", "Vendor contract", entity.StatusBlocked),
	task("Ada", "Write docs", entity.StatusPending),
}

// stubCompleter records requests and replies with text or err.
type stubCompleter struct {
	text string
	err  error
	reqs []completion.Request
}

func (s *stubCompleter) Complete(_ context.Context, req completion.Request) (string, error) {
	s.reqs = append(s.reqs, req)
	return s.text, s.err
}

func TestFallbackWeeklySummary(t *testing.T) {
	r := Fallback{}.WeeklySummary(context.Background(), sample)
	assert.Len(t, r.Celebrations, 2)
	assert.Len(t, r.FocusAreas, 1)
	assert.Contains(t, r.FullText, "2 completed, 1 blocked, 4 total tasks.")
	assert.Equal(t, "Ada completed: Launch beta", r.Celebrations[0])
	assert.Equal(t, "Cy blocked on: Vendor contract", r.FocusAreas[0])
	assert.Equal(t, []string{"4 total tasks tracked this week"}, r.Insights)
}

func TestFallbackCelebrations(t *testing.T) {
	r := Fallback{}.Celebrations(context.Background(), sample)
	assert.Equal(t, MoodPositive, r.Mood)
	require.Len(t, r.Celebrations, 2)
	assert.Equal(t, Celebration{User: "Ada", Achievement: "Completed: Launch beta", Emoji: "🎉"}, r.Celebrations[0])
	assert.Equal(t, "Bo finished Fix login", r.Highlights[1])

	empty := Fallback{}.Celebrations(context.Background(), sample[2:])
	assert.Equal(t, MoodNeutral, empty.Mood)
	assert.Empty(t, empty.Celebrations)
}

func TestFallbackReminderAndPatterns(t *testing.T) {
	msg := Fallback{}.Reminder(context.Background(), entity.Owner{Name: "Ada"}, entity.Task{Title: "Write docs"})
	assert.Equal(t, `Hi Ada, gentle reminder about "Write docs" - how's it going?`, msg)

	assert.Equal(t, "Team completed 67% of tasks this week. 1 tasks are currently blocked and may need attention.",
		Fallback{}.Patterns(context.Background(), entity.WeeklyMetrics{TotalTasks: 3, Completed: 2, Blocked: 1}))
	assert.Equal(t, "Team completed 0% of tasks this week. Good progress overall!",
		Fallback{}.Patterns(context.Background(), entity.WeeklyMetrics{}))
}

func TestParseWeekly(t *testing.T) {
	raw := "Here is your summary\n" +
		"🎉 CELEBRATIONS:\n- Ada shipped the beta\n• Bo fixed login\nnot a bullet\n" +
		"⚠️  FOCUS AREAS:\n- Vendor contract is stuck\n" +
		"📊 INSIGHTS:\n- Velocity is up\n-   \n"
	r := parseWeekly(raw)
	assert.Equal(t, []string{"Ada shipped the beta", "Bo fixed login"}, r.Celebrations)
	assert.Equal(t, []string{"Vendor contract is stuck"}, r.FocusAreas)
	assert.Equal(t, []string{"Velocity is up"}, r.Insights)
	assert.Equal(t, raw, r.FullText)
}

func TestParseWeeklyWithoutMarkers(t *testing.T) {
	r := parseWeekly("- just a list\n- of things")
	assert.Empty(t, r.Celebrations)
	assert.Empty(t, r.FocusAreas)
	assert.Empty(t, r.Insights)
	assert.Equal(t, "- just a list\n- of things", r.FullText)
}

func TestParseCelebrations(t *testing.T) {
	r, err := parseCelebrations("Sure! {\"celebrations\":[{\"user\":\"Ada\",\"achievement\":\"beta\",\"emoji\":\"🚀\"}],\"mood\":\"ecstatic\"}")
	require.NoError(t, err)
	assert.Equal(t, MoodNeutral, r.Mood)
	assert.Len(t, r.Celebrations, 1)
	assert.NotNil(t, r.Highlights)

	_, err = parseCelebrations("no json here")
	assert.Error(t, err)
}

func TestRemoteUsesCompletion(t *testing.T) {
	stub := &stubCompleter{text: "🎉 WINS\n- Ada shipped\n⚠️ RISKS\n- none\n📊 NOTES\n- steady"}
	r := NewRemote(stub, zap.NewNop().Sugar())

	rep := r.WeeklySummary(context.Background(), sample)
	assert.Equal(t, []string{"Ada shipped"}, rep.Celebrations)
	require.Len(t, stub.reqs, 1)
	assert.Equal(t, 800, stub.reqs[0].MaxTokens)
	assert.InDelta(t, 0.3, stub.reqs[0].Temperature, 1e-9)
	assert.Contains(t, stub.reqs[0].Prompt, "COMPLETED TASKS (2):")
	assert.Contains(t, stub.reqs[0].Prompt, "- Cy: Vendor contract")
}

func TestRemoteFallsBackOnError(t *testing.T) {
	stub := &stubCompleter{err: &completion.APIError{StatusCode: 500, Body: "down"}}
	r := NewRemote(stub, zap.NewNop().Sugar())
	ctx := context.Background()

	assert.Equal(t, Fallback{}.WeeklySummary(ctx, sample), r.WeeklySummary(ctx, sample))
	assert.Equal(t, Fallback{}.Celebrations(ctx, sample), r.Celebrations(ctx, sample))
	owner := entity.Owner{Name: "Ada"}
	tk := entity.Task{Title: "Docs"}
	assert.Equal(t, Fallback{}.Reminder(ctx, owner, tk), r.Reminder(ctx, owner, tk))
	m := entity.WeeklyMetrics{TotalTasks: 4, Completed: 2, Blocked: 1}
	assert.Equal(t, Fallback{}.Patterns(ctx, m), r.Patterns(ctx, m))
}

func TestRemoteCelebrationsSkipsCallWithoutCompleted(t *testing.T) {
	stub := &stubCompleter{err: errors.New("should not be called")}
	r := NewRemote(stub, zap.NewNop().Sugar())
	rep := r.Celebrations(context.Background(), sample[2:])
	assert.Equal(t, MoodNeutral, rep.Mood)
	assert.Empty(t, rep.Celebrations)
	assert.Empty(t, stub.reqs)
}

func TestRemoteCelebrationsBadJSONFallsBack(t *testing.T) {
	stub := &stubCompleter{text: "Great week everyone!"}
	r := NewRemote(stub, zap.NewNop().Sugar())
	rep := r.Celebrations(context.Background(), sample)
	assert.Equal(t, MoodPositive, rep.Mood)
	assert.Len(t, rep.Celebrations, 2)
}

func TestReminderPrompt(t *testing.T) {
	due := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	stub := &stubCompleter{text: "  You've got this!  "}
	r := NewRemote(stub, zap.NewNop().Sugar())
	msg := r.Reminder(context.Background(), entity.Owner{Name: "Ada"},
		entity.Task{Title: "Docs", DueDate: &due, Status: entity.StatusInProgress, Priority: entity.PriorityHigh})
	assert.Equal(t, "You've got this!", msg)
	p := stub.reqs[0].Prompt
	assert.True(t, strings.Contains(p, "Due: Fri Mar 08 2024"), p)
	assert.Contains(t, p, "Priority: high")
	assert.Equal(t, 100, stub.reqs[0].MaxTokens)
}

func TestNewSelectsImplementation(t *testing.T) {
	lg := zap.NewNop().Sugar()
	_, isFallback := New(nil, lg).(Fallback)
	assert.True(t, isFallback)
	_, isRemote := New(&stubCompleter{}, lg).(*Remote)
	assert.True(t, isRemote)
}
