package summary

import (
	"strings"
	"text/template"

	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/task/entity"
)

var prompts = template.Must(template.New("prompts").Parse(`
{{define "weekly"}}Create a brief, engaging summary for a Friday team meeting based on these tasks:

COMPLETED TASKS ({{len .Completed}}):
{{range .Completed}}- {{.Owner.Name}}: {{.Title}}
{{end}}
IN PROGRESS ({{len .InProgress}}):
{{range .InProgress}}- {{.Owner.Name}}: {{.Title}}
{{end}}
BLOCKED TASKS ({{len .Blocked}}):
{{range .Blocked}}- {{.Owner.Name}}: {{.Title}}
{{end}}
Format as:
🎉 CELEBRATIONS: [wins and achievements]
⚠️  FOCUS AREAS: [challenges that need attention]
📊 INSIGHTS: [team patterns and productivity notes]

Keep it concise, positive, and actionable. Max 300 words.{{end}}

{{define "celebrations"}}Analyze these completed tasks and identify achievements worth celebrating:

{{range .}}- {{.Owner.Name}}: {{.Title}} ({{if .Description}}{{.Description}}{{else}}No description{{end}})
{{end}}
Return JSON format:
{
  "celebrations": [
    {"user": "name", "achievement": "description", "emoji": "🎉"}
  ],
  "mood": "positive|neutral|concerned",
  "highlights": ["key wins this week"]
}{{end}}

{{define "reminder"}}Create a brief, encouraging reminder message for this task:

User: {{.Owner.Name}}
Task: {{.Task.Title}}
Due: {{if .Task.DueDate}}{{.Task.DueDate.Format "Mon Jan 02 2006"}}{{else}}No due date{{end}}
Status: {{.Task.Status}}
Priority: {{.Task.Priority}}

Make it friendly, specific, and encouraging. Max 50 words.{{end}}

{{define "patterns"}}Analyze this team's weekly performance and provide insights:

Total Tasks: {{.TotalTasks}}
Completed: {{.Completed}}
In Progress: {{.InProgress}}
Blocked: {{.Blocked}}
Overdue: {{.Overdue}}

Provide 2-3 actionable insights to help the team improve.
Focus on productivity, collaboration, and process improvements.
Keep it positive and constructive.{{end}}
`))

func render(name string, data any) (string, error) {
	var b strings.Builder
	if err := prompts.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func weeklyPrompt(tasks []entity.TaskDetail) (string, error) {
	return render("weekly", struct {
		Completed, InProgress, Blocked []entity.TaskDetail
	}{
		Completed:  byStatus(tasks, entity.StatusCompleted),
		InProgress: byStatus(tasks, entity.StatusInProgress),
		Blocked:    byStatus(tasks, entity.StatusBlocked),
	})
}

func celebrationsPrompt(completed []entity.TaskDetail) (string, error) {
	return render("celebrations", completed)
}

func reminderPrompt(owner entity.Owner, t entity.Task) (string, error) {
	return render("reminder", struct {
		Owner entity.Owner
		Task  entity.Task
	}{owner, t})
}

func patternsPrompt(m entity.WeeklyMetrics) (string, error) {
	return render("patterns", m)
}
