package slackbot

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/task/entity"
)

// callback, block and action ids shared by the modals and their submissions
const (
	CallbackCreateTask = "task_creation_modal"
	CallbackUpdateTask = "task_update_modal"
	CallbackNoTasks    = "no_tasks_modal"

	blockTitle       = "task_title"
	actionTitle      = "title_input"
	blockDescription = "task_description"
	actionDesc       = "description_input"
	blockDueDate     = "due_date"
	actionDueDate    = "date_picker"
	blockPriority    = "priority"
	actionPriority   = "priority_select"

	blockTaskSelect = "task_selection"
	actionTask      = "selected_task"
	blockContent    = "update_content"
	actionContent   = "content_input"
	blockStatus     = "status_update"
	actionStatus    = "status_select"
)

var statusEmoji = map[entity.Status]string{
	entity.StatusPending:    "⏳",
	entity.StatusInProgress: "🔄",
	entity.StatusCompleted:  "✅",
	entity.StatusBlocked:    "🚨",
}

var priorityEmoji = map[entity.Priority]string{
	entity.PriorityLow:    "🟢",
	entity.PriorityMedium: "🟡",
	entity.PriorityHigh:   "🔴",
}

func statusGlyph(s entity.Status) string {
	if e, ok := statusEmoji[s]; ok {
		return e
	}
	return "⏳"
}

func priorityGlyph(p entity.Priority) string {
	if e, ok := priorityEmoji[p]; ok {
		return e
	}
	return "🟡"
}

// privateMetadata travels with the creation modal.
type privateMetadata struct {
	UserID    string `json:"userId"`
	ChannelID string `json:"channelId"`
}

func plain(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, true, false)
}

func mrkdwn(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

func option(value, label string) *slack.OptionBlockObject {
	return slack.NewOptionBlockObject(value, plain(label), nil)
}

// nextFriday returns the next Friday after today as YYYY-MM-DD; on a Friday
// it is a week out.
func nextFriday(today time.Time) string {
	days := int(time.Friday) - int(today.Weekday())
	if days <= 0 {
		days += 7
	}
	return today.AddDate(0, 0, days).Format(time.DateOnly)
}

func createTaskModal(userID, channelID string, today time.Time) slack.ModalViewRequest {
	meta, _ := json.Marshal(privateMetadata{UserID: userID, ChannelID: channelID})

	title := slack.NewPlainTextInputBlockElement(plain("e.g. Fix authentication bug in login flow"), actionTitle)

	desc := slack.NewPlainTextInputBlockElement(plain("Add any context, requirements, or notes..."), actionDesc)
	desc.Multiline = true
	descBlock := slack.NewInputBlock(blockDescription, plain("Description & Notes"), nil, desc)
	descBlock.Optional = true

	due := slack.NewDatePickerBlockElement(actionDueDate)
	due.InitialDate = nextFriday(today)
	due.Placeholder = plain("Select due date")
	dueBlock := slack.NewInputBlock(blockDueDate, plain("Due Date"), nil, due)
	dueBlock.Optional = true

	medium := option(string(entity.PriorityMedium), "🟡 Medium")
	prio := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, nil, actionPriority,
		option(string(entity.PriorityLow), "🟢 Low"),
		medium,
		option(string(entity.PriorityHigh), "🔴 High"),
	)
	prio.InitialOption = medium

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      CallbackCreateTask,
		Title:           plain("📋 Create New Task"),
		Submit:          plain("Create Task"),
		PrivateMetadata: string(meta),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewInputBlock(blockTitle, plain("Task Title"), nil, title),
			descBlock,
			dueBlock,
			slack.NewInputBlock(blockPriority, plain("Priority"), nil, prio),
		}},
	}
}

func noTasksModal() slack.ModalViewRequest {
	return slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: CallbackNoTasks,
		Title:      plain("🔄 Update Task"),
		Close:      plain("Close"),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(mrkdwn("📋 No active tasks to update.\n\nUse `/create-task` to create a new task first!"), nil, nil),
		}},
	}
}

func updateTaskModal(tasks []entity.TaskDetail) slack.ModalViewRequest {
	opts := make([]*slack.OptionBlockObject, 0, len(tasks))
	for _, t := range tasks {
		opts = append(opts, option(t.ID, truncate(fmt.Sprintf("%s (%s)", t.Title, t.Status), 75)))
	}
	pick := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, plain("Choose a task..."), actionTask, opts...)

	content := slack.NewPlainTextInputBlockElement(plain("What's the current status? Any progress or blockers?"), actionContent)
	content.Multiline = true

	status := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, plain("Update status..."), actionStatus,
		option(string(entity.StatusInProgress), "🔄 In Progress"),
		option(string(entity.StatusCompleted), "✅ Completed"),
		option(string(entity.StatusBlocked), "🚨 Blocked"),
		option(string(entity.StatusPending), "⏳ Pending"),
	)
	statusBlock := slack.NewInputBlock(blockStatus, plain("New Status"), nil, status)
	statusBlock.Optional = true

	return slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: CallbackUpdateTask,
		Title:      plain("🔄 Update Task"),
		Submit:     plain("Update Task"),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(mrkdwn("Select a task to update:"), nil, nil),
			slack.NewInputBlock(blockTaskSelect, plain("Task"), nil, pick),
			slack.NewInputBlock(blockContent, plain("Progress Update"), nil, content),
			statusBlock,
		}},
	}
}

// myTasksMessage renders the caller's task list.
func myTasksMessage(tasks []entity.TaskDetail) slack.Msg {
	if len(tasks) == 0 {
		return slack.Msg{
			ResponseType: slack.ResponseTypeEphemeral,
			Text:         "📋 *Your Tasks*",
			Blocks: slack.Blocks{BlockSet: []slack.Block{
				slack.NewSectionBlock(mrkdwn("📋 *Your Tasks*\n\nNo tasks found. Use `/create-task` to create your first task!"), nil, nil),
			}},
		}
	}

	blocks := []slack.Block{
		slack.NewSectionBlock(mrkdwn(fmt.Sprintf("📋 *Your Tasks* (%d total)", len(tasks))), nil, nil),
		slack.NewDividerBlock(),
	}
	for i, t := range tasks {
		due := "📅 No due date"
		if t.DueDate != nil {
			due = "📅 Due: " + t.DueDate.Format("Jan 2, 2006")
		}
		desc := "_No description_"
		if t.Description != nil && *t.Description != "" {
			desc = *t.Description
		}
		text := fmt.Sprintf("%s *%s*\n%s %s • %s\n%s",
			statusGlyph(t.Status), t.Title,
			priorityGlyph(t.Priority), strings.ToUpper(string(t.Priority)), due,
			desc)
		blocks = append(blocks, slack.NewSectionBlock(mrkdwn(text), nil, nil))
		if i < len(tasks)-1 {
			blocks = append(blocks, slack.NewDividerBlock())
		}
	}
	return slack.Msg{
		ResponseType: slack.ResponseTypeEphemeral,
		Text:         fmt.Sprintf("📋 Your Tasks (%d total)", len(tasks)),
		Blocks:       slack.Blocks{BlockSet: blocks},
	}
}

func createdText(t *entity.TaskDetail) string {
	due := "No due date"
	if t.DueDate != nil {
		due = t.DueDate.Format(time.DateOnly)
	}
	return fmt.Sprintf("✅ Task created: *%s*\n📅 Due: %s\n🔗 Priority: %s\n🆔 ID: %s", t.Title, due, t.Priority, t.ID)
}

func updatedText(t *entity.TaskDetail, content string) string {
	return fmt.Sprintf("✅ *Task Updated: %s*\n🔄 Status: %s\n📝 Update: %s", t.Title, t.Status, content)
}

// truncate keeps option labels within Slack's 75 character limit.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
