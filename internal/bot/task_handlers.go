package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-manager/internal/model"
	"task-manager/internal/service"
	"task-manager/internal/view"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageCategory
	stageDueDate
	stagePriority
)

type conversationState struct {
	stage conversationStage
	draft model.Task
}

type confirmationAction int

const (
	actionDeleteTask confirmationAction = iota
	actionDeleteCategory
)

type confirmationRequest struct {
	action confirmationAction
	id     string
	label  string
}

// maxTaskButtons caps the inline keyboard under a task list.
const maxTaskButtons = 10

func (b *Bot) handleTasks(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	query := strings.TrimSpace(msg.CommandArguments())
	title := "Tasks"
	if query != "" {
		title = fmt.Sprintf("Tasks matching “%s”", query)
	}
	return b.sendTaskList(ctx, msg.Chat.ID, ws, title, view.TaskFilter{Query: query})
}

func (b *Bot) handleOpen(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	return b.sendTaskList(ctx, msg.Chat.ID, ws, "Open tasks", view.TaskFilter{Status: view.StatusOpen})
}

func (b *Bot) handleCompleted(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	return b.sendTaskList(ctx, msg.Chat.ID, ws, "Completed tasks", view.TaskFilter{Status: view.StatusCompleted})
}

// sendTaskList reloads the tasks, renders the filtered rows and remembers
// their order for row-number commands.
func (b *Bot) sendTaskList(ctx context.Context, chatID int64, ws *service.Workspace, title string, filter view.TaskFilter) error {
	if _, err := ws.Tasks.Load(ctx); err != nil {
		return b.sendText(chatID, view.Error(ws.Tasks.State().Err))
	}
	tasks := view.FilterTasks(ws.Tasks.Rows(), filter)
	view.SortTasks(tasks)

	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	b.setSnapshot(chatID, func(s *snapshot) { s.tasks = ids })

	text := view.Tasks(title, tasks, b.now().In(b.loc))
	if len(tasks) == 0 {
		return b.sendText(chatID, text)
	}

	var buttons [][]tgbotapi.InlineKeyboardButton
	for i, t := range tasks {
		if i == maxTaskButtons {
			break
		}
		label := fmt.Sprintf("✅ %d · %s", i+1, view.ShortTitle(t.Title, 20))
		if t.Completed {
			label = fmt.Sprintf("↩️ %d · %s", i+1, view.ShortTitle(t.Title, 20))
		}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbDonePrefix+t.ID),
			tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeletePrefix+t.ID),
		))
	}
	return b.sendWithReplyMarkup(chatID, text, tgbotapi.NewInlineKeyboardMarkup(buttons...))
}

// taskAt resolves a row number of the last task list to a cached task.
func (b *Bot) taskAt(chatID int64, ws *service.Workspace, arg string) (int, model.Task, error) {
	ids := b.getSnapshot(chatID).tasks
	i, err := rowIndex(arg, len(ids))
	if err != nil {
		return 0, model.Task{}, fmt.Errorf("%v. Show your tasks with /tasks", err)
	}
	task, ok := ws.Tasks.Find(ids[i])
	if !ok {
		return 0, model.Task{}, fmt.Errorf("task %d is gone. Show your tasks again with /tasks", i+1)
	}
	return i + 1, task, nil
}

func (b *Bot) handleTaskDetail(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	n, task, err := b.taskAt(msg.Chat.ID, ws, msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	return b.sendText(msg.Chat.ID, view.TaskDetail(n, task))
}

func (b *Bot) handleEdit(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	args := splitArgs(msg.CommandArguments(), 3)
	if len(args) < 2 {
		return b.sendText(msg.Chat.ID, "Usage: /edit n title|category|due|priority value")
	}
	n, task, err := b.taskAt(msg.Chat.ID, ws, args[0])
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	value := ""
	if len(args) == 3 {
		value = args[2]
	}
	updated, err := ws.Tasks.Edit(ctx, task.ID, args[1], value)
	if err != nil {
		return b.sendText(msg.Chat.ID, view.Error(ws.Tasks.State().Err))
	}
	return b.sendText(msg.Chat.ID, "✏️ Updated.\n\n"+view.TaskDetail(n, updated))
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	return b.setCompleted(ctx, msg.Chat.ID, ws, msg.CommandArguments(), true)
}

func (b *Bot) handleUndo(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	return b.setCompleted(ctx, msg.Chat.ID, ws, msg.CommandArguments(), false)
}

func (b *Bot) setCompleted(ctx context.Context, chatID int64, ws *service.Workspace, arg string, completed bool) error {
	_, task, err := b.taskAt(chatID, ws, arg)
	if err != nil {
		return b.sendText(chatID, escape(err.Error()))
	}
	return b.completeTask(ctx, chatID, ws, task, completed)
}

func (b *Bot) completeTask(ctx context.Context, chatID int64, ws *service.Workspace, task model.Task, completed bool) error {
	if task.Completed == completed {
		if completed {
			return b.sendText(chatID, fmt.Sprintf("“%s” is already done.", escape(task.Title)))
		}
		return b.sendText(chatID, fmt.Sprintf("“%s” is already open.", escape(task.Title)))
	}
	if _, err := ws.Tasks.SetCompleted(ctx, task.ID, completed); err != nil {
		return b.sendText(chatID, view.Error(ws.Tasks.State().Err))
	}
	b.log.Info().Int64("chat_id", chatID).Str("task_id", task.ID).Bool("completed", completed).Msg("task completion changed")
	if completed {
		return b.sendText(chatID, fmt.Sprintf("✅ “%s” done.", escape(task.Title)))
	}
	return b.sendText(chatID, fmt.Sprintf("↩️ “%s” reopened.", escape(task.Title)))
}

func (b *Bot) handleComment(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	args := splitArgs(msg.CommandArguments(), 2)
	if len(args) < 2 {
		return b.sendText(msg.Chat.ID, "Usage: /comment n text")
	}
	n, task, err := b.taskAt(msg.Chat.ID, ws, args[0])
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	updated, err := ws.Tasks.AddComment(ctx, task.ID, args[1])
	if err != nil {
		return b.sendText(msg.Chat.ID, view.Error(ws.Tasks.State().Err))
	}
	return b.sendText(msg.Chat.ID, "💬 Comment added.\n\n"+view.TaskDetail(n, updated))
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	_, task, err := b.taskAt(msg.Chat.ID, ws, msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	return b.askDeleteTask(msg.Chat.ID, task)
}

func (b *Bot) askDeleteTask(chatID int64, task model.Task) error {
	b.setConfirmation(chatID, confirmationRequest{action: actionDeleteTask, id: task.ID, label: task.Title})
	return b.sendWithReplyMarkup(chatID, fmt.Sprintf("Delete task “%s”?", escape(task.Title)), confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	chatID := msg.Chat.ID
	switch {
	case isConfirmInput(msg.Text):
		b.clearDialog(chatID)
		ws, err := b.workspace(ctx, chatID)
		if err != nil {
			return err
		}
		if !ws.Signed() {
			return b.sendText(chatID, "🔒 Please sign in first: /signin email password")
		}
		switch req.action {
		case actionDeleteCategory:
			if err := ws.Categories.Delete(ctx, req.id); err != nil {
				return b.sendText(chatID, view.Error(ws.Categories.State().Err))
			}
			return b.sendText(chatID, fmt.Sprintf("🗑 Category “%s” deleted.", escape(req.label)))
		default:
			if err := ws.Tasks.Delete(ctx, req.id); err != nil {
				return b.sendText(chatID, view.Error(ws.Tasks.State().Err))
			}
			b.log.Info().Int64("chat_id", chatID).Str("task_id", req.id).Msg("task deleted")
			return b.sendText(chatID, fmt.Sprintf("🗑 Task “%s” deleted.", escape(req.label)))
		}
	case isCancelInput(msg.Text):
		b.clearDialog(chatID)
		return b.sendText(chatID, "Kept it.")
	default:
		return b.sendWithReplyMarkup(chatID, "Confirm or cancel the deletion.", confirmKeyboard())
	}
}

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	b.setConversation(msg.Chat.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New task.\n<b>Step 1:</b> what should it be called?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	state := b.getConversation(chatID)
	if state == nil {
		return nil
	}
	ws, err := b.workspace(ctx, chatID)
	if err != nil {
		return err
	}
	if !ws.Signed() {
		b.clearDialog(chatID)
		return b.sendText(chatID, "🔒 Please sign in first: /signin email password")
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(chatID, "The title cannot be empty.", cancelKeyboard())
		}
		state.draft.Title = text
		state.stage = stageCategory
		if _, err := ws.Categories.Load(ctx); err != nil {
			b.log.Warn().Err(err).Int64("chat_id", chatID).Msg("load categories")
		}
		return b.sendWithReplyMarkup(chatID, "🏷 <b>Step 2:</b> pick a category or type one (or skip).", categoryKeyboard(ws.Categories.Names()))
	case stageCategory:
		if !isSkipInput(text) {
			state.draft.Category = text
		}
		state.stage = stageDueDate
		return b.sendWithReplyMarkup(chatID, "⏰ <b>Step 3:</b> due date as <code>2025-11-30</code> (or skip).", skipKeyboard())
	case stageDueDate:
		if !isSkipInput(text) {
			if _, err := time.Parse(model.DateLayout, text); err != nil {
				return b.sendWithReplyMarkup(chatID, "I cannot read that date. Use <code>2025-11-30</code> or skip.", skipKeyboard())
			}
			state.draft.DueDate = text
		}
		state.stage = stagePriority
		return b.sendWithReplyMarkup(chatID, "❗ <b>Step 4:</b> priority? (skip for Medium)", priorityKeyboard())
	case stagePriority:
		if !isSkipInput(text) {
			p, ok := model.ParsePriority(text)
			if !ok {
				return b.sendWithReplyMarkup(chatID, "Pick High, Medium or Low.", priorityKeyboard())
			}
			state.draft.Priority = p
		}
		b.clearDialog(chatID)
		return b.finishTaskCreation(ctx, chatID, ws, state.draft)
	default:
		b.clearDialog(chatID)
		return b.sendText(chatID, "Dialog reset. Start again with /newtask.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, chatID int64, ws *service.Workspace, draft model.Task) error {
	task, err := ws.Tasks.Add(ctx, draft)
	if err != nil {
		return b.sendText(chatID, view.Error(ws.Tasks.State().Err))
	}
	b.log.Info().Int64("chat_id", chatID).Str("task_id", task.ID).Msg("task created")

	var summary strings.Builder
	summary.WriteString("✅ <b>Task saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(task.Title)))
	if task.Category != "" {
		summary.WriteString(fmt.Sprintf("• <b>Category:</b> %s\n", escape(task.Category)))
	}
	if task.DueDate != "" {
		summary.WriteString(fmt.Sprintf("• <b>Due:</b> %s\n", task.DueDate))
	}
	summary.WriteString(fmt.Sprintf("• <b>Priority:</b> %s", task.Priority))
	return b.sendText(chatID, summary.String())
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	chatID := cb.Message.Chat.ID
	ws, err := b.workspace(ctx, chatID)
	if err != nil {
		b.ack(cb, "")
		return err
	}
	if !ws.Signed() {
		b.ack(cb, "Please sign in first")
		return nil
	}

	data := cb.Data
	var id string
	switch {
	case strings.HasPrefix(data, cbDonePrefix):
		id = strings.TrimPrefix(data, cbDonePrefix)
	case strings.HasPrefix(data, cbDeletePrefix):
		id = strings.TrimPrefix(data, cbDeletePrefix)
	default:
		b.ack(cb, "")
		return nil
	}

	task, ok := ws.Tasks.Find(id)
	if !ok {
		b.ack(cb, "Task not found")
		return nil
	}
	b.ack(cb, "")
	b.log.Info().Int64("chat_id", chatID).Str("data", data).Msg("callback received")
	if strings.HasPrefix(data, cbDeletePrefix) {
		return b.askDeleteTask(chatID, task)
	}
	return b.completeTask(ctx, chatID, ws, task, !task.Completed)
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	var h commandHandler
	switch strings.TrimSpace(strings.ToLower(msg.Text)) {
	case strings.ToLower(menuLabelNewTask):
		h = b.startNewTaskConversation
	case strings.ToLower(menuLabelTasks):
		h = b.handleTasks
	case strings.ToLower(menuLabelCategories):
		h = b.handleCategories
	case strings.ToLower(menuLabelLists):
		h = b.handleLists
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
	return true, b.withWorkspace(ctx, msg, func(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
		if !ws.Signed() {
			return b.sendText(msg.Chat.ID, "🔒 Please sign in first: /signin email password")
		}
		return h(ctx, msg, ws)
	})
}
