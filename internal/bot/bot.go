package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"task-manager/internal/remote"
	"task-manager/internal/service"
	"task-manager/internal/view"
)

// WorkspaceFactory creates the workspace of a new chat.
type WorkspaceFactory func() (*service.Workspace, error)

// sender is the part of the Telegram API the handlers use.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// snapshot keeps the ids of the rows last rendered in a chat, so row
// numbers typed by the user resolve to the rows they saw.
type snapshot struct {
	tasks         []string
	categories    []string
	lists         []string
	itemsList     string
	items         []string
	collaborators []string
}

type chatState struct {
	ws           *service.Workspace
	conversation *conversationState
	confirmation *confirmationRequest
	snap         snapshot
}

// Bot serves one workspace per private chat over the Telegram API.
type Bot struct {
	api      *tgbotapi.BotAPI
	out      sender
	newWS    WorkspaceFactory
	reminder *service.ReminderService
	loc      *time.Location
	now      func() time.Time
	log      zerolog.Logger

	mu    sync.Mutex
	chats map[int64]*chatState
}

func New(token string, newWS WorkspaceFactory, reminder *service.ReminderService, loc *time.Location, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	b := newBot(api, newWS, reminder, loc, log)
	b.api = api
	b.log.Info().Str("account", api.Self.UserName).Msg("bot authorized")
	return b, nil
}

func newBot(out sender, newWS WorkspaceFactory, reminder *service.ReminderService, loc *time.Location, log zerolog.Logger) *Bot {
	if loc == nil {
		loc = time.UTC
	}
	return &Bot{
		out:      out,
		newWS:    newWS,
		reminder: reminder,
		loc:      loc,
		now:      time.Now,
		log:      log.With().Str("component", "bot").Logger(),
		chats:    make(map[int64]*chatState),
	}
}

// Start begins polling updates until ctx is cancelled. Chats are served
// concurrently; each chat's updates are handled in order.
func (b *Bot) Start(ctx context.Context) error {
	if b.api == nil {
		return errors.New("bot: no telegram api")
	}
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info().Msg("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	d := newDispatcher(b.handleUpdate)
	for update := range updates {
		d.dispatch(ctx, update)
	}
	d.close()
	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			b.log.Error().Err(err).Msg("handle callback")
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.log.Error().Err(err).Int64("chat_id", update.Message.Chat.ID).Msg("handle message")
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	chatID := msg.Chat.ID

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearDialog(chatID)
		return b.sendText(chatID, "⏪ Cancelled.")
	}

	if msg.IsCommand() {
		b.log.Info().Int64("chat_id", chatID).Str("command", msg.Command()).Msg("command received")
		return b.handleCommand(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	if req := b.getConfirmation(chatID); req != nil {
		return b.handleConfirmationResponse(ctx, msg, *req)
	}

	if b.getConversation(chatID) != nil {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(chatID, "I did not get that. Try /newtask to add a task or /help for the command list.")
}

type commandHandler func(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error

func (b *Bot) commands() map[string]commandHandler {
	return map[string]commandHandler{
		"profile":        b.handleProfile,
		"email":          b.handleEmail,
		"password":       b.handlePassword,
		"name":           b.handleName,
		"avatar":         b.handleAvatar,
		"signout":        b.handleSignOut,
		"tasks":          b.handleTasks,
		"open":           b.handleOpen,
		"completed":      b.handleCompleted,
		"newtask":        b.startNewTaskConversation,
		"task":           b.handleTaskDetail,
		"edit":           b.handleEdit,
		"done":           b.handleDone,
		"undo":           b.handleUndo,
		"comment":        b.handleComment,
		"delete":         b.handleDelete,
		"digest":         b.handleDigest,
		"categories":     b.handleCategories,
		"newcategory":    b.handleNewCategory,
		"renamecategory": b.handleRenameCategory,
		"deletecategory": b.handleDeleteCategory,
		"lists":          b.handleLists,
		"newlist":        b.handleNewList,
		"renamelist":     b.handleRenameList,
		"list":           b.handleListDetail,
		"additem":        b.handleAddItem,
		"item":           b.handleItemToggle,
		"share":          b.handleShare,
		"unshare":        b.handleUnshare,
		"refresh":        b.handleRefresh,
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		return b.handleHelp(msg)
	case "cancel":
		b.clearDialog(chatID)
		return b.sendText(chatID, "⏪ Cancelled.")
	case "signup":
		return b.withWorkspace(ctx, msg, b.handleSignUp)
	case "signin":
		return b.withWorkspace(ctx, msg, b.handleSignIn)
	}

	h, ok := b.commands()[msg.Command()]
	if !ok {
		return b.sendText(chatID, "Unknown command. See /help.")
	}
	return b.withWorkspace(ctx, msg, func(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
		if !ws.Signed() {
			return b.sendText(chatID, "🔒 Please sign in first: /signin email password")
		}
		return h(ctx, msg, ws)
	})
}

func (b *Bot) withWorkspace(ctx context.Context, msg *tgbotapi.Message, h commandHandler) error {
	ws, err := b.workspace(ctx, msg.Chat.ID)
	if err != nil {
		_ = b.sendText(msg.Chat.ID, view.Error(""))
		return err
	}
	return h(ctx, msg, ws)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "👋 <b>Task manager</b>\n\n" +
		"<b>Account</b>\n" +
		"• /signup email password · /signin email password · /signout\n" +
		"• /profile · /email new · /password new · /name new · /avatar url\n\n" +
		"<b>Tasks</b>\n" +
		"• /tasks [search] · /open · /completed\n" +
		"• /newtask: add a task step by step\n" +
		"• /task n · /done n · /undo n · /delete n\n" +
		"• /edit n title|category|due|priority value\n" +
		"• /comment n text · /digest\n\n" +
		"<b>Categories</b>\n" +
		"• /categories · /newcategory name · /renamecategory n name · /deletecategory n\n\n" +
		"<b>Lists</b>\n" +
		"• /lists · /newlist name · /renamelist n name · /list n\n" +
		"• /additem list task · /item list n (done/undo) · /share list email · /unshare list n\n\n" +
		"• /refresh · /cancel\n" +
		"Numbers refer to the last list I showed you."
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleRefresh(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	if err := b.sendText(msg.Chat.ID, view.Loading("your tasks, categories and lists")); err != nil {
		return err
	}
	if err := ws.Refresh(ctx); err != nil {
		return b.sendText(msg.Chat.ID, view.Error(err.Error()))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🔄 Synced: %d tasks, %d categories, %d lists.",
		len(ws.Tasks.Rows()), len(ws.Categories.Rows()), len(ws.Lists.Rows())))
}

func (b *Bot) handleDigest(ctx context.Context, msg *tgbotapi.Message, ws *service.Workspace) error {
	text, err := b.digest(ctx, ws)
	if err != nil {
		return b.sendText(msg.Chat.ID, view.Error(ws.Tasks.State().Err))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) digest(ctx context.Context, ws *service.Workspace) (string, error) {
	user := ws.Session.User()
	if user == nil {
		return "", remote.ErrNotAuthenticated
	}
	tasks, err := ws.Tasks.Load(ctx)
	if err != nil {
		return "", err
	}
	return b.reminder.DailySummary(*user, tasks, b.now()), nil
}

// SendDigests sends the daily digest to every signed-in chat.
func (b *Bot) SendDigests(ctx context.Context) error {
	for chatID, ws := range b.workspaces() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !ws.Signed() {
			continue
		}
		text, err := b.digest(ctx, ws)
		if err != nil {
			b.log.Warn().Err(err).Int64("chat_id", chatID).Msg("build digest")
			continue
		}
		if err := b.sendText(chatID, text); err != nil {
			b.log.Warn().Err(err).Int64("chat_id", chatID).Msg("send digest")
		}
	}
	return nil
}

// CheckSessions asks the backend about every signed-in chat so expired
// sessions are cleared and their chats notified.
func (b *Bot) CheckSessions(ctx context.Context) error {
	var errs []error
	for chatID, ws := range b.workspaces() {
		if !ws.Signed() {
			continue
		}
		if _, err := ws.Session.CurrentUser(ctx); err != nil {
			b.log.Warn().Err(err).Int64("chat_id", chatID).Msg("check session")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// workspace returns the workspace of chatID, creating it on first use.
func (b *Bot) workspace(ctx context.Context, chatID int64) (*service.Workspace, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.chats[chatID]; ok && st.ws != nil {
		return st.ws, nil
	}
	ws, err := b.newWS()
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	ws.Session.OnChange(func(ev remote.SessionEvent) {
		b.onSessionChange(chatID, ev)
	})
	ws.Start(ctx)
	b.state(chatID).ws = ws
	return ws, nil
}

func (b *Bot) workspaces() map[int64]*service.Workspace {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[int64]*service.Workspace, len(b.chats))
	for id, st := range b.chats {
		if st.ws != nil {
			out[id] = st.ws
		}
	}
	return out
}

func (b *Bot) onSessionChange(chatID int64, ev remote.SessionEvent) {
	switch ev.Kind {
	case remote.EventSignedOut, remote.EventExpired:
		b.mu.Lock()
		if st, ok := b.chats[chatID]; ok {
			st.snap = snapshot{}
			st.conversation = nil
			st.confirmation = nil
		}
		b.mu.Unlock()
	}
	if ev.Kind == remote.EventExpired {
		b.log.Info().Int64("chat_id", chatID).Msg("session expired")
		if err := b.sendText(chatID, "⌛ Your session expired. Sign in again with /signin email password."); err != nil {
			b.log.Warn().Err(err).Int64("chat_id", chatID).Msg("notify expiry")
		}
	}
}

func (b *Bot) state(chatID int64) *chatState {
	st, ok := b.chats[chatID]
	if !ok {
		st = &chatState{}
		b.chats[chatID] = st
	}
	return st
}

func (b *Bot) setSnapshot(chatID int64, fn func(*snapshot)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.state(chatID).snap)
}

func (b *Bot) getSnapshot(chatID int64) snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state(chatID).snap
}

func (b *Bot) getConfirmation(chatID int64) *confirmationRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state(chatID).confirmation
}

func (b *Bot) setConfirmation(chatID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state(chatID).confirmation = &req
}

func (b *Bot) setConversation(chatID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state(chatID).conversation = state
}

func (b *Bot) getConversation(chatID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state(chatID).conversation
}

func (b *Bot) clearDialog(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.state(chatID)
	st.conversation = nil
	st.confirmation = nil
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) ack(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.out.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		b.log.Warn().Err(err).Msg("callback ack")
	}
}

// rowIndex resolves a 1-based row number against n rendered rows.
func rowIndex(arg string, n int) (int, error) {
	i, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(arg), "#"))
	if err != nil {
		return 0, fmt.Errorf("%q is not a row number", arg)
	}
	if n == 0 {
		return 0, errors.New("nothing is listed yet")
	}
	if i < 1 || i > n {
		return 0, fmt.Errorf("pick a number from 1 to %d", n)
	}
	return i - 1, nil
}

// splitArgs splits command arguments into at most n fields; the last field
// keeps the rest of the text.
func splitArgs(args string, n int) []string {
	fields := strings.Fields(args)
	if len(fields) <= n {
		return fields
	}
	head := fields[:n-1]
	rest := strings.TrimSpace(args)
	for _, f := range head {
		rest = strings.TrimSpace(strings.TrimPrefix(rest, f))
	}
	return append(append([]string{}, head...), rest)
}

func escape(s string) string {
	return html.EscapeString(s)
}
