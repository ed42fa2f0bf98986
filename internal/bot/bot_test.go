package bot

import (
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"task-manager/internal/service"
	"task-manager/internal/testutil"
)

type fakeSender struct {
	mu       sync.Mutex
	texts    []string
	markups  []interface{}
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.texts = append(f.texts, m.Text)
		f.markups = append(f.markups, m.ReplyMarkup)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

func (f *fakeSender) lastMarkup() interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.markups) == 0 {
		return nil
	}
	return f.markups[len(f.markups)-1]
}

type harness struct {
	t     *testing.T
	bot   *Bot
	out   *fakeSender
	clock *testutil.Clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	driver := testutil.NewDriver(t)
	clock := testutil.NewClock()
	out := &fakeSender{}
	factory := func() (*service.Workspace, error) {
		return service.NewWorkspace(testutil.NewClient(t, driver, clock), zerolog.Nop()), nil
	}
	b := newBot(out, factory, service.NewReminderService(time.UTC), time.UTC, zerolog.Nop())
	b.now = clock.Now
	return &harness{t: t, bot: b, out: out, clock: clock}
}

// say sends text from chat and returns the last reply.
func (h *harness) say(chatID int64, text string) string {
	h.t.Helper()
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: chatID},
		Chat:      &tgbotapi.Chat{ID: chatID, Type: "private"},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		cmd := strings.Fields(text)[0]
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	if err := h.bot.handleMessage(h.t.Context(), msg); err != nil {
		h.t.Fatalf("%q: %v", text, err)
	}
	return h.out.last()
}

func (h *harness) expect(chatID int64, text, want string) {
	h.t.Helper()
	if got := h.say(chatID, text); !strings.Contains(got, want) {
		h.t.Fatalf("%q replied %q, want it to contain %q", text, got, want)
	}
}

func (h *harness) signIn(chatID int64, email string) {
	h.t.Helper()
	h.expect(chatID, "/signup "+email+" secret123", "created")
	h.expect(chatID, "/signin "+email+" secret123", "Signed in as "+email)
}

func TestCommandsRequireSignIn(t *testing.T) {
	h := newHarness(t)
	h.expect(1, "/tasks", "Please sign in first")
	h.expect(1, "/help", "/signin")
	h.expect(1, "/nope", "Unknown command")
	h.expect(1, "/signin a@x.com", "Usage: /signin")
	h.expect(1, "/signin a@x.com wrongpass", "invalid login credentials")
}

func TestTaskFlow(t *testing.T) {
	h := newHarness(t)
	h.signIn(1, "a@x.com")

	h.expect(1, "/newcategory Work", "created")
	h.expect(1, "/newtask", "Step 1")
	h.expect(1, "Write report", "Step 2")
	h.expect(1, "Work", "Step 3")
	h.expect(1, "tomorrow", "cannot read that date")
	h.expect(1, "2024-01-02", "Step 4")
	h.expect(1, "high", "Task saved")

	h.expect(1, "/newtask", "Step 1")
	h.expect(1, "Buy milk", "Step 2")
	h.expect(1, "skip", "Step 3")
	h.expect(1, "skip", "Step 4")
	h.expect(1, "skip", "Priority:</b> Medium")

	list := h.say(1, "/tasks")
	if !strings.Contains(list, "1.</b> Write report") || !strings.Contains(list, "2.</b> Buy milk") {
		t.Fatalf("task list = %q", list)
	}
	if _, ok := h.out.lastMarkup().(tgbotapi.InlineKeyboardMarkup); !ok {
		t.Fatalf("task list has no inline keyboard")
	}

	h.expect(1, "/tasks milk", "1.</b> Buy milk")
	h.expect(1, "/done 1", "done")
	h.expect(1, "/done 1", "already done")
	h.expect(1, "/undo 1", "reopened")
	h.expect(1, "/comment 1 two bottles please", "Comment added")
	h.expect(1, "/task 1", "two bottles please")
	h.expect(1, "/edit 1 title Buy oat milk", "Buy oat milk")
	h.expect(1, "/edit 1 colour red", "cannot be edited")
	h.expect(1, "/task 9", "pick a number from 1 to 1")

	h.expect(1, "/delete 1", "Delete task")
	h.expect(1, "maybe", "Confirm or cancel")
	h.expect(1, "yes", "deleted")
	h.expect(1, "/open", "1.</b> Write report")
	h.expect(1, "/completed", "No tasks here")
}

func TestSignOutClearsChat(t *testing.T) {
	h := newHarness(t)
	h.signIn(1, "a@x.com")
	h.expect(1, "/newcategory Home", "created")
	h.expect(1, "/categories", "1. Home")

	h.expect(1, "/signout", "Signed out")
	ws, err := h.bot.workspace(t.Context(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(ws.Categories.Rows()); n != 0 {
		t.Fatalf("categories still cached after sign-out: %d", n)
	}
	if snap := h.bot.getSnapshot(1); len(snap.categories) != 0 {
		t.Fatalf("snapshot kept after sign-out: %+v", snap)
	}
	h.expect(1, "/categories", "Please sign in first")
}

func TestListSharing(t *testing.T) {
	h := newHarness(t)
	h.signIn(1, "owner@x.com")
	h.signIn(2, "guest@x.com")

	h.expect(1, "/newlist Groceries", "created")
	h.expect(1, "/lists", "1. Groceries")
	h.expect(1, "/share 1 guest@x.com", "shared with guest@x.com")
	h.expect(1, "/share 1 guest@x.com", "already collaborates")
	h.expect(1, "/share 1 nobody@x.com", "user not found")

	h.expect(1, "/newtask", "Step 1")
	h.expect(1, "Milk", "Step 2")
	h.expect(1, "skip", "Step 3")
	h.expect(1, "skip", "Step 4")
	h.expect(1, "skip", "Task saved")
	h.expect(1, "/tasks", "Milk")
	h.expect(1, "/additem 1 1", "added to")
	h.expect(1, "/additem 1 1", "task already exists in the list")

	h.expect(2, "/lists", "Groceries <i>(shared with you)</i>")
	h.expect(2, "/list 1", "guest@x.com")

	h.expect(1, "/unshare 1 1", "Show the list with /list 1")
	h.expect(1, "/list 1", "guest@x.com")
	h.expect(1, "/unshare 1 1", "removed")
	h.expect(2, "/lists", "No lists yet")
}

func TestProfileCommands(t *testing.T) {
	h := newHarness(t)
	h.signIn(1, "a@x.com")

	h.expect(1, "/name Ann Lee", "Name: Ann Lee")
	h.expect(1, "/email ann@x.com", "Email: ann@x.com")
	h.expect(1, "/password 123", "at least 6 characters")
	h.expect(1, "/password newsecret", "Profile updated")
	h.expect(1, "/profile", "ann@x.com")

	h.expect(1, "/avatar https://example.com/ann.png", "Avatar: https://example.com/ann.png")
	h.expect(1, "/avatar not-a-link", "⚠️")
	h.expect(1, "/profile", "Avatar: https://example.com/ann.png")

	h.expect(1, "/signout", "Signed out")
	h.expect(1, "/signin ann@x.com newsecret", "Signed in as ann@x.com")
}

func TestListItemsAndRename(t *testing.T) {
	h := newHarness(t)
	h.signIn(1, "owner@x.com")
	h.signIn(2, "guest@x.com")

	h.expect(1, "/newlist Grocries", "created")
	h.expect(1, "/lists", "1. Grocries")
	h.expect(1, "/renamelist 1 Groceries", "renamed to “Groceries”")
	h.expect(1, "/lists", "1. Groceries")
	h.expect(1, "/share 1 guest@x.com", "shared with guest@x.com")

	h.expect(1, "/newtask", "Step 1")
	h.expect(1, "Milk", "Step 2")
	h.expect(1, "skip", "Step 3")
	h.expect(1, "skip", "Step 4")
	h.expect(1, "skip", "Task saved")
	h.expect(1, "/tasks", "Milk")
	h.expect(1, "/additem 1 1", "added to")

	h.expect(1, "/item 1 1", "Show the list with /list 1 first")
	h.expect(1, "/list 1", "1. ▫️ Milk")
	h.expect(1, "/item 1 1", "1. ✅ Milk")
	h.expect(1, "/item 1 2", "pick a number from 1 to 1")

	h.expect(2, "/lists", "Groceries <i>(shared with you)</i>")
	h.expect(2, "/list 1", "1. ✅ Milk")
	h.expect(2, "/item 1 1", "1. ▫️ Milk")
	h.expect(2, "/renamelist 1 Mine", "⚠️")
	h.expect(2, "/lists", "1. Groceries")
}

func TestRefreshShowsLoading(t *testing.T) {
	h := newHarness(t)
	h.signIn(1, "a@x.com")
	h.expect(1, "/newcategory Home", "created")

	before := len(h.out.texts)
	h.expect(1, "/refresh", "Synced: 0 tasks, 1 categories, 0 lists")
	h.out.mu.Lock()
	replies := append([]string(nil), h.out.texts[before:]...)
	h.out.mu.Unlock()
	if len(replies) != 2 || !strings.HasPrefix(replies[0], "⏳ Loading") {
		t.Fatalf("refresh replies = %q", replies)
	}
}

func TestSessionExpiryNotifiesChat(t *testing.T) {
	h := newHarness(t)
	h.signIn(1, "a@x.com")

	h.clock.Advance(2 * time.Hour)
	if err := h.bot.CheckSessions(t.Context()); err != nil {
		t.Fatalf("CheckSessions: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(h.out.last(), "session expired") {
		if time.Now().After(deadline) {
			t.Fatalf("no expiry notice, last reply %q", h.out.last())
		}
		time.Sleep(10 * time.Millisecond)
	}
	h.expect(1, "/tasks", "Please sign in first")
}

func TestSendDigests(t *testing.T) {
	h := newHarness(t)
	h.signIn(1, "a@x.com")
	h.say(2, "/help")

	h.expect(1, "/newtask", "Step 1")
	h.expect(1, "Pay rent", "Step 2")
	h.expect(1, "skip", "Step 3")
	h.expect(1, "2023-12-30", "Step 4")
	h.expect(1, "skip", "Task saved")

	if err := h.bot.SendDigests(t.Context()); err != nil {
		t.Fatalf("SendDigests: %v", err)
	}
	got := h.out.last()
	if !strings.Contains(got, "Daily digest") || !strings.Contains(got, "Pay rent") || !strings.Contains(got, "Overdue") {
		t.Fatalf("digest = %q", got)
	}
}

func TestCallbacks(t *testing.T) {
	h := newHarness(t)
	h.signIn(1, "a@x.com")
	h.expect(1, "/newtask", "Step 1")
	h.expect(1, "Call mom", "Step 2")
	h.expect(1, "skip", "Step 3")
	h.expect(1, "skip", "Step 4")
	h.expect(1, "skip", "Task saved")
	h.say(1, "/tasks")

	ws, _ := h.bot.workspace(t.Context(), 1)
	id := ws.Tasks.Rows()[0].ID
	cb := &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: 1},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1, Type: "private"}},
		Data:    cbDonePrefix + id,
	}
	if err := h.bot.handleCallback(t.Context(), cb); err != nil {
		t.Fatalf("done callback: %v", err)
	}
	if got := h.out.last(); !strings.Contains(got, "done") {
		t.Fatalf("done callback replied %q", got)
	}

	cb.Data = cbDeletePrefix + id
	if err := h.bot.handleCallback(t.Context(), cb); err != nil {
		t.Fatalf("delete callback: %v", err)
	}
	h.expect(1, "yes", "deleted")
	if n := len(ws.Tasks.Rows()); n != 0 {
		t.Fatalf("tasks after delete = %d", n)
	}
}

func TestRowIndex(t *testing.T) {
	tests := []struct {
		arg     string
		n       int
		want    int
		wantErr bool
	}{
		{"1", 3, 0, false},
		{" #3 ", 3, 2, false},
		{"0", 3, 0, true},
		{"4", 3, 0, true},
		{"x", 3, 0, true},
		{"1", 0, 0, true},
	}
	for _, tt := range tests {
		got, err := rowIndex(tt.arg, tt.n)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("rowIndex(%q, %d) = %d, %v", tt.arg, tt.n, got, err)
		}
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want []string
	}{
		{"1 title Buy oat milk", 3, []string{"1", "title", "Buy oat milk"}},
		{"2 hello", 2, []string{"2", "hello"}},
		{"2", 2, []string{"2"}},
		{"", 2, nil},
	}
	for _, tt := range tests {
		got := splitArgs(tt.in, tt.n)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("splitArgs(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
