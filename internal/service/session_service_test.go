package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"task-manager/internal/model"
	"task-manager/internal/remote"
	"task-manager/internal/service"
	"task-manager/internal/store"
	"task-manager/internal/testutil"
)

func seed(t *testing.T, w *service.Workspace) {
	t.Helper()
	ctx := t.Context()
	if _, err := w.Tasks.Add(ctx, model.Task{Title: "Buy milk"}); err != nil {
		t.Fatalf("add task: %v", err)
	}
	if _, err := w.Categories.Add(ctx, "Work"); err != nil {
		t.Fatalf("add category: %v", err)
	}
	list, err := w.Lists.Add(ctx, "Groceries")
	if err != nil {
		t.Fatalf("add list: %v", err)
	}
	if _, err := w.ListItems.Load(ctx, list.ID); err != nil {
		t.Fatalf("load items: %v", err)
	}
}

func assertCleared(t *testing.T, w *service.Workspace) {
	t.Helper()
	if st := w.Tasks.State(); len(st.Rows) != 0 || st.Loading || st.Err != "" {
		t.Errorf("tasks not reset: %+v", st)
	}
	if st := w.Categories.State(); len(st.Rows) != 0 || st.Loading || st.Err != "" {
		t.Errorf("categories not reset: %+v", st)
	}
	if st := w.Lists.State(); len(st.Rows) != 0 || st.Loading || st.Err != "" {
		t.Errorf("lists not reset: %+v", st)
	}
	if st := w.ListItems.State(); len(st.Rows) != 0 || st.Err != "" {
		t.Errorf("list items not reset: %+v", st)
	}
	if st := w.Collaborators.State(); len(st.Rows) != 0 || st.Err != "" {
		t.Errorf("collaborators not reset: %+v", st)
	}
}

func TestSignOutResetsEverySlice(t *testing.T) {
	ctx := t.Context()
	client := testutil.NewClient(t, nil, nil)
	w := service.NewWorkspace(client, zerolog.Nop())

	if _, err := w.Session.SignUp(ctx, "a@x.com", "secret123"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if w.Signed() {
		t.Fatalf("sign up must not sign in")
	}
	if _, err := w.Session.SignIn(ctx, "a@x.com", "secret123"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	seed(t, w)
	_ = w.Tasks.Fail("test", remote.ErrRemote)

	if err := w.Session.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	assertCleared(t, w)
	if st := w.Session.State(); st.User != nil || st.Loading || st.Err != "" {
		t.Fatalf("session state = %+v", st)
	}
}

func TestSignInAsOtherUserResets(t *testing.T) {
	ctx := t.Context()
	driver := testutil.NewDriver(t)
	client := testutil.NewClient(t, driver, nil)
	w := service.NewWorkspace(client, zerolog.Nop())

	for _, email := range []string{"a@x.com", "b@x.com"} {
		if _, err := w.Session.SignUp(ctx, email, "secret123"); err != nil {
			t.Fatalf("SignUp %s: %v", email, err)
		}
	}
	if _, err := w.Session.SignIn(ctx, "a@x.com", "secret123"); err != nil {
		t.Fatalf("SignIn a: %v", err)
	}
	seed(t, w)

	user, err := w.Session.SignIn(ctx, "b@x.com", "secret123")
	if err != nil {
		t.Fatalf("SignIn b: %v", err)
	}
	assertCleared(t, w)
	if got := w.Session.User(); got == nil || got.ID != user.ID {
		t.Fatalf("User = %+v, want %s", got, user.ID)
	}

	rows, err := w.Tasks.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("b sees a's tasks: %+v", rows)
	}
}

func TestSignInFailureIsStored(t *testing.T) {
	client := testutil.NewClient(t, nil, nil)
	w := service.NewWorkspace(client, zerolog.Nop())

	_, err := w.Session.SignIn(t.Context(), "nobody@x.com", "secret123")
	if !errors.Is(err, remote.ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
	st := w.Session.State()
	if st.User != nil || st.Loading {
		t.Fatalf("state = %+v", st)
	}
	if st.Err != "auth error: invalid login credentials" {
		t.Fatalf("Err = %q", st.Err)
	}
}

func TestExpiryResetsThroughEvents(t *testing.T) {
	ctx := t.Context()
	clock := testutil.NewClock()
	client := testutil.NewClient(t, nil, clock)
	w := service.NewWorkspace(client, zerolog.Nop())
	w.Start(ctx)

	events := make(chan remote.SessionEvent, 4)
	w.Session.OnChange(func(ev remote.SessionEvent) { events <- ev })

	if _, err := w.Session.SignUp(ctx, "a@x.com", "secret123"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if _, err := w.Session.SignIn(ctx, "a@x.com", "secret123"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	waitFor(t, events, remote.EventSignedIn)
	seed(t, w)

	clock.Advance(2 * time.Hour)
	if err := client.CheckSession(ctx); err != nil {
		t.Fatalf("CheckSession: %v", err)
	}
	waitFor(t, events, remote.EventExpired)

	assertCleared(t, w)
	if w.Signed() {
		t.Fatalf("session survived expiry")
	}
}

func TestUpdateProfile(t *testing.T) {
	ctx := t.Context()
	client := testutil.NewClient(t, nil, nil)
	w := service.NewWorkspace(client, zerolog.Nop())
	testutil.SignedIn(t, client, "a@x.com")
	if _, err := w.Session.CurrentUser(ctx); err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}

	name := "  Ann "
	email := "ann@x.com"
	user, err := w.Session.UpdateProfile(ctx, remote.UserUpdate{Name: &name, Email: &email})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if user.Name != "Ann" || user.Email != email {
		t.Fatalf("user = %+v", user)
	}
	if got := w.Session.User(); got == nil || got.Email != email {
		t.Fatalf("session user = %+v", got)
	}

	short := "123"
	if _, err := w.Session.UpdateProfile(ctx, remote.UserUpdate{Password: &short}); !errors.Is(err, remote.ErrAuth) {
		t.Fatalf("short password err = %v, want ErrAuth", err)
	}

	avatar := "https://example.com/ann.png"
	user, err = w.Session.UpdateProfile(ctx, remote.UserUpdate{AvatarURL: &avatar})
	if err != nil {
		t.Fatalf("UpdateProfile avatar: %v", err)
	}
	if user.AvatarURL != avatar || user.Name != "Ann" {
		t.Fatalf("user = %+v", user)
	}
	bad := "not a url"
	if _, err := w.Session.UpdateProfile(ctx, remote.UserUpdate{AvatarURL: &bad}); !errors.Is(err, remote.ErrValidation) {
		t.Fatalf("bad avatar err = %v, want ErrValidation", err)
	}
	if got := w.Session.User(); got == nil || got.AvatarURL != avatar {
		t.Fatalf("session user after bad avatar = %+v", got)
	}
}

func TestRegisteredSlicesReset(t *testing.T) {
	ctx := t.Context()
	client := testutil.NewClient(t, nil, nil)
	session := service.NewSessionService(client, zerolog.Nop())
	tasks := store.NewTasks(client, zerolog.Nop())
	session.Register(tasks)

	if _, err := session.SignUp(ctx, "a@x.com", "secret123"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if _, err := session.SignIn(ctx, "a@x.com", "secret123"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if _, err := tasks.Add(ctx, model.Task{Title: "Buy milk"}); err != nil {
		t.Fatalf("add task: %v", err)
	}
	if err := session.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if rows := tasks.Rows(); len(rows) != 0 {
		t.Fatalf("registered slice kept %+v", rows)
	}
}

func TestRefresh(t *testing.T) {
	ctx := t.Context()
	client := testutil.NewClient(t, nil, nil)
	w := service.NewWorkspace(client, zerolog.Nop())

	if err := w.Refresh(ctx); !errors.Is(err, remote.ErrNotAuthenticated) {
		t.Fatalf("signed-out Refresh err = %v, want ErrNotAuthenticated", err)
	}

	testutil.SignedIn(t, client, "a@x.com")
	seed(t, w)
	w.Tasks.Reset()
	if err := w.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if n := len(w.Tasks.Rows()); n != 1 {
		t.Fatalf("tasks after refresh = %d", n)
	}
}

func waitFor(t *testing.T, events <-chan remote.SessionEvent, kind remote.EventKind) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Kind == kind {
				return
			}
		case <-timeout:
			t.Fatalf("no %s event", kind)
		}
	}
}

func TestStaleEventsKeepNewSession(t *testing.T) {
	ctx := t.Context()
	client := testutil.NewClient(t, nil, nil)
	w := service.NewWorkspace(client, zerolog.Nop())
	w.Start(ctx)

	events := make(chan remote.SessionEvent, 8)
	w.Session.OnChange(func(ev remote.SessionEvent) { events <- ev })

	if _, err := w.Session.SignUp(ctx, "a@x.com", "secret123"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if _, err := w.Session.SignIn(ctx, "a@x.com", "secret123"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if err := w.Session.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := w.Session.SignIn(ctx, "a@x.com", "secret123"); err != nil {
		t.Fatalf("second SignIn: %v", err)
	}
	seed(t, w)

	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case ev := <-events:
			done = ev.Kind == remote.EventSignedIn && ev.Seq == 2
		case <-timeout:
			t.Fatal("no event for the second sign-in")
		}
	}

	if !w.Signed() {
		t.Fatal("stale sign-out ended the new session")
	}
	if n := len(w.Tasks.Rows()); n != 1 {
		t.Fatalf("tasks = %d, want 1", n)
	}
}
