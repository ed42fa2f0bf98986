package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"task-manager/internal/model"
	"task-manager/internal/remote"
	"task-manager/internal/store"
)

// SessionState is a snapshot of the signed-in user.
type SessionState struct {
	User    *model.User
	Loading bool
	Err     string
}

// SessionService tracks the signed-in user and clears every registered
// slice whenever the session ends or switches to another user.
type SessionService struct {
	auth remote.Auth
	log  zerolog.Logger

	// mu guards the session fields and is held while slices are reset, so
	// no reader observes the new session next to the old user's rows.
	mu      sync.Mutex
	user    *model.User
	seq     uint64
	ended   uint64
	pending int
	err     string
	slices  []store.Resetter

	listenersMu sync.Mutex
	listeners   []func(remote.SessionEvent)
}

func NewSessionService(auth remote.Auth, log zerolog.Logger) *SessionService {
	return &SessionService{
		auth: auth,
		log:  log.With().Str("component", "session").Logger(),
	}
}

// Register adds slices to reset on session transitions.
func (s *SessionService) Register(slices ...store.Resetter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slices = append(s.slices, slices...)
}

// OnChange registers fn to run after every session event has been applied.
func (s *SessionService) OnChange(fn func(remote.SessionEvent)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Start consumes session events until ctx is done. Sessions that end
// outside this service (expiry, sign-out from another caller) reset the
// slices too.
func (s *SessionService) Start(ctx context.Context) {
	events, unsubscribe := s.auth.Subscribe()
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				s.apply(ev)
			}
		}
	}()
}

func (s *SessionService) SignUp(ctx context.Context, email, password string) (model.User, error) {
	s.begin()
	user, err := s.auth.SignUp(ctx, email, password)
	s.finish(err)
	if err != nil {
		return model.User{}, err
	}
	s.log.Info().Str("email", user.Email).Msg("user registered")
	return user, nil
}

// SignIn starts a session. Signing in as another user clears the previous
// user's cached rows first.
func (s *SessionService) SignIn(ctx context.Context, email, password string) (model.User, error) {
	s.begin()
	session, err := s.auth.SignIn(ctx, email, password)
	s.finish(err)
	if err != nil {
		return model.User{}, err
	}
	user := session.User
	s.mu.Lock()
	s.seq = max(s.seq, session.Seq)
	s.setUserLocked(&user)
	s.mu.Unlock()
	return user, nil
}

// SignOut ends the session. Local state is cleared even when the backend
// call fails.
func (s *SessionService) SignOut(ctx context.Context) error {
	s.begin()
	err := s.auth.SignOut(ctx)
	s.finish(err)
	s.mu.Lock()
	s.ended = s.seq
	s.setUserLocked(nil)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// CurrentUser asks the backend for the signed-in user and syncs local
// state with the answer. It returns nil when nobody is signed in.
func (s *SessionService) CurrentUser(ctx context.Context) (*model.User, error) {
	s.begin()
	user, err := s.auth.CurrentUser(ctx)
	s.finish(err)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if user == nil {
		s.ended = s.seq
	}
	s.setUserLocked(user)
	s.mu.Unlock()
	return user, nil
}

// UpdateProfile changes the profile of the signed-in user.
func (s *SessionService) UpdateProfile(ctx context.Context, update remote.UserUpdate) (model.User, error) {
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		update.Name = &name
	}
	s.begin()
	user, err := s.auth.UpdateUser(ctx, update)
	s.finish(err)
	if err != nil {
		return model.User{}, err
	}
	s.setUser(&user)
	return user, nil
}

func (s *SessionService) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := SessionState{Loading: s.pending > 0, Err: s.err}
	if s.user != nil {
		u := *s.user
		st.User = &u
	}
	return st
}

// User returns the signed-in user or nil.
func (s *SessionService) User() *model.User {
	return s.State().User
}

func (s *SessionService) apply(ev remote.SessionEvent) {
	if !s.applyEvent(ev) {
		s.log.Debug().Str("event", string(ev.Kind)).Uint64("seq", ev.Seq).Msg("ignoring event of a replaced session")
		return
	}
	s.log.Debug().Str("event", string(ev.Kind)).Msg("session event applied")

	s.listenersMu.Lock()
	listeners := append([]func(remote.SessionEvent){}, s.listeners...)
	s.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

// applyEvent updates the session from ev. Events older than the newest
// sign-in seen, and updates of a sign-in that already ended, are stale.
func (s *SessionService) applyEvent(ev remote.SessionEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.Seq < s.seq {
		return false
	}
	switch ev.Kind {
	case remote.EventSignedOut, remote.EventExpired:
		s.seq, s.ended = ev.Seq, ev.Seq
		s.setUserLocked(nil)
	case remote.EventSignedIn, remote.EventUserUpdated:
		if ev.User == nil || (s.ended > 0 && ev.Seq <= s.ended) {
			return false
		}
		s.seq = ev.Seq
		s.setUserLocked(ev.User)
	}
	return true
}

func (s *SessionService) setUser(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setUserLocked(user)
}

// setUserLocked switches the session to user, resetting every slice in the
// same critical section when the user changes or signs out.
func (s *SessionService) setUserLocked(user *model.User) {
	if user == nil || (s.user != nil && s.user.ID != user.ID) {
		for _, sl := range s.slices {
			sl.Reset()
		}
		s.log.Info().Int("slices", len(s.slices)).Msg("cached rows cleared")
	}
	if user == nil {
		s.user = nil
		return
	}
	u := *user
	s.user = &u
}

func (s *SessionService) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending++
	s.err = ""
}

func (s *SessionService) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending > 0 {
		s.pending--
	}
	if err != nil {
		s.err = store.Message(err)
		s.log.Warn().Err(err).Msg("session call failed")
	}
}
