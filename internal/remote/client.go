package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"task-manager/internal/model"
)

const (
	// MinPasswordLength is the shortest password accepted on sign-up and update.
	MinPasswordLength = 6

	tokenIssuer        = "task-manager"
	defaultSessionTTL  = time.Hour
	defaultEventBuffer = 16
)

// Options configures a Client.
type Options struct {
	// Secret signs session tokens. Required.
	Secret []byte
	// SessionTTL is how long a sign-in stays valid. Defaults to one hour.
	SessionTTL time.Duration
	// SignInPerMinute limits sign-in and sign-up attempts per email.
	// Zero disables the limit. Ignored when Limiter is set.
	SignInPerMinute int
	// Limiter is shared by every client that should count attempts together.
	Limiter *AttemptLimiter
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger zerolog.Logger
}

type sessionClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Client is one signed-in (or signed-out) connection to the backend. It is
// safe for concurrent use.
type Client struct {
	driver  Driver
	secret  []byte
	ttl     time.Duration
	cost    int
	now     func() time.Time
	log     zerolog.Logger
	limiter *AttemptLimiter

	mu        sync.Mutex
	token     string
	seq       uint64
	user      *model.User
	expiresAt time.Time

	subsMu  sync.Mutex
	subs    map[int]chan SessionEvent
	nextSub int
}

var (
	_ Auth   = (*Client)(nil)
	_ Tables = (*Client)(nil)
)

func NewClient(driver Driver, opts Options) (*Client, error) {
	if driver == nil {
		return nil, errors.New("remote: driver is required")
	}
	if len(opts.Secret) == 0 {
		return nil, errors.New("remote: session secret is required")
	}
	c := &Client{
		driver:  driver,
		secret:  opts.Secret,
		ttl:     opts.SessionTTL,
		cost:    opts.BcryptCost,
		now:     opts.Now,
		log:     opts.Logger.With().Str("component", "remote").Logger(),
		limiter: opts.Limiter,
		subs:    make(map[int]chan SessionEvent),
	}
	if c.ttl <= 0 {
		c.ttl = defaultSessionTTL
	}
	if c.cost == 0 {
		c.cost = bcrypt.DefaultCost
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.limiter == nil {
		c.limiter = NewAttemptLimiter(opts.SignInPerMinute)
	}
	return c, nil
}

func (c *Client) SignUp(ctx context.Context, email, password string) (model.User, error) {
	email = normalizeEmail(email)
	if err := model.ValidateVar(email, "required,email"); err != nil {
		return model.User{}, fmt.Errorf("%w: invalid email address", ErrAuth)
	}
	if len(password) < MinPasswordLength {
		return model.User{}, fmt.Errorf("%w: password should be at least %d characters", ErrAuth, MinPasswordLength)
	}
	if !c.limiter.allow("signup:"+email, c.now()) {
		return model.User{}, fmt.Errorf("%w: rate limit exceeded, try again later", ErrAuth)
	}

	if _, err := c.findUserByEmail(ctx, email); err == nil {
		return model.User{}, fmt.Errorf("%w: user already registered", ErrAuth)
	} else if !errors.Is(err, ErrNotFound) {
		return model.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := model.User{Email: email, PasswordHash: string(hash)}
	user.SetRowID(uuid.NewString())
	user.Stamp(c.now())
	if err := c.driver.Create(ctx, model.TableUsers, &user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return model.User{}, fmt.Errorf("%w: user already registered", ErrAuth)
		}
		return model.User{}, fmt.Errorf("create user: %w", classify(err))
	}

	c.log.Info().Str("user_id", user.ID).Msg("user signed up")
	return user.Public(), nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, fmt.Errorf("%w: email and password are required", ErrAuth)
	}
	if !c.limiter.allow("signin:"+email, c.now()) {
		return Session{}, fmt.Errorf("%w: rate limit exceeded, try again later", ErrAuth)
	}

	user, err := c.findUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, fmt.Errorf("%w: invalid login credentials", ErrAuth)
		}
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		c.log.Warn().Str("user_id", user.ID).Msg("sign in rejected")
		return Session{}, fmt.Errorf("%w: invalid login credentials", ErrAuth)
	}

	now := c.now()
	session := Session{ID: uuid.NewString(), ExpiresAt: now.Add(c.ttl), User: user.Public()}
	session.AccessToken, err = c.issueToken(session.ID, session.User, now, session.ExpiresAt)
	if err != nil {
		return Session{}, fmt.Errorf("create access token: %w", err)
	}

	c.mu.Lock()
	c.seq++
	session.Seq = c.seq
	c.token = session.AccessToken
	u := session.User
	c.user = &u
	c.expiresAt = session.ExpiresAt
	c.mu.Unlock()

	c.log.Info().Str("user_id", user.ID).Time("expires_at", session.ExpiresAt).Msg("user signed in")
	c.publish(SessionEvent{Kind: EventSignedIn, Seq: session.Seq, UserID: u.ID, User: &u})
	return session, nil
}

// SignOut drops the local session. Signing out twice is not an error.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token == "" {
		return nil
	}
	c.endSession(token, EventSignedOut)
	return nil
}

func (c *Client) CurrentUser(ctx context.Context) (*model.User, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token == "" {
		return nil, nil
	}

	claims, err := c.verifyToken(token)
	if err != nil {
		kind := EventSignedOut
		if errors.Is(err, jwt.ErrTokenExpired) {
			kind = EventExpired
		}
		c.log.Info().Err(err).Msg("session ended")
		c.endSession(token, kind)
		return nil, nil
	}

	var fresh model.User
	if err := c.driver.Get(ctx, model.TableUsers, claims.UserID, &fresh); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.endSession(token, EventSignedOut)
			return nil, nil
		}
		return nil, fmt.Errorf("load user: %w", classify(err))
	}
	user := fresh.Public()

	c.mu.Lock()
	if c.token == token {
		u := user
		c.user = &u
	}
	c.mu.Unlock()
	return &user, nil
}

// CheckSession ends the session when its token is expired or no longer
// valid, publishing the matching event.
func (c *Client) CheckSession(ctx context.Context) error {
	_, err := c.CurrentUser(ctx)
	return err
}

func (c *Client) UpdateUser(ctx context.Context, update UserUpdate) (model.User, error) {
	uid, err := c.requireUser()
	if err != nil {
		return model.User{}, err
	}

	var user model.User
	if err := c.driver.Get(ctx, model.TableUsers, uid, &user); err != nil {
		return model.User{}, fmt.Errorf("load user: %w", classify(err))
	}

	if update.Email != nil {
		email := normalizeEmail(*update.Email)
		if err := model.ValidateVar(email, "required,email"); err != nil {
			return model.User{}, fmt.Errorf("%w: invalid email address", ErrAuth)
		}
		if email != user.Email {
			other, err := c.findUserByEmail(ctx, email)
			switch {
			case err == nil && other.ID != user.ID:
				return model.User{}, fmt.Errorf("%w: email address already registered", ErrAuth)
			case err != nil && !errors.Is(err, ErrNotFound):
				return model.User{}, err
			}
			user.Email = email
		}
	}
	if update.Password != nil {
		if len(*update.Password) < MinPasswordLength {
			return model.User{}, fmt.Errorf("%w: password should be at least %d characters", ErrAuth, MinPasswordLength)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*update.Password), c.cost)
		if err != nil {
			return model.User{}, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}
	if update.Name != nil {
		user.Name = strings.TrimSpace(*update.Name)
	}
	if update.AvatarURL != nil {
		user.AvatarURL = strings.TrimSpace(*update.AvatarURL)
	}
	if err := model.Validate(&user); err != nil {
		return model.User{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	user.Stamp(c.now())
	if err := c.driver.Save(ctx, model.TableUsers, &user); err != nil {
		return model.User{}, fmt.Errorf("save user: %w", classify(err))
	}

	public := user.Public()
	c.mu.Lock()
	if c.user != nil && c.user.ID == public.ID {
		u := public
		c.user = &u
	}
	seq := c.seq
	c.mu.Unlock()

	c.log.Info().Str("user_id", uid).Msg("user profile updated")
	c.publish(SessionEvent{Kind: EventUserUpdated, Seq: seq, UserID: public.ID, User: &public})
	return public, nil
}

func (c *Client) LookupUser(ctx context.Context, email string) (model.User, error) {
	if _, err := c.requireUser(); err != nil {
		return model.User{}, err
	}
	user, err := c.findUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.User{}, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return model.User{}, err
	}
	return user.Public(), nil
}

func (c *Client) Subscribe() (<-chan SessionEvent, func()) {
	ch := make(chan SessionEvent, defaultEventBuffer)

	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, id)
			close(ch)
			c.subsMu.Unlock()
		})
	}
}

func (c *Client) publish(ev SessionEvent) {
	ev.At = c.now()
	if ev.User != nil {
		u := *ev.User
		ev.User = &u
	}
	kind := ev.Kind

	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for id, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			c.log.Warn().Int("subscriber", id).Str("event", string(kind)).Msg("session event dropped, subscriber is full")
		}
	}
}

// requireUser returns the id of the signed-in user or ErrNotAuthenticated.
func (c *Client) requireUser() (string, error) {
	c.mu.Lock()
	token, user, expiresAt := c.token, c.user, c.expiresAt
	c.mu.Unlock()

	if token == "" || user == nil {
		return "", ErrNotAuthenticated
	}
	if !c.now().Before(expiresAt) {
		c.endSession(token, EventExpired)
		return "", fmt.Errorf("%w: session expired", ErrNotAuthenticated)
	}
	return user.ID, nil
}

// endSession clears the session if it still belongs to token.
func (c *Client) endSession(token string, kind EventKind) {
	c.mu.Lock()
	if c.token != token {
		c.mu.Unlock()
		return
	}
	ev := SessionEvent{Kind: kind, Seq: c.seq}
	if c.user != nil {
		ev.UserID = c.user.ID
	}
	c.token = ""
	c.user = nil
	c.expiresAt = time.Time{}
	c.mu.Unlock()

	c.log.Info().Str("event", string(kind)).Msg("session cleared")
	c.publish(ev)
}

func (c *Client) issueToken(id string, user model.User, now, expiresAt time.Time) (string, error) {
	claims := &sessionClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    tokenIssuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func (c *Client) verifyToken(token string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (c *Client) findUserByEmail(ctx context.Context, email string) (model.User, error) {
	var users []model.User
	if err := c.driver.Find(ctx, model.TableUsers, Query{Where: Filter{"email": email}}, &users); err != nil {
		return model.User{}, fmt.Errorf("find user: %w", classify(err))
	}
	if len(users) == 0 {
		return model.User{}, ErrNotFound
	}
	return users[0], nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
