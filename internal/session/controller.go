// Package session owns the per-user application context: who is signed in,
// their team and course, and their resident progress record. It is the
// boundary where collaborator failures become user notifications.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/p-n-ai/stream-course/internal/certificate"
	"github.com/p-n-ai/stream-course/internal/course"
	"github.com/p-n-ai/stream-course/internal/identity"
	"github.com/p-n-ai/stream-course/internal/navigation"
	"github.com/p-n-ai/stream-course/internal/notify"
	"github.com/p-n-ai/stream-course/internal/progress"
	"github.com/p-n-ai/stream-course/internal/quiz"
	"github.com/p-n-ai/stream-course/internal/team"
)

// ErrNotReady is returned for operations that need a resident course and
// progress record before session establishment has produced them.
var ErrNotReady = errors.New("session not ready")

// ErrCourseIncomplete is returned for certificates requested before every
// module is complete.
var ErrCourseIncomplete = errors.New("course incomplete")

// ErrNoCertificate is returned for a certificate index with no student.
var ErrNoCertificate = errors.New("no such certificate")

const (
	msgCourseLoadFailed   = "Could not load course data. Please try again."
	msgTeamLoadFailed     = "Could not load your team. Please try again."
	msgProgressLoadFailed = "Could not load your progress. Please try again."
	msgSaveFailed         = "Could not save your progress. Please try again."
)

// Identity is the identity provider the controller signs users in with.
type Identity interface {
	Register(ctx context.Context, email, password string) (string, error)
	Authenticate(ctx context.Context, email, password string) (identity.Session, error)
	Deauthenticate(ctx context.Context, userID string)
	Subscribe(fn func(context.Context, identity.Event))
}

// Notifier shows transient notifications to a user.
type Notifier interface {
	Notify(ctx context.Context, userID string, level notify.Level, message string) notify.Notification
}

// ControllerConfig holds dependencies for the session controller.
type ControllerConfig struct {
	Identity Identity
	Teams    team.Store
	Courses  course.Source
	Progress progress.Store
	Notifier Notifier
	Renderer *certificate.Renderer
	Now      func() time.Time
}

// Controller establishes and tears down sessions in response to identity
// events.
type Controller struct {
	identity Identity
	teams    team.Store
	courses  course.Source
	progress progress.Store
	notifier Notifier
	quiz     *quiz.Engine
	renderer *certificate.Renderer
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewController creates a controller and subscribes it to cfg.Identity.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Identity == nil || cfg.Teams == nil || cfg.Courses == nil || cfg.Progress == nil {
		return nil, fmt.Errorf("identity, teams, courses and progress are required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.NewCenter(notify.DefaultTTL, nil)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Renderer == nil {
		r, err := certificate.NewRenderer("STREAM Course Inc.", "")
		if err != nil {
			return nil, err
		}
		cfg.Renderer = r
	}

	c := &Controller{
		identity: cfg.Identity,
		teams:    cfg.Teams,
		courses:  cfg.Courses,
		notifier: cfg.Notifier,
		renderer: cfg.Renderer,
		now:      cfg.Now,
		sessions: make(map[string]*Session),
	}
	c.progress = progress.Observe(cfg.Progress, c.applyTransition)
	c.quiz = quiz.NewEngine(c.progress)

	cfg.Identity.Subscribe(c.handleEvent)
	return c, nil
}

// Result is the outcome of an account-level action.
type Result struct {
	UserID  string            `json:"userId,omitempty"`
	Intent  navigation.Intent `json:"intent"`
	Message string            `json:"message,omitempty"`
}

// Register validates the team, creates the account and stores the team
// record under the new account id.
func (c *Controller) Register(ctx context.Context, email, password string, t team.Account) (Result, error) {
	t.Normalize()
	if err := t.Validate(); err != nil {
		return Result{}, err
	}

	userID, err := c.identity.Register(ctx, email, password)
	if err != nil {
		slog.Warn("registration failed", "error", err)
		return Result{}, err
	}
	if err := c.teams.Put(ctx, userID, t); err != nil {
		slog.Error("failed to store team", "user_id", userID, "error", err)
		return Result{}, fmt.Errorf("store team: %w", err)
	}

	slog.Info("team registered", "user_id", userID, "class", t.ClassLevel, "students", len(t.Students))
	return Result{
		UserID:  userID,
		Intent:  navigation.Intent{Page: navigation.PageLogin},
		Message: fmt.Sprintf("Team %q registered successfully! Please log in.", t.TeamName),
	}, nil
}

// LoginResult carries the issued token alongside the result.
type LoginResult struct {
	Result
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	State     State     `json:"state"`
}

// Login authenticates the user. Session establishment runs synchronously on
// the sign-in event, so the returned state is final: Ready, or NotReady with
// a notification explaining why.
func (c *Controller) Login(ctx context.Context, email, password string) (LoginResult, error) {
	sess, err := c.identity.Authenticate(ctx, email, password)
	if err != nil {
		slog.Warn("login failed", "error", err)
		return LoginResult{}, err
	}

	state := NotReady
	if s, ok := c.lookup(sess.UserID); ok {
		state = s.State()
	}
	return LoginResult{
		Result: Result{
			UserID: sess.UserID,
			Intent: navigation.Intent{Page: navigation.PageDashboard},
		},
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		State:     state,
	}, nil
}

// Logout revokes the user's tokens and tears down the session.
func (c *Controller) Logout(ctx context.Context, userID string) Result {
	c.identity.Deauthenticate(ctx, userID)
	msg := "You have been logged out."
	c.notifier.Notify(ctx, userID, notify.Info, msg)
	return Result{Intent: navigation.Intent{Page: navigation.PageLanding}, Message: msg}
}

// Session returns the user's session.
func (c *Controller) Session(userID string) (*Session, error) {
	s, ok := c.lookup(userID)
	if !ok {
		return nil, navigation.Refuse(navigation.CodeNotReady, ErrNotReady, "Please log in again.")
	}
	return s, nil
}

// Reload re-runs establishment for a signed-in user whose session is not
// ready. Failed loads are never retried automatically; this is the explicit
// user retry.
func (c *Controller) Reload(ctx context.Context, userID string) (State, error) {
	if _, ok := c.lookup(userID); !ok {
		return NotReady, navigation.Refuse(navigation.CodeNotReady, ErrNotReady, "Please log in again.")
	}
	s := c.establish(ctx, userID)
	return s.State(), nil
}

func (c *Controller) lookup(userID string) (*Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[userID]
	return s, ok
}

func (c *Controller) handleEvent(ctx context.Context, ev identity.Event) {
	switch ev.Kind {
	case identity.SignedIn:
		c.establish(ctx, ev.UserID)
	case identity.SignedOut:
		c.mu.Lock()
		delete(c.sessions, ev.UserID)
		c.mu.Unlock()
		slog.Info("session closed", "user_id", ev.UserID)
	}
}

// establish loads team, course and progress in that order. The session is
// published before loading so the user has a NotReady context to query; it
// becomes Ready only once every piece is resident.
func (c *Controller) establish(ctx context.Context, userID string) *Session {
	s := newSession(c, userID)
	c.mu.Lock()
	c.sessions[userID] = s
	c.mu.Unlock()

	t, err := c.teams.Get(ctx, userID)
	if errors.Is(err, team.ErrNotFound) {
		slog.Warn("no team record for account", "user_id", userID)
		return s
	}
	if err != nil {
		slog.Error("failed to load team", "user_id", userID, "error", err)
		c.notifier.Notify(ctx, userID, notify.Error, msgTeamLoadFailed)
		return s
	}
	s.setTeam(t)

	crs, err := course.Load(ctx, c.courses, t.ClassLevel)
	if err != nil {
		slog.Error("failed to load course data", "user_id", userID, "class", t.ClassLevel, "error", err)
		c.notifier.Notify(ctx, userID, notify.Error, msgCourseLoadFailed)
		return s
	}

	rec, err := c.progress.GetOrInit(ctx, userID)
	if err != nil {
		slog.Error("failed to load progress", "user_id", userID, "error", err)
		c.notifier.Notify(ctx, userID, notify.Error, msgProgressLoadFailed)
		return s
	}

	s.setReady(crs, rec)
	slog.Info("session established", "user_id", userID, "course_id", crs.ID)
	return s
}

// applyTransition folds a completed entity into the user's resident record
// before MarkComplete returns.
func (c *Controller) applyTransition(_ context.Context, tr progress.Transition) {
	if s, ok := c.lookup(tr.UserID); ok {
		s.apply(tr.EntityID)
	}
}

// Message returns the user-facing text for an error from this package or its
// collaborators.
func Message(err error) string {
	var refusal *navigation.Refusal
	var invalid *team.ValidationError
	switch {
	case errors.As(err, &refusal):
		return refusal.Message
	case errors.As(err, &invalid):
		return "Please fill in every field, including each student name."
	case errors.Is(err, identity.ErrAlreadyExists):
		return "An account with this email already exists."
	case errors.Is(err, identity.ErrInvalidCredentialsFormat):
		return "Enter a valid email and a password of at least 6 characters."
	case errors.Is(err, identity.ErrAccountNotFound):
		return "No account exists for this email."
	case errors.Is(err, identity.ErrWrongPassword):
		return "Incorrect password."
	case errors.Is(err, quiz.ErrInvalidTransition):
		return "That action is not available for this quiz right now."
	case errors.Is(err, ErrNotReady):
		return msgCourseLoadFailed
	default:
		return "Something went wrong. Please try again."
	}
}
