// Package identity registers accounts, authenticates them into signed
// session tokens, and notifies subscribers when a user signs in or out.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is the parent of every credential failure.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrAccountNotFound          = fmt.Errorf("%w: account not found", ErrInvalidCredentials)
	ErrWrongPassword            = fmt.Errorf("%w: wrong password", ErrInvalidCredentials)
	ErrInvalidCredentialsFormat = fmt.Errorf("%w: malformed email or password", ErrInvalidCredentials)

	// ErrAlreadyExists is returned when registering a taken email.
	ErrAlreadyExists = errors.New("account already exists")

	// ErrInvalidToken is returned by Verify for unknown, expired or revoked
	// tokens.
	ErrInvalidToken = errors.New("invalid token")
)

const issuer = "stream-course"

// EventKind distinguishes session changes.
type EventKind int

const (
	SignedIn EventKind = iota
	SignedOut
)

func (k EventKind) String() string {
	if k == SignedIn {
		return "signed_in"
	}
	return "signed_out"
}

// Event is a session change delivered to subscribers.
type Event struct {
	UserID string
	Kind   EventKind
}

// Session is an authenticated login.
type Session struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Claims are the JWT claims of a session token. Subject is the account id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Config configures a Service.
type Config struct {
	Secret      []byte
	TokenTTL    time.Duration
	MinPassword int
}

type activeToken struct {
	userID  string
	expires time.Time
}

// Service is the identity provider.
type Service struct {
	accounts AccountStore
	cfg      Config
	validate *validator.Validate
	now      func() time.Time

	mu          sync.Mutex
	active      map[string]activeToken // by jti
	subscribers []func(context.Context, Event)
}

// NewService creates an identity service over accounts.
func NewService(accounts AccountStore, cfg Config) (*Service, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("token secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 8 * time.Hour
	}
	if cfg.MinPassword <= 0 {
		cfg.MinPassword = 6
	}
	return &Service{
		accounts: accounts,
		cfg:      cfg,
		validate: validator.New(),
		now:      time.Now,
		active:   make(map[string]activeToken),
	}, nil
}

// Subscribe registers fn to receive session events. Events are delivered
// synchronously, in subscription order, before the triggering call returns.
func (s *Service) Subscribe(fn func(context.Context, Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Service) publish(ctx context.Context, ev Event) {
	s.mu.Lock()
	subs := append([]func(context.Context, Event){}, s.subscribers...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(ctx, ev)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) checkFormat(email, password string) error {
	if err := s.validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("%w: email", ErrInvalidCredentialsFormat)
	}
	if len(password) < s.cfg.MinPassword {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidCredentialsFormat, s.cfg.MinPassword)
	}
	return nil
}

// Register creates an account and returns its id.
func (s *Service) Register(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if err := s.checkFormat(email, password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	acc := Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		return "", err
	}

	slog.Info("account registered", "user_id", acc.ID)
	return acc.ID, nil
}

// Authenticate checks credentials and issues a session token. Subscribers
// see SignedIn before Authenticate returns.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if err := s.checkFormat(email, password); err != nil {
		return Session{}, err
	}

	acc, err := s.accounts.ByEmail(ctx, email)
	if err != nil {
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrWrongPassword
	}

	now := s.now()
	jti := uuid.NewString()
	claims := &Claims{
		Email: acc.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   acc.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}

	s.mu.Lock()
	for id, t := range s.active {
		if !now.Before(t.expires) {
			delete(s.active, id)
		}
	}
	s.active[jti] = activeToken{userID: acc.ID, expires: claims.ExpiresAt.Time}
	s.mu.Unlock()

	s.publish(ctx, Event{UserID: acc.ID, Kind: SignedIn})

	return Session{
		UserID:    acc.ID,
		Email:     acc.Email,
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Verify parses a session token and checks that it has not been revoked.
func (s *Service) Verify(token string) (*Claims, error) {
	keyFunc := func(*jwt.Token) (any, error) { return s.cfg.Secret, nil }
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}

	s.mu.Lock()
	t, ok := s.active[claims.ID]
	s.mu.Unlock()
	if !ok || t.userID != claims.Subject {
		return nil, fmt.Errorf("%w: revoked", ErrInvalidToken)
	}
	return claims, nil
}

// Deauthenticate revokes every token of the user. Subscribers see
// SignedOut before it returns.
func (s *Service) Deauthenticate(ctx context.Context, userID string) {
	s.mu.Lock()
	for jti, t := range s.active {
		if t.userID == userID {
			delete(s.active, jti)
		}
	}
	s.mu.Unlock()

	s.publish(ctx, Event{UserID: userID, Kind: SignedOut})
}
