// Package auth registers accounts and checks credentials against the user
// store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"querydesk/internal/metrics"
	"querydesk/internal/storage"
)

var (
	ErrMissingFields      = errors.New("auth: missing fields")
	ErrInvalidEmail       = errors.New("auth: invalid email")
	ErrEmailTaken         = errors.New("auth: email already registered")
	ErrUsernameTaken      = errors.New("auth: username already taken")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTooManyAttempts    = errors.New("auth: too many failed attempts")
)

var messages = map[error]string{
	ErrMissingFields:      "All fields are required",
	ErrInvalidEmail:       "Invalid email format",
	ErrEmailTaken:         "Email already registered",
	ErrUsernameTaken:      "Username already taken",
	ErrInvalidCredentials: "Invalid credentials. Please try again.",
	ErrTooManyAttempts:    "Too many failed login attempts. Please try again later.",
}

// Message returns the text shown to the user for err. Errors that are not
// validation failures get a generic message.
func Message(err error) string {
	for sentinel, msg := range messages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return "Something went wrong. Please try again."
}

// emailPattern only anchors the start, so trailing text after a valid
// prefix is accepted.
var emailPattern = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+`)

type UserStore interface {
	CreateUser(ctx context.Context, u storage.User) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (storage.User, error)
}

// Throttle is satisfied by ratelimit.LoginLimiter.
type Throttle interface {
	Blocked(ctx context.Context, email string, now time.Time) (bool, time.Time, error)
	RecordFailure(ctx context.Context, email string, now time.Time) (int64, error)
	Reset(ctx context.Context, email string, now time.Time) error
}

type Config struct {
	Users    UserStore
	Throttle Throttle
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	Now        func() time.Time
}

type Service struct {
	users    UserStore
	throttle Throttle
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	cost     int
	now      func() time.Time
}

func NewService(cfg Config) *Service {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		users:    cfg.Users,
		throttle: cfg.Throttle,
		logger:   cfg.Logger,
		metrics:  m,
		cost:     cost,
		now:      now,
	}
}

func (s *Service) Register(ctx context.Context, username, email, password string) (storage.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return storage.User{}, ErrMissingFields
	}
	if !emailPattern.MatchString(email) {
		return storage.User{}, ErrInvalidEmail
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return storage.User{}, ErrEmailTaken
	} else if !errors.Is(err, storage.ErrNotFound) {
		return storage.User{}, fmt.Errorf("check existing email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return storage.User{}, fmt.Errorf("hash password: %w", err)
	}
	u := storage.User{Username: username, Email: email, PasswordHash: string(hash)}
	id, err := s.users.CreateUser(ctx, u)
	if err != nil {
		var dup *storage.DuplicateError
		if errors.As(err, &dup) {
			if dup.Column == "username" {
				return storage.User{}, ErrUsernameTaken
			}
			return storage.User{}, ErrEmailTaken
		}
		return storage.User{}, fmt.Errorf("create user: %w", err)
	}
	u.ID = id

	s.metrics.Registrations.Inc()
	s.logger.Info().Int64("user_id", id).Msg("user registered")
	return u, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (storage.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return storage.User{}, ErrInvalidCredentials
	}
	now := s.now()

	if s.throttle != nil {
		blocked, until, err := s.throttle.Blocked(ctx, email, now)
		if err != nil {
			// Redis trouble must not lock everyone out.
			s.logger.Warn().Err(err).Msg("login throttle unavailable")
		} else if blocked {
			s.metrics.LoginFailures.Inc()
			s.logger.Warn().Time("until", until).Msg("login throttled")
			return storage.User{}, ErrTooManyAttempts
		}
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return storage.User{}, fmt.Errorf("load user: %w", err)
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.metrics.LoginFailures.Inc()
		if s.throttle != nil {
			if _, terr := s.throttle.RecordFailure(ctx, email, now); terr != nil {
				s.logger.Warn().Err(terr).Msg("record login failure")
			}
		}
		return storage.User{}, ErrInvalidCredentials
	}

	if s.throttle != nil {
		if err := s.throttle.Reset(ctx, email, now); err != nil {
			s.logger.Warn().Err(err).Msg("reset login throttle")
		}
	}
	return u, nil
}
