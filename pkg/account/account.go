// Package account registers users and logs them in.
//
// Registration hashes the password and persists a new identity; it never
// issues a token. Login verifies the password and issues a bearer token.
// Both report failures as sentinel errors that the HTTP layer maps onto
// status codes.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rhuss/feynmind/pkg/api"
	"github.com/rhuss/feynmind/pkg/auth/jwt"
	"github.com/rhuss/feynmind/pkg/auth/password"
	"github.com/rhuss/feynmind/pkg/debug"
	"github.com/rhuss/feynmind/pkg/storage"
)

// Sentinel errors returned by Service.
var (
	// ErrDuplicateIdentity is returned when the email is already registered.
	ErrDuplicateIdentity = errors.New("email already registered")

	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password, so callers cannot probe which emails exist.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrStoreUnavailable wraps credential store failures. Retryable.
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// DefaultStoreTimeout bounds each credential store call.
const DefaultStoreTimeout = 5 * time.Second

// CredentialStore persists identities keyed by email. Implementations must
// be safe for concurrent use and must enforce email uniqueness, returning
// storage.ErrConflict from SaveIdentity when the email is taken.
type CredentialStore interface {
	// FindByEmail returns storage.ErrNotFound for unknown emails.
	FindByEmail(ctx context.Context, email string) (*api.Identity, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	SaveIdentity(ctx context.Context, id *api.Identity) error
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Name      string
	Email     string
}

// Service implements registration and login.
type Service struct {
	store        CredentialStore
	hasher       *password.Hasher
	codec        *jwt.Codec
	storeTimeout time.Duration
	now          func() time.Time

	// dummyHash is compared against on unknown emails so that both login
	// failure paths cost one bcrypt comparison.
	dummyHash string
}

// Option configures a Service.
type Option func(*Service)

// WithStoreTimeout overrides DefaultStoreTimeout.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// WithClock overrides the clock used for token issuance.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service.
func NewService(store CredentialStore, hasher *password.Hasher, codec *jwt.Codec, opts ...Option) (*Service, error) {
	s := &Service{
		store:        store,
		hasher:       hasher,
		codec:        codec,
		storeTimeout: DefaultStoreTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	dummy, err := hasher.Hash("feynmind-timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("preparing dummy hash: %w", err)
	}
	s.dummyHash = dummy
	return s, nil
}

// Register creates a new identity. It returns ErrDuplicateIdentity if the
// email is taken, including when a concurrent registration wins the race.
func (s *Service) Register(ctx context.Context, email, displayName, plaintext string) error {
	exists, err := s.exists(ctx, email)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateIdentity
	}

	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return err
	}

	id := &api.Identity{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.store.SaveIdentity(sctx, id); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return ErrDuplicateIdentity
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	debug.Log("auth", "identity registered", "email", email)
	return nil
}

// Login verifies the credential and issues a token.
func (s *Service) Login(ctx context.Context, email, plaintext string) (*LoginResult, error) {
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	id, err := s.store.FindByEmail(sctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.hasher.Verify(plaintext, s.dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !s.hasher.Verify(plaintext, id.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	token, err := s.codec.Issue(id.Email, now)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	slog.Debug("login succeeded", "email", id.Email)
	return &LoginResult{
		Token:     token,
		ExpiresAt: jwt.ExpiresAt(now),
		Name:      id.DisplayName,
		Email:     id.Email,
	}, nil
}

func (s *Service) exists(ctx context.Context, email string) (bool, error) {
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	exists, err := s.store.ExistsByEmail(sctx, email)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return exists, nil
}
