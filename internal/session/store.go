// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/aila/internal/api"
	"github.com/jeranaias/aila/internal/logging"
	"github.com/jeranaias/aila/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotAuthenticated means no user is signed in.
	ErrNotAuthenticated = errors.New("not signed in")

	// ErrNotVerified means the account still needs its emailed code.
	ErrNotVerified = errors.New("account not verified")

	// ErrInvalidCode means the service rejected a verification code.
	ErrInvalidCode = errors.New("verification code rejected")

	// ErrRegistrationRejected means the service declined to create the account.
	ErrRegistrationRejected = errors.New("registration rejected")

	// ErrNoPendingUser means verification was attempted with no username.
	ErrNoPendingUser = errors.New("no account awaiting verification")

	// ErrNilService is returned when a Store is built without a service.
	ErrNilService = errors.New("session: nil auth service")
)

// =============================================================================
// STORE
// =============================================================================

// AuthService is the part of the service client the store needs.
type AuthService interface {
	Login(ctx context.Context, username, password string) (model.Identity, error)
	Register(ctx context.Context, username, password, email string) (bool, error)
	Verify(ctx context.Context, username, code string) (bool, error)
	ResendCode(ctx context.Context, username, email string) (bool, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (model.Identity, error)
}

// Store holds the session identity. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	svc      AuthService
	identity model.Identity
	loading  bool
	log      logrus.FieldLogger

	listeners []func(model.Identity)
}

// NewStore creates an anonymous store. log may be nil.
func NewStore(svc AuthService, log logrus.FieldLogger) (*Store, error) {
	if svc == nil {
		return nil, ErrNilService
	}
	return &Store{svc: svc, log: logging.Or(log)}, nil
}

// Identity returns the current identity (zero when signed out).
func (s *Store) Identity() model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// IsAuthenticated reports whether a user is signed in.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity.Username != ""
}

// IsLoading reports whether a session probe is in flight.
func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// RequireVerified returns ErrNotAuthenticated or ErrNotVerified unless the
// user may chat.
func (s *Store) RequireVerified() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity.Username == "" {
		return ErrNotAuthenticated
	}
	if s.identity.NeedsVerification() {
		return ErrNotVerified
	}
	return nil
}

// OnChange registers fn to be called after every identity change.
func (s *Store) OnChange(fn func(model.Identity)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// set replaces the identity and notifies listeners outside the lock.
func (s *Store) set(id model.Identity) {
	s.mu.Lock()
	changed := s.identity != id
	s.identity = id
	listeners := append([]func(model.Identity){}, s.listeners...)
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(id)
	}
}

func (s *Store) clear(reason string, err error) {
	if s.IsAuthenticated() {
		s.log.WithError(err).WithField("reason", reason).Info("session: signing out")
	}
	s.set(model.Identity{})
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Probe asks the service who the session cookie belongs to. Failure of any
// kind leaves the store signed out.
func (s *Store) Probe(ctx context.Context) (model.Identity, error) {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	id, err := s.svc.CurrentUser(ctx)
	if err == nil && id.Username == "" {
		err = errors.New("session probe returned no user")
	}
	if err != nil {
		s.clear("probe failed", err)
		return model.Identity{}, fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}
	s.set(id)
	return id, nil
}

// Login signs in. On failure the store is left signed out.
func (s *Store) Login(ctx context.Context, username, password string) (model.Identity, error) {
	id, err := s.svc.Login(ctx, username, password)
	if err != nil {
		s.clear("login failed", err)
		return model.Identity{}, err
	}
	if id.Username == "" {
		id.Username = username
	}
	s.set(id)
	return id, nil
}

// Register creates an account. On success the store holds the new,
// unverified identity so the caller can continue with Verify.
func (s *Store) Register(ctx context.Context, username, password, email string) (model.Identity, error) {
	ok, err := s.svc.Register(ctx, username, password, email)
	if err != nil {
		return model.Identity{}, err
	}
	if !ok {
		return model.Identity{}, ErrRegistrationRejected
	}
	id := model.Identity{Username: username, Email: email, Verified: model.Bool(false)}
	s.set(id)
	return id, nil
}

// Verify submits the emailed code. An empty username means the current
// identity's. On success the identity is marked verified.
func (s *Store) Verify(ctx context.Context, username, code string) error {
	cur := s.Identity()
	if username == "" {
		username = cur.Username
	}
	if username == "" {
		return ErrNoPendingUser
	}

	ok, err := s.svc.Verify(ctx, username, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCode
	}

	if cur.Username == username {
		cur.Verified = model.Bool(true)
		s.set(cur)
	}
	return nil
}

// ResendCode requests a new verification email. Empty arguments default
// to the current identity.
func (s *Store) ResendCode(ctx context.Context, username, email string) error {
	cur := s.Identity()
	if username == "" {
		username = cur.Username
	}
	if email == "" && username == cur.Username {
		email = cur.Email
	}
	if username == "" {
		return ErrNoPendingUser
	}

	ok, err := s.svc.ResendCode(ctx, username, email)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("resend code: service declined")
	}
	return nil
}

// Logout ends the session. The identity is cleared even if the service
// call fails.
func (s *Store) Logout(ctx context.Context) error {
	err := s.svc.Logout(ctx)
	if err != nil {
		s.log.WithError(err).Warn("session: logout call failed")
	}
	s.set(model.Identity{})
	return err
}

// HandleError signs out when err shows the session is no longer valid.
// It reports whether it did.
func (s *Store) HandleError(err error) bool {
	if err == nil || !api.IsUnauthorized(err) {
		return false
	}
	s.clear("unauthorized response", err)
	return true
}
