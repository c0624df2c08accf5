// Package auth holds the Box credential of a user session and keeps it fresh.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Lllllllleong/boxdocumentsorter/internal/errs"
	"github.com/Lllllllleong/boxdocumentsorter/internal/models"
)

// RefreshWindow is how close to expiry a token may get before it is refreshed.
const RefreshWindow = 5 * time.Minute

// ErrNoCredential is returned by a Persister that has nothing stored for a user.
var ErrNoCredential = errors.New("no stored credential")

// Credential is an access/refresh token pair. A zero ExpiresAt means the expiry
// is unknown and the access token is used as is.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// FromPayload converts the browser form of a credential.
func FromPayload(p models.CredentialPayload) Credential {
	c := Credential{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}
	if p.ExpiresAtEpochMs > 0 {
		c.ExpiresAt = time.UnixMilli(p.ExpiresAtEpochMs)
	}
	return c
}

// Payload converts the credential to its browser form.
func (c Credential) Payload() models.CredentialPayload {
	p := models.CredentialPayload{AccessToken: c.AccessToken, RefreshToken: c.RefreshToken}
	if !c.ExpiresAt.IsZero() {
		p.ExpiresAtEpochMs = c.ExpiresAt.UnixMilli()
	}
	return p
}

// Refresher exchanges a refresh token for a new credential.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (Credential, error)
}

// Persister keeps credentials between invocations.
type Persister interface {
	Load(ctx context.Context, userID string) (Credential, error)
	Save(ctx context.Context, userID string, c Credential) error
	Delete(ctx context.Context, userID string) error
}

// Store is the token holder of one session. It is safe for concurrent use;
// concurrent refreshes of the same refresh token collapse into one call.
type Store struct {
	userID    string
	refresher Refresher
	persister Persister
	group     *singleflight.Group
	now       func() time.Time

	mu        sync.Mutex
	cred      *Credential
	refreshed bool
}

// Option configures a Store.
type Option func(*Store)

// WithPersister saves refreshed credentials and deletes them when they go bad.
func WithPersister(p Persister) Option { return func(s *Store) { s.persister = p } }

// WithGroup shares refresh collapsing between stores, typically one group per function instance.
func WithGroup(g *singleflight.Group) Option { return func(s *Store) { s.group = g } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// NewStore creates a store holding cred.
func NewStore(userID string, cred Credential, refresher Refresher, opts ...Option) *Store {
	s := &Store{userID: userID, refresher: refresher, now: time.Now}
	if cred.AccessToken != "" || cred.RefreshToken != "" {
		c := cred
		s.cred = &c
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.group == nil {
		s.group = &singleflight.Group{}
	}
	return s
}

// LoadStore creates a store from the persister's copy of userID's credential.
func LoadStore(ctx context.Context, userID string, p Persister, refresher Refresher, opts ...Option) (*Store, error) {
	cred, err := p.Load(ctx, userID)
	if errors.Is(err, ErrNoCredential) {
		return nil, errs.AuthRequired("no stored credential for user " + userID)
	}
	if err != nil {
		return nil, errs.Wrap(errs.CodeInternal, "load credential", err)
	}
	return NewStore(userID, cred, refresher, append(opts, WithPersister(p))...), nil
}

func (s *Store) fresh(c Credential) bool {
	if c.AccessToken == "" {
		return false
	}
	return c.ExpiresAt.IsZero() || s.now().Add(RefreshWindow).Before(c.ExpiresAt)
}

// Token returns a usable access token, refreshing first when the held one
// expires within RefreshWindow. When no refresh is possible all credential
// state is cleared and an AUTH_REQUIRED error is returned.
func (s *Store) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.cred == nil {
		s.mu.Unlock()
		return "", errs.AuthRequired("reauthentication required: no credential")
	}
	if s.fresh(*s.cred) {
		token := s.cred.AccessToken
		s.mu.Unlock()
		return token, nil
	}
	refreshToken := s.cred.RefreshToken
	s.mu.Unlock()

	logCtx := slog.With("userId", s.userID)
	if refreshToken == "" || s.refresher == nil {
		s.Clear(ctx)
		return "", errs.AuthRequired("reauthentication required: token expired and no refresh token")
	}

	v, err, _ := s.group.Do("refresh:"+refreshToken, func() (any, error) {
		s.mu.Lock()
		cur := s.cred
		s.mu.Unlock()
		if cur != nil && s.fresh(*cur) {
			return *cur, nil
		}

		if nc, ok := s.rotatedElsewhere(ctx, refreshToken); ok {
			logCtx.Info("Using credential refreshed by another invocation.")
			return nc, nil
		}

		logCtx.Info("Access token expiring, refreshing.")
		nc, err := s.refresher.Refresh(ctx, refreshToken)
		if err != nil {
			// The refresh token may have been spent by another invocation in the meantime.
			if nc, ok := s.rotatedElsewhere(ctx, refreshToken); ok {
				logCtx.Info("Refresh lost a race; using credential refreshed by another invocation.")
				return nc, nil
			}
			return nil, err
		}
		if nc.RefreshToken == "" {
			nc.RefreshToken = refreshToken
		}
		if s.persister != nil {
			if err := s.persister.Save(ctx, s.userID, nc); err != nil {
				logCtx.Error("Failed to persist refreshed credential.", "error", err)
			}
		}
		return nc, nil
	})
	if err != nil {
		logCtx.Warn("Token refresh failed, clearing credential.", "error", err)
		s.Clear(ctx)
		return "", errs.Wrap(errs.CodeAuthRequired, "reauthentication required", err)
	}

	nc := v.(Credential)
	s.mu.Lock()
	s.cred = &nc
	s.refreshed = true
	s.mu.Unlock()
	return nc.AccessToken, nil
}

// rotatedElsewhere reports a usable persisted credential whose refresh token
// differs from refreshToken, i.e. one another invocation already refreshed.
func (s *Store) rotatedElsewhere(ctx context.Context, refreshToken string) (Credential, bool) {
	if s.persister == nil || s.userID == "" {
		return Credential{}, false
	}
	latest, err := s.persister.Load(ctx, s.userID)
	if err != nil || latest.RefreshToken == "" || latest.RefreshToken == refreshToken {
		return Credential{}, false
	}
	return latest, s.fresh(latest)
}

// Credential returns the held credential, if any.
func (s *Store) Credential() (Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return Credential{}, false
	}
	return *s.cred, true
}

// Refreshed reports whether the store obtained a new credential since creation.
func (s *Store) Refreshed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshed
}

// RefreshedPayload returns the browser form of the credential when it changed,
// so a response can hand it back for local persistence.
func (s *Store) RefreshedPayload() *models.CredentialPayload {
	if !s.Refreshed() {
		return nil
	}
	c, ok := s.Credential()
	if !ok {
		return nil
	}
	p := c.Payload()
	return &p
}

// Clear drops the held credential and the persisted copy.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.cred = nil
	s.mu.Unlock()
	if s.persister != nil {
		if err := s.persister.Delete(ctx, s.userID); err != nil {
			slog.Warn("Failed to delete persisted credential.", "userId", s.userID, "error", err)
		}
	}
}

// MemoryPersister is a Persister backed by a map.
type MemoryPersister struct {
	mu    sync.Mutex
	creds map[string]Credential
}

// NewMemoryPersister creates an empty MemoryPersister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{creds: map[string]Credential{}}
}

func (m *MemoryPersister) Load(_ context.Context, userID string) (Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[userID]
	if !ok {
		return Credential{}, ErrNoCredential
	}
	return c, nil
}

func (m *MemoryPersister) Save(_ context.Context, userID string, c Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[userID] = c
	return nil
}

func (m *MemoryPersister) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creds, userID)
	return nil
}
