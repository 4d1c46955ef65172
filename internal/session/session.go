// Package session holds who is signed in. It starts uninitialized and becomes
// ready once Init has resolved the stored token; consumers wait for ready
// before branching on the current user.
package session

import (
	"context"
	"log/slog"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/hoshidori/hoshidori/internal/apiclient"
)

// Tokens reports the stored access token.
type Tokens interface {
	AccessToken() string
}

// Profiles fetches the signed-in user's profile.
type Profiles interface {
	CurrentUser(ctx context.Context) (apiclient.User, error)
}

// GuestProfile supplies the guest's locally chosen initial.
type GuestProfile interface {
	ProfileInitial() string
}

// User is the signed-in user. Profile is zero when the profile fetch failed.
type User struct {
	Token   string
	Profile apiclient.User
}

type Session struct {
	tokens   Tokens
	profiles Profiles
	guest    GuestProfile
	logger   *slog.Logger

	mu        sync.RWMutex
	user      *User
	ready     chan struct{}
	readyOnce sync.Once
}

// New creates an uninitialized session. guest may be nil.
func New(tokens Tokens, profiles Profiles, guest GuestProfile) *Session {
	return &Session{
		tokens:   tokens,
		profiles: profiles,
		guest:    guest,
		logger:   slog.Default(),
		ready:    make(chan struct{}),
	}
}

// Init resolves the current user from the stored token and marks the session
// ready. A failed profile fetch still yields a user carrying only the token,
// unless the failure cleared the stored tokens, in which case the session is
// a guest. Init may be called again to re-resolve.
func (s *Session) Init(ctx context.Context) *User {
	var u *User
	if token := s.tokens.AccessToken(); token != "" {
		u = &User{Token: token}
		profile, err := s.profiles.CurrentUser(ctx)
		switch {
		case err != nil && s.tokens.AccessToken() == "":
			s.logger.Warn("session rejected, continuing as guest", "error", err)
			u = nil
		case err != nil:
			s.logger.Warn("profile fetch failed", "error", err)
		default:
			u.Profile = profile
		}
	}

	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
	s.markReady()
	return u
}

// Ready is closed once the session has been initialized.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

// Wait blocks until the session is ready or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) IsReady() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// User returns the current user, or nil for a guest.
func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) IsGuest() bool {
	return s.User() == nil
}

// SetUser records a fresh sign-in and marks the session ready.
func (s *Session) SetUser(u User) {
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
	s.markReady()
}

// Clear signs the session out. It stays ready.
func (s *Session) Clear() {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	s.markReady()
}

// ProfileInitial is the uppercased first letter of the username, then the
// first name, and "?" when nobody is signed in or both are empty.
func (s *Session) ProfileInitial() string {
	u := s.User()
	if u == nil {
		return "?"
	}
	return initial(u.Profile.Username, u.Profile.FirstName)
}

// DisplayInitial is ProfileInitial for a signed-in user and the guest's local
// initial otherwise.
func (s *Session) DisplayInitial() string {
	if s.IsGuest() && s.guest != nil {
		return s.guest.ProfileInitial()
	}
	return s.ProfileInitial()
}

func (s *Session) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

func initial(names ...string) string {
	for _, n := range names {
		if n != "" {
			r, _ := utf8.DecodeRuneInString(n)
			return string(unicode.ToUpper(r))
		}
	}
	return "?"
}
