package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hivedesk/portal/database/model"
	"github.com/hivedesk/portal/logger"
	"github.com/hivedesk/portal/util/metrics"
)

// Identity is what a provider returns for verified credentials.
type Identity struct {
	UID   string
	Email string
}

// IdentityProvider verifies credentials. Failures must be *AuthError.
type IdentityProvider interface {
	Verify(ctx context.Context, email, password string) (Identity, error)
}

// AuthStateFunc receives auth-state changes. s is nil when uid signed out
// or its session expired.
type AuthStateFunc func(uid string, s *model.Session)

type activeSession struct {
	session model.Session
	since   time.Time
}

// AuthGateway wraps the identity provider and tracks signed-in users so it
// can report sign-in, sign-out and expiry to subscribers.
type AuthGateway struct {
	provider IdentityProvider
	maxAge   time.Duration
	now      func() time.Time

	mu     sync.Mutex
	subs   map[int]AuthStateFunc
	nextID int
	active map[string]activeSession // by session id
}

func NewAuthGateway(provider IdentityProvider, maxAge time.Duration) *AuthGateway {
	return &AuthGateway{
		provider: provider,
		maxAge:   maxAge,
		now:      time.Now,
		subs:     make(map[int]AuthStateFunc),
		active:   make(map[string]activeSession),
	}
}

// DeriveRole maps an email to a role: any address containing "hr" is HR.
// This is a naming convention, not a verified claim.
func DeriveRole(email string) model.Role {
	if strings.Contains(email, "hr") {
		return model.RoleHR
	}
	return model.RoleEmployee
}

// SignIn verifies the credentials and returns the session to persist. On
// failure nothing is recorded and the error is an *AuthError.
func (g *AuthGateway) SignIn(ctx context.Context, email, password string) (model.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		metrics.SignInsTotal.WithLabelValues(AuthInvalidCredentials.String()).Inc()
		return model.Session{}, &AuthError{Kind: AuthInvalidCredentials}
	}

	identity, err := g.provider.Verify(ctx, email, password)
	if err != nil {
		authErr, ok := err.(*AuthError)
		if !ok {
			authErr = &AuthError{Kind: AuthUnknown, Err: err}
		}
		metrics.SignInsTotal.WithLabelValues(authErr.Kind.String()).Inc()
		return model.Session{}, authErr
	}

	if identity.Email == "" {
		identity.Email = email
	}
	s := model.Session{
		LoggedIn: true,
		Role:     DeriveRole(identity.Email),
		UID:      identity.UID,
		Email:    identity.Email,
		SID:      uuid.NewString(),
	}

	g.mu.Lock()
	g.active[s.SID] = activeSession{session: s, since: g.now()}
	metrics.ActiveSessions.Set(float64(len(g.active)))
	g.mu.Unlock()

	metrics.SignInsTotal.WithLabelValues("ok").Inc()
	g.notify(s.UID, &s)
	return s, nil
}

// SignOut ends the remote session s. Subscribers hear about it only once
// the user has no other session left. A session without SID ends every
// session of its user. The caller clears the local session store.
func (g *AuthGateway) SignOut(ctx context.Context, s model.Session) error {
	if err := ctx.Err(); err != nil {
		return &AuthError{Kind: AuthNetwork, Err: err}
	}
	g.mu.Lock()
	if s.SID != "" {
		delete(g.active, s.SID)
	} else {
		for sid, a := range g.active {
			if a.session.UID == s.UID {
				delete(g.active, sid)
			}
		}
	}
	remaining := g.countLocked(s.UID)
	metrics.ActiveSessions.Set(float64(len(g.active)))
	g.mu.Unlock()

	if remaining == 0 {
		g.notify(s.UID, nil)
	}
	return nil
}

// SubscribeAuthState registers callback. The returned function removes it
// and is safe to call more than once.
func (g *AuthGateway) SubscribeAuthState(callback AuthStateFunc) (unsubscribe func()) {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.subs[id] = callback
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.subs, id)
			g.mu.Unlock()
		})
	}
}

// ExpireSessions drops sessions older than the configured max age. A user
// is reported as signed out when their last session expires. It returns the
// number of sessions expired.
func (g *AuthGateway) ExpireSessions(now time.Time) int {
	g.mu.Lock()
	expired := 0
	users := make(map[string]struct{})
	for sid, a := range g.active {
		if now.Sub(a.since) >= g.maxAge {
			expired++
			users[a.session.UID] = struct{}{}
			delete(g.active, sid)
		}
	}
	signedOut := make([]string, 0, len(users))
	for uid := range users {
		if g.countLocked(uid) == 0 {
			signedOut = append(signedOut, uid)
		}
	}
	metrics.ActiveSessions.Set(float64(len(g.active)))
	g.mu.Unlock()

	for _, uid := range signedOut {
		logger.Debugf("last session for %s expired", uid)
		g.notify(uid, nil)
	}
	return expired
}

// Active returns the tracked session sid.
func (g *AuthGateway) Active(sid string) (model.Session, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.active[sid]
	return a.session, ok
}

// ActiveCount returns the number of live sessions, counting each browser.
func (g *AuthGateway) ActiveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}

func (g *AuthGateway) countLocked(uid string) int {
	n := 0
	for _, a := range g.active {
		if a.session.UID == uid {
			n++
		}
	}
	return n
}

// notify runs callbacks on their own goroutines so a slow subscriber never
// holds up a sign-in.
func (g *AuthGateway) notify(uid string, s *model.Session) {
	g.mu.Lock()
	callbacks := make([]AuthStateFunc, 0, len(g.subs))
	for _, cb := range g.subs {
		callbacks = append(callbacks, cb)
	}
	g.mu.Unlock()

	for _, cb := range callbacks {
		var copied *model.Session
		if s != nil {
			v := *s
			copied = &v
		}
		go func(cb AuthStateFunc) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("auth state subscriber panic:", r)
				}
			}()
			cb(uid, copied)
		}(cb)
	}
}
