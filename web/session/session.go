// Package session is the portal's session store. It keeps the sign-in flag,
// role, user id and email under fixed keys so every request can evaluate
// access without calling the identity provider.
package session

import (
	"encoding/gob"
	"net/http"
	"sync"
	"time"

	"github.com/hivedesk/portal/database/model"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	KeyLoggedIn = "isLoggedIn"
	KeyUserRole = "userRole"
	KeyRole     = "role"
	KeyUID      = "uid"
	KeyEmail    = "email"
	KeySID      = "sid"
)

var keys = []string{KeyLoggedIn, KeyUserRole, KeyRole, KeyUID, KeyEmail, KeySID}

var (
	optionsMu sync.RWMutex
	options   = CookieOptions(24*time.Hour, false)
)

// CookieOptions are the portal's session cookie options. Secure is set when
// the server terminates TLS.
func CookieOptions(maxAge time.Duration, secure bool) sessions.Options {
	return sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Configure applies opts to store and makes Set reuse them, so a sign-in
// only changes MaxAge.
func Configure(store sessions.Store, opts sessions.Options) sessions.Store {
	store.Options(opts)
	optionsMu.Lock()
	options = opts
	optionsMu.Unlock()
	return store
}

func currentOptions() sessions.Options {
	optionsMu.RLock()
	defer optionsMu.RUnlock()
	return options
}

// FlashKind is the visual class of a transient notification.
type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
)

// Flash is a one-shot notification shown on the next rendered page.
type Flash struct {
	Kind FlashKind
	Msg  string
}

func init() {
	gob.Register(Flash{})
}

// Set writes every field of s in a single save.
func Set(c *gin.Context, s model.Session, maxAge time.Duration) error {
	store := sessions.Default(c)
	opts := currentOptions()
	opts.MaxAge = int(maxAge.Seconds())
	store.Options(opts)
	store.Set(KeyLoggedIn, s.LoggedIn)
	store.Set(KeyUserRole, string(s.Role))
	store.Set(KeyRole, string(s.Role))
	store.Set(KeyUID, s.UID)
	store.Set(KeyEmail, s.Email)
	store.Set(KeySID, s.SID)
	return store.Save()
}

// Get reads the session. Missing keys yield zero values, so a visitor
// without a session is simply not logged in.
func Get(c *gin.Context) model.Session {
	store := sessions.Default(c)
	loggedIn, _ := store.Get(KeyLoggedIn).(bool)
	role, _ := store.Get(KeyUserRole).(string)
	if role == "" {
		role, _ = store.Get(KeyRole).(string)
	}
	uid, _ := store.Get(KeyUID).(string)
	email, _ := store.Get(KeyEmail).(string)
	sid, _ := store.Get(KeySID).(string)
	return model.Session{
		LoggedIn: loggedIn,
		Role:     model.Role(role),
		UID:      uid,
		Email:    email,
		SID:      sid,
	}
}

func IsLogin(c *gin.Context) bool {
	return Get(c).LoggedIn
}

// Clear removes every session field in one save. Either all fields are gone
// afterwards or, when the save fails, none are: the fields are restored so a
// later save in the same request cannot persist a partial sign-out.
func Clear(c *gin.Context) error {
	store := sessions.Default(c)
	prev := make(map[string]any, len(keys))
	for _, k := range keys {
		if v := store.Get(k); v != nil {
			prev[k] = v
		}
		store.Delete(k)
	}
	if err := store.Save(); err != nil {
		for k, v := range prev {
			store.Set(k, v)
		}
		return err
	}
	return nil
}

// AddFlash queues a notification for the next page render.
func AddFlash(c *gin.Context, kind FlashKind, msg string) error {
	store := sessions.Default(c)
	store.AddFlash(Flash{Kind: kind, Msg: msg})
	return store.Save()
}

// Flashes pops queued notifications.
func Flashes(c *gin.Context) []Flash {
	store := sessions.Default(c)
	raw := store.Flashes()
	if len(raw) == 0 {
		return nil
	}
	_ = store.Save()
	out := make([]Flash, 0, len(raw))
	for _, f := range raw {
		if fl, ok := f.(Flash); ok {
			out = append(out, fl)
		}
	}
	return out
}
