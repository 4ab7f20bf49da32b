// Package middleware holds the gin middleware shared by the portal's routes.
package middleware

import (
	"net/http"
	"strings"

	"github.com/hivedesk/portal/database/model"
	"github.com/hivedesk/portal/web/entity"
	"github.com/hivedesk/portal/web/guard"
	"github.com/hivedesk/portal/web/locale"
	"github.com/hivedesk/portal/web/session"

	"github.com/gin-gonic/gin"
)

const sessionKey = "portal.session"

// RequireRole runs the route guard on every request. An empty role admits
// any signed-in user. Browsers are redirected; JSON clients get 401 or 403
// with the redirect target in obj.location.
func RequireRole(required model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := session.Get(c)
		d := guard.Evaluate(s.LoggedIn, s.Role, required)
		if d == guard.Allow {
			c.Set(sessionKey, s)
			c.Next()
			return
		}

		if WantsJSON(c) {
			status := http.StatusForbidden
			msg := d.String()
			if d == guard.RedirectLogin {
				status = http.StatusUnauthorized
				msg = locale.T(c, "pages.login.toasts.loginAgain")
			}
			c.AbortWithStatusJSON(status, entity.Msg{
				Msg: msg,
				Obj: gin.H{"location": d.Path()},
			})
			return
		}
		c.Redirect(http.StatusFound, d.Path())
		c.Abort()
	}
}

// RequireLogin admits any signed-in user.
func RequireLogin() gin.HandlerFunc {
	return RequireRole("")
}

// CurrentSession returns the session admitted by RequireRole, reading the
// store directly on unguarded routes.
func CurrentSession(c *gin.Context) model.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(model.Session); ok {
			return s
		}
	}
	return session.Get(c)
}

// WantsJSON reports whether the client expects a JSON answer rather than a
// page.
func WantsJSON(c *gin.Context) bool {
	if c.GetHeader("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	if strings.Contains(c.Request.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}
