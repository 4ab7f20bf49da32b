package controller

import (
	"net/http"
	"text/template"
	"time"

	"github.com/hivedesk/portal/database"
	"github.com/hivedesk/portal/logger"
	"github.com/hivedesk/portal/web/guard"
	"github.com/hivedesk/portal/web/middleware"
	"github.com/hivedesk/portal/web/service"
	"github.com/hivedesk/portal/web/session"

	"github.com/gin-gonic/gin"
)

// LoginForm represents the login request structure.
type LoginForm struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// IndexController handles the root, login and logout routes.
type IndexController struct {
	BaseController

	auth      *service.AuthGateway
	maxAge    time.Duration
	showDemo  bool
	rateLimit gin.HandlerFunc
}

// IndexOptions configures the login page.
type IndexOptions struct {
	MaxAge time.Duration
	// ShowDemo lists the seeded demo logins under the form.
	ShowDemo bool
	// LoginLimiter guards POST /login; nil disables it.
	LoginLimiter gin.HandlerFunc
}

func NewIndexController(g *gin.RouterGroup, auth *service.AuthGateway, opts IndexOptions) *IndexController {
	a := &IndexController{
		auth:      auth,
		maxAge:    opts.MaxAge,
		showDemo:  opts.ShowDemo,
		rateLimit: opts.LoginLimiter,
	}
	a.initRouter(g)
	return a
}

func (a *IndexController) initRouter(g *gin.RouterGroup) {
	g.GET("/", a.index)
	g.GET(guard.LoginPath, a.loginPage)
	g.GET("/logout", a.logout)

	login := []gin.HandlerFunc{}
	if a.rateLimit != nil {
		login = append(login, a.rateLimit)
	}
	g.POST(guard.LoginPath, append(login, a.login)...)
}

// index sends every visitor to the view the guard picks for them.
func (a *IndexController) index(c *gin.Context) {
	s := session.Get(c)
	if guard.Evaluate(s.LoggedIn, s.Role, "") == guard.Allow {
		c.Redirect(http.StatusFound, guard.HomeFor(s.Role).Path())
		return
	}
	c.Redirect(http.StatusFound, guard.LoginPath)
}

func (a *IndexController) loginPage(c *gin.Context) {
	s := session.Get(c)
	if s.LoggedIn {
		c.Redirect(http.StatusFound, guard.HomeFor(s.Role).Path())
		return
	}
	data := gin.H{}
	if a.showDemo {
		data["demo"] = database.DemoCredentials()
	}
	html(c, "login.html", "pages.login.title", data)
}

// login verifies the credentials and writes the session. A failed sign-in
// leaves the session untouched.
func (a *IndexController) login(c *gin.Context) {
	var form LoginForm
	if err := c.ShouldBind(&form); err != nil {
		a.loginFailed(c, "pages.login.toasts.invalidCredentials")
		return
	}

	safeEmail := template.HTMLEscapeString(form.Email)
	s, err := a.auth.SignIn(c.Request.Context(), form.Email, form.Password)
	if err != nil {
		logger.Warningf("failed sign-in for \"%s\" from %s: %v", safeEmail, getRemoteIp(c), err)
		a.loginFailed(c, authErrorKey(err))
		return
	}

	if err := session.Set(c, s, a.maxAge); err != nil {
		logger.Warning("Unable to save session:", err)
		if err := a.auth.SignOut(c.Request.Context(), s); err != nil {
			logger.Warning("Unable to roll back sign-in:", err)
		}
		a.loginFailed(c, "pages.login.toasts.unknown")
		return
	}
	logger.Infof("%s logged in successfully, IP: %s", safeEmail, getRemoteIp(c))
	middleware.SetAudit(c, service.AuditEntry{
		UID:      s.UID,
		Email:    s.Email,
		Action:   service.AuditLogin,
		Resource: "session",
	})

	home := guard.HomeFor(s.Role).Path()
	msg := I18nWeb(c, "pages.login.toasts.successLogin")
	if isAjax(c) {
		jsonMsgObj(c, msg, gin.H{"location": home, "role": s.Role}, nil)
		return
	}
	a.flash(c, session.FlashSuccess, "pages.login.toasts.successLogin")
	c.Redirect(http.StatusSeeOther, home)
}

func (a *IndexController) loginFailed(c *gin.Context, key string) {
	if isAjax(c) {
		pureJsonMsg(c, http.StatusOK, false, I18nWeb(c, key))
		return
	}
	a.flash(c, session.FlashError, key)
	c.Redirect(http.StatusSeeOther, guard.LoginPath)
}

// logout ends the remote session first; the local session is only cleared
// once that succeeded, and then all of it at once.
func (a *IndexController) logout(c *gin.Context) {
	s := session.Get(c)
	if !s.LoggedIn {
		c.Redirect(http.StatusFound, guard.LoginPath)
		return
	}

	if err := a.auth.SignOut(c.Request.Context(), s); err != nil {
		logger.Warning("sign-out failed:", err)
		a.flash(c, session.FlashError, authErrorKey(err))
		c.Redirect(http.StatusFound, guard.HomeFor(s.Role).Path())
		return
	}
	if err := session.Clear(c); err != nil {
		logger.Warning("Unable to clear session:", err)
		a.flash(c, session.FlashError, "pages.login.toasts.logoutFailed")
		c.Redirect(http.StatusFound, guard.HomeFor(s.Role).Path())
		return
	}
	logger.Infof("%s logged out successfully", template.HTMLEscapeString(s.Email))
	middleware.SetAudit(c, service.AuditEntry{
		UID:      s.UID,
		Email:    s.Email,
		Action:   service.AuditLogout,
		Resource: "session",
	})

	a.flash(c, session.FlashSuccess, "pages.login.toasts.loggedOut")
	c.Redirect(http.StatusFound, guard.LoginPath)
}
