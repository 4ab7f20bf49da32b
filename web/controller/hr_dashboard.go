package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/hivedesk/portal/database/model"
	"github.com/hivedesk/portal/logger"
	"github.com/hivedesk/portal/web/guard"
	"github.com/hivedesk/portal/web/middleware"
	"github.com/hivedesk/portal/web/service"
	"github.com/hivedesk/portal/web/session"

	"github.com/gin-gonic/gin"
)

// HRDashboardController serves the HR dashboard page and its JSON API.
// Every mutation is followed by a full re-read; nothing is shown before
// the store confirmed it.
type HRDashboardController struct {
	BaseController

	dashboard      *service.DashboardService
	auditService   service.AuditLogService
	accountService service.AccountService
}

// accountForm is a new sign-in account. Its role follows from the email.
type accountForm struct {
	Email    string `json:"email" form:"email"`
	Name     string `json:"name" form:"name"`
	Password string `json:"password" form:"password"`
}

func NewHRDashboardController(g *gin.RouterGroup, dashboard *service.DashboardService) *HRDashboardController {
	a := &HRDashboardController{dashboard: dashboard}
	a.initRouter(g)
	return a
}

func (a *HRDashboardController) initRouter(g *gin.RouterGroup) {
	g = g.Group(guard.HrHomePath)
	g.Use(middleware.RequireRole(model.RoleHR))

	g.GET("", a.page)
	g.POST("/employees", a.addForm)
	g.POST("/employees/:id/delete", a.deleteForm)
	g.POST("/accounts", a.registerForm)

	api := g.Group("/api")
	api.GET("/employees", a.list)
	api.POST("/employees", a.add)
	api.DELETE("/employees/:id", a.del)
	api.POST("/accounts", a.register)
	api.GET("/stats", a.stats)
	api.GET("/logs", a.logs)
	api.GET("/audit", a.audit)
}

// page renders the list filtered by ?search=. Stats always cover the full
// fetched set.
func (a *HRDashboardController) page(c *gin.Context) {
	search := c.Query("search")
	var toasts []session.Flash

	snap, err := a.dashboard.Refresh(c.Request.Context())
	if err != nil {
		logger.Warning("employee list failed:", err)
		toasts = append(toasts, session.Flash{Kind: session.FlashError, Msg: I18nWeb(c, "pages.hr.toasts.fetchFailed")})
	}

	html(c, "hr_dashboard.html", "pages.hr.title", gin.H{
		"records": service.Filter(snap.Records, search),
		"stats":   snap.Stats,
		"search":  search,
	}, toasts...)
}

func (a *HRDashboardController) addForm(c *gin.Context) {
	var fields service.EmployeeFields
	if err := c.ShouldBind(&fields); err != nil {
		a.flash(c, session.FlashError, "pages.hr.toasts.required")
		c.Redirect(http.StatusSeeOther, guard.HrHomePath)
		return
	}

	_, id, err := a.dashboard.Create(originContext(c), fields)
	switch {
	case err == nil || isRefreshFailure(err):
		a.recordCreate(c, id, fields)
		a.flash(c, session.FlashSuccess, "pages.hr.toasts.added")
		if err != nil {
			logger.Warning("employee list failed after create:", err)
			a.flash(c, session.FlashError, "pages.hr.toasts.fetchFailed")
		}
	case isValidation(err):
		a.flash(c, session.FlashError, "pages.hr.toasts.required")
	default:
		logger.Warning("employee create failed:", err)
		a.flash(c, session.FlashError, "pages.hr.toasts.addFailed")
	}
	c.Redirect(http.StatusSeeOther, guard.HrHomePath)
}

func (a *HRDashboardController) deleteForm(c *gin.Context) {
	id := c.Param("id")
	_, err := a.dashboard.Delete(originContext(c), id)
	switch {
	case err == nil || isRefreshFailure(err):
		a.recordDelete(c, id)
		a.flash(c, session.FlashSuccess, "pages.hr.toasts.deleted")
		if err != nil {
			logger.Warning("employee list failed after delete:", err)
			a.flash(c, session.FlashError, "pages.hr.toasts.fetchFailed")
		}
	default:
		logger.Warning("employee delete failed:", err)
		a.flash(c, session.FlashError, "pages.hr.toasts.deleteFailed")
	}
	c.Redirect(http.StatusSeeOther, guard.HrHomePath)
}

func (a *HRDashboardController) registerForm(c *gin.Context) {
	var form accountForm
	if err := c.ShouldBind(&form); err != nil {
		a.flash(c, session.FlashError, "pages.hr.toasts.accountRequired")
		c.Redirect(http.StatusSeeOther, guard.HrHomePath)
		return
	}

	account, err := a.accountService.Register(c.Request.Context(), form.Email, form.Name, form.Password)
	switch {
	case err == nil:
		a.recordRegister(c, account)
		a.flash(c, session.FlashSuccess, "pages.hr.toasts.accountAdded", "Email=="+account.Email)
	case isValidation(err):
		a.flash(c, session.FlashError, "pages.hr.toasts.accountRequired")
	case errors.Is(err, service.ErrEmailTaken):
		a.flash(c, session.FlashError, "pages.hr.toasts.emailTaken")
	default:
		logger.Warning("account register failed:", err)
		a.flash(c, session.FlashError, "pages.hr.toasts.accountFailed")
	}
	c.Redirect(http.StatusSeeOther, guard.HrHomePath)
}

func (a *HRDashboardController) register(c *gin.Context) {
	var form accountForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, I18nWeb(c, "pages.hr.toasts.accountRequired"))
		return
	}

	account, err := a.accountService.Register(c.Request.Context(), form.Email, form.Name, form.Password)
	switch {
	case err == nil:
		a.recordRegister(c, account)
		jsonMsgObj(c, I18nWeb(c, "pages.hr.toasts.accountAdded", "Email=="+account.Email), gin.H{
			"id":    account.Id,
			"email": account.Email,
			"role":  service.DeriveRole(account.Email),
		}, nil)
	case isValidation(err):
		pureJsonMsg(c, http.StatusBadRequest, false, I18nWeb(c, "pages.hr.toasts.accountRequired"))
	case errors.Is(err, service.ErrEmailTaken):
		pureJsonMsg(c, http.StatusBadRequest, false, I18nWeb(c, "pages.hr.toasts.emailTaken"))
	default:
		jsonMsg(c, I18nWeb(c, "pages.hr.toasts.accountFailed"), err)
	}
}

func (a *HRDashboardController) list(c *gin.Context) {
	snap, err := a.dashboard.Refresh(c.Request.Context())
	if err != nil {
		jsonMsg(c, I18nWeb(c, "pages.hr.toasts.fetchFailed"), err)
		return
	}
	jsonObj(c, service.Snapshot{
		Records: service.Filter(snap.Records, c.Query("search")),
		Stats:   snap.Stats,
	}, nil)
}

func (a *HRDashboardController) add(c *gin.Context) {
	var fields service.EmployeeFields
	if err := c.ShouldBind(&fields); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, I18nWeb(c, "pages.hr.toasts.required"))
		return
	}

	snap, id, err := a.dashboard.Create(originContext(c), fields)
	switch {
	case err == nil:
		a.recordCreate(c, id, fields)
		jsonMsgObj(c, I18nWeb(c, "pages.hr.toasts.added"), gin.H{"id": id, "snapshot": snap}, nil)
	case isRefreshFailure(err):
		a.recordCreate(c, id, fields)
		logger.Warning("employee list failed after create:", err)
		jsonMsgObj(c, I18nWeb(c, "pages.hr.toasts.added"), gin.H{
			"id":    id,
			"error": I18nWeb(c, "pages.hr.toasts.fetchFailed"),
		}, nil)
	case isValidation(err):
		pureJsonMsg(c, http.StatusBadRequest, false, I18nWeb(c, "pages.hr.toasts.required"))
	default:
		jsonMsg(c, I18nWeb(c, "pages.hr.toasts.addFailed"), err)
	}
}

func (a *HRDashboardController) del(c *gin.Context) {
	id := c.Param("id")
	snap, err := a.dashboard.Delete(originContext(c), id)
	switch {
	case err == nil:
		a.recordDelete(c, id)
		jsonMsgObj(c, I18nWeb(c, "pages.hr.toasts.deleted"), gin.H{"snapshot": snap}, nil)
	case isRefreshFailure(err):
		a.recordDelete(c, id)
		logger.Warning("employee list failed after delete:", err)
		jsonMsgObj(c, I18nWeb(c, "pages.hr.toasts.deleted"), gin.H{
			"error": I18nWeb(c, "pages.hr.toasts.fetchFailed"),
		}, nil)
	default:
		jsonMsg(c, I18nWeb(c, "pages.hr.toasts.deleteFailed"), err)
	}
}

func (a *HRDashboardController) stats(c *gin.Context) {
	snap, err := a.dashboard.Refresh(c.Request.Context())
	if err != nil {
		jsonMsg(c, I18nWeb(c, "pages.hr.toasts.fetchFailed"), err)
		return
	}
	jsonObj(c, snap.Stats, nil)
}

// logs returns recent server log lines, newest first.
func (a *HRDashboardController) logs(c *gin.Context) {
	count := logCount(c.DefaultQuery("count", "100"))
	level := strings.ToLower(c.DefaultQuery("level", "info"))
	jsonObj(c, logger.GetLogs(count, level), nil)
}

// logCount parses ?count= and clamps it to 1..1000; junk means 100.
func logCount(raw string) int {
	count, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		return 100
	case count < 1:
		return 1
	case count > 1000:
		return 1000
	}
	return count
}

func (a *HRDashboardController) audit(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	logs, err := a.auditService.GetAuditLogs(limit, strings.ToUpper(c.Query("action")))
	jsonObj(c, logs, err)
}

// originContext tags the request with the websocket client id the tab sent,
// as the wsClient form field or the X-WS-Client header.
func originContext(c *gin.Context) context.Context {
	id := c.GetHeader("X-WS-Client")
	if id == "" {
		id = c.PostForm("wsClient")
	}
	return service.WithOrigin(c.Request.Context(), id)
}

func (a *HRDashboardController) recordCreate(c *gin.Context, id string, fields service.EmployeeFields) {
	middleware.SetAudit(c, service.AuditEntry{
		Action:     service.AuditCreate,
		Resource:   "employee",
		ResourceID: id,
		Details:    map[string]any{"name": fields.Name, "email": fields.Email},
	})
}

func (a *HRDashboardController) recordRegister(c *gin.Context, account *model.Account) {
	middleware.SetAudit(c, service.AuditEntry{
		Action:     service.AuditCreate,
		Resource:   "account",
		ResourceID: account.Id,
		Details:    map[string]any{"email": account.Email, "role": service.DeriveRole(account.Email)},
	})
}

func (a *HRDashboardController) recordDelete(c *gin.Context, id string) {
	middleware.SetAudit(c, service.AuditEntry{
		Action:     service.AuditDelete,
		Resource:   "employee",
		ResourceID: id,
	})
}
