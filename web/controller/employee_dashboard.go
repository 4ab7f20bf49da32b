package controller

import (
	"github.com/hivedesk/portal/database/model"
	"github.com/hivedesk/portal/logger"
	"github.com/hivedesk/portal/web/guard"
	"github.com/hivedesk/portal/web/middleware"
	"github.com/hivedesk/portal/web/service"
	"github.com/hivedesk/portal/web/session"

	"github.com/gin-gonic/gin"
)

// EmployeeDashboardController shows an employee their own onboarding
// record, matched by email.
type EmployeeDashboardController struct {
	BaseController

	dashboard *service.DashboardService
}

func NewEmployeeDashboardController(g *gin.RouterGroup, dashboard *service.DashboardService) *EmployeeDashboardController {
	a := &EmployeeDashboardController{dashboard: dashboard}
	a.initRouter(g)
	return a
}

func (a *EmployeeDashboardController) initRouter(g *gin.RouterGroup) {
	g.GET(guard.EmployeeHomePath, middleware.RequireRole(model.RoleEmployee), a.page)
}

func (a *EmployeeDashboardController) page(c *gin.Context) {
	s := middleware.CurrentSession(c)
	var toasts []session.Flash

	record, err := a.dashboard.FindByEmail(c.Request.Context(), s.Email)
	if err != nil {
		logger.Warning("employee lookup failed:", err)
		toasts = append(toasts, session.Flash{Kind: session.FlashError, Msg: I18nWeb(c, "pages.hr.toasts.fetchFailed")})
	}
	html(c, "employee_dashboard.html", "pages.employee.title", gin.H{
		"record": record,
	}, toasts...)
}
