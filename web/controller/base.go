// Package controller provides the HTTP handlers of the portal: login and
// logout, the HR dashboard with its JSON API, the employee dashboard and the
// websocket endpoint.
package controller

import (
	"github.com/hivedesk/portal/logger"
	"github.com/hivedesk/portal/web/locale"
	"github.com/hivedesk/portal/web/session"

	"github.com/gin-gonic/gin"
)

// BaseController provides the helpers shared by all controllers.
type BaseController struct{}

// flash queues a translated notification for the next rendered page.
func (a *BaseController) flash(c *gin.Context, kind session.FlashKind, key string, params ...string) {
	if err := session.AddFlash(c, kind, I18nWeb(c, key, params...)); err != nil {
		logger.Warning("Unable to save flash:", err)
	}
}

// I18nWeb translates key for the language negotiated on the request.
func I18nWeb(c *gin.Context, name string, params ...string) string {
	return locale.T(c, name, params...)
}
