package middleware

import (
	"github.com/hivedesk/portal/logger"
	"github.com/hivedesk/portal/web/service"

	"github.com/gin-gonic/gin"
)

const auditKey = "portal.audit"

// SetAudit marks the current request for the audit log. Handlers call it
// only once the action has been confirmed.
func SetAudit(c *gin.Context, e service.AuditEntry) {
	c.Set(auditKey, e)
}

// AuditMiddleware writes the entry set by the handler after it returns.
// Caller identity falls back to the session; IP and user agent come from
// the request.
func AuditMiddleware() gin.HandlerFunc {
	auditService := service.AuditLogService{}

	return func(c *gin.Context) {
		c.Next()

		v, ok := c.Get(auditKey)
		if !ok {
			return
		}
		e, ok := v.(service.AuditEntry)
		if !ok {
			return
		}
		if e.UID == "" {
			s := CurrentSession(c)
			e.UID, e.Email = s.UID, s.Email
		}
		e.IP = c.ClientIP()
		e.UserAgent = c.GetHeader("User-Agent")

		if err := auditService.LogAction(e); err != nil {
			logger.Warning("Failed to log audit action:", err)
		}
	}
}
