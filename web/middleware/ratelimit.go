package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/hivedesk/portal/logger"
	"github.com/hivedesk/portal/util/metrics"
	"github.com/hivedesk/portal/web/cache"
	"github.com/hivedesk/portal/web/entity"
	"github.com/hivedesk/portal/web/guard"
	"github.com/hivedesk/portal/web/locale"
	"github.com/hivedesk/portal/web/session"

	"github.com/gin-gonic/gin"
)

// RateLimitConfig configures a fixed-window limiter.
type RateLimitConfig struct {
	Limit   int
	Window  time.Duration
	Prefix  string
	KeyFunc func(c *gin.Context) string
}

// LoginRateLimitConfig limits sign-in attempts per client IP.
func LoginRateLimitConfig(limit int) RateLimitConfig {
	return RateLimitConfig{
		Limit:  limit,
		Window: time.Minute,
		Prefix: "portal:ratelimit:login:",
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	}
}

// RateLimitMiddleware rejects requests above config.Limit per window. The
// limiter fails open when redis is unavailable. A non-positive limit
// disables it.
func RateLimitMiddleware(config RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.Limit <= 0 {
			c.Next()
			return
		}

		key := config.Prefix + config.KeyFunc(c)
		count, err := cache.IncrWindow(c.Request.Context(), key, config.Window)
		if err != nil {
			logger.Warning("Rate limit increment failed:", err)
			c.Next()
			return
		}

		remaining := config.Limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if int(count) > config.Limit {
			metrics.RateLimitHits.Inc()
			logger.Warningf("Rate limit exceeded for %s on %s (count: %d)", config.KeyFunc(c), c.Request.URL.Path, count)
			msg := locale.T(c, "pages.login.toasts.tooManyAttempts")
			if WantsJSON(c) {
				c.AbortWithStatusJSON(http.StatusTooManyRequests, entity.Msg{Msg: msg})
				return
			}
			if err := session.AddFlash(c, session.FlashError, msg); err != nil {
				logger.Warning("Unable to save flash:", err)
			}
			c.Redirect(http.StatusSeeOther, guard.LoginPath)
			c.Abort()
			return
		}
		c.Next()
	}
}
