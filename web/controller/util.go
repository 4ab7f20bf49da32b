package controller

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/hivedesk/portal/config"
	"github.com/hivedesk/portal/logger"
	"github.com/hivedesk/portal/web/entity"
	"github.com/hivedesk/portal/web/middleware"
	"github.com/hivedesk/portal/web/service"
	"github.com/hivedesk/portal/web/session"

	"github.com/gin-gonic/gin"
)

// getRemoteIp extracts the real IP address from the request headers or remote address.
func getRemoteIp(c *gin.Context) string {
	value := c.GetHeader("X-Real-IP")
	if value != "" {
		return value
	}
	value = c.GetHeader("X-Forwarded-For")
	if value != "" {
		ips := strings.Split(value, ",")
		return strings.TrimSpace(ips[0])
	}
	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return ip
}

func jsonMsg(c *gin.Context, msg string, err error) {
	jsonMsgObj(c, msg, nil, err)
}

func jsonObj(c *gin.Context, obj any, err error) {
	jsonMsgObj(c, "", obj, err)
}

// jsonMsgObj answers 200 with success set from err; the error text is
// appended to msg.
func jsonMsgObj(c *gin.Context, msg string, obj any, err error) {
	m := entity.Msg{
		Obj: obj,
	}
	if err == nil {
		m.Success = true
		m.Msg = msg
	} else {
		m.Msg = msg + " (" + err.Error() + ")"
		logger.Warning(msg+": ", err)
	}
	c.JSON(http.StatusOK, m)
}

func pureJsonMsg(c *gin.Context, statusCode int, success bool, msg string) {
	c.JSON(statusCode, entity.Msg{
		Success: success,
		Msg:     msg,
	})
}

// html renders a page. Pending flashes are consumed here; extra toasts are
// shown after them.
func html(c *gin.Context, name string, title string, data gin.H, toasts ...session.Flash) {
	if data == nil {
		data = gin.H{}
	}
	data["title"] = title
	data["session"] = middleware.CurrentSession(c)
	data["toasts"] = append(session.Flashes(c), toasts...)
	data["request_uri"] = c.Request.RequestURI
	c.HTML(http.StatusOK, name, getContext(data))
}

func getContext(h gin.H) gin.H {
	a := gin.H{
		"cur_ver":  config.GetVersion(),
		"app_name": config.GetName(),
	}
	for key, value := range h {
		a[key] = value
	}
	return a
}

func isAjax(c *gin.Context) bool {
	return middleware.WantsJSON(c)
}

// authErrorKey picks the login toast for a sign-in failure.
func authErrorKey(err error) string {
	var authErr *service.AuthError
	if errors.As(err, &authErr) {
		switch authErr.Kind {
		case service.AuthInvalidCredentials:
			return "pages.login.toasts.invalidCredentials"
		case service.AuthNetwork:
			return "pages.login.toasts.network"
		}
	}
	return "pages.login.toasts.unknown"
}

func isValidation(err error) bool {
	var vErr *service.ValidationError
	return errors.As(err, &vErr)
}

func isRefreshFailure(err error) bool {
	var rErr *service.RefreshError
	return errors.As(err, &rErr)
}
