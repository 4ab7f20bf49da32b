package middleware

import (
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hivedesk/portal/database"
	"github.com/hivedesk/portal/database/model"
	"github.com/hivedesk/portal/util/metrics"
	"github.com/hivedesk/portal/web/cache"
	"github.com/hivedesk/portal/web/entity"
	"github.com/hivedesk/portal/web/service"
	"github.com/hivedesk/portal/web/session"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newServer serves engine with a session store and a /as/:role route that
// signs the client in.
func newServer(t *testing.T, register func(engine *gin.Engine)) (*httptest.Server, *http.Client) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(sessions.Sessions("hivedesk", session.Configure(cookie.NewStore([]byte("test-secret")), session.CookieOptions(time.Hour, false))))
	engine.GET("/as/:role", func(c *gin.Context) {
		role := model.Role(c.Param("role"))
		err := session.Set(c, model.Session{LoggedIn: true, Role: role, UID: "u-" + string(role), Email: string(role) + "@company.com"}, time.Hour)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})
	register(engine)

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return srv, client
}

func get(t *testing.T, client *http.Client, url string, jsonReq bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if jsonReq {
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func guarded(engine *gin.Engine) {
	ok := func(c *gin.Context) {
		c.String(http.StatusOK, CurrentSession(c).Email)
	}
	engine.GET("/hr-dashboard", RequireRole(model.RoleHR), ok)
	engine.GET("/employee-dashboard", RequireRole(model.RoleEmployee), ok)
	engine.GET("/any", RequireLogin(), ok)
}

func TestRequireRoleRedirects(t *testing.T) {
	srv, client := newServer(t, guarded)

	resp := get(t, client, srv.URL+"/hr-dashboard", false)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	get(t, client, srv.URL+"/as/employee", false)

	resp = get(t, client, srv.URL+"/hr-dashboard", false)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/employee-dashboard", resp.Header.Get("Location"))

	resp = get(t, client, srv.URL+"/employee-dashboard", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, client, srv.URL+"/any", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequireRoleReevaluatesEveryRequest(t *testing.T) {
	srv, client := newServer(t, guarded)

	get(t, client, srv.URL+"/as/hr", false)
	assert.Equal(t, http.StatusOK, get(t, client, srv.URL+"/hr-dashboard", false).StatusCode)

	get(t, client, srv.URL+"/as/employee", false)
	resp := get(t, client, srv.URL+"/hr-dashboard", false)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/employee-dashboard", resp.Header.Get("Location"))
}

func TestRequireRoleJSON(t *testing.T) {
	srv, client := newServer(t, guarded)

	resp := get(t, client, srv.URL+"/hr-dashboard", true)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var msg entity.Msg
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
	assert.False(t, msg.Success)
	assert.Equal(t, map[string]any{"location": "/login"}, msg.Obj)

	get(t, client, srv.URL+"/as/hr", false)
	resp = get(t, client, srv.URL+"/employee-dashboard", true)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	msg = entity.Msg{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
	assert.Equal(t, map[string]any{"location": "/hr-dashboard"}, msg.Obj)
}

func TestWantsJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		path   string
		header string
		value  string
		want   bool
	}{
		{"/hr-dashboard", "", "", false},
		{"/hr-dashboard/api/employees", "", "", true},
		{"/login", "Accept", "application/json", true},
		{"/login", "X-Requested-With", "XMLHttpRequest", true},
		{"/login", "Accept", "text/html", false},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, tt.path, nil)
		if tt.header != "" {
			c.Request.Header.Set(tt.header, tt.value)
		}
		assert.Equal(t, tt.want, WantsJSON(c), tt.path+" "+tt.value)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	require.NoError(t, cache.InitRedis(""))
	t.Cleanup(func() { _ = cache.Close() })

	srv, client := newServer(t, func(engine *gin.Engine) {
		engine.GET("/limited", RateLimitMiddleware(LoginRateLimitConfig(2)), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
	})

	before := testutil.ToFloat64(metrics.RateLimitHits)
	assert.Equal(t, http.StatusOK, get(t, client, srv.URL+"/limited", true).StatusCode)
	resp := get(t, client, srv.URL+"/limited", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusTooManyRequests, get(t, client, srv.URL+"/limited", true).StatusCode)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RateLimitHits))

	resp = get(t, client, srv.URL+"/limited", false)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestRateLimitFailsOpen(t *testing.T) {
	srv, client := newServer(t, func(engine *gin.Engine) {
		engine.GET("/limited", RateLimitMiddleware(LoginRateLimitConfig(1)), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
	})
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get(t, client, srv.URL+"/limited", true).StatusCode)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	srv, client := newServer(t, func(engine *gin.Engine) {
		engine.Use(MetricsMiddleware())
		engine.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	})
	counter := metrics.HTTPRequestsTotal.WithLabelValues("/items/:id", http.MethodGet, "204")
	before := testutil.ToFloat64(counter)

	get(t, client, srv.URL+"/items/1", false)
	get(t, client, srv.URL+"/items/2", false)
	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestDomainValidator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(DomainValidatorMiddleware("portal.example.com"))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for host, want := range map[string]int{
		"portal.example.com":      http.StatusOK,
		"PORTAL.example.com:8443": http.StatusOK,
		"evil.example.com":        http.StatusForbidden,
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = host
		engine.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, host)
	}
}

func TestAuditMiddleware(t *testing.T) {
	require.NoError(t, database.InitDB(filepath.Join(t.TempDir(), "portal.db")))
	t.Cleanup(func() { _ = database.CloseDB() })

	srv, client := newServer(t, func(engine *gin.Engine) {
		engine.Use(AuditMiddleware())
		engine.GET("/delete/:id", RequireRole(model.RoleHR), func(c *gin.Context) {
			SetAudit(c, service.AuditEntry{Action: service.AuditDelete, Resource: "employee", ResourceID: c.Param("id")})
			c.Status(http.StatusOK)
		})
		engine.GET("/noop", func(c *gin.Context) { c.Status(http.StatusOK) })
	})

	get(t, client, srv.URL+"/as/hr", false)
	get(t, client, srv.URL+"/noop", false)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/delete/e1", nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "portal-test")
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	logs, err := (&service.AuditLogService{}).GetAuditLogs(10, "")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "u-hr", logs[0].UID)
	assert.Equal(t, "hr@company.com", logs[0].Email)
	assert.Equal(t, "e1", logs[0].ResourceID)
	assert.Equal(t, "portal-test", logs[0].UserAgent)
	assert.True(t, strings.HasPrefix(logs[0].IP, "127.0.0.1"))
}
