package controller

import (
	"context"
	"html/template"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hivedesk/portal/database"
	"github.com/hivedesk/portal/database/model"
	"github.com/hivedesk/portal/web/entity"
	"github.com/hivedesk/portal/web/locale"
	"github.com/hivedesk/portal/web/middleware"
	"github.com/hivedesk/portal/web/service"
	"github.com/hivedesk/portal/web/session"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authEvent struct {
	uid      string
	loggedIn bool
}

type portal struct {
	srv  *httptest.Server
	auth *service.AuthGateway

	mu      sync.Mutex
	events  []authEvent
	changes []service.RecordChange
}

func (p *portal) RecordsChanged(ctx context.Context, change service.RecordChange) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, change)
}

func (p *portal) recordChanges() []service.RecordChange {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]service.RecordChange(nil), p.changes...)
}

func (p *portal) authEvents() []authEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]authEvent(nil), p.events...)
}

// newPortal serves the portal routes over a fresh database seeded with the
// demo accounts.
func newPortal(t *testing.T, middlewares ...gin.HandlerFunc) *portal {
	t.Helper()
	gin.SetMode(gin.TestMode)

	require.NoError(t, database.InitDB(filepath.Join(t.TempDir(), "portal.db")))
	t.Cleanup(func() { _ = database.CloseDB() })
	require.NoError(t, locale.InitLocalizer(os.DirFS("..")))

	p := &portal{}
	p.auth = service.NewAuthGateway(service.NewLocalIdentity(database.GetDB()), time.Hour)
	unsubscribe := p.auth.SubscribeAuthState(func(uid string, s *model.Session) {
		p.mu.Lock()
		p.events = append(p.events, authEvent{uid: uid, loggedIn: s != nil})
		p.mu.Unlock()
	})
	t.Cleanup(unsubscribe)
	dashboard := service.NewDashboardService(service.NewSQLRecordGateway(database.GetDB()), p)

	engine := gin.New()
	engine.Use(sessions.Sessions("hivedesk", session.Configure(cookie.NewStore([]byte("test-secret")), session.CookieOptions(time.Hour, false))))
	funcMap := template.FuncMap{"i18n": locale.I18n}
	tpl, err := template.New("").Funcs(funcMap).ParseGlob("../html/*.html")
	require.NoError(t, err)
	engine.SetHTMLTemplate(tpl)
	engine.Use(middlewares...)
	engine.Use(locale.LocalizerMiddleware())
	engine.Use(middleware.AuditMiddleware())

	g := engine.Group("/")
	NewIndexController(g, p.auth, IndexOptions{MaxAge: time.Hour, ShowDemo: true})
	NewHRDashboardController(g, dashboard)
	NewEmployeeDashboardController(g, dashboard)

	p.srv = httptest.NewServer(engine)
	t.Cleanup(p.srv.Close)
	return p
}

type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func (p *portal) browser(t *testing.T) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: p.srv.URL,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) do(req *http.Request) (*http.Response, string) {
	b.t.Helper()
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return resp, string(body)
}

func (b *browser) get(path string, header ...string) (*http.Response, string) {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.base+path, nil)
	require.NoError(b.t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	return b.do(req)
}

func (b *browser) postForm(path string, form url.Values) (*http.Response, string) {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodPost, b.base+path, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) api(method, path string, body any) (*http.Response, entity.Msg) {
	b.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(b.t, err)
		reader = strings.NewReader(string(data))
	}
	req, err := http.NewRequest(method, b.base+path, reader)
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	resp, raw := b.do(req)

	var msg entity.Msg
	require.NoError(b.t, json.Unmarshal([]byte(raw), &msg), raw)
	return resp, msg
}

func (b *browser) login(email, password string) *http.Response {
	b.t.Helper()
	resp, _ := b.postForm("/login", url.Values{"email": {email}, "password": {password}})
	return resp
}

func TestIndexRedirects(t *testing.T) {
	p := newPortal(t)
	b := p.browser(t)

	resp, _ := b.get("/")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, body := b.get("/login")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "hr@company.com / password")
	assert.Contains(t, body, "employee@company.com / password")

	b.login("hr@company.com", "password")
	resp, _ = b.get("/")
	assert.Equal(t, "/hr-dashboard", resp.Header.Get("Location"))
	resp, _ = b.get("/login")
	assert.Equal(t, "/hr-dashboard", resp.Header.Get("Location"))
}

func TestLoginRoutesByRole(t *testing.T) {
	p := newPortal(t)

	hr := p.browser(t)
	resp := hr.login("hr@company.com", "password")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/hr-dashboard", resp.Header.Get("Location"))

	resp, body := hr.get("/hr-dashboard")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Login successful!")
	assert.Contains(t, body, "hr@company.com")

	// The toast is shown once.
	_, body = hr.get("/hr-dashboard")
	assert.NotContains(t, body, "Login successful!")

	resp, _ = hr.get("/employee-dashboard")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/hr-dashboard", resp.Header.Get("Location"))

	emp := p.browser(t)
	resp = emp.login("employee@company.com", "password")
	assert.Equal(t, "/employee-dashboard", resp.Header.Get("Location"))
	resp, _ = emp.get("/hr-dashboard")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/employee-dashboard", resp.Header.Get("Location"))

	assert.Equal(t, 2, p.auth.ActiveCount())
}

func TestLoginFailureLeavesSessionEmpty(t *testing.T) {
	p := newPortal(t)
	b := p.browser(t)

	resp := b.login("hr@company.com", "wrong")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	_, body := b.get("/login")
	assert.Contains(t, body, "Invalid email or password")

	resp, _ = b.get("/hr-dashboard")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = b.login("   ", "password")
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	assert.Equal(t, 0, p.auth.ActiveCount())
	assert.Empty(t, p.authEvents())
}

func TestLoginJSON(t *testing.T) {
	p := newPortal(t)
	b := p.browser(t)

	_, msg := b.api(http.MethodPost, "/login", LoginForm{Email: "john.hr@company.com", Password: "password123"})
	require.True(t, msg.Success, msg.Msg)
	assert.Equal(t, "Login successful!", msg.Msg)
	assert.Equal(t, map[string]any{"location": "/hr-dashboard", "role": "hr"}, msg.Obj)

	_, msg = b.api(http.MethodPost, "/login", LoginForm{Email: "nobody@company.com", Password: "x"})
	assert.False(t, msg.Success)
	assert.Equal(t, "Invalid email or password", msg.Msg)
}

func TestLogout(t *testing.T) {
	p := newPortal(t)
	b := p.browser(t)

	b.login("jane.employee@company.com", "password123")
	resp, _ := b.get("/logout")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, body := b.get("/login")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Logged out successfully")

	resp, _ = b.get("/employee-dashboard")
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	// Subscribers are notified asynchronously.
	require.Eventually(t, func() bool { return len(p.authEvents()) == 2 }, time.Second, 10*time.Millisecond)
	events := p.authEvents()
	assert.ElementsMatch(t, []bool{true, false}, []bool{events[0].loggedIn, events[1].loggedIn})
	assert.Equal(t, events[0].uid, events[1].uid)
	assert.Equal(t, 0, p.auth.ActiveCount())

	// Logging out again is a plain redirect.
	resp, _ = b.get("/logout")
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, p.authEvents(), 2)
}

// oversizeSession makes the cookie store refuse to save on requests carrying
// X-Oversize-Session.
func oversizeSession(c *gin.Context) {
	if c.GetHeader("X-Oversize-Session") != "" {
		sessions.Default(c).Set("padding", strings.Repeat("x", 8192))
	}
	c.Next()
}

func TestLogoutKeepsSessionWhenClearFails(t *testing.T) {
	p := newPortal(t, oversizeSession)
	b := p.browser(t)
	b.login("hr@company.com", "password")
	b.get("/hr-dashboard")

	resp, _ := b.get("/logout", "X-Oversize-Session", "1")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/hr-dashboard", resp.Header.Get("Location"))

	resp, body := b.get("/hr-dashboard")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, body, "Logged out successfully")
}

func TestHRAPI(t *testing.T) {
	p := newPortal(t)
	b := p.browser(t)
	b.login("hr@company.com", "password")

	resp, msg := b.api(http.MethodPost, "/hr-dashboard/api/employees", service.EmployeeFields{
		Name:       "Ada Lovelace",
		Email:      "ada@company.com",
		Department: "Engineering",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, msg.Success, msg.Msg)
	assert.Equal(t, "Employee added successfully!", msg.Msg)
	obj := msg.Obj.(map[string]any)
	id := obj["id"].(string)
	require.NotEmpty(t, id)

	snap := obj["snapshot"].(map[string]any)
	records := snap["records"].([]any)
	require.Len(t, records, 1)
	record := records[0].(map[string]any)
	assert.Equal(t, "Pending", record["status"])
	assert.EqualValues(t, 10, record["progress"])
	assert.NotEmpty(t, record["createdAt"])

	resp, msg = b.api(http.MethodPost, "/hr-dashboard/api/employees", service.EmployeeFields{Name: "  ", Email: "x@company.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Please fill required fields", msg.Msg)

	_, msg = b.api(http.MethodGet, "/hr-dashboard/api/employees?search=ENGINEER", nil)
	require.True(t, msg.Success)
	assert.Len(t, msg.Obj.(map[string]any)["records"], 1)
	_, msg = b.api(http.MethodGet, "/hr-dashboard/api/employees?search=sales", nil)
	assert.Empty(t, msg.Obj.(map[string]any)["records"])

	_, msg = b.api(http.MethodGet, "/hr-dashboard/api/stats", nil)
	assert.Equal(t, map[string]any{"total": float64(1), "onboarding": float64(0), "active": float64(0), "pending": float64(1)}, msg.Obj)

	_, msg = b.api(http.MethodDelete, "/hr-dashboard/api/employees/"+id, nil)
	require.True(t, msg.Success, msg.Msg)
	assert.Equal(t, "Employee deleted", msg.Msg)

	_, msg = b.api(http.MethodGet, "/hr-dashboard/api/audit", nil)
	require.True(t, msg.Success)
	var actions []string
	for _, l := range msg.Obj.([]any) {
		actions = append(actions, l.(map[string]any)["action"].(string))
	}
	assert.ElementsMatch(t, []string{service.AuditLogin, service.AuditCreate, service.AuditDelete}, actions)
}

func TestHRAPIRequiresHR(t *testing.T) {
	p := newPortal(t)

	anon := p.browser(t)
	resp, msg := anon.api(http.MethodGet, "/hr-dashboard/api/employees", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, map[string]any{"location": "/login"}, msg.Obj)

	emp := p.browser(t)
	emp.login("employee@company.com", "password")
	resp, _ = emp.api(http.MethodPost, "/hr-dashboard/api/employees", service.EmployeeFields{Name: "x", Email: "x@company.com"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var count int64
	require.NoError(t, database.GetDB().Model(&model.Employee{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestHRDashboardForms(t *testing.T) {
	p := newPortal(t)
	b := p.browser(t)
	b.login("hr@company.com", "password")

	resp, _ := b.postForm("/hr-dashboard/employees", url.Values{"name": {"Grace Hopper"}, "email": {"grace@company.com"}, "position": {"Admiral"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/hr-dashboard", resp.Header.Get("Location"))

	_, body := b.get("/hr-dashboard")
	assert.Contains(t, body, "Employee added successfully!")
	assert.Contains(t, body, "Grace Hopper")

	_, body = b.get("/hr-dashboard?search=nobody")
	assert.NotContains(t, body, "Grace Hopper")

	b.postForm("/hr-dashboard/employees", url.Values{"name": {"No Email"}})
	_, body = b.get("/hr-dashboard")
	assert.Contains(t, body, "Please fill required fields")
	assert.NotContains(t, body, "No Email")

	var employees []model.Employee
	require.NoError(t, database.GetDB().Find(&employees).Error)
	require.Len(t, employees, 1)

	resp, _ = b.postForm("/hr-dashboard/employees/"+employees[0].Id+"/delete", nil)
	assert.Equal(t, "/hr-dashboard", resp.Header.Get("Location"))
	_, body = b.get("/hr-dashboard")
	assert.Contains(t, body, "Employee deleted")
	assert.NotContains(t, body, "Grace Hopper")
}

func TestEmployeeDashboard(t *testing.T) {
	p := newPortal(t)

	emp := p.browser(t)
	emp.login("employee@company.com", "password")
	resp, body := emp.get("/employee-dashboard")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Welcome, employee@company.com")

	hr := p.browser(t)
	hr.login("hr@company.com", "password")
	_, msg := hr.api(http.MethodPost, "/hr-dashboard/api/employees", service.EmployeeFields{
		Name:       "Demo Employee",
		Email:      "Employee@Company.com",
		Department: "Support",
	})
	require.True(t, msg.Success, msg.Msg)

	_, body = emp.get("/employee-dashboard")
	assert.Contains(t, body, "Support")
	assert.Contains(t, body, "Pending")
}

func TestLogCount(t *testing.T) {
	tests := map[string]int{
		"5000": 1000,
		"1000": 1000,
		"250":  250,
		"1":    1,
		"0":    1,
		"-3":   1,
		"abc":  100,
		"":     100,
	}
	for raw, want := range tests {
		assert.Equal(t, want, logCount(raw), raw)
	}
}

func TestLogsEndpointClampsCount(t *testing.T) {
	p := newPortal(t)
	b := p.browser(t)
	b.login("hr@company.com", "password")

	_, msg := b.api(http.MethodGet, "/hr-dashboard/api/logs?count=5000&level=debug", nil)
	require.True(t, msg.Success)
	assert.LessOrEqual(t, len(msg.Obj.([]any)), 1000)
}

func TestMutationsCarryTabID(t *testing.T) {
	p := newPortal(t)
	b := p.browser(t)
	b.login("hr@company.com", "password")

	b.postForm("/hr-dashboard/employees", url.Values{"name": {"Grace"}, "email": {"grace@company.com"}, "wsClient": {"tab-7"}})

	var employees []model.Employee
	require.NoError(t, database.GetDB().Find(&employees).Error)
	require.Len(t, employees, 1)
	req, err := http.NewRequest(http.MethodDelete, b.base+"/hr-dashboard/api/employees/"+employees[0].Id, nil)
	require.NoError(t, err)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("X-WS-Client", "tab-8")
	b.do(req)

	changes := p.recordChanges()
	require.Len(t, changes, 2)
	assert.Equal(t, "tab-7", changes[0].Origin)
	assert.Equal(t, service.RecordDeleted, changes[1].Action)
	assert.Equal(t, "tab-8", changes[1].Origin)
}

func TestHRRegistersAccount(t *testing.T) {
	p := newPortal(t)
	hr := p.browser(t)
	hr.login("hr@company.com", "password")

	resp, _ := hr.postForm("/hr-dashboard/accounts", url.Values{"email": {"New.Hire@Company.com"}, "name": {"New Hire"}, "password": {"welcome1"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/hr-dashboard", resp.Header.Get("Location"))
	_, body := hr.get("/hr-dashboard")
	assert.Contains(t, body, "Account new.hire@company.com created")

	hire := p.browser(t)
	resp = hire.login("new.hire@company.com", "welcome1")
	assert.Equal(t, "/employee-dashboard", resp.Header.Get("Location"))

	hr.postForm("/hr-dashboard/accounts", url.Values{"email": {"new.hire@company.com"}, "password": {"again"}})
	_, body = hr.get("/hr-dashboard")
	assert.Contains(t, body, "Email already registered")

	hr.postForm("/hr-dashboard/accounts", url.Values{"email": {"nopass@company.com"}})
	_, body = hr.get("/hr-dashboard")
	assert.Contains(t, body, "Email and password are required")

	_, msg := hr.api(http.MethodPost, "/hr-dashboard/api/accounts", gin.H{"email": "hr.lead@company.com", "password": "pw"})
	require.True(t, msg.Success, msg.Msg)
	obj := msg.Obj.(map[string]any)
	assert.Equal(t, "hr", obj["role"])
	assert.NotEmpty(t, obj["id"])

	resp, msg = hr.api(http.MethodPost, "/hr-dashboard/api/accounts", gin.H{"email": "", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Email and password are required", msg.Msg)

	_, msg = hr.api(http.MethodGet, "/hr-dashboard/api/audit?action=CREATE", nil)
	require.True(t, msg.Success)
	var resources []string
	for _, l := range msg.Obj.([]any) {
		resources = append(resources, l.(map[string]any)["resource"].(string))
	}
	assert.Equal(t, []string{"account", "account"}, resources)
}

func TestRegisterAccountRequiresHR(t *testing.T) {
	p := newPortal(t)

	emp := p.browser(t)
	emp.login("employee@company.com", "password")
	resp, _ := emp.api(http.MethodPost, "/hr-dashboard/api/accounts", gin.H{"email": "sneaky@company.com", "password": "pw"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = emp.postForm("/hr-dashboard/accounts", url.Values{"email": {"sneaky@company.com"}, "password": {"pw"}})
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	var count int64
	require.NoError(t, database.GetDB().Model(&model.Account{}).Where("email = ?", "sneaky@company.com").Count(&count).Error)
	assert.Zero(t, count)
}
