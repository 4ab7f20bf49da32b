// Package web wires the portal's HTTP server: router, sessions, templates,
// the auth and record gateways, the websocket hub and scheduled jobs.
package web

import (
	"context"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/hivedesk/portal/config"
	"github.com/hivedesk/portal/database"
	"github.com/hivedesk/portal/logger"
	"github.com/hivedesk/portal/util/common"
	"github.com/hivedesk/portal/util/metrics"
	"github.com/hivedesk/portal/util/random"
	"github.com/hivedesk/portal/web/cache"
	"github.com/hivedesk/portal/web/controller"
	"github.com/hivedesk/portal/web/job"
	"github.com/hivedesk/portal/web/locale"
	"github.com/hivedesk/portal/web/middleware"
	"github.com/hivedesk/portal/web/network"
	"github.com/hivedesk/portal/web/service"
	"github.com/hivedesk/portal/web/session"
	"github.com/hivedesk/portal/web/websocket"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
)

//go:embed assets
var assetsFS embed.FS

//go:embed html/*
var htmlFS embed.FS

//go:embed translation/*
var i18nFS embed.FS

const sessionName = "hivedesk"

// Server is the portal web server with its gateways and scheduled jobs.
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	auth        *service.AuthGateway
	dashboard   *service.DashboardService
	hub         *websocket.Hub
	events      *service.EventPublisher
	unsubscribe func()

	cron *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new web server instance with a cancellable context.
func NewServer() *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{ctx: ctx, cancel: cancel}
}

// newRecordGateway opens the configured employee store.
func (s *Server) newRecordGateway() (service.RecordGateway, error) {
	storeConfig := config.GetStoreConfig()
	if err := storeConfig.Validate(); err != nil {
		return nil, err
	}
	if storeConfig.IsDynamoDB() {
		gw, err := service.NewDynamoRecordGateway(s.ctx, storeConfig.DynamoDB)
		if err != nil {
			return nil, err
		}
		logger.Infof("Employee records stored in DynamoDB table %s", storeConfig.DynamoDB.Table)
		return service.Instrument(gw), nil
	}
	return service.Instrument(service.NewSQLRecordGateway(database.GetDB())), nil
}

func (s *Server) initServices() error {
	gateway, err := s.newRecordGateway()
	if err != nil {
		return err
	}

	s.hub = websocket.NewHub()
	go s.hub.Run()

	listeners := []service.RecordListener{s.hub}
	if brokers := config.GetKafkaBrokers(); len(brokers) > 0 {
		s.events = service.NewEventPublisher(brokers, config.GetKafkaTopic())
		listeners = append(listeners, s.events)
		logger.Infof("Publishing employee events to %s", config.GetKafkaTopic())
	}
	s.dashboard = service.NewDashboardService(gateway, listeners...)

	provider := service.NewIdentityProvider(config.GetIdentityType())
	s.auth = service.NewAuthGateway(provider, config.GetSessionMaxAge())
	// The only auth-state subscription; released in Stop.
	s.unsubscribe = s.auth.SubscribeAuthState(s.hub.AuthStateChanged)
	return nil
}

func (s *Server) newSessionStore() sessions.Store {
	secret := []byte(config.GetSessionSecret())
	if len(secret) == 0 {
		logger.Warning("PORTAL_SESSION_SECRET not set, sessions will not survive a restart")
		secret = random.Key(32)
	}

	var store sessions.Store
	if config.GetRedisAddr() != "" {
		store = cache.NewRedisStore(cache.GetClient(), secret)
	} else {
		store = cookie.NewStore(secret)
	}
	return session.Configure(store, session.CookieOptions(config.GetSessionMaxAge(), config.GetCertFile() != ""))
}

func (s *Server) loadTemplates(engine *gin.Engine, funcMap template.FuncMap) error {
	if config.IsDebug() {
		engine.LoadHTMLGlob("web/html/*.html")
		engine.StaticFS("/assets", http.FS(os.DirFS("web/assets")))
		return nil
	}
	tpl, err := template.New("").Funcs(funcMap).ParseFS(htmlFS, "html/*.html")
	if err != nil {
		return err
	}
	engine.SetHTMLTemplate(tpl)

	assets, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		return err
	}
	engine.StaticFS("/assets", http.FS(assets))
	return nil
}

// initRouter initializes Gin, registers middleware, templates, static assets
// and controllers.
func (s *Server) initRouter() (*gin.Engine, error) {
	if config.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.Default()

	if domain := config.GetDomain(); domain != "" {
		engine.Use(middleware.DomainValidatorMiddleware(domain))
	}
	engine.Use(middleware.MetricsMiddleware())

	engine.Use(sessions.Sessions(sessionName, s.newSessionStore()))

	engine.Use(gzip.Gzip(
		gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{"/ws", "/metrics"}),
	))

	funcMap := template.FuncMap{"i18n": locale.I18n}
	engine.SetFuncMap(funcMap)
	if err := s.loadTemplates(engine, funcMap); err != nil {
		return nil, err
	}

	engine.Use(locale.LocalizerMiddleware())
	engine.Use(middleware.AuditMiddleware())

	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	g := engine.Group("/")
	controller.NewIndexController(g, s.auth, controller.IndexOptions{
		MaxAge:       config.GetSessionMaxAge(),
		ShowDemo:     config.GetIdentityType() == config.IdentityLocal,
		LoginLimiter: middleware.RateLimitMiddleware(middleware.LoginRateLimitConfig(config.GetLoginRateLimit())),
	})
	controller.NewHRDashboardController(g, s.dashboard)
	controller.NewEmployeeDashboardController(g, s.dashboard)
	controller.NewWebSocketController(g, s.hub)

	engine.NoRoute(func(c *gin.Context) {
		c.AbortWithStatus(http.StatusNotFound)
	})

	return engine, nil
}

// startTask schedules the maintenance jobs.
func (s *Server) startTask() {
	if _, err := s.cron.AddJob("@every 1m", job.NewSessionExpiryJob(s.auth)); err != nil {
		logger.Warning("Add session expiry job failed:", err)
	}
	if _, err := s.cron.AddJob("@daily", job.NewAuditCleanupJob(config.GetAuditRetentionDays())); err != nil {
		logger.Warning("Add audit cleanup job failed:", err)
	}
	if _, err := s.cron.AddFunc("@hourly", func() {
		defer common.Recover("checkpoint")
		if err := database.Checkpoint(); err != nil {
			logger.Warning("database checkpoint failed:", err)
		}
	}); err != nil {
		logger.Warning("Add checkpoint job failed:", err)
	}
}

// Start initializes and starts the web server.
func (s *Server) Start() (err error) {
	defer func() {
		if err != nil {
			_ = s.Stop()
		}
	}()

	loc, err := config.GetTimeLocation()
	if err != nil {
		return err
	}
	s.cron = cron.New(cron.WithLocation(loc))
	s.cron.Start()

	if err := locale.InitLocalizer(i18nFS); err != nil {
		return err
	}
	if err := cache.InitRedis(config.GetRedisAddr()); err != nil {
		return err
	}
	if err := s.initServices(); err != nil {
		return err
	}

	engine, err := s.initRouter()
	if err != nil {
		return err
	}

	listenAddr := net.JoinHostPort(config.GetListen(), strconv.Itoa(config.GetPort()))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	certFile, keyFile := config.GetCertFile(), config.GetKeyFile()
	if certFile != "" || keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			_ = listener.Close()
			return fmt.Errorf("load certificate: %w", err)
		}
		listener = network.NewRedirectListener(listener)
		listener = tls.NewListener(listener, &tls.Config{Certificates: []tls.Certificate{cert}})
		logger.Info("Web server running HTTPS on", listener.Addr())
	} else {
		logger.Info("Web server running HTTP on", listener.Addr())
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("web server stopped:", err)
		}
	}()

	s.startTask()
	return nil
}

// Stop releases the auth subscription, then shuts down jobs, the hub, the
// event publisher and the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.hub != nil {
		s.hub.Stop()
	}

	var errs []error
	if s.events != nil {
		errs = append(errs, s.events.Close())
	}
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, s.httpServer.Shutdown(ctx))
	} else if s.listener != nil {
		errs = append(errs, s.listener.Close())
	}
	errs = append(errs, cache.Close())
	return common.Combine(errs...)
}

// GetCtx returns the server's context.
func (s *Server) GetCtx() context.Context { return s.ctx }

// GetCron returns the server's cron scheduler instance.
func (s *Server) GetCron() *cron.Cron { return s.cron }
