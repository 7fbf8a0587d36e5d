package http

import (
	"log/slog"

	"github.com/geocoder89/usermgmt/internal/accounts"
	"github.com/geocoder89/usermgmt/internal/auth"
	"github.com/geocoder89/usermgmt/internal/config"
	"github.com/geocoder89/usermgmt/internal/http/handlers"
	"github.com/geocoder89/usermgmt/internal/http/middlewares"
	"github.com/geocoder89/usermgmt/internal/observability"
	"github.com/geocoder89/usermgmt/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "usermgmt-api"

// jsonBodyLimit caps the JSON auth endpoints.
const jsonBodyLimit int64 = 1 << 20

type RouterDeps struct {
	Config   config.Config
	Logger   *slog.Logger
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	Accounts *accounts.Service
	Tokens   *auth.Manager
	Users    middlewares.UserLookup
	Limiter  ratelimit.Limiter

	// UploadDir is served under /uploads when images are stored locally.
	UploadDir string
	Checks    map[string]handlers.Check
}

func NewRouter(d RouterDeps) *gin.Engine {
	if d.Config.Env != "dev" && d.Config.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}

	log := d.Logger
	if log == nil {
		log = slog.Default()
	}

	handlers.RegisterValidators()

	r := gin.New()

	// multipart parts above this spill to temp files
	r.MaxMultipartMemory = 8 << 20

	// middleware
	r.Use(middlewares.Recovery(log))
	r.Use(middlewares.RequestID())
	if d.Config.OTelEnabled {
		r.Use(otelgin.Middleware(serviceName))
	}
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Config.CORSOrigins))

	r.NoRoute(func(c *gin.Context) {
		handlers.RespondNotFound(c, "Route not found.")
	})

	// health
	h := handlers.NewHealthHandler(d.Checks)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	if d.UploadDir != "" {
		r.StaticFS("/uploads", gin.Dir(d.UploadDir, false))
	}

	maxImage := d.Config.UploadMaxBytes
	// form fields travel alongside the image
	formBodyLimit := maxImage + (1 << 20)

	authMW := middlewares.NewAuthMiddleware(d.Tokens, d.Users, d.Prom, log)
	authHandler := handlers.NewAuthHandler(d.Accounts, maxImage)
	usersHandler := handlers.NewUsersHandler(d.Accounts, maxImage)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	if d.Limiter != nil {
		authGroup.Use(middlewares.RateLimit(d.Limiter, middlewares.KeyByIP, d.Prom, log))
	}
	authGroup.POST("/register", middlewares.MaxBodyBytes(formBodyLimit), authHandler.Register)

	jsonOnly := authGroup.Group("", middlewares.RequireJSON(), middlewares.MaxBodyBytes(jsonBodyLimit))
	jsonOnly.POST("/login", authHandler.Login)
	jsonOnly.POST("/refresh", authHandler.Refresh)
	jsonOnly.POST("/logout", authHandler.Logout)

	users := api.Group("/users", authMW.RequireAuth())
	users.GET("", middlewares.RequireAdmin(), usersHandler.List)
	users.GET("/:id", usersHandler.Get)
	users.PUT("/:id", middlewares.MaxBodyBytes(formBodyLimit), usersHandler.Update)
	users.DELETE("/:id", usersHandler.Delete)

	return r
}
