package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/config"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/middleware"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/service"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type RouterDeps struct {
	Config       *config.Config
	Log          *zap.Logger
	Metrics      *metrics.Collector
	DB           Pinger
	Sessions     *service.SessionService
	Auth         *service.AuthService
	Appointments *service.AppointmentService
	Patients     *service.PatientService
	Dentists     *service.DentistService
	Dashboard    *service.DashboardService
}

func NewRouter(d RouterDeps) *gin.Engine {
	if d.Config.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	RegisterValidators()

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Recovery(d.Log),
		middleware.AccessLog(d.Log),
		middleware.Metrics(d.Metrics),
		cors.New(cors.Config{
			AllowOrigins:     d.Config.CORS.AllowedOrigins,
			AllowMethods:     d.Config.CORS.AllowedMethods,
			AllowHeaders:     d.Config.CORS.AllowedHeaders,
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           d.Config.CORS.MaxAge,
		}),
	)

	r.GET("/healthz", health(d.DB))
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	rl := d.Config.RateLimit
	api := r.Group("/api/v1", middleware.RateLimit("global", rate.Limit(rl.RequestsPerSecond), rl.BurstSize, d.Metrics))
	authLimiter := middleware.RateLimit("auth", middleware.PerMinute(rl.AuthRequestsPerMinute), rl.AuthRequestsPerMinute, d.Metrics)

	cookie := auth.CookieOptions{Name: d.Config.Session.CookieName, Secure: d.Config.Session.SecureCookie}
	private := api.Group("", middleware.RequireSession(d.Sessions, cookie, d.Log))

	NewAuthHandler(d.Auth, d.Sessions, cookie, d.Log).Register(api, private, authLimiter)
	NewPatientHandler(d.Patients, d.Sessions, cookie, d.Log).Register(api, private, authLimiter)
	NewDentistHandler(d.Dentists, d.Log).Register(api)
	NewAppointmentHandler(d.Appointments, d.Log).Register(private)
	NewDashboardHandler(d.Dashboard, d.Log).Register(private)

	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "Not found")
	})
	return r
}

func health(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
