package router

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/pdb-slot-api/api/swagger"
	"github.com/noah-isme/pdb-slot-api/internal/handler"
	"github.com/noah-isme/pdb-slot-api/internal/middleware"
	"github.com/noah-isme/pdb-slot-api/internal/models"
	"github.com/noah-isme/pdb-slot-api/internal/service"
	"github.com/noah-isme/pdb-slot-api/pkg/config"
	"github.com/noah-isme/pdb-slot-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/pdb-slot-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/pdb-slot-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Auth     *handler.AuthHandler
	Slot     *handler.SlotHandler
	Import   *handler.ImportHandler
	Lecturer *handler.LecturerHandler
	Period   *handler.PeriodHandler
	Calendar *handler.CalendarHandler
	Metrics  *handler.MetricsHandler
}

// Options carries the shared infrastructure used by middleware.
type Options struct {
	Tokens  middleware.TokenValidator
	Metrics *service.MetricsService
	Redis   *redis.Client
	Logger  *zap.Logger
}

// Setup builds the gin engine with global middleware and all routes.
func Setup(cfg *config.Config, h Handlers, opts Options) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	admin := middleware.RequireRoles(models.RoleAdmin)
	lecturer := middleware.RequireRoles(models.RoleLecturer)
	anyone := middleware.RequireRoles(models.RoleAdmin, models.RoleLecturer)
	claimLimit := middleware.RateLimit(opts.Redis, cfg.Claims.RateLimit, cfg.Claims.RateWindow, opts.Logger)

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/auth/login", h.Auth.Login)

		authorized := api.Group("")
		authorized.Use(middleware.JWT(opts.Tokens))
		{
			authorized.GET("/auth/me", h.Auth.Me)

			slots := authorized.Group("/slots")
			{
				slots.GET("", anyone, h.Slot.List)
				slots.GET("/summary", admin, h.Slot.Summary)
				slots.GET("/:id", anyone, h.Slot.Get)
				slots.POST("", admin, h.Slot.Create)
				slots.DELETE("/:id", admin, h.Slot.Delete)

				slots.POST("/:id/claims", anyone, claimLimit, h.Slot.Claim)
				slots.DELETE("/:id/claims/me", lecturer, claimLimit, h.Slot.UnclaimSelf)
				slots.DELETE("/:id/claims/:lecturerId", admin, h.Slot.UnclaimFor)

				slots.GET("/import/template", admin, h.Import.Template)
				slots.POST("/import/preview", admin, h.Import.Preview)
				slots.POST("/import/commit", admin, h.Import.Commit)
			}

			me := authorized.Group("/me", lecturer)
			{
				me.GET("/slots", h.Slot.Mine)
				me.GET("/available", h.Slot.Available)
				me.GET("/calendar", h.Calendar.Mine)
			}

			lecturers := authorized.Group("/lecturers")
			{
				lecturers.GET("", admin, h.Lecturer.List)
				lecturers.GET("/:nip", middleware.RBAC(string(models.RoleAdmin), "SELF"), h.Lecturer.Get)
				lecturers.POST("", admin, h.Lecturer.Create)
				lecturers.PUT("/:nip", admin, h.Lecturer.Update)
				lecturers.DELETE("/:nip", admin, h.Lecturer.Delete)
			}

			periods := authorized.Group("/periods")
			{
				periods.GET("", anyone, h.Period.List)
				periods.GET("/active", anyone, h.Period.Active)
				periods.PUT("/active", admin, h.Period.SetActive)
				periods.GET("/:id/events", anyone, h.Period.Events)
			}
		}
	}

	return r
}
