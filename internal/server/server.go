package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/Nhien18112/system-with-dbs/api/swagger"
	"github.com/Nhien18112/system-with-dbs/internal/handler"
	"github.com/Nhien18112/system-with-dbs/internal/middleware"
	"github.com/Nhien18112/system-with-dbs/internal/service"
	"github.com/Nhien18112/system-with-dbs/pkg/config"
	"github.com/Nhien18112/system-with-dbs/pkg/logger"
	corsmiddleware "github.com/Nhien18112/system-with-dbs/pkg/middleware/cors"
	reqidmiddleware "github.com/Nhien18112/system-with-dbs/pkg/middleware/requestid"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Registration *handler.RegistrationHandler
	Scheduling   *handler.SchedulingHandler
	Metrics      *handler.MetricsHandler
}

// NewRouter builds the gin engine with the shared middleware chain and the
// /api/v1 route table.
func NewRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, h Handlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/health", "/ready", "/metrics"))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", h.Metrics.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	registrations := api.Group("/tutor-registrations")
	registrations.POST("", h.Registration.Create)
	registrations.GET("", h.Registration.ListByStudent)
	registrations.GET("/pending", h.Registration.Pending)
	registrations.GET("/approved", h.Registration.Approved)
	registrations.POST("/:id/cancel", h.Registration.Cancel)
	registrations.POST("/:id/approve", h.Registration.Approve)
	registrations.POST("/:id/reject", h.Registration.Reject)

	api.GET("/tutors/suggestions", h.Registration.Suggest)

	appointments := api.Group("/appointments")
	appointments.POST("", h.Scheduling.Book)
	appointments.GET("/approved", h.Scheduling.Approved)
	appointments.GET("/history", h.Scheduling.History)
	appointments.GET("/cancellable", h.Scheduling.Cancellable)
	appointments.POST("/:id/approve", h.Scheduling.ApproveAppointment)
	appointments.POST("/:id/reject", h.Scheduling.RejectAppointment)

	meetings := api.Group("/meetings")
	meetings.GET("/:id", h.Scheduling.GetMeeting)
	meetings.GET("/:id/conflicts", h.Scheduling.Conflicts)
	meetings.POST("/:id/cancel", h.Scheduling.CancelMeeting)

	return r
}

// Server owns the HTTP listener.
type Server struct {
	http   *http.Server
	logger *zap.Logger
}

// New wraps the router in an http.Server listening on the configured port.
func New(cfg *config.Config, router http.Handler, logr *zap.Logger) *Server {
	if logr == nil {
		logr = zap.NewNop()
	}
	return &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logr,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests for up to
// shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("server shutting down")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
