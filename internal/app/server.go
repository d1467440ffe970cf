package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"buildinghub_backend/internal/announcement"
	"buildinghub_backend/internal/calendar"
	"buildinghub_backend/internal/config"
	"buildinghub_backend/internal/fanout"
	"buildinghub_backend/internal/jobs"
	"buildinghub_backend/internal/middleware"
	"buildinghub_backend/internal/notification"
	"buildinghub_backend/internal/oplog"
	"buildinghub_backend/internal/poll"
	"buildinghub_backend/internal/user"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handlers groups the HTTP handlers mounted under /api/v1.
type Handlers struct {
	User         *user.Handler
	Notification *notification.Handler
	Broadcast    *fanout.Handler
	Poll         *poll.Handler
	Calendar     *calendar.Handler
	Announcement *announcement.Handler
}

// Server struct holds the dependencies for the HTTP server.
type Server struct {
	httpServer  *http.Server
	router      *gin.Engine
	cfg         *config.Config
	logger      *zap.Logger
	reminderJob *jobs.CalendarReminderJob
}

// NewServer builds the router and mounts every route group.
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	verifier middleware.TokenVerifier,
	users middleware.UserResolver,
	recorder oplog.Recorder,
	handlers Handlers,
	reminderJob *jobs.CalendarReminderJob,
) (*Server, error) {
	gin.SetMode(cfg.GinMode)
	router := gin.New()

	router.Use(middleware.ZapLogger(logger, cfg))
	router.Use(middleware.ErrorHandler(logger))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{"Content-Length", middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	authMW := middleware.AuthMiddleware(verifier, users, recorder, logger.Named("AuthMiddleware"))
	managerRoleMW := middleware.ManagerRoleMiddleware()

	router.GET("/health", healthHandler(db))

	v1 := router.Group("/api/v1")
	handlers.User.RegisterRoutes(v1.Group("", authMW))
	handlers.Notification.RegisterRoutes(v1.Group("/notifications", authMW))
	handlers.Broadcast.RegisterRoutes(v1, authMW, managerRoleMW)
	handlers.Poll.RegisterRoutes(v1, authMW, managerRoleMW)
	handlers.Calendar.RegisterRoutes(v1, authMW, managerRoleMW)
	handlers.Announcement.RegisterRoutes(v1, authMW, managerRoleMW)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // fan-out to large buildings runs inside the request
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer:  httpServer,
		router:      router,
		cfg:         cfg,
		logger:      logger,
		reminderJob: reminderJob,
	}, nil
}

func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	}
}

// Router exposes the engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Start() error {
	if s.reminderJob != nil {
		if err := s.reminderJob.SetupAndStart(); err != nil {
			s.logger.Error("Failed to setup and start calendar reminder job", zap.Error(err))
		}
	}

	s.logger.Info("HTTP Server starting",
		zap.String("address", s.httpServer.Addr),
		zap.String("gin_mode", s.cfg.GinMode),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Failed to start HTTP server", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP Server stopped")
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Attempting graceful server shutdown...")
	if s.reminderJob != nil {
		s.reminderJob.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}
