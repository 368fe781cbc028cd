package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"anoa.com/homeworktracker/internal/config"
	"anoa.com/homeworktracker/pkg/database"
	"anoa.com/homeworktracker/pkg/metrics"
	"anoa.com/homeworktracker/pkg/storage"

	assignmentHttp "anoa.com/homeworktracker/internal/modules/assignment/delivery/http"
	assignmentRepo "anoa.com/homeworktracker/internal/modules/assignment/repository"
	assignmentService "anoa.com/homeworktracker/internal/modules/assignment/service"

	statHttp "anoa.com/homeworktracker/internal/modules/stat/delivery/http"
	statService "anoa.com/homeworktracker/internal/modules/stat/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	engine        *gin.Engine
	db            *gorm.DB
	logger        *logrus.Logger
	assignmentSvc assignmentService.Service
	cfg           *config.Config
}

func NewServer(cfg *config.Config, db *gorm.DB, store storage.AttachmentStore, redisClient *redis.Client, logger *logrus.Logger) *Server {
	assignmentRepository := assignmentRepo.NewRepository(db, store)
	assignmentSvc := assignmentService.NewService(assignmentRepository, store, logger)
	assignmentHandler := assignmentHttp.NewAssignmentHandler(assignmentSvc, logger, assignmentHttp.Options{
		MaxUploadBytes:    cfg.MaxUploadBytes,
		UploadRateLimit:   cfg.RateLimitUpload,
		OrphanGracePeriod: cfg.OrphanGracePeriod,
		Redis:             redisClient,
	})

	statSvc := statService.NewStatService(assignmentRepository)
	statHandler := statHttp.NewStatHandler(statSvc, logger)

	s := &Server{
		db:            db,
		logger:        logger,
		assignmentSvc: assignmentSvc,
		cfg:           cfg,
	}

	router := gin.New()
	setupCORS(router, cfg.AllowedOrigins)
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Output:    logger.Writer(),
		SkipPaths: []string{"/metrics", "/healthz"},
	}))
	router.Use(metrics.GinMiddleware())
	// Multipart bodies above this are spooled to disk by net/http.
	router.MaxMultipartMemory = 8 << 20

	router.GET("/metrics", metrics.Handler())
	router.GET("/healthz", s.health)

	api := router.Group("/api")
	{
		assignments := api.Group("/assignments")
		{
			assignments.POST("", assignmentHandler.CreateAssignment)
			assignments.GET("", assignmentHandler.GetAllAssignments)
			assignments.GET("/export", assignmentHandler.ExportAssignments)
			assignments.GET("/:id", assignmentHandler.GetAssignment)
			assignments.PATCH("/:id", assignmentHandler.UpdateAssignment)
			assignments.DELETE("/:id", assignmentHandler.DeleteAssignment)
		}

		api.GET("/stats", statHandler.GetSummary)
		api.POST("/maintenance/orphans", assignmentHandler.CleanupOrphans)
	}

	s.engine = router
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	if err := database.Ping(c.Request.Context(), s.db); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// StartOrphanCleanup runs reconciliation every ORPHAN_CLEANUP_INTERVAL until
// ctx is done. It does nothing when the interval is zero.
func (s *Server) StartOrphanCleanup(ctx context.Context) {
	interval := s.cfg.OrphanCleanupInterval
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				released, err := s.assignmentSvc.CleanupOrphanAttachments(ctx, s.cfg.OrphanGracePeriod)
				if err != nil {
					s.logger.WithError(err).Error("orphan attachment cleanup failed")
					continue
				}
				s.logger.WithField("released", released).Debug("orphan attachment cleanup tick")
			}
		}
	}()
}

func setupCORS(router *gin.Engine, allowedOrigins string) {
	var origins []string
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
