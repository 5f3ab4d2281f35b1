// Command hr serves the timesheet, task, workload and analytics API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitfantasy/nimo-hr/internal/config"
	"github.com/bitfantasy/nimo-hr/internal/database"
	"github.com/bitfantasy/nimo-hr/internal/hr/handler"
	"github.com/bitfantasy/nimo-hr/internal/hr/i18n"
	"github.com/bitfantasy/nimo-hr/internal/hr/notify"
	"github.com/bitfantasy/nimo-hr/internal/hr/repository"
	"github.com/bitfantasy/nimo-hr/internal/hr/service"
	"github.com/bitfantasy/nimo-hr/internal/hr/sse"
	"github.com/bitfantasy/nimo-hr/internal/logger"
	"github.com/bitfantasy/nimo-hr/internal/middleware"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file, reading the environment only")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zapLogger, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zapLogger); err != nil {
		zapLogger.Error("hr service stopped", zap.Error(err))
		zapLogger.Sync()
		os.Exit(1)
	}
	zapLogger.Info("hr service stopped")
}

func run(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) error {
	zapLogger.Info("starting hr service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("db_driver", cfg.Database.Driver))

	if cfg.JWT.Secret == "" {
		return errors.New("jwt secret is not configured (JWT_SECRET)")
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	rdb := database.ConnectRedis(ctx, cfg.Redis, zapLogger)
	if rdb != nil {
		defer rdb.Close()
	}

	tr, err := i18n.New(cfg.I18n.DefaultLocale)
	if err != nil {
		return fmt.Errorf("load translations: %w", err)
	}

	hub := sse.NewHub(zapLogger)
	services := service.NewServices(repository.NewRepositories(db), cfg, service.Options{
		Logger:   zapLogger,
		Redis:    rdb,
		Notifier: notify.NewHubSender(hub, tr, zapLogger),
	})
	router := newRouter(cfg, zapLogger, handler.NewHandlers(services, hub, zapLogger), db, rdb)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// event streams stay open, so writes are not bounded here
		WriteTimeout: 0,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zapLogger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("shutting down", zap.Int("sse_connections", hub.Connections()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newRouter(cfg *config.Config, zapLogger *zap.Logger, h *handler.Handlers, db *gorm.DB, rdb *redis.Client) *gin.Engine {
	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(zapLogger),
		middleware.CORS(),
		// a gzip writer would hold events back until its buffer fills
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/sse"})),
	)

	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) { ready(c, db, rdb) })
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": Version, "build_time": BuildTime})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": 40400, "message": "route not found"})
	})

	handler.RegisterRoutes(r, h, cfg.JWT.Secret, cfg.JWT.Issuer)
	return r
}

// ready reports 503 when the database does not answer. Redis is optional and
// only reported.
func ready(c *gin.Context, db *gorm.DB, rdb *redis.Client) {
	ctx := c.Request.Context()
	sqlDB, err := db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
		return
	}
	body := gin.H{"status": "ok", "database": "ok"}
	if rdb != nil {
		body["redis"] = "ok"
		if err := rdb.Ping(ctx).Err(); err != nil {
			body["redis"] = err.Error()
		}
	}
	c.JSON(http.StatusOK, body)
}
