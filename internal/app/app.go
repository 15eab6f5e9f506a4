// Package app wires the database, settings, mail, catalog sync, and HTTP
// routes into a runnable server.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Fusionaimcp4/Fusion/internal/catalog"
	"github.com/Fusionaimcp4/Fusion/internal/config"
	"github.com/Fusionaimcp4/Fusion/internal/db"
	"github.com/Fusionaimcp4/Fusion/internal/email"
	adminapi "github.com/Fusionaimcp4/Fusion/internal/http/api/admin"
	"github.com/Fusionaimcp4/Fusion/internal/http/api/front"
	"github.com/Fusionaimcp4/Fusion/internal/http/api/relay"
	"github.com/Fusionaimcp4/Fusion/internal/settings"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg *config.Config) error {
	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the API server and blocks until the context is cancelled.
func RunServer(ctx context.Context, cfg *config.Config) error {
	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	if errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		log.WithError(errRefresh).Warn("app: initial settings load failed, using defaults")
	}

	redisClient := openRedis(ctx, cfg.RedisURL)
	mailer := email.NewMailer(cfg.SMTP)
	codes := email.NewCodeStore(redisClient)

	if cfg.Catalog.FeedPath != "" {
		if _, errCron := catalog.StartScheduler(ctx, conn, cfg.Catalog.FeedPath, cfg.Catalog.Cron); errCron != nil {
			return errCron
		}
	} else {
		log.Info("app: no model feed configured, catalog sync disabled")
	}

	engine := buildEngine(conn, cfg, mailer, codes)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// buildEngine assembles the gin engine with all route groups.
func buildEngine(conn *gorm.DB, cfg *config.Config, mailer *email.Mailer, codes email.CodeStore) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogMiddleware())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	adminapi.RegisterAdminRoutes(engine, conn, cfg.JWT, cfg.Catalog.FeedPath)
	front.RegisterFrontRoutes(engine, conn, cfg.JWT, mailer, codes)
	relay.RegisterRelayRoutes(engine, conn)

	return engine
}

// requestLogMiddleware logs one line per request through logrus.
func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}

// openRedis connects to redis when a URL is configured. Failures degrade to
// in-process fallbacks instead of refusing to start.
func openRedis(ctx context.Context, url string) *redis.Client {
	if url == "" {
		return nil
	}
	opts, errParse := redis.ParseURL(url)
	if errParse != nil {
		log.WithError(errParse).Warn("app: invalid redis url, using in-process fallbacks")
		return nil
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if errPing := client.Ping(pingCtx).Err(); errPing != nil {
		log.WithError(errPing).Warn("app: redis unreachable, using in-process fallbacks")
		_ = client.Close()
		return nil
	}
	log.Info("app: redis connected")
	return client
}
