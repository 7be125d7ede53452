package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/gridbase-io/gridbase/internal/dataservice"
	"github.com/gridbase-io/gridbase/internal/handler"
	"github.com/gridbase-io/gridbase/internal/infrastructure/config"
	"github.com/gridbase-io/gridbase/internal/infrastructure/database"
	"github.com/gridbase-io/gridbase/internal/infrastructure/ratelimit"
	httpRouter "github.com/gridbase-io/gridbase/internal/interfaces/http"
	"github.com/gridbase-io/gridbase/internal/interfaces/http/handlers"
	"github.com/gridbase-io/gridbase/internal/session"
	"github.com/gridbase-io/gridbase/internal/shared/logger"
	"github.com/gridbase-io/gridbase/internal/transport/ws"
)

var (
	env       string
	debugMode bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the grid server",
		Long:  `Start the gridbase HTTP and websocket server with the specified configuration.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Log at debug level with source locations")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger, debugMode); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	log.Infow("starting server", "environment", env)

	gin.SetMode(cfg.Server.Mode)
	gin.DefaultWriter = io.Discard

	store := session.NewStore(session.Options{
		IdleTimeout:   time.Duration(cfg.Session.IdleTimeoutMinutes) * time.Minute,
		SweepInterval: time.Duration(cfg.Session.SweepIntervalSeconds) * time.Second,
		ProbeTimeout:  time.Duration(cfg.Session.ProbeTimeoutSeconds) * time.Second,
		TokenLength:   cfg.Session.TokenLength,
		Prober:        database.Probe,
		Logger:        log,
	})
	store.StartSweeper()
	defer store.Close()

	var limiter ratelimit.Limiter = ratelimit.Noop{}
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Warnw("redis unavailable, login throttling disabled", "error", err)
		} else {
			limiter = ratelimit.NewRedisLimiter(redisClient)
		}
		cancel()
	}

	h := handler.New(handler.Options{
		BatchSize:    cfg.Bulk.BatchSize,
		MaxRowsPerOp: cfg.Bulk.MaxRowsPerOp,
		Logger:       log,
	})

	// The vendor data service is an external collaborator; deployments swap
	// in their own dataservice.Factory here. The built-in memory service
	// backs the demo wiring.
	socketServer := ws.New(ws.Options{
		Sessions:       store,
		Handler:        h,
		Factory:        dataservice.MemoryFactory(dataservice.NewSampleMemory()),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log,
	})

	sessionHandler := handlers.NewSessionHandler(
		store,
		limiter,
		ratelimit.Limits{
			PerMinute: cfg.RateLimit.LoginPerMinute,
			PerHour:   cfg.RateLimit.LoginPerHour,
		},
		cfg.Cookie,
		cfg.Session.IdleTimeoutMinutes*60,
		log,
	)

	engine := httpRouter.SetupRouter(httpRouter.RouterDeps{
		SessionHandler: sessionHandler,
		SocketServer:   socketServer,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Mode:           cfg.Server.Mode,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "address", cfg.Server.GetAddr(), "mode", cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
		return err
	}

	log.Info("server exited gracefully")
	return nil
}
