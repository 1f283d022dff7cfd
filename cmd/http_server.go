package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/invoice-admin/api"
	"github.com/frahmantamala/invoice-admin/internal"
	"github.com/frahmantamala/invoice-admin/internal/audit"
	"github.com/frahmantamala/invoice-admin/internal/auth"
	authPostgres "github.com/frahmantamala/invoice-admin/internal/auth/postgres"
	authRedis "github.com/frahmantamala/invoice-admin/internal/auth/redis"
	"github.com/frahmantamala/invoice-admin/internal/authz"
	"github.com/frahmantamala/invoice-admin/internal/core/events"
	"github.com/frahmantamala/invoice-admin/internal/observability"
	"github.com/frahmantamala/invoice-admin/internal/permission"
	permissionPostgres "github.com/frahmantamala/invoice-admin/internal/permission/postgres"
	"github.com/frahmantamala/invoice-admin/internal/position"
	positionPostgres "github.com/frahmantamala/invoice-admin/internal/position/postgres"
	"github.com/frahmantamala/invoice-admin/internal/signup"
	signupPostgres "github.com/frahmantamala/invoice-admin/internal/signup/postgres"
	"github.com/frahmantamala/invoice-admin/internal/storage"
	"github.com/frahmantamala/invoice-admin/internal/transport"
	"github.com/frahmantamala/invoice-admin/internal/transport/rest"
	"github.com/frahmantamala/invoice-admin/internal/user"
	userPostgres "github.com/frahmantamala/invoice-admin/internal/user/postgres"
	"github.com/frahmantamala/invoice-admin/pkg/logger"
	"github.com/go-chi/chi"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *database
	Redis  *redis.Client
	Bus    *events.EventBus
	Router *chi.Mux
	Logger *slog.Logger
}

func (d *Dependencies) Close() {
	d.Bus.Wait()
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("redis close error", "error", err)
		}
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("database close error", "error", err)
	}
}

func startHTTPServer() {
	deps, err := initializeDependencies(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		deps.Close()
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("server failed to start", "error", err)
			deps.Close()
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Logging.Level, config.Observability.Logging.Format)
	lg := logger.LoggerWrapper()

	if _, err := api.Load(ctx); err != nil {
		return nil, fmt.Errorf("invalid embedded openapi document: %w", err)
	}

	db, err := initDB(config.Database, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps := &Dependencies{
		Config: config,
		DB:     db,
		Bus:    events.NewEventBus(lg),
		Router: chi.NewRouter(),
		Logger: lg,
	}

	auditStore, err := audit.NewStore(db.SQL)
	if err != nil {
		return nil, err
	}
	audit.NewSubscriber(auditStore, lg).Register(deps.Bus)

	metrics := observability.NewNopMetrics()
	if config.Observability.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(registry)
	}

	files, err := storage.New(ctx, storage.Config{
		Driver:         config.Storage.Driver,
		BasePath:       config.Storage.BasePath,
		S3Bucket:       config.Storage.S3Bucket,
		S3Region:       config.Storage.S3Region,
		S3Endpoint:     config.Storage.S3Endpoint,
		S3AccessKey:    config.Storage.S3AccessKey,
		S3SecretKey:    config.Storage.S3SecretKey,
		S3UsePathStyle: config.Storage.S3UsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	policy := auth.LockoutPolicy{
		MaxFailedAttempts: config.Security.MaxFailedAttempts,
		LockoutDuration:   config.Security.LockoutDuration,
	}.Normalize()

	var lockout auth.LockoutTracker = authPostgres.NewLockoutTracker(db.Gorm, policy)
	if config.Redis.Enabled {
		opts, err := redis.ParseURL(config.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		deps.Redis = redis.NewClient(opts)
		if err := deps.Redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		lockout = authRedis.NewLockoutTracker(deps.Redis, policy, "invoice-admin:lockout")
	}

	userRepo := userPostgres.NewUserRepository(db.Gorm)
	permissionRepo := permissionPostgres.NewPermissionRepository(db.Gorm)

	resolver := permission.NewResolver(permissionRepo)
	gate := authz.NewGate(resolver, userRepo, deps.Bus, metrics, lg)

	tokens := auth.NewJWTTokenGenerator(
		config.Security.JWTSecret,
		config.Security.JWTIssuer,
		config.Security.JWTAudience,
		config.Security.AccessTokenDuration,
	)

	authService := auth.NewService(authPostgres.NewRepository(db.Gorm), lockout, resolver, tokens, deps.Bus, metrics, lg)
	userService := user.NewService(userRepo, gate, resolver, files, deps.Bus, lg, config.Security.BCryptCost)
	permissionService := permission.NewService(permissionRepo, resolver, gate, deps.Bus, metrics, lg)
	positionService := position.NewService(positionPostgres.NewPositionRepository(db.Gorm), gate, deps.Bus, metrics, lg)
	signupService := signup.NewService(signupPostgres.NewSignupRepository(db.Gorm), gate, userService, deps.Bus, lg)

	base := transport.NewBaseHandler(lg)
	rest.RegisterAllRoutes(deps.Router, rest.Handlers{
		Health:         rest.NewHealthHandler(db.SQL, deps.Redis),
		Auth:           auth.NewHandler(base, authService),
		User:           user.NewHandler(base, userService),
		Permission:     permission.NewHandler(base, permissionService),
		Position:       position.NewHandler(base, positionService),
		Signup:         signup.NewHandler(base, signupService),
		Metrics:        metricsOrNil(config, metrics),
		MetricsPath:    config.Observability.Metrics.Path,
		AllowedOrigins: config.Server.AllowedOrigins,
	}, lg)

	return deps, nil
}

// metricsOrNil keeps /metrics unmounted when metrics are disabled.
func metricsOrNil(cfg *internal.Config, m *observability.Metrics) *observability.Metrics {
	if !cfg.Observability.Metrics.Enabled {
		return nil
	}
	return m
}
