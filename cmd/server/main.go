package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/stevenson-profiler/internal/api"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/cache"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/config"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/database"
	apperrors "github.com/ZanzyTHEbar/stevenson-profiler/internal/errors"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/hemodynamics"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/middleware"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/monitoring"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/ratelimit"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/resilience"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/security"
)

const redisServiceName = "redis"

func main() {
	// Structured logging setup; the level is raised or lowered once the
	// configuration is known
	appLogger := monitoring.NewLoggerTo(os.Stdout, slog.LevelInfo)
	slog.SetDefault(appLogger.Logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	appLogger.SetLevel(monitoring.ParseLevel(cfg.LogLevel))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, appLogger)
	if err != nil {
		slog.Error("Failed to initialize server", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	a.startBackground(ctx)

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		a.Close()
		os.Exit(1)
	}

	slog.Info("Server exited")
}

// app holds everything main wires together so tests can build it without
// listening on a port
type app struct {
	cfg        *config.Config
	logger     *monitoring.Logger
	server     *api.Server
	router     *gin.Engine
	health     *resilience.HealthMonitor
	tuningPath string
	closers    []namedCloser
}

type namedCloser struct {
	name string
	io.Closer
}

func newApp(ctx context.Context, cfg *config.Config, logger *monitoring.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	classifier, tuningPath, err := loadClassifier(cfg)
	if err != nil {
		return nil, err
	}
	a.tuningPath = tuningPath

	collector := monitoring.NewCollector()
	appMetrics := monitoring.NewMetrics().WithCollector(collector)

	appCache := cache.NewCache(cfg.CacheTTL, api.CachedPaths...)
	a.closers = append(a.closers, namedCloser{"response cache", appCache})

	a.health = resilience.NewHealthMonitor(resilience.DefaultHealthConfig())

	// Redis is optional; the limiter falls back to in-memory buckets
	var redisClient *ratelimit.RedisClient
	if cfg.RedisAddr != "" {
		err := resilience.RetryWithBackoff(ctx, 3, 200*time.Millisecond, func() error {
			var rerr error
			redisClient, rerr = ratelimit.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
			return rerr
		})
		if err != nil {
			slog.Warn("Redis unavailable, using in-memory rate limiting", "error", err)
		}
		if redisClient != nil {
			a.closers = append(a.closers, namedCloser{"redis client", redisClient})
			a.health.RegisterService(redisServiceName, redisClient.HealthCheck)
		}
	}

	limiterConfig := ratelimit.DefaultConfig()
	limiterConfig.IPLimitPerMin = cfg.RateLimitPerMin
	limiter := ratelimit.NewRateLimiter(redisClient, limiterConfig, appMetrics)
	a.closers = append(a.closers, namedCloser{"rate limiter", limiter})

	var evalLog *database.EvaluationLog
	if cfg.EvaluationLog {
		db, err := database.NewDB(cfg.DataDir)
		if err != nil {
			a.Close()
			return nil, apperrors.WrapError(err, "open evaluation log")
		}
		a.closers = append(a.closers, namedCloser{"evaluation log", db})

		evalLog = database.NewEvaluationLog(database.NewRepository(db)).WithHealth(a.health)
		a.health.RegisterService(database.ServiceName, evalLog.Ping)
	}

	securityConfig := security.DefaultSecurityConfig()
	securityConfig.AllowedOrigins = cfg.CORSOrigins
	securityConfig.EnableHSTS = cfg.EnableHSTS

	a.server = api.NewServer(classifier, api.Options{
		Metrics:       appMetrics,
		Logger:        logger,
		Collector:     collector,
		Cache:         appCache,
		Limiter:       limiter,
		Security:      security.NewSecurityMiddleware(securityConfig),
		Compression:   middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig()),
		EvaluationLog: evalLog,
		Health:        a.health,
	})
	a.router = a.server.Router()

	// Performance profiling endpoints (development only)
	if cfg.EnableProfiling {
		slog.Info("Enabling performance profiling endpoints")
		a.router.GET("/debug/pprof/*name", profilingHandler)
	}

	slog.Info("Classifier ready",
		"legacy_vitals", classifier.LegacyVitals(),
		"tuning_file", cfg.TuningFile,
		"tuning_profile", cfg.TuningProfile,
		"evaluation_log", cfg.EvaluationLog,
		"redis", redisClient.IsEnabled())

	return a, nil
}

// profilingHandler serves net/http/pprof from a single catch-all route
func profilingHandler(c *gin.Context) {
	switch strings.TrimPrefix(c.Param("name"), "/") {
	case "cmdline":
		pprof.Cmdline(c.Writer, c.Request)
	case "profile":
		pprof.Profile(c.Writer, c.Request)
	case "symbol":
		pprof.Symbol(c.Writer, c.Request)
	case "trace":
		pprof.Trace(c.Writer, c.Request)
	default:
		pprof.Index(c.Writer, c.Request)
	}
}

// loadClassifier builds the classifier from TUNING_FILE, a named profile
// under DATA_DIR/tuning, or the built-in table. It also returns the file to
// watch for live reloads, if any.
func loadClassifier(cfg *config.Config) (*hemodynamics.Classifier, string, error) {
	tuning := hemodynamics.DefaultTuning()
	watchPath := ""

	switch {
	case cfg.TuningFile != "":
		t, err := hemodynamics.LoadTuningFile(cfg.TuningFile)
		if err != nil {
			return nil, "", apperrors.WrapError(err, "load tuning file")
		}
		tuning = t
		watchPath = cfg.TuningFile
	case cfg.TuningProfile != "":
		t, err := hemodynamics.NewTuningStore(filepath.Join(cfg.DataDir, "tuning")).LoadTuning(cfg.TuningProfile)
		if err != nil {
			return nil, "", apperrors.WrapError(err, "load tuning profile %q", cfg.TuningProfile)
		}
		tuning = t
	}

	var opts []hemodynamics.Option
	if cfg.LegacyVitals {
		opts = append(opts, hemodynamics.WithLegacyVitals())
	}
	c, err := hemodynamics.NewClassifier(tuning, opts...)
	if err != nil {
		return nil, "", err
	}
	return c, watchPath, nil
}

// startBackground runs the health monitor and the tuning watcher until ctx
// is cancelled
func (a *app) startBackground(ctx context.Context) {
	go a.health.Start(ctx)

	if a.tuningPath == "" {
		return
	}
	go func() {
		err := hemodynamics.WatchTuning(ctx, a.tuningPath, func(t hemodynamics.Tuning) {
			if err := a.server.ReloadTuning(t); err != nil {
				slog.Error("Rejected tuning reload", "path", a.tuningPath, "error", err)
			}
		})
		if err != nil {
			slog.Error("Tuning watcher stopped", "path", a.tuningPath, "error", err)
		}
	}()
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		apperrors.SafeClose(a.closers[i], a.closers[i].name)
	}
	a.closers = nil
}
