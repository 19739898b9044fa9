// Package main provides the entry point for the access decision server
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/formhive/abac-core/internal/api/rest"
	"github.com/formhive/abac-core/internal/audit"
	"github.com/formhive/abac-core/internal/engine"
	"github.com/formhive/abac-core/internal/metrics"
	"github.com/formhive/abac-core/internal/policy"
	"github.com/formhive/abac-core/internal/sandbox"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	var (
		httpPort        = flag.Int("http-port", 8080, "HTTP server port")
		storeType       = flag.String("store", "memory", "Policy store backend (memory, dir, redis, postgres)")
		policyDir       = flag.String("policy-dir", "", "Directory to load policy files from")
		watchPolicies   = flag.Bool("watch", false, "Watch the policy directory and invalidate the cache on change")
		cacheTTL        = flag.Duration("cache-ttl", 5*time.Minute, "Policy cache TTL")
		sandboxTimeout  = flag.Duration("sandbox-timeout", 250*time.Millisecond, "Custom expression evaluation timeout")
		workers         = flag.Int("workers", 8, "Number of field filtering workers")
		noDefaults      = flag.Bool("no-default-policies", false, "Disable the built-in default policy set")
		configPath      = flag.String("config", "", "Path to YAML config file (redis, postgres, audit)")
		logLevel        = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		logFormat       = flag.String("log-format", "json", "Log format (json, console)")
		showVersion     = flag.Bool("version", false, "Show version information")
		gracefulTimeout = flag.Duration("shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("abac-server %s\n", Version)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
		os.Exit(0)
	}

	logger, err := initLogger(*logLevel, *logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting access decision server",
		zap.String("version", Version),
		zap.Int("http_port", *httpPort),
		zap.String("store", *storeType),
	)

	fileCfg, err := loadConfigFile(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config file", zap.Error(err))
	}

	sb, err := sandbox.New(sandbox.WithTimeout(*sandboxTimeout))
	if err != nil {
		logger.Fatal("Failed to initialize expression sandbox", zap.Error(err))
	}
	loader := policy.NewLoader(sb, logger)

	store, err := buildStore(*storeType, *policyDir, fileCfg, loader, logger)
	if err != nil {
		logger.Fatal("Failed to initialize policy store", zap.Error(err))
	}

	auditLogger, err := audit.NewLogger(fileCfg.auditLoggerConfig())
	if err != nil {
		logger.Fatal("Failed to initialize audit logger", zap.Error(err))
	}
	defer auditLogger.Close()

	promMetrics := metrics.NewPrometheusMetrics("abac")

	engCfg := engine.Config{
		CacheTTL:        *cacheTTL,
		SandboxTimeout:  *sandboxTimeout,
		ParallelWorkers: *workers,
		IncludeDefaults: !*noDefaults,
	}
	eng, err := engine.New(engCfg, store,
		engine.WithLogger(logger),
		engine.WithMetrics(promMetrics),
		engine.WithAuditLogger(auditLogger),
	)
	if err != nil {
		logger.Fatal("Failed to create engine", zap.Error(err))
	}
	defer eng.Close()

	logger.Info("Decision engine initialized",
		zap.Duration("cache_ttl", *cacheTTL),
		zap.Duration("sandbox_timeout", *sandboxTimeout),
		zap.Int("workers", *workers),
		zap.Bool("default_policies", !*noDefaults),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hot reload: a changed policy file invalidates the cached policy set
	if *watchPolicies && *policyDir != "" {
		watcher, err := policy.NewWatcher(*policyDir, func() {
			eng.InvalidateCache(context.Background())
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create policy watcher", zap.Error(err))
		}
		if err := watcher.Watch(ctx); err != nil {
			logger.Fatal("Failed to watch policy directory", zap.Error(err))
		}
		defer watcher.Stop()
		logger.Info("Watching policy directory", zap.String("dir", *policyDir))
	}

	restCfg := rest.DefaultConfig()
	restCfg.Port = *httpPort
	restCfg.Version = Version
	restCfg.MetricsHandler = promMetrics.HTTPHandler()

	srv, err := rest.New(restCfg, eng, logger)
	if err != nil {
		logger.Fatal("Failed to create REST server", zap.Error(err))
	}

	errChan := make(chan error, 1)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		if err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), *gracefulTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown error", zap.Error(err))
		}
	}

	if err := auditLogger.Flush(); err != nil {
		logger.Warn("Audit flush failed", zap.Error(err))
	}

	logger.Info("Server stopped")
}

// buildStore constructs the policy store named by storeType
func buildStore(storeType, policyDir string, fileCfg *FileConfig, loader *policy.Loader, logger *zap.Logger) (policy.Store, error) {
	switch storeType {
	case "memory":
		store := policy.NewMemoryStore()
		if policyDir != "" {
			loaded, err := loader.LoadFromDirectory(policyDir)
			if err != nil {
				return nil, fmt.Errorf("load policies from %s: %w", policyDir, err)
			}
			for _, p := range loaded {
				if err := store.Add(context.Background(), p); err != nil {
					return nil, fmt.Errorf("seed policy %s: %w", p.ID, err)
				}
			}
			logger.Info("Loaded policies", zap.Int("count", len(loaded)), zap.String("dir", policyDir))
		}
		return store, nil

	case "dir":
		if policyDir == "" {
			return nil, fmt.Errorf("store type dir requires -policy-dir")
		}
		return policy.NewFileStore(policyDir, loader), nil

	case "redis":
		cfg := policy.DefaultRedisConfig()
		if fileCfg.Redis != nil {
			cfg = fileCfg.Redis
		}
		return policy.NewRedisStore(cfg)

	case "postgres":
		if fileCfg.Postgres.DSN == "" {
			return nil, fmt.Errorf("store type postgres requires postgres.dsn in the config file")
		}
		return policy.NewPostgresStore(fileCfg.Postgres.DSN)

	default:
		return nil, fmt.Errorf("unknown store type: %s", storeType)
	}
}

// initLogger initializes the zap logger
func initLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	var config zap.Config
	if format == "console" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	return config.Build()
}
