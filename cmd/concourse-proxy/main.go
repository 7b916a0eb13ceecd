package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/concourse-proxy/internal/adapter/driven/backend"
	"github.com/ericfisherdev/concourse-proxy/internal/adapter/driven/memory"
	redisadapter "github.com/ericfisherdev/concourse-proxy/internal/adapter/driven/redis"
	"github.com/ericfisherdev/concourse-proxy/internal/adapter/driven/sealed"
	sqliteadapter "github.com/ericfisherdev/concourse-proxy/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/concourse-proxy/internal/adapter/driving/http"
	"github.com/ericfisherdev/concourse-proxy/internal/application"
	"github.com/ericfisherdev/concourse-proxy/internal/config"
	"github.com/ericfisherdev/concourse-proxy/internal/domain/port/driven"
)

const redisReadyTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := slog.Default()
	logger.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"backend_override", cfg.BackendURL,
		"store", cfg.Store,
		"kdf_digest", cfg.KDFDigest,
		"kdf_iterations", cfg.KDFIterations,
		"upstream_timeout", cfg.UpstreamTimeout,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the backing hash store.
	hash, closeStore, err := openHashStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// 4. Derive the encryption key before the store sees any traffic.
	store, err := sealed.Open(hash, sealed.KeyOptions{
		Secret:     cfg.Secret,
		Salt:       cfg.Salt,
		Iterations: cfg.KDFIterations,
		Digest:     cfg.KDFDigest,
	})
	if err != nil {
		return err
	}
	logger.Info("credential store ready")

	// 5. Wire services.
	client := backend.NewClient(cfg.UpstreamTimeout)
	creds := application.NewCredentialService(store, logger)
	tokens := application.NewTokenManager(creds, client, logger)
	proxy := application.NewProxyService(creds, tokens, client, logger)
	classifier := application.NewRequestClassifier(cfg.BackendURL)

	// 6. Create HTTP handler.
	handler := httphandler.NewServeMux(httphandler.NewHandler(classifier, proxy, creds, tokens, logger), logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	// Fan-out responses can take as long as the slowest backend call.
	if cfg.UpstreamTimeout > 0 {
		srv.WriteTimeout = cfg.UpstreamTimeout + 10*time.Second
	}

	go func() {
		logger.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// 7. Wait for shutdown signal.
	<-ctx.Done()
	logger.Info("shutting down")

	// 8. Graceful shutdown with 10s timeout for in-flight proxy requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// openHashStore builds the configured store backend. The returned func
// releases its resources.
func openHashStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (driven.HashStore, func(), error) {
	switch cfg.Store {
	case config.StoreRedis:
		store, err := redisadapter.New(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		if err := store.WaitReady(ctx, redisReadyTimeout); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		logger.Info("redis store connected")
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Error("error closing redis client", "error", err)
			}
		}, nil

	case config.StoreSQLite:
		db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		logger.Info("sqlite store opened", "path", cfg.DBPath)
		return sqliteadapter.NewHashRepo(db), func() {
			if err := db.Close(); err != nil {
				logger.Error("error closing database", "error", err)
			}
		}, nil

	default:
		store := memory.NewStore(cfg.StateFile, logger)
		store.Load()
		logger.Info("memory store ready", "state_file", cfg.StateFile)
		return store, func() {}, nil
	}
}
