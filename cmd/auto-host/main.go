package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/AUTO-HOST/auto-host-backend/internal/api"
	"github.com/AUTO-HOST/auto-host-backend/internal/bucket"
	"github.com/AUTO-HOST/auto-host-backend/internal/config"
	"github.com/AUTO-HOST/auto-host-backend/internal/db"
	"github.com/AUTO-HOST/auto-host-backend/internal/docstore"
	"github.com/AUTO-HOST/auto-host-backend/internal/market"
	"github.com/AUTO-HOST/auto-host-backend/internal/metrics"
	"github.com/AUTO-HOST/auto-host-backend/internal/ratelimit"
	"github.com/AUTO-HOST/auto-host-backend/internal/store"
)

// revocationPurgeInterval is how often expired token revocations are dropped.
const revocationPurgeInterval = time.Hour

// Log file rotation.
const (
	logMaxSizeMB  = 100
	logMaxBackups = 5
	logMaxAgeDays = 28
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. INFO/WARN go to stdout, ERROR goes
// to stderr. If logPath is non-empty, all levels are also written to that
// file, which is rotated by size.
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var cleanup func()

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		// lumberjack opens lazily; check the path now.
		check, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		check.Close()

		f := &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    logMaxSizeMB,
			MaxBackups: logMaxBackups,
			MaxAge:     logMaxAgeDays,
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	handler := &levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

func main() {
	fs := flag.NewFlagSet("auto-host", flag.ContinueOnError)

	var envFile string
	fs.StringVar(&envFile, "env", "", "")
	fs.StringVar(&envFile, "e", "", "")

	var logPath string
	fs.StringVar(&logPath, "log", "", "")
	fs.StringVar(&logPath, "l", "", "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: auto-host [flags]

Settings are read from the environment, after loading the env file.

Flags:
  -e, -env <path>   env file to load (default: .env if present)
  -l, -log <path>   log file path, overrides LOG_FILE
  -h, -help         show this help and exit
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if logPath == "" {
		logPath = cfg.LogFile
	}

	closeLog, err := setupLogger(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		if closeLog != nil {
			closeLog()
		}
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		return fmt.Errorf("ensuring database schema: %w", err)
	}
	slog.Info("database ready", "path", cfg.DatabasePath)

	// Without a configured secret, tokens are signed with a key generated on
	// first run and kept in the database.
	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		if jwtSecret, err = store.GetSigningKey(ctx, database); err != nil {
			return fmt.Errorf("loading signing key: %w", err)
		}
	}

	docs, err := openDocStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := docs.Close(closeCtx); err != nil {
			slog.Error("closing document store", "error", err)
		}
	}()

	images, err := bucket.Open(ctx, cfg.BlobBucketURL, cfg.BlobPublicBaseURL)
	if err != nil {
		return fmt.Errorf("opening image bucket: %w", err)
	}
	defer images.Close()

	var authLimiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		limiter, err := ratelimit.OpenRedis(ctx, cfg.RedisURL, cfg.AuthRatePerMinute)
		if err != nil {
			return fmt.Errorf("opening rate limiter: %w", err)
		}
		defer limiter.Close()
		authLimiter = limiter
		slog.Info("auth rate limit enabled", "perMinute", cfg.AuthRatePerMinute)
	}

	m := metrics.New()
	orders := market.NewOrders(database, docs, m)

	server := &http.Server{
		Addr: cfg.Addr(),
		Handler: api.NewRouter(api.Deps{
			DB:                database,
			Docs:              docs,
			Images:            images,
			Metrics:           m,
			JWTSecret:         jwtSecret,
			TokenTTL:          cfg.TokenTTL,
			RequireMembership: cfg.RequireMembership,
			Orders:            orders,
			AuthLimiter:       authLimiter,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server started", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		return orders.RunReconciler(gctx, cfg.ReconcileInterval, cfg.ReconcileAfter)
	})

	g.Go(func() error {
		purgeRevocations(gctx, database)
		return nil
	})

	err = g.Wait()
	slog.Info("server stopped, closing stores")
	return err
}

func openDocStore(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	if cfg.DocStore == config.DocStoreMemory {
		slog.Warn("using in-memory document store, data is lost on restart")
		return docstore.NewMemory(), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	docs, err := docstore.OpenMongo(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, fmt.Errorf("opening document store: %w", err)
	}
	slog.Info("document store ready", "database", cfg.MongoDatabase)
	return docs, nil
}

// purgeRevocations periodically drops revocations of tokens that have
// expired anyway.
func purgeRevocations(ctx context.Context, database *sql.DB) {
	ticker := time.NewTicker(revocationPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpiredRevocations(ctx, database, time.Now())
			if err != nil {
				slog.Error("purging token revocations", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("purged token revocations", "count", n)
			}
		}
	}
}
