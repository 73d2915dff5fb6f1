package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/project-tracker/internal/auth"
	"github.com/ayush/project-tracker/internal/config"
	"github.com/ayush/project-tracker/internal/docs"
	"github.com/ayush/project-tracker/internal/logging"
	"github.com/ayush/project-tracker/internal/projects"
	"github.com/ayush/project-tracker/internal/server"
	"github.com/ayush/project-tracker/internal/store"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

// appStore is what every storage driver provides.
type appStore interface {
	auth.UserStore
	projects.ProjectStore
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info(ctx, "starting", "version", version, "config", cfg.String())

	// ── Storage ──────────────────────────────────────────────
	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// ── Auth ─────────────────────────────────────────────────
	tokens := auth.NewTokenCodec(cfg.JWTSecret, cfg.JWTTTL)
	authSvc := auth.NewService(st, auth.NewBcryptHasher(cfg.BcryptCost), tokens)

	if cfg.SeedAdmin() {
		created, err := authSvc.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		log.Info(ctx, "admin account ready", "email", cfg.AdminEmail, "created", created)
	}

	// ── API docs ─────────────────────────────────────────────
	doc, err := docs.New(version)
	if err != nil {
		return err
	}
	if cfg.MinioEndpoint != "" {
		publishDocs(ctx, cfg, doc, log)
	}

	// ── Router ───────────────────────────────────────────────
	router := server.NewRouter(server.Deps{
		Auth:              auth.NewHandler(authSvc, log),
		Projects:          projects.NewHandler(projects.NewService(st), log),
		Tokens:            tokens,
		Docs:              doc,
		Log:               log,
		CORSOrigins:       cfg.CORSOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", "addr", srv.Addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log logging.Logger) (appStore, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres ping: %w", err)
		}
		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrate: %w", err)
		}
		return pg, pool.Close, nil

	case config.DriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connect: %w", err)
		}
		disconnect := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Warn(context.Background(), "mongo disconnect", "error", err)
			}
		}
		if err := client.Ping(ctx, nil); err != nil {
			disconnect()
			return nil, nil, fmt.Errorf("mongo ping: %w", err)
		}
		ms := store.NewMongoStore(client.Database(cfg.MongoDB))
		if err := ms.Migrate(ctx); err != nil {
			disconnect()
			return nil, nil, fmt.Errorf("mongo migrate: %w", err)
		}
		return ms, disconnect, nil

	default:
		log.Warn(ctx, "using in-memory store; data is lost on restart")
		return store.NewMemoryStore(), func() {}, nil
	}
}

// publishDocs uploads the API document. Failures are logged and ignored.
func publishDocs(ctx context.Context, cfg *config.Config, doc *docs.Document, log logging.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	minioStore, err := store.NewMinioStore(ctx,
		cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey,
		cfg.MinioBucket, cfg.MinioUseSSL,
	)
	if err != nil {
		log.Warn(ctx, "docs publish skipped", "error", err)
		return
	}
	if err := docs.Publish(ctx, minioStore, doc); err != nil {
		log.Warn(ctx, "docs publish failed", "error", err)
		return
	}
	log.Info(ctx, "docs published", "bucket", cfg.MinioBucket, "key", docs.ObjectKey)
}
