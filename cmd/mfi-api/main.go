package main

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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	cfhttp "github.com/Strob0t/mfi-api/internal/adapter/http"
	"github.com/Strob0t/mfi-api/internal/adapter/localfs"
	cfnats "github.com/Strob0t/mfi-api/internal/adapter/nats"
	"github.com/Strob0t/mfi-api/internal/adapter/natskv"
	cfotel "github.com/Strob0t/mfi-api/internal/adapter/otel"
	"github.com/Strob0t/mfi-api/internal/adapter/postgres"
	"github.com/Strob0t/mfi-api/internal/adapter/ristretto"
	s3store "github.com/Strob0t/mfi-api/internal/adapter/s3"
	"github.com/Strob0t/mfi-api/internal/adapter/tiered"
	"github.com/Strob0t/mfi-api/internal/config"
	"github.com/Strob0t/mfi-api/internal/logger"
	"github.com/Strob0t/mfi-api/internal/middleware"
	auditport "github.com/Strob0t/mfi-api/internal/port/audit"
	"github.com/Strob0t/mfi-api/internal/port/blobstore"
	"github.com/Strob0t/mfi-api/internal/port/cache"
	"github.com/Strob0t/mfi-api/internal/resilience"
	"github.com/Strob0t/mfi-api/internal/secrets"
	"github.com/Strob0t/mfi-api/internal/service"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	var err error
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		err = runAdmin(os.Args[2:])
	} else {
		err = run()
	}
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"version", version,
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
		"blob_driver", cfg.Blob.Driver,
		"auth_enabled", cfg.Auth.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Secrets ---
	vault, err := secrets.NewVault(secrets.EnvLoader(cfg.Auth.SecretEnv))
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}
	if cfg.Auth.Enabled && vault.Get(cfg.Auth.SecretEnv) == "" {
		return fmt.Errorf("auth enabled but %s is not set", cfg.Auth.SecretEnv)
	}
	vault.ReloadOn(ctx, syscall.SIGHUP)

	// --- Telemetry ---
	shutdownOTEL, err := cfotel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()
	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	store := postgres.NewStore(pool)

	probes := map[string]cfhttp.Probe{"postgres": store.Ping}

	// Authorization cache: ristretto L1, NATS KV L2 when available.
	var authzCache cache.Cache
	if cfg.Authz.CacheTTL > 0 {
		l1, err := ristretto.New(cfg.Authz.CacheMaxMB)
		if err != nil {
			return fmt.Errorf("authz cache: %w", err)
		}
		defer l1.Close()
		authzCache = l1
	}

	// NATS (optional)
	var (
		recorder  auditport.Recorder = service.NewStoreRecorder(store)
		idemStore cache.Cache
	)
	if cfg.NATS.URL != "" {
		queue, err := cfnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.AuditStream, auditport.SubjectEvents)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() {
			if err := queue.Drain(); err != nil {
				slog.Warn("nats drain", "error", err)
			}
		}()
		probes["nats"] = func(context.Context) error {
			if !queue.IsConnected() {
				return errors.New("disconnected")
			}
			return nil
		}

		cancelSink, err := service.StartAuditSink(ctx, queue, store)
		if err != nil {
			return fmt.Errorf("audit sink: %w", err)
		}
		defer cancelSink()
		recorder = service.NewQueueRecorder(queue)

		if cfg.Idempotency.Bucket != "" {
			kv, err := queue.KeyValue(ctx, cfg.Idempotency.Bucket, cfg.Idempotency.TTL)
			if err != nil {
				return fmt.Errorf("idempotency kv: %w", err)
			}
			idemStore = natskv.New(kv)
		}
		if authzCache != nil && cfg.Authz.CacheBucket != "" {
			kv, err := queue.KeyValue(ctx, cfg.Authz.CacheBucket, cfg.Authz.CacheTTL)
			if err != nil {
				return fmt.Errorf("authz kv: %w", err)
			}
			authzCache = tiered.New(authzCache, natskv.New(kv), cfg.Authz.CacheTTL)
		}
	}

	// Logo storage
	blobs, assets, err := newBlobStore(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}

	// --- Services ---
	trail := service.NewAuditTrail(recorder)
	breaker := resilience.NewNamedBreaker("blob", cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	mfiSvc := service.NewMFIService(store, blobs, breaker, trail)
	mfiSvc.SetMetrics(metrics)
	branchSvc := service.NewBranchService(store, trail)
	branchSvc.SetMetrics(metrics)
	authzSvc := service.NewAuthzService(store)
	authzSvc.SetCache(authzCache, cfg.Authz.CacheTTL)

	// --- HTTP ---
	handlers := &cfhttp.Handlers{
		MFIs:      mfiSvc,
		Branches:  branchSvc,
		BodyLimit: cfg.Server.BodyLimit,
		Probes:    probes,
	}

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopCleanup()

	r := chi.NewRouter()

	// Middleware
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cfotel.HTTPMiddleware(cfg.OTEL.ServiceName))
	r.Use(cfhttp.Logger)
	r.Use(cfhttp.SecurityHeaders)
	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
	r.Use(middleware.Auth(func() []byte { return vault.Bytes(cfg.Auth.SecretEnv) }, cfg.Auth.Issuer, cfg.Auth.Enabled))
	r.Use(limiter.Handler)
	if idemStore != nil {
		r.Use(middleware.Idempotency(idemStore, cfg.Idempotency.TTL))
	}

	cfhttp.MountRoutes(r, handlers, authzSvc, assets)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.RequestTimeout,
		WriteTimeout:      cfg.Server.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// newBlobStore builds the logo store for cfg. The returned handler serves
// locally stored files and is nil for remote drivers.
func newBlobStore(ctx context.Context, cfg config.Blob) (blobstore.Store, http.Handler, error) {
	switch cfg.Driver {
	case "s3":
		s, err := s3store.New(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	default:
		s, err := localfs.New(cfg.LocalDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Handler(), nil
	}
}
