package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/tutorhub/internal/accounts"
	"github.com/geocoder89/tutorhub/internal/auth"
	"github.com/geocoder89/tutorhub/internal/config"
	"github.com/geocoder89/tutorhub/internal/db"
	httpx "github.com/geocoder89/tutorhub/internal/http"
	"github.com/geocoder89/tutorhub/internal/http/handlers"
	"github.com/geocoder89/tutorhub/internal/http/middlewares"
	"github.com/geocoder89/tutorhub/internal/notifications"
	"github.com/geocoder89/tutorhub/internal/observability"
	"github.com/geocoder89/tutorhub/internal/redisclient"
	"github.com/geocoder89/tutorhub/internal/repo/memory"
	"github.com/geocoder89/tutorhub/internal/repo/postgres"
	"github.com/geocoder89/tutorhub/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// devSecret signs tokens when dev/test runs without JWT_SECRET.
const devSecret = "tutorhub-dev-secret-do-not-use-in-prod"

type userStore interface {
	httpx.UserStore
	accounts.Store
	auth.UserFinder
}

func main() {
	// Load the config set up
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName: cfg.OTelServiceName,
		Env:         cfg.Env,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	checks := map[string]handlers.Check{}

	// storage
	var users userStore
	switch cfg.StorageDriver {
	case "memory":
		log.Warn("using in-memory storage; accounts are lost on restart")
		users = memory.NewUsersRepo()
	default:
		pool, err := db.NewPool(cfg.DBURL, cfg.DBMaxConns)
		if err != nil {
			log.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool, log); err != nil {
			log.Error("db migrate failed", "err", err)
			os.Exit(1)
		}

		users = postgres.NewUsersRepo(pool, prom)
		checks["db"] = pool.Ping
	}

	// tokens
	signer, err := newSigner(cfg, log)
	if err != nil {
		log.Error("jwt signer init failed", "err", err)
		os.Exit(1)
	}
	tokens := auth.NewManager(signer, cfg.JWTIssuer, cfg.JWTTTL)
	authn := auth.NewAuthenticator(tokens, users, auth.DefaultExtractors(cfg.CookieName)...)

	hasher := security.NewHasher(cfg.BcryptCost)

	notifier := notifications.NewProtectedNotifier(
		notifications.NewLogNotifier(log),
		notifications.ProtectedNotifierConfig{Timeout: 2 * time.Second},
	)

	provisioner := accounts.NewProvisioner(users, hasher,
		accounts.WithNotifier(notifier),
		accounts.WithMetrics(prom),
		accounts.WithLogger(log),
	)

	if err := db.SeedAccounts(ctx, provisioner, cfg, log); err != nil {
		log.Error("seed accounts failed", "err", err)
		os.Exit(1)
	}

	// rate limit counters
	var limits middlewares.Counter = middlewares.NewMemoryCounter()
	if cfg.RedisAddr != "" {
		rdb := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx); err != nil {
			log.Warn("redis unreachable at startup", "addr", cfg.RedisAddr, "err", err)
		}
		limits = rdb
		checks["redis"] = rdb.Ping
	}

	router := httpx.NewRouter(httpx.Deps{
		Config:    cfg,
		Log:       log,
		Prom:      prom,
		Gatherer:  reg,
		Users:     users,
		Accounts:  provisioner,
		Passwords: hasher,
		Tokens:    tokens,
		Authn:     authn,
		Limits:    limits,
		Checks:    checks,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "storage", cfg.StorageDriver, "jwt_alg", signer.Method().Alg())
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("tracer shutdown failed", "err", err)
	}

	log.Info("shutdown complete")
}

func newSigner(cfg config.Config, log *slog.Logger) (auth.Signer, error) {
	secret := cfg.JWTSecret
	if cfg.JWTAlgorithm == auth.AlgHS256 && secret == "" && cfg.IsLocal() {
		log.Warn("JWT_SECRET not set; using the development secret")
		secret = devSecret
	}

	if cfg.JWTAlgorithm == auth.AlgRS256 && cfg.JWTPrivateKey == "" && cfg.IsLocal() {
		log.Warn("JWT_PRIVATE_KEY not set; generating an ephemeral RSA key")
		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, err
		}
		return auth.NewRSASigner(priv, nil)
	}

	return auth.NewSigner(auth.SignerConfig{
		Algorithm:     cfg.JWTAlgorithm,
		Secret:        secret,
		PrivateKeyPEM: cfg.JWTPrivateKey,
		PublicKeyPEM:  cfg.JWTPublicKey,
	})
}
