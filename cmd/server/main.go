package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	docs "github.com/cyplat/gandalf/docs"
	"github.com/cyplat/gandalf/internal/auth"
	"github.com/cyplat/gandalf/internal/config"
	"github.com/cyplat/gandalf/internal/domain"
	api "github.com/cyplat/gandalf/internal/http"
	"github.com/cyplat/gandalf/internal/log"
	"github.com/cyplat/gandalf/internal/mail"
	"github.com/cyplat/gandalf/internal/metrics"
	"github.com/cyplat/gandalf/internal/queue"
	"github.com/cyplat/gandalf/internal/repo"
	"github.com/cyplat/gandalf/internal/security"
	"github.com/cyplat/gandalf/internal/user"
)

// @title Gandalf Identity API
// @version 0.1.0
// @description User registration and lookup.
// @schemes http https
// @BasePath /
func main() {
	cfg := config.Load()

	lg, err := log.Init(cfg.Env == "dev")
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	tracer.Start(tracer.WithService("gandalf"), tracer.WithLogStartup(false))
	defer tracer.Stop()

	metrics.MustRegister()

	// misconfigured hashing must stop the process before it accepts traffic
	params, err := cfg.Argon2()
	if err != nil {
		lg.Fatal("argon2 config", zap.Error(err))
	}
	hasher, err := security.NewArgon2Hasher(params)
	if err != nil {
		lg.Fatal("argon2 hasher", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	users, closeStore := openStore(ctx, cfg, lg)
	defer closeStore()

	notifier, closeNotifier := openNotifier(cfg, lg)
	defer closeNotifier()

	svc := user.NewService(users, cfg.DefaultDataRegion)
	emailPassword := auth.NewEmailPassword(svc, hasher, auth.NewEmailValidator(), notifier, lg, auth.Options{
		PasswordMinLength: cfg.PasswordMinLength,
		NotifyTimeout:     cfg.NotifyTimeout,
	})
	registry := auth.NewRegistry(map[auth.Method]auth.Strategy{
		auth.MethodEmailPassword: emailPassword,
	})

	var limiter api.Limiter
	if cfg.RateLimitPerMin > 0 {
		limiter = api.NewRateLimiter(cfg.RateLimitPerMin, time.Minute)
		if cfg.RedisAddr != "" {
			rds := repo.NewRedis(cfg.RedisAddr)
			defer rds.Close()
			if err := rds.Ping(ctx); err != nil {
				lg.Warn("redis unavailable, using in-process rate limiter", zap.Error(err))
			} else {
				limiter = repo.NewRedisLimiter(rds, "register", cfg.RateLimitPerMin, time.Minute)
			}
		}
	}

	docs.SwaggerInfo.BasePath = "/"

	h := api.NewHandler(registry, svc, users, lg)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(h, limiter),
		ReadHeaderTimeout: 5 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.ListenAndServe() }()
	lg.Info("gandalf listening", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver),
		zap.Strings("methods", methodNames(registry)))

	select {
	case <-ctx.Done():
		lg.Info("shutting down")
	case err := <-srvErr:
		if !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("http shutdown", zap.Error(err))
	}
	emailPassword.Wait()
}

func openStore(ctx context.Context, cfg config.Config, lg *zap.Logger) (domain.UserRepository, func()) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	switch cfg.StoreDriver {
	case "memory":
		lg.Warn("using in-memory store; data is lost on restart")
		return repo.NewUserMemory(), func() {}
	case "mongo":
		store, err := repo.NewStore(cctx, cfg.MongoURI, cfg.MongoDB, uint64(cfg.DBMaxConns))
		if err != nil {
			lg.Fatal("mongo connect", zap.Error(err))
		}
		if err := store.EnsureUserIndexes(cctx); err != nil {
			lg.Fatal("mongo indexes", zap.Error(err))
		}
		return repo.NewUserMongo(store), func() { _ = store.Close(context.Background()) }
	case "postgres", "":
		pool, err := repo.Connect(cctx, cfg.DatabaseURL, repo.PGOptions{
			MaxConns:       cfg.DBMaxConns,
			AcquireTimeout: cfg.DBAcquireTimeout,
		})
		if err != nil {
			lg.Fatal("postgres connect", zap.Error(err))
		}
		if cfg.DBMigrateOnStart {
			if err := repo.Migrate(cctx, pool, lg); err != nil {
				lg.Fatal("migrate", zap.Error(err))
			}
		}
		return repo.NewUserPG(pool, cfg.DBAcquireTimeout), pool.Close
	default:
		lg.Fatal("unknown STORE_DRIVER", zap.String("driver", cfg.StoreDriver))
		return nil, nil
	}
}

// openNotifier prefers the broker; without one, mail goes out in-process.
func openNotifier(cfg config.Config, lg *zap.Logger) (auth.Notifier, func()) {
	if cfg.RabbitURL != "" {
		pub, err := queue.NewRabbit(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			lg.Fatal("rabbit publisher init failed", zap.Error(err))
		}
		return queue.NewVerificationNotifier(pub, cfg.RabbitExchange), func() { _ = pub.Close() }
	}
	if cfg.SMTPHost != "" {
		s, err := mail.NewSMTPSender(cfg.SMTP(), cfg.VerifyURLBase, lg)
		if err != nil {
			lg.Fatal("smtp sender", zap.Error(err))
		}
		return s, func() {}
	}
	lg.Warn("no RABBIT_URL or SMTP_HOST; verification links are only logged")
	return mail.NewLogSender(cfg.VerifyURLBase, lg), func() {}
}

func methodNames(r *auth.Registry) []string {
	var out []string
	for _, m := range r.Methods() {
		out = append(out, string(m))
	}
	return out
}
