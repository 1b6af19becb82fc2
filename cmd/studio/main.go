package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"

	studiohttp "github.com/Strob0t/Studio/internal/adapter/http"
	"github.com/Strob0t/Studio/internal/adapter/logsms"
	studionats "github.com/Strob0t/Studio/internal/adapter/nats"
	"github.com/Strob0t/Studio/internal/adapter/natskv"
	studiootel "github.com/Strob0t/Studio/internal/adapter/otel"
	"github.com/Strob0t/Studio/internal/adapter/postgres"
	"github.com/Strob0t/Studio/internal/adapter/razorpay"
	"github.com/Strob0t/Studio/internal/adapter/ristretto"
	"github.com/Strob0t/Studio/internal/adapter/tiered"
	"github.com/Strob0t/Studio/internal/adapter/ws"
	"github.com/Strob0t/Studio/internal/config"
	"github.com/Strob0t/Studio/internal/domain/plan"
	"github.com/Strob0t/Studio/internal/logger"
	"github.com/Strob0t/Studio/internal/middleware"
	"github.com/Strob0t/Studio/internal/port/notifier"
	"github.com/Strob0t/Studio/internal/resilience"
	"github.com/Strob0t/Studio/internal/secrets"
	"github.com/Strob0t/Studio/internal/service"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	var err error
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		err = runAdmin(os.Args[2:])
	} else {
		err = run(os.Args[1:])
	}
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"email_provider", cfg.Email.Provider,
		"pg_max_conns", cfg.Postgres.MaxConns,
	)

	vault, err := secrets.NewVault(secrets.EnvLoader(secrets.Keys...))
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}
	slog.Info("secrets loaded", "keys", vault.Loaded())
	if missing := vault.Missing(secrets.Required...); len(missing) > 0 {
		slog.Warn("required secrets not set", "keys", missing)
	}

	ctx := context.Background()

	// --- Telemetry ---

	shutdownOTEL, err := studiootel.Setup(ctx, cfg.OTEL, cfg.Logging.Service)
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

	metrics, err := studiootel.NewMetrics(otel.Meter(studiootel.MeterName))
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

	// Run migrations
	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// NATS
	queue, err := studionats.Connect(ctx, cfg.NATS.URL, cfg.NATS.Stream)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() {
		if err := queue.Drain(); err != nil {
			slog.Warn("nats drain", "error", err)
		}
	}()

	// Cache: ristretto L1 in front of a JetStream KV bucket
	l2kv, err := queue.KeyValue(ctx, cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
	if err != nil {
		return fmt.Errorf("cache bucket: %w", err)
	}
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB)
	if err != nil {
		return fmt.Errorf("l1 cache: %w", err)
	}
	defer l1.Close()
	appCache := tiered.New(l1, natskv.New(l2kv), cfg.Quota.PlanCacheTTL)

	idemKV, err := queue.KeyValue(ctx, cfg.Idempotency.Bucket, cfg.Idempotency.TTL)
	if err != nil {
		return fmt.Errorf("idempotency bucket: %w", err)
	}

	// --- Providers ---

	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout).
		WithClassifier(resilience.ServerFaults)
	gateway := razorpay.New(razorpay.Config{
		BaseURL:   cfg.Payment.BaseURL,
		KeyID:     cfg.Payment.KeyID,
		KeySecret: vault.Getter(secrets.PaymentKeySecret),
		Timeout:   cfg.Payment.Timeout,
	}, breaker)

	mail, err := notifier.New(cfg.Email.Provider, emailSettings(cfg.Email, vault))
	if err != nil {
		return fmt.Errorf("email provider %s: %w", cfg.Email.Provider, err)
	}
	slog.Info("email provider ready", "provider", mail.Name())

	// --- Services ---

	hub := ws.NewHub(cfg.Server.CORSOrigin)
	store := postgres.NewStore(pool)

	quotaSvc := service.NewQuotaService(store, appCache,
		plan.NewQuota(cfg.Quota.Participants, plan.Contact{Email: cfg.Quota.ContactEmail, URL: cfg.Quota.ContactURL}),
		cfg.Quota.PlanCacheTTL)
	quotaSvc.SetMetrics(metrics)

	notificationSvc := service.NewNotificationService(store, hub, queue)

	inviteSvc := service.NewInviteService(mail, logsms.Sender{}, quotaSvc, notificationSvc, cfg.Meetings.DispatchConcurrency)
	inviteSvc.SetMetrics(metrics)

	feed := service.NewMeetingFeed(appCache, hub, queue, cfg.Cache.L2TTL)
	cancelFeed, err := feed.Start(ctx)
	if err != nil {
		return fmt.Errorf("meeting feed: %w", err)
	}
	defer cancelFeed()

	meetingSvc := service.NewMeetingService(store, quotaSvc, notificationSvc, inviteSvc, feed, service.MeetingConfig{
		JoinBaseURL:     cfg.Meetings.JoinBaseURL,
		DefaultDuration: cfg.Meetings.DefaultDuration,
	})
	meetingSvc.SetMetrics(metrics)

	orderSvc := service.NewOrderService(store, gateway, cfg.Payment.Currency)
	orderSvc.SetMetrics(metrics)

	webhookSvc := service.NewWebhookService(store, notificationSvc, quotaSvc, queue, cfg.Payment.OrphanGrace)
	webhookSvc.SetMetrics(metrics)

	tenantSvc := service.NewTenantService(store, quotaSvc, notificationSvc)

	relay := service.NewEventRelay(queue, hub)
	cancelRelay, err := relay.Start(ctx)
	if err != nil {
		return fmt.Errorf("event relay: %w", err)
	}
	defer cancelRelay()

	retention := service.NewRetentionService(store, cfg.Retention.Schedule, cfg.Retention.WebhookEvents)
	if err := retention.Start(); err != nil {
		return err
	}
	defer retention.Stop()

	// --- HTTP ---

	handlers := &studiohttp.Handlers{
		Orders:        orderSvc,
		Webhooks:      webhookSvc,
		Quota:         quotaSvc,
		Meetings:      meetingSvc,
		Invites:       inviteSvc,
		Notifications: notificationSvc,
		Tenants:       tenantSvc,
		EventIDHeader: cfg.Payment.EventIDHeader,
		Ready: map[string]studiohttp.Pinger{
			"postgres": store,
			"nats":     queue,
		},
	}

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopCleanup()

	verifier := middleware.NewJWTVerifier(vault.Getter(secrets.JWTSecret), cfg.Auth.Issuer, cfg.Auth.Audience)
	if !cfg.Auth.Enabled {
		slog.Warn("authentication disabled, requests run as the development user")
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(studiootel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(studiohttp.CORS(cfg.Server.CORSOrigin))
	r.Use(studiohttp.SecurityHeaders)
	r.Use(studiohttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	studiohttp.MountRoutes(r, handlers, studiohttp.RouteConfig{
		Webhook: studiohttp.WebhookAuth{
			Secret:   vault.Getter(secrets.PaymentWebhookSecret),
			Header:   cfg.Payment.SignatureHeader,
			Required: cfg.Payment.RequireSignature,
		},
		Protected: []func(http.Handler) http.Handler{
			middleware.Auth(verifier, cfg.Auth.Enabled),
			middleware.TenantID,
			limiter.Handler,
			middleware.Idempotency(natskv.New(idemKV), cfg.Idempotency.TTL),
		},
		Roles: store,
		WS:    hub.HandleWS,
	})

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// SIGHUP reloads secrets; SIGINT/SIGTERM shut down.
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)
	go func() {
		for range reload {
			changed, err := vault.Reload()
			if err != nil {
				slog.Error("secrets reload failed", "error", err)
				continue
			}
			slog.Info("secrets reloaded", "changed", changed)
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-done:
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	// Invite dispatches started by requests outlive them; let them finish.
	meetingSvc.Wait()
	slog.Info("shutdown complete")
	return nil
}

// emailSettings maps the email config onto the provider factory settings.
// Unused keys are ignored by each factory.
func emailSettings(cfg config.Email, vault *secrets.Vault) map[string]string {
	return map[string]string{
		"from":     cfg.From,
		"base_url": cfg.BaseURL,
		"timeout":  cfg.Timeout.String(),
		"api_key":  vault.Get(secrets.EmailAPIKey),
		"host":     cfg.SMTPHost,
		"port":     strconv.Itoa(cfg.SMTPPort),
		"user":     cfg.SMTPUser,
		"password": vault.Get(secrets.SMTPPassword),
	}
}
