package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	httpadapter "github.com/kirillkom/prashnly-client/internal/adapters/http"
	"github.com/kirillkom/prashnly-client/internal/config"
	"github.com/kirillkom/prashnly-client/internal/core/navigation"
	"github.com/kirillkom/prashnly-client/internal/core/ports"
	"github.com/kirillkom/prashnly-client/internal/core/usecase"
	"github.com/kirillkom/prashnly-client/internal/infrastructure/backend/rest"
	"github.com/kirillkom/prashnly-client/internal/infrastructure/backend/rest/contract"
	"github.com/kirillkom/prashnly-client/internal/infrastructure/preflight"
	natsrealtime "github.com/kirillkom/prashnly-client/internal/infrastructure/realtime/nats"
	wsrealtime "github.com/kirillkom/prashnly-client/internal/infrastructure/realtime/websocket"
	"github.com/kirillkom/prashnly-client/internal/infrastructure/repository/sqlstore"
	"github.com/kirillkom/prashnly-client/internal/infrastructure/resilience"
	"github.com/kirillkom/prashnly-client/internal/infrastructure/sharestore"
	"github.com/kirillkom/prashnly-client/internal/observability/logging"
	"github.com/kirillkom/prashnly-client/internal/observability/metrics"
)

type Options struct {
	// Service names the process in logs and metrics.
	Service string
	// Notifier receives the notices of every view built by the app.
	Notifier ports.Notifier
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Client     *rest.Client
	Subscriber ports.ProgressSubscriber
	Preflight  *preflight.Checker
	Metrics    *metrics.ClientMetrics

	Session *usecase.Session
	Guard   *navigation.Guard
	Auth    *usecase.Auth
	Share   *usecase.ShareAccess
	Chat    *usecase.ChatService
	Billing *usecase.Billing

	service  string
	notifier ports.Notifier
	checks   []httpadapter.ReadinessCheck
	closeFn  func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	service := opts.Service
	if service == "" {
		service = "prashnly"
	}

	logger, logCloser, err := logging.New(service, logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(logger)

	var closers []io.Closer
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				slog.Warn("close_failed", "error", err)
			}
		}
		_ = logCloser.Close()
	}
	fail := func(err error) (*App, error) {
		closeAll()
		return nil, err
	}

	db, err := sqlstore.OpenDB(cfg.SessionDriver, cfg.SessionDSN)
	if err != nil {
		return fail(fmt.Errorf("open session store: %w", err))
	}
	closers = append(closers, db)
	kv := sqlstore.NewKVStore(db, cfg.SessionDriver)
	if err := kv.EnsureSchema(ctx); err != nil {
		return fail(fmt.Errorf("ensure schema: %w", err))
	}

	checks := []httpadapter.ReadinessCheck{{Name: "session_store", Check: db.PingContext}}

	shareStore, redisClient, err := openShareStore(ctx, cfg, kv)
	if err != nil {
		return fail(err)
	}
	if redisClient != nil {
		closers = append(closers, redisClient)
		checks = append(checks, httpadapter.ReadinessCheck{Name: "share_store", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}

	clientMetrics := metrics.NewClientMetrics(service)

	executor := resilience.NewExecutor(resilience.Config{
		RateLimit:               cfg.APIRateLimitRPS,
		RateBurst:               cfg.APIRateLimitBurst,
		BreakerEnabled:          cfg.BreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.BreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.BreakerFailureRatio,
		BreakerOpenTimeout:      cfg.BreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: 1,
	})
	executor.OnStateChange(clientMetrics.BreakerStateChanged)

	var validator *contract.Validator
	if cfg.ContractValidation {
		validator, err = rest.NewValidatorFor(ctx, cfg.APIURL)
		if err != nil {
			return fail(fmt.Errorf("load api contract: %w", err))
		}
	}

	client, err := rest.NewWithOptions(cfg.APIURL, rest.Options{
		Timeout:   cfg.HTTPTimeout,
		Executor:  executor,
		Validator: validator,
		Observer:  clientMetrics,
	})
	if err != nil {
		return fail(fmt.Errorf("init api client: %w", err))
	}

	subscriber, err := openSubscriber(cfg)
	if err != nil {
		return fail(err)
	}
	if c, ok := subscriber.(io.Closer); ok {
		closers = append(closers, c)
	}

	session, share, auth := newAccess(client, kv, shareStore)

	app := &App{
		Config: cfg,
		Logger: logger,

		Client:     client,
		Subscriber: subscriber,
		Preflight:  preflight.NewChecker(cfg.UploadMaxBytes),
		Metrics:    clientMetrics,

		Session: session,
		Guard:   navigation.NewGuard(kv),
		Auth:    auth,
		Share:   share,
		Chat: usecase.NewChatService(client, share.CredentialsFor, usecase.ChatOptions{
			Greeting: cfg.ChatGreeting,
		}),
		Billing: usecase.NewBilling(client, session, opts.Notifier),

		service:  service,
		notifier: opts.Notifier,
		checks:   checks,
		closeFn:  closeAll,
	}

	slog.Info("client_ready",
		"api_url", cfg.APIURL,
		"realtime", cfg.RealtimeTransport,
		"session_driver", cfg.SessionDriver,
		"share_store", cfg.ShareStore,
		"config_file", cfg.File,
	)
	return app, nil
}

type accessGateway interface {
	ports.AuthGateway
	ports.ShareGateway
}

// newAccess wires the session, share unlocks and auth over the session
// store. Logout drops the unlocks too.
func newAccess(gateway accessGateway, kv, shareStore ports.KeyValueStore) (*usecase.Session, *usecase.ShareAccess, *usecase.Auth) {
	session := usecase.NewSession(kv)
	share := usecase.NewShareAccess(gateway, shareStore, session)
	auth := usecase.NewAuth(gateway, session)
	auth.OnLogout(share.Forget)
	return session, share, auth
}

func openShareStore(ctx context.Context, cfg config.Config, kv *sqlstore.KVStore) (ports.KeyValueStore, *redis.Client, error) {
	switch cfg.ShareStore {
	case config.ShareStoreSession:
		return sharestore.NewDurable(kv, cfg.ShareAccessTTL), nil, nil
	case config.ShareStoreRedis:
		client, err := sharestore.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, fmt.Errorf("init share store: %w", err)
		}
		return sharestore.NewRedis(client, cfg.ShareAccessTTL), client, nil
	default:
		return sharestore.NewMemory(cfg.ShareAccessTTL), nil, nil
	}
}

func openSubscriber(cfg config.Config) (ports.ProgressSubscriber, error) {
	if cfg.RealtimeTransport == config.RealtimeNATS {
		sub, err := natsrealtime.NewWithOptions(cfg.NATSURL, natsrealtime.Options{Prefix: cfg.NATSProgressPrefix})
		if err != nil {
			return nil, fmt.Errorf("init progress subscriber: %w", err)
		}
		return sub, nil
	}
	sub, err := wsrealtime.New(cfg.RealtimeURL)
	if err != nil {
		return nil, fmt.Errorf("init progress subscriber: %w", err)
	}
	return sub, nil
}

// Documents builds a fresh document list view.
func (a *App) Documents() *usecase.DocumentList {
	return usecase.NewDocumentList(a.Client, a.Session, a.notifier, a.Metrics)
}

// Upload builds an upload dialog. onComplete runs after a finished upload and
// observer, when set, sees every state change.
func (a *App) Upload(onComplete func(), observer func(usecase.UploadSnapshot)) *usecase.UploadFlow {
	return usecase.NewUploadFlow(a.Client, a.Subscriber, a.Session, usecase.UploadOptions{
		GraceDelay: a.Config.UploadGrace,
		Preflight:  a.Preflight,
		Notifier:   a.notifier,
		Metrics:    a.Metrics,
		OnComplete: onComplete,
		Observer:   observer,
	})
}

func (a *App) Usage() *usecase.UsageView {
	return usecase.NewUsageView(a.Client, a.Session)
}

func (a *App) ChatHistory() *usecase.ChatHistory {
	return usecase.NewChatHistory(a.Client, a.Session, a.notifier)
}

// OpsHandler serves health, readiness and metrics for long-running modes.
func (a *App) OpsHandler() http.Handler {
	return httpadapter.NewRouter(a.service, a.Metrics.Handler(), a.Metrics.HTTP(), a.checks...).Handler()
}

// ServeOps runs the ops server until ctx ends. It does nothing when no
// metrics address is configured.
func (a *App) ServeOps(ctx context.Context) error {
	if a.Config.MetricsAddr == "" {
		return nil
	}
	slog.Info("ops_listening", "addr", a.Config.MetricsAddr)
	return httpadapter.Serve(ctx, a.Config.MetricsAddr, a.OpsHandler())
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
