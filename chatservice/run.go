// Package chatservice wires configuration, storage, generation and the HTTP
// surface into a running service.
package chatservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/reverie-ai/reverie/internal/api"
	"github.com/reverie-ai/reverie/internal/chatlog"
	"github.com/reverie-ai/reverie/internal/config"
	"github.com/reverie-ai/reverie/internal/genai"
	"github.com/reverie-ai/reverie/internal/health"
	"github.com/reverie-ai/reverie/internal/imagegen"
	"github.com/reverie-ai/reverie/internal/logger"
	"github.com/reverie-ai/reverie/internal/prompt"
	"github.com/reverie-ai/reverie/internal/scheduler"
	"github.com/reverie-ai/reverie/internal/services"
	"github.com/reverie-ai/reverie/internal/store"
	"github.com/reverie-ai/reverie/internal/store/postgres"
	"github.com/reverie-ai/reverie/internal/store/sqlite"
)

// Run starts the chat service HTTP server and blocks until shutdown or error.
func Run() error {
	cfg, err := config.New()
	if err != nil {
		l := logger.New("reverie", nil)
		l.Error().Err(err).Msg("Failed to load configuration")
		return err
	}
	log := logger.New("reverie", cfg)

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Str("gen_backend", cfg.GenBackend).
		Str("gen_model", cfg.GenModel).
		Msg("Chat service starting")

	ctx, stop := newServerContext()
	defer stop()

	st, err := newStore(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Store adapter unavailable")
		return err
	}

	backend, err := newGenBackend(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Generation backend unavailable")
		return err
	}
	gen := genai.NewAdapter(backend, log)
	logs := chatlog.NewAssembler(st, gen)
	prompts := prompt.NewRenderer()

	pipeline := newImagePipeline(cfg, st, log)

	userSvc := services.NewUserService(st)
	characterSvc := services.NewCharacterService(st)
	threadSvc := services.NewThreadService(st)
	postSvc := services.NewPostService(st)
	responseSvc := services.NewResponseService(st, gen, logs, prompts, log)
	responseSvc.SetTokenBudget(cfg.TokenBudget)
	eventSvc := services.NewEventService(st, gen, logs, prompts, pipeline, log)
	eventSvc.SetTokenBudget(cfg.TokenBudget)

	sched := scheduler.New(st, eventSvc, cfg.TickSpec, log)
	sched.SetThresholds(scheduler.Thresholds{
		Thought: cfg.ThoughtThreshold,
		Event:   cfg.EventThreshold,
		Post:    cfg.PostThreshold,
	})
	if err := sched.Start(); err != nil {
		log.Error().Err(err).Msg("Failed to start scheduler")
		return err
	}
	defer sched.Stop()

	svcHealth := startHealthCheckers(ctx, log, st)

	router := api.NewRouter(api.Handlers{
		Users:      userSvc,
		Characters: characterSvc,
		Threads:    threadSvc,
		Responses:  responseSvc,
		Posts:      postSvc,
		IsHealthy:  svcHealth.IsHealthy,
	})

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
		return err
	}
}

// newStore opens the configured database and ensures the schema exists.
func newStore(cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	switch cfg.DBDriver {
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := sqlite.EnsureSchema(db); err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("sqlite store ready")
		return sqlite.New(db), nil
	case "postgres":
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := postgres.EnsureSchema(db); err != nil {
			return nil, err
		}
		log.Info().Msg("postgres store ready")
		return postgres.New(db), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}
}

// newGenBackend selects the text generation backend.
func newGenBackend(cfg *config.Config) (genai.Backend, error) {
	switch cfg.GenBackend {
	case "openai":
		if cfg.GenAPIKey == "" {
			return nil, fmt.Errorf("GEN_BACKEND=openai requires GEN_API_KEY")
		}
		return genai.NewOpenAI(cfg.GenAPIKey, cfg.GenBaseURL, cfg.GenModel), nil
	case "mock":
		return genai.NewMock(), nil
	default:
		return nil, fmt.Errorf("unsupported GEN_BACKEND: %s", cfg.GenBackend)
	}
}

// newImagePipeline builds the async image pipeline, or nil when no image
// backend is configured. EventService tolerates a nil runner.
func newImagePipeline(cfg *config.Config, st store.Store, log zerolog.Logger) services.ImageRunner {
	if cfg.ImageBackendURL == "" {
		return nil
	}
	backend := imagegen.NewHTTPBackend(cfg.ImageBackendURL, cfg.ImageAPIKey)
	blob := imagegen.NewFSBlob(cfg.BlobDir)
	p := imagegen.NewPipeline(backend, blob, st.Posts(), log)
	p.Interval = time.Duration(cfg.ImagePollSeconds) * time.Second
	p.MaxPolls = cfg.ImageMaxPolls
	return p
}

// startHealthCheckers starts the store checker and the service aggregator.
func startHealthCheckers(ctx context.Context, log zerolog.Logger, st store.Store) *health.ServiceChecker {
	storeChecker := health.NewPingChecker("store", st.HealthPing, log)
	go storeChecker.Start(ctx, 15*time.Second)

	svcHealth := health.NewServiceChecker(log, storeChecker)
	go svcHealth.Start(ctx, 15*time.Second)
	return svcHealth
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
