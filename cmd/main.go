// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
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

	"github.com/iconic-app/iconic/internal/auth"
	"github.com/iconic-app/iconic/internal/chain"
	"github.com/iconic-app/iconic/internal/config"
	"github.com/iconic-app/iconic/internal/database"
	"github.com/iconic-app/iconic/internal/handler"
	"github.com/iconic-app/iconic/internal/logging"
	"github.com/iconic-app/iconic/internal/matchmaking"
	"github.com/iconic-app/iconic/internal/metrics"
	"github.com/iconic-app/iconic/internal/repository"
	"github.com/iconic-app/iconic/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logging.New(cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error("server.exit", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Storage ────────────────────────────────────────────────────────
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	// ── 2. Wire up layers ─────────────────────────────────────────────────
	m := metrics.New()
	shuffler, err := matchmaking.NewShuffler(cfg.MatchSeed)
	if err != nil {
		return fmt.Errorf("shuffler: %w", err)
	}
	oracle, err := chain.Dial(ctx, cfg.ChainRPCURL, cfg.MembershipContract)
	if err != nil {
		return fmt.Errorf("chain: %w", err)
	}
	defer oracle.Close()
	if !oracle.Configured() {
		log.Warn("payment.disabled", "reason", "ICONIC_MEMBERSHIP_CONTRACT not set")
	}

	opts := []service.Option{service.WithLogger(log), service.WithMetrics(m)}
	users := service.NewUserService(store, oracle, cfg.MembershipTTL, opts...)

	router := handler.NewRouter(handler.Deps{
		Log:        log,
		Metrics:    m,
		Store:      store,
		Verifier:   auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		CORSOrigin: cfg.CORSOrigin,

		Users:         users,
		Events:        service.NewEventService(store, opts...),
		Participation: service.NewParticipationService(store, opts...),
		Checkins: service.NewCheckinService(store, service.CheckinConfig{
			Freshness: cfg.CheckinFreshness,
			Cooldown:  cfg.CheckinCooldown,
		}, opts...),
		LiveEvents:  service.NewLiveEventService(store, opts...),
		Matchmaking: service.NewMatchmakingService(store, shuffler, opts...),
		Polls:       service.NewPollService(store, opts...),
		Chat:        service.NewChatService(store, shuffler, opts...),
		Photos:      service.NewPhotoService(store, opts...),
	})

	// ── 3. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server.start", "addr", cfg.HTTPAddr, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("server.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("server.stopped")
	return nil
}

// openStore picks the storage backend named by cfg.Store.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (repository.Store, error) {
	if cfg.Store == config.StoreMemory {
		log.Warn("store.memory", "msg", "data is not persisted")
		return repository.NewMemoryStore(), nil
	}

	pool, err := database.NewPool(ctx, cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if cfg.DB.Migrate {
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("database.migrated")
	}
	return repository.NewPostgresStore(pool), nil
}
