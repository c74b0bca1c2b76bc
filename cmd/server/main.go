package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/DigitalRoom/internal/adapters/http"
	"github.com/dkeye/DigitalRoom/internal/adapters/metrics"
	"github.com/dkeye/DigitalRoom/internal/adapters/rtc"
	"github.com/dkeye/DigitalRoom/internal/adapters/store"
	"github.com/dkeye/DigitalRoom/internal/app/orch"
	"github.com/dkeye/DigitalRoom/internal/config"
	"github.com/dkeye/DigitalRoom/internal/security"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// the watcher may fire before the room exists
	var live atomic.Pointer[orch.Orchestrator]
	cfg, err := config.LoadWatched(func(next *config.Config) {
		if room := live.Load(); room != nil {
			room.SetAdmins(next.Admin)
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.Mode == "release" {
		// JSON lines in production
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	accounts, err := store.Open(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open account store")
	}
	defer accounts.Close()

	prom := metrics.NewPrometheus()

	opts := orch.OptionsFromConfig(cfg)
	opts.ICEServers = rtc.ClientICEServers(rtc.ParseICEServers(cfg.ICEServers))
	room := orch.New(opts)
	room.Accounts = accounts
	room.Tokens = security.NewSigner(cfg.JWT.Secret, cfg.JWT.TTL)
	room.Metrics = prom
	room.Signals = rtc.SignalValidator{}
	live.Store(room)

	r := router.SetupRouter(ctx, cfg, room, prom.Handler())
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return room.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Room server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return
	}
	log.Info().Msg("Server exited gracefully")
}
