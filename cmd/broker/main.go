// Command broker runs the payment broker: it accepts payment requests,
// routes each to the healthier of two processors, persists outcomes
// asynchronously and serves time-ranged summaries.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/julianomacielferreira/garnize-on-juice/internal/config"
	"github.com/julianomacielferreira/garnize-on-juice/internal/dedupe"
	"github.com/julianomacielferreira/garnize-on-juice/internal/dispatch"
	"github.com/julianomacielferreira/garnize-on-juice/internal/health"
	"github.com/julianomacielferreira/garnize-on-juice/internal/server"
	"github.com/julianomacielferreira/garnize-on-juice/internal/store"
	"github.com/julianomacielferreira/garnize-on-juice/internal/summary"
	"github.com/julianomacielferreira/garnize-on-juice/internal/upstream"
	"github.com/julianomacielferreira/garnize-on-juice/internal/writequeue"
)

func main() {
	cfg := config.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("LOG_PRETTY") != "" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("broker encerrou com erro")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	for _, path := range []string{cfg.DBPath, cfg.DedupePath} {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
	}

	// Schema first, with a throwaway handle; the pool mints lazily after.
	boot, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	if err := boot.Migrate(); err != nil {
		boot.Close()
		return err
	}
	boot.Close()

	pool := store.NewPool(func() (*store.Handle, error) {
		return store.Open(cfg.DBPath)
	}, cfg.MaxHandles, cfg.MaxWaiters)
	defer pool.Shutdown()

	dedupeStore, err := dedupe.Open(cfg.DedupePath)
	if err != nil {
		return err
	}
	defer dedupeStore.Close()

	client := upstream.NewClient(cfg.UpstreamTimeout, cfg.AdminToken, log)

	registry := health.NewRegistry(pool, log)
	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 5*time.Second)
	if err := registry.Seed(seedCtx); err != nil {
		log.Warn().Err(err).Msg("não foi possível semear o health registry, iniciando limpo")
	}
	cancelSeed()

	prober := health.NewProber(registry, client, cfg.ProcessorDefaultURL, cfg.ProcessorFallbackURL, cfg.ProbeInterval, log)
	prober.Start()
	defer prober.Stop()

	queue := writequeue.New(pool, log)
	defer queue.Stop()

	dispatcher := dispatch.New(registry, client, queue, dedupeStore, cfg.ProcessorDefaultURL, cfg.ProcessorFallbackURL, log)
	aggregator := summary.New(client, pool, cfg.ProcessorDefaultURL, cfg.ProcessorFallbackURL, log)
	srv := server.New(dispatcher, aggregator, pool, dedupeStore, log)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("Garnize on Juice iniciado, escutando requests POST e GET")
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("encerrando")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("shutdown do servidor HTTP falhou")
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
