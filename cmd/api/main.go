package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fitgent/internal/config"
	"fitgent/internal/database"
	"fitgent/internal/googlefit"
	"fitgent/internal/rewards"
	"fitgent/internal/server"
	"fitgent/internal/wellness"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Info().Msg("shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func setupLogger(cfg config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// newRewardsStore returns the points store and a func releasing it.
func newRewardsStore(ctx context.Context, cfg config.Config) (rewards.Store, func() error) {
	noop := func() error { return nil }
	if cfg.RedisAddr == "" {
		return rewards.NewMemory(), noop
	}
	rdb, err := rewards.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, keeping reward points in memory")
		return rewards.NewMemory(), noop
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("Reward points stored in Redis")
	return rdb, rdb.Close
}

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	ctx := context.Background()

	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("could not connect to database")
	}
	defer dbService.Close()

	store, err := database.NewCachedStore(dbService.Queries(), cfg.CacheSize)
	if err != nil {
		log.Fatal().Err(err).Msg("could not create health record cache")
	}

	rewardsStore, closeRewards := newRewardsStore(ctx, cfg)
	defer func() {
		if err := closeRewards(); err != nil {
			log.Error().Err(err).Msg("could not close rewards store")
		}
	}()

	fit, err := googlefit.New(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Google Fit integration disabled")
	}

	seed := uint64(time.Now().UnixNano())
	apiServer := server.NewServer(cfg, server.Dependencies{
		DB:        dbService,
		Store:     store,
		Rewards:   rewardsStore,
		Food:      wellness.NewFoodRecommender(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))),
		GoogleFit: fit,
	})

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(apiServer, done)

	log.Info().Str("addr", apiServer.Addr).Msg("HTTP server listening")
	err = apiServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server error")
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Info().Msg("Graceful shutdown complete.")
}
