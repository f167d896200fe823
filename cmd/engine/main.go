package main

import (
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/pusher/pusher-http-go/v5"
	"go-grandwager/internal/config"
	"go-grandwager/internal/engine"
	"go-grandwager/internal/event"
	"go-grandwager/internal/lib/logger/sl"
	"go-grandwager/internal/repository"
	"go-grandwager/internal/repository/mysql"
	"go-grandwager/internal/storage"
	"golang.org/x/exp/slog"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

var defaultRooms = []engine.DefaultRoomSpec{
	{
		Name:            "Low Stake",
		MinBet:          1,
		MaxBet:          100,
		MaxBetters:      20,
		RoundDurationMs: 10 * 1000,
	},
	{
		Name:            "High Stake",
		MinBet:          100,
		MaxBet:          1000,
		MaxBetters:      20,
		RoundDurationMs: 10 * 1000,
	},
}

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("starting wager engine", slog.String("env", cfg.Env))
	log.Debug("debug messages are enabled")

	players, rooms, rounds := setupStores(cfg, log)

	sink := setupSink(cfg, log)

	registry := engine.NewRegistry(log, cfg.Game, players, rooms, rounds, sink, cfg.Workers)

	if err := registry.EnsureDefaultRooms(defaultRooms); err != nil {
		log.Error("failed to seed default rooms", sl.Err(err))
		os.Exit(1)
	}

	log.Info("default rooms seeded", slog.Int("count", len(defaultRooms)))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	registry.Stop()
}

func setupStores(cfg *config.Config, log *slog.Logger) (engine.PlayerLedger, engine.RoomStore, engine.RoundStore) {
	if cfg.Storage.DSN == "" {
		log.Info("no storage DSN configured, using in-memory stores")

		return storage.NewMemoryLedger(), storage.NewMemoryRoomStore(), storage.NewMemoryRoundStore()
	}

	db, err := sql.Open("mysql", cfg.Storage.DSN)
	if err != nil {
		log.Error("failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	if err = db.Ping(); err != nil {
		log.Error("failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	handler := mysql.New(db)

	return repository.NewPlayerRepository(handler),
		repository.NewRoomRepository(handler),
		repository.NewRoundRepository(handler)
}

func setupSink(cfg *config.Config, log *slog.Logger) event.Sink {
	if cfg.Pusher.AppID == "" {
		log.Info("no pusher credentials configured, events are dropped")

		return event.NopSink{}
	}

	client := &pusher.Client{
		AppID:   cfg.Pusher.AppID,
		Key:     cfg.Pusher.Key,
		Secret:  cfg.Pusher.Secret,
		Cluster: cfg.Pusher.Cluster,
	}

	return event.NewPusherSink(log, client)
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return log
}
