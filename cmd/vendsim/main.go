// Command vendsim runs the autonomous vending business simulation server.
// The principal driver (human or cmd/principal) steers it over the HTTP API.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/talgya/vendsim/internal/api"
	"github.com/talgya/vendsim/internal/config"
	"github.com/talgya/vendsim/internal/economy"
	"github.com/talgya/vendsim/internal/engine"
	"github.com/talgya/vendsim/internal/entropy"
	"github.com/talgya/vendsim/internal/llm"
	"github.com/talgya/vendsim/internal/persistence"
	"github.com/talgya/vendsim/internal/scheduler"
	"github.com/talgya/vendsim/internal/state"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("vendsim — autonomous vending business simulation")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		slog.Error("failed to create database directory", "path", filepath.Dir(cfg.DBPath), "error", err)
		os.Exit(1)
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Load or create state ──────────────────────────────────────────
	st, err := db.LoadState()
	if err != nil {
		slog.Error("failed to load state", "error", err)
		os.Exit(1)
	}
	if st != nil {
		slog.Info("state restored",
			"period", st.Period,
			"balance", economy.FormatCents(st.Balance),
			"workers", len(st.Workers),
		)
	} else {
		st = state.New(state.Cents(cfg.StartingBalance))
		seedStorage(st)
		slog.Info("fresh business created",
			"balance", economy.FormatCents(st.Balance),
			"storage_lines", len(st.Storage),
		)
	}

	// ── Randomness ────────────────────────────────────────────────────
	seed := cfg.Seed
	var src entropy.Source
	if seed != 0 {
		src = entropy.NewSeeded(seed)
		slog.Info("seeded entropy", "seed", seed)
	} else {
		src = entropy.NewCrypto()
		seed = time.Now().UnixNano()
	}

	// ── LLM backend ───────────────────────────────────────────────────
	client := llm.NewClient(cfg.AnthropicKey)
	if client.Enabled() {
		slog.Info("LLM backend enabled (Haiku)")
	} else {
		slog.Warn("ANTHROPIC_API_KEY not set — worker tasks will fail and demand uses fallback parameters")
	}

	// ── Wiring ────────────────────────────────────────────────────────
	cache := economy.NewParamCache(llm.NewMarketOracle(client))
	demand := economy.NewModel(cache, src, seed)

	sched := scheduler.New(st, llm.NewWorkforce(client), scheduler.Options{
		TaskFee:         state.Cents(cfg.TaskFee),
		MaxSteps:        cfg.MaxSteps,
		TickTimeout:     cfg.TickTimeout,
		ApprovalTimeout: cfg.ApprovalTimeout,
	})

	sim := engine.NewSim(st, sched, demand, llm.NewMailroom(client), engine.Config{
		DailyFee:            state.Cents(cfg.DailyFee),
		MissedPaymentLimit:  cfg.MissedPaymentLimit,
		DeliveryLeadPeriods: cfg.DeliveryLeadPeriods,
	})

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("VENDSIM_ADMIN_KEY not set — tool endpoints will be disabled")
	}
	server := &api.Server{
		Sim:         sim,
		DB:          db,
		Port:        cfg.Port,
		AdminKey:    cfg.AdminKey,
		DefaultWage: state.Cents(cfg.DefaultWage),
	}
	server.Start()

	// ── Run until signalled ───────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)

	sim.Snapshot(func(st *state.State) {
		if err := db.SaveState(st); err != nil {
			slog.Error("final save failed", "error", err)
		}
	})
	slog.Info("simulation stopped, state saved")
}

// seedStorage stocks the back room of a fresh business with a starter
// assortment so the first periods have something to sell.
func seedStorage(st *state.State) {
	starters := []state.StorageItem{
		{Name: "cola can", Quantity: 40, UnitCost: 60, Size: state.SizeSmall},
		{Name: "potato chips", Quantity: 30, UnitCost: 80, Size: state.SizeSmall},
		{Name: "chocolate bar", Quantity: 30, UnitCost: 70, Size: state.SizeSmall},
		{Name: "energy drink", Quantity: 20, UnitCost: 120, Size: state.SizeMedium},
		{Name: "sandwich", Quantity: 12, UnitCost: 200, Size: state.SizeLarge},
	}
	for _, it := range starters {
		st.AddStorage(it)
	}
}
