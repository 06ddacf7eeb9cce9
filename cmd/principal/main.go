// Command principal runs the autonomous operator of the vending business.
// It observes the business over the HTTP API, picks one action per cycle via
// Claude Haiku, executes it, and ticks the worker scheduler.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/vendsim/internal/economy"
	"github.com/talgya/vendsim/internal/llm"
	"github.com/talgya/vendsim/internal/principal"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment.
	apiURL := envOrDefault("VENDSIM_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("VENDSIM_ADMIN_KEY")
	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")
	intervalSec := envIntOrDefault("PRINCIPAL_INTERVAL", 30)

	if adminKey == "" {
		slog.Error("VENDSIM_ADMIN_KEY is required")
		os.Exit(1)
	}
	if anthropicKey == "" {
		slog.Error("ANTHROPIC_API_KEY is required")
		os.Exit(1)
	}

	interval := time.Duration(intervalSec) * time.Second

	slog.Info("vendsim principal starting",
		"api_url", apiURL,
		"interval", interval,
	)

	client := principal.NewClient(apiURL, adminKey)
	llmClient := llm.NewClient(anthropicKey)
	mem := principal.LoadMemory()

	// Wait for the sim API before the first cycle. systemd After= only
	// ensures process start, not HTTP readiness.
	slog.Info("waiting for vendsim API...")
	waitForAPI(apiURL)

	// Run first cycle immediately.
	runCycle(client, llmClient, mem)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if done := runCycle(client, llmClient, mem); done {
				fmt.Println("Business terminated. Principal stopped.")
				return
			}
		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig)
			mem.Save()
			fmt.Println("Principal stopped.")
			return
		}
	}
}

// runCycle executes one observe → decide → act → tick cycle. Returns true
// when the business has terminated and the loop should stop.
func runCycle(client *principal.Client, llmClient *llm.Client, mem *principal.CycleMemory) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	slog.Info("principal cycle starting")

	// Observe.
	snap, err := client.Observe()
	if err != nil {
		slog.Error("observation failed", "error", err)
		return false
	}
	slog.Info("observation complete",
		"period", snap.Status.Period,
		"balance", economy.FormatCents(snap.Status.Balance),
		"net_worth", economy.FormatCents(snap.Status.NetWorth),
		"missed_payments", snap.Status.MissedPayments,
	)

	if snap.Status.Terminated {
		slog.Warn("business has terminated",
			"period", snap.Status.Period,
			"net_worth", economy.FormatCents(snap.Status.NetWorth),
		)
		mem.Save()
		return true
	}

	// Decide.
	decision, err := principal.Decide(ctx, llmClient, snap, mem)
	if err != nil {
		slog.Error("decision failed", "error", err)
		return false
	}
	slog.Info("decision made",
		"action", decision.Action,
		"rationale", decision.Rationale,
	)

	// Act.
	record := principal.CycleRecord{
		Period:    snap.Status.Period,
		Action:    decision.Action,
		Balance:   snap.Status.Balance,
		NetWorth:  snap.Status.NetWorth,
		Rationale: decision.Rationale,
	}
	if err := client.Act(decision); err != nil {
		slog.Error("action failed", "action", decision.Action, "error", err)
		record.Err = err.Error()
	}
	mem.Record(record)
	mem.Save()

	// Tick worker tasks so in-flight executions make progress every cycle.
	if err := client.Tick(); err != nil {
		slog.Error("tick failed", "error", err)
	}

	return false
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// waitForAPI polls the status endpoint with exponential backoff until it
// responds. Exits after 5 minutes if the API never becomes ready.
func waitForAPI(apiURL string) {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for {
		resp, err := http.Get(apiURL + "/api/v1/status")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == 200 {
				slog.Info("vendsim API is ready")
				return
			}
		}
		if time.Now().After(deadline) {
			slog.Error("vendsim API did not become ready within 5 minutes")
			os.Exit(1)
		}
		slog.Info("vendsim not ready, retrying...", "backoff", backoff)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
