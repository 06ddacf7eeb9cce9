// Package api exposes the simulation over HTTP: GET endpoints for read-only
// observation, POST endpoints as the validated tool-invocation layer the
// principal drives. POST requires a bearer token. Domain errors map to
// status codes the caller can reason about; the server never surfaces a
// crash.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/talgya/vendsim/internal/engine"
	"github.com/talgya/vendsim/internal/persistence"
	"github.com/talgya/vendsim/internal/state"
)

// Server serves the simulation over HTTP.
type Server struct {
	Sim         *engine.Sim
	DB          *persistence.DB
	Port        int
	AdminKey    string      // Bearer token for POST endpoints. Empty = POST disabled.
	DefaultWage state.Cents // Wage applied when a hire request omits one.

	mu         sync.Mutex
	lastReport *engine.PeriodReport
}

// Start begins serving in a goroutine.
func (s *Server) Start() {
	// Tick and advance each burn LLM budget; cap them.
	stepLimiter := NewLimiter(600, time.Hour)

	mux := http.NewServeMux()

	// Observation (GET, public).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/report", s.handleReport)
	mux.HandleFunc("/api/v1/ledger", s.handleLedger)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/messages", s.handleMessages)
	mux.HandleFunc("/api/v1/history", s.handleHistory)

	// Tool invocation (POST, bearer token).
	mux.HandleFunc("/api/v1/tick", s.adminOnly(limited(stepLimiter, s.handleTick)))
	mux.HandleFunc("/api/v1/advance", s.adminOnly(limited(stepLimiter, s.handleAdvance)))
	mux.HandleFunc("/api/v1/assign", s.adminOnly(s.handleAssign))
	mux.HandleFunc("/api/v1/approve", s.adminOnly(s.handleApprove))
	mux.HandleFunc("/api/v1/deny", s.adminOnly(s.handleDeny))
	mux.HandleFunc("/api/v1/stock", s.adminOnly(s.handleStock))
	mux.HandleFunc("/api/v1/unstock", s.adminOnly(s.handleUnstock))
	mux.HandleFunc("/api/v1/price", s.adminOnly(s.handlePrice))
	mux.HandleFunc("/api/v1/collect", s.adminOnly(s.handleCollect))
	mux.HandleFunc("/api/v1/send", s.adminOnly(s.handleSend))
	mux.HandleFunc("/api/v1/hire", s.adminOnly(s.handleHire))
	mux.HandleFunc("/api/v1/fire", s.adminOnly(s.handleFire))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// adminOnly guards mutating endpoints with a bearer token.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled", http.StatusForbidden)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+s.AdminKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeDomainError maps the error taxonomy to HTTP statuses: validation 400,
// funding 402, anything else 500.
func writeDomainError(w http.ResponseWriter, err error) {
	var validation *state.ValidationError
	if errors.As(err, &validation) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": validation.Msg, "code": validation.Code})
		return
	}
	var funds *state.InsufficientFundsError
	if errors.As(err, &funds) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]any{
			"error": funds.Error(), "code": "INSUFFICIENT_FUNDS",
			"needed": funds.Needed, "available": funds.Available,
		})
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return state.Validationf("BAD_BODY", "invalid request body: %v", err)
	}
	return nil
}

// ── Observation ─────────────────────────────────────────────────────

type statusResponse struct {
	Period          int                 `json:"period"`
	Balance         state.Cents         `json:"balance"`
	UncollectedCash state.Cents         `json:"uncollected_cash"`
	NetWorth        state.Cents         `json:"net_worth"`
	MissedPayments  int                 `json:"missed_payments"`
	Terminated      bool                `json:"terminated"`
	Slots           []state.Slot        `json:"slots"`
	Storage         []state.StorageItem `json:"storage"`
	Workers         []state.Worker      `json:"workers"`
	Executions      []*state.Execution  `json:"executions"`
	PendingOrders   int                 `json:"pending_orders"`
	UnresolvedMail  int                 `json:"unresolved_mail"`
}

// statusSnapshot deep-copies everything the response needs while holding the
// lock. Nothing in the returned value aliases the live aggregate, so encoding
// can happen after the lock is released.
func (s *Server) statusSnapshot() statusResponse {
	var resp statusResponse
	s.Sim.Snapshot(func(st *state.State) {
		resp = statusResponse{
			Period:          st.Period,
			Balance:         st.Balance,
			UncollectedCash: st.UncollectedCash,
			NetWorth:        st.NetWorth(),
			MissedPayments:  st.MissedPayments,
			Slots:           append([]state.Slot(nil), st.Slots[:]...),
			Storage:         append([]state.StorageItem(nil), st.Storage...),
			UnresolvedMail:  len(st.UnresolvedOutbound()),
		}
		for _, w := range st.Workers {
			resp.Workers = append(resp.Workers, *w)
		}
		resp.Executions = cloneExecutions(st)
		for _, o := range st.PendingOrders {
			if !o.Delivered {
				resp.PendingOrders++
			}
		}
	})
	resp.Terminated = s.Sim.Terminated()
	return resp
}

func cloneExecutions(st *state.State) []*state.Execution {
	var out []*state.Execution
	for _, e := range st.Executions {
		out = append(out, e.Clone())
	}
	return out
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.statusSnapshot())
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	report := s.lastReport
	s.mu.Unlock()
	if report == nil {
		http.Error(w, "no period closed yet", http.StatusNotFound)
		return
	}
	writeJSON(w, report)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	var out []state.Transaction
	s.Sim.Snapshot(func(st *state.State) {
		start := len(st.Ledger) - limit
		if start < 0 {
			start = 0
		}
		out = append(out, st.Ledger[start:]...)
	})
	writeJSON(w, out)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	var out []state.Event
	s.Sim.Snapshot(func(st *state.State) {
		start := len(st.Events) - limit
		if start < 0 {
			start = 0
		}
		out = append(out, st.Events[start:]...)
	})
	writeJSON(w, out)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	var out []state.Message
	s.Sim.Snapshot(func(st *state.State) {
		start := len(st.Messages) - limit
		if start < 0 {
			start = 0
		}
		for _, m := range st.Messages[start:] {
			out = append(out, *m)
		}
	})
	writeJSON(w, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	var out []state.CompletedTask
	s.Sim.Snapshot(func(st *state.State) {
		out = append(out, st.TaskHistory...)
	})
	writeJSON(w, out)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n < 1 {
		return def
	}
	return n
}

// ── Tool invocation ─────────────────────────────────────────────────

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	s.Sim.Tick(r.Context())
	var executions []*state.Execution
	s.Sim.Snapshot(func(st *state.State) {
		executions = cloneExecutions(st)
	})
	writeJSON(w, map[string]any{"ok": true, "executions": executions})
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	report := s.Sim.AdvancePeriod(r.Context())

	s.mu.Lock()
	s.lastReport = report
	s.mu.Unlock()

	if s.DB != nil {
		s.Sim.Snapshot(func(st *state.State) {
			if err := s.DB.SaveState(st); err != nil {
				slog.Error("autosave failed", "error", err)
			}
		})
	}

	writeJSON(w, report)
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkerID string `json:"worker_id"`
		Task     string `json:"task"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if req.Task == "" {
		writeDomainError(w, state.Validationf("BAD_TASK", "task description is required"))
		return
	}
	exec, err := s.Sim.AssignTask(req.WorkerID, req.Task)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, exec)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.handleDecision(w, r, s.Sim.ApproveExecution)
}

func (s *Server) handleDeny(w http.ResponseWriter, r *http.Request) {
	s.handleDecision(w, r, s.Sim.DenyExecution)
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request, decide func(string, string) error) {
	var req struct {
		ExecutionID string `json:"execution_id"`
		Note        string `json:"note"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := decide(req.ExecutionID, req.Note); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position int    `json:"position"`
		Product  string `json:"product"`
		Quantity int    `json:"quantity"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.Sim.StockSlot(req.Position, req.Product, req.Quantity); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleUnstock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position int `json:"position"`
		Quantity int `json:"quantity"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.Sim.UnstockSlot(req.Position, req.Quantity); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position   int   `json:"position"`
		PriceCents int64 `json:"price_cents"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.Sim.SetPrice(req.Position, state.Cents(req.PriceCents)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	collected := s.Sim.CollectCash()
	writeJSON(w, map[string]any{"ok": true, "collected": collected})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To   string `json:"to"`
		Body string `json:"body"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if req.To == "" || req.Body == "" {
		writeDomainError(w, state.Validationf("BAD_MESSAGE", "both to and body are required"))
		return
	}
	msg := s.Sim.SendMessage(req.To, req.Body)
	writeJSON(w, msg)
}

func (s *Server) handleHire(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		Role      string `json:"role"`
		WageCents int64  `json:"wage_cents"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	role, err := parseRole(req.Role)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	wage := state.Cents(req.WageCents)
	if wage <= 0 {
		wage = s.DefaultWage
	}
	if req.Name == "" {
		req.Name = fmt.Sprintf("%s-%d", role, time.Now().Unix()%10000)
	}
	writeJSON(w, s.Sim.HireWorker(req.Name, role, wage))
}

func (s *Server) handleFire(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkerID string `json:"worker_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.Sim.FireWorker(req.WorkerID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func parseRole(name string) (state.Role, error) {
	switch name {
	case "restocker":
		return state.RoleRestocker, nil
	case "analyst":
		return state.RoleAnalyst, nil
	case "clerk":
		return state.RoleClerk, nil
	default:
		return 0, state.Validationf("BAD_ROLE", "unknown role %q (want restocker, analyst, or clerk)", name)
	}
}
