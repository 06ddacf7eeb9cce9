package principal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/talgya/vendsim/internal/economy"
	"github.com/talgya/vendsim/internal/state"
)

const (
	memoryFile    = "principal_memory.json"
	maxRecords    = 20
	promptRecords = 8 // how many recent records to include in the prompt
)

// CycleRecord captures one decision cycle for the rolling memory.
type CycleRecord struct {
	Period    int         `json:"period"`
	Action    string      `json:"action"`
	Balance   state.Cents `json:"balance"`
	NetWorth  state.Cents `json:"net_worth"`
	Rationale string      `json:"rationale,omitempty"`
	Err       string      `json:"error,omitempty"`
}

// CycleMemory manages a ring of recent decision records, persisted to disk so
// the driver keeps context across restarts.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`
}

// LoadMemory reads the memory file from disk. Returns empty memory if not found.
func LoadMemory() *CycleMemory {
	data, err := os.ReadFile(memoryFile)
	if err != nil {
		return &CycleMemory{}
	}
	var mem CycleMemory
	if err := json.Unmarshal(data, &mem); err != nil {
		slog.Warn("principal memory corrupted, starting fresh", "error", err)
		return &CycleMemory{}
	}
	return &mem
}

// Save writes the memory to disk.
func (m *CycleMemory) Save() {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		slog.Error("failed to marshal principal memory", "error", err)
		return
	}
	if err := os.WriteFile(memoryFile, data, 0644); err != nil {
		slog.Error("failed to write principal memory", "error", err)
	}
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// FormatForPrompt summarizes the last N cycles for the decision prompt.
func (m *CycleMemory) FormatForPrompt() string {
	if len(m.Records) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Your recent decisions\n")

	start := 0
	if len(m.Records) > promptRecords {
		start = len(m.Records) - promptRecords
	}
	for _, r := range m.Records[start:] {
		fmt.Fprintf(&b, "- Period %d: %s (balance %s, net worth %s)",
			r.Period, r.Action, economy.FormatCents(r.Balance), economy.FormatCents(r.NetWorth))
		if r.Err != "" {
			fmt.Fprintf(&b, " FAILED: %s", r.Err)
		}
		b.WriteString("\n")
	}
	return b.String()
}
