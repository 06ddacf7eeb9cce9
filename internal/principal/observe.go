// Package principal implements the autonomous principal driver: it observes
// the business over the HTTP API, asks the language model for one action per
// cycle, and executes it through the tool endpoints.
package principal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/talgya/vendsim/internal/state"
)

// Client talks to a running vendsim server.
type Client struct {
	baseURL  string
	adminKey string
	http     *http.Client
}

// NewClient creates a driver client for the given server.
func NewClient(baseURL, adminKey string) *Client {
	return &Client{
		baseURL:  baseURL,
		adminKey: adminKey,
		http:     &http.Client{Timeout: 90 * time.Second},
	}
}

// Status mirrors the server's status response.
type Status struct {
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

// Snapshot is everything a decision cycle sees.
type Snapshot struct {
	Status   Status
	Messages []state.Message
}

// Observe fetches the current business state.
func (c *Client) Observe() (*Snapshot, error) {
	var snap Snapshot
	if err := c.get("/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if err := c.get("/api/v1/messages?limit=15", &snap.Messages); err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	return &snap, nil
}

func (c *Client) get(path string, v any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s: %d: %s", path, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *Client) post(path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.adminKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("POST %s: %d: %s", path, resp.StatusCode, string(respBody))
	}
	if out != nil {
		return json.Unmarshal(respBody, out)
	}
	return nil
}
