// Package config loads simulation settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full runtime configuration. Money values are integer cents.
type Config struct {
	AnthropicKey string `env:"ANTHROPIC_API_KEY"`
	AdminKey     string `env:"VENDSIM_ADMIN_KEY"`
	DBPath       string `env:"VENDSIM_DB_PATH" envDefault:"data/vendsim.db"`
	Port         int    `env:"VENDSIM_PORT" envDefault:"8080"`

	// Seed drives world randomness; 0 means non-deterministic.
	Seed int64 `env:"VENDSIM_SEED" envDefault:"0"`

	StartingBalance int64 `env:"VENDSIM_STARTING_BALANCE" envDefault:"50000"` // $500
	DailyFee        int64 `env:"VENDSIM_DAILY_FEE" envDefault:"500"`          // $5
	TaskFee         int64 `env:"VENDSIM_TASK_FEE" envDefault:"150"`           // $1.50
	DefaultWage     int64 `env:"VENDSIM_DEFAULT_WAGE" envDefault:"800"`       // $8/period

	MissedPaymentLimit  int `env:"VENDSIM_MISSED_PAYMENT_LIMIT" envDefault:"10"`
	DeliveryLeadPeriods int `env:"VENDSIM_DELIVERY_LEAD" envDefault:"2"`
	MaxSteps            int `env:"VENDSIM_MAX_STEPS" envDefault:"8"`

	TickTimeout time.Duration `env:"VENDSIM_TICK_TIMEOUT" envDefault:"45s"`
	// ApprovalTimeout auto-denies stale approval requests. Zero disables the
	// sweep: pending approvals block until decided or cut off at a period
	// boundary.
	ApprovalTimeout time.Duration `env:"VENDSIM_APPROVAL_TIMEOUT" envDefault:"0"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
