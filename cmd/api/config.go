package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/fastprodman/gumball/internal/config"
	"github.com/fastprodman/gumball/internal/infra/logging"
)

const (
	backendMemory   = "memory"
	backendPostgres = "postgres"

	envDev = "DEV"
)

type apiConfig struct {
	Port            uint16         `env:"PORT" default:"8080"`
	LogLevel        slog.Level     `env:"APP_LOG_LEVEL" default:"INFO"`
	LogFormat       logging.Format `env:"LOG_FORMAT" default:"json"`
	AppEnv          string         `env:"APP_ENV" default:""`
	ShutdownTimeout time.Duration  `env:"SHUTDOWN_TIMEOUT" default:"10s"`

	// StoreBackend selects where machine state lives: memory or postgres.
	StoreBackend string `env:"STORE_BACKEND" default:"memory"`
	Postgres     config.PostgresConfig

	MachineConfig string        `env:"MACHINE_CONFIG" default:""`
	BlockInterval time.Duration `env:"BLOCK_INTERVAL" default:"2s"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" default:"1m"`
}

func (c *apiConfig) validate() error {
	switch c.StoreBackend {
	case backendMemory:
	case backendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("PG_DSN is required for the %s backend", backendPostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.BlockInterval <= 0 {
		return fmt.Errorf("BLOCK_INTERVAL must be positive")
	}

	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}

	return nil
}
