package sampledata

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pardeepwalia007/Assignment-RAG/internal/config"
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

type Config struct {
	OutDir    string
	Format    Format
	Customers int
	Tickets   int
	Seed      int64
	// Now anchors ticket creation times. Tickets fall in the 120 days before it.
	Now time.Time
}

func DefaultConfig() Config {
	return Config{
		OutDir:    "sampledata",
		Format:    FormatCSV,
		Customers: 50,
		Tickets:   400,
		Seed:      time.Now().UTC().UnixNano(),
		Now:       time.Now().UTC(),
	}
}

func LoadConfigFromEnv(lookup config.LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	env := config.NewEnv(lookup)
	config.Bind(env, "BIAGENT_SAMPLE_OUT_DIR", &cfg.OutDir, config.ParseString)
	config.Bind(env, "BIAGENT_SAMPLE_FORMAT", &cfg.Format, parseFormat)
	config.Bind(env, "BIAGENT_SAMPLE_CUSTOMERS", &cfg.Customers, strconv.Atoi)
	config.Bind(env, "BIAGENT_SAMPLE_TICKETS", &cfg.Tickets, strconv.Atoi)
	config.Bind(env, "BIAGENT_SAMPLE_SEED", &cfg.Seed, config.ParseInt64)
	if err := env.Err(); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseFormat(raw string) (Format, error) {
	return Format(strings.ToLower(raw)), nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.OutDir) == "" {
		return fmt.Errorf("BIAGENT_SAMPLE_OUT_DIR is required")
	}
	if c.Format != FormatCSV && c.Format != FormatParquet {
		return fmt.Errorf("BIAGENT_SAMPLE_FORMAT must be csv or parquet, got %q", c.Format)
	}
	if c.Customers <= 0 {
		return fmt.Errorf("BIAGENT_SAMPLE_CUSTOMERS must be > 0")
	}
	if c.Tickets < 0 {
		return fmt.Errorf("BIAGENT_SAMPLE_TICKETS must be >= 0")
	}
	return nil
}
