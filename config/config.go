/*
config.go - Process configuration for the server and CLI

PURPOSE:
  Collects the settings that are not part of a scenario document: where to
  listen, where to store runs, how to log, and when the scheduler fires.
  Simulation settings (start date, horizon, policies) live in the scenario.

SOURCES (later wins):
  1. Defaults
  2. Environment variables (PORT, DB_PATH, LOG_LEVEL, LOG_FORMAT, SCHEDULE, OUTPUT_DIR)
  3. Command-line flags

LOGGING:
  NewLogger builds the single logrus logger handed to every component.
  LOG_FORMAT=json gives one JSON object per line, anything else the text
  formatter. Unknown levels fall back to info.

SEE ALSO:
  - cmd/server/main.go
  - cmd/simulate/main.go
*/
package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Config holds process settings.
type Config struct {
	Port      int
	DBPath    string
	LogLevel  string
	LogFormat string
	Schedule  string // cron spec; empty disables the scheduler
	OutputDir string
}

// Load reads the environment, then parses args (usually os.Args[1:]) over it.
// extra registers command-specific flags on the same flag set.
func Load(args []string, extra ...func(fs *flag.FlagSet)) (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("PORT: %w", err)
	}
	cfg := &Config{
		Port:      port,
		DBPath:    getEnv("DB_PATH", "finance.db"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		Schedule:  getEnv("SCHEDULE", ""),
		OutputDir: getEnv("OUTPUT_DIR", "out"),
	}

	fs := flag.NewFlagSet("finance", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, `SQLite database path (":memory:" for in-memory)`)
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json")
	fs.StringVar(&cfg.Schedule, "schedule", cfg.Schedule, `cron spec for re-running saved scenarios, e.g. "@daily"`)
	fs.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "directory for report bundles")
	for _, register := range extra {
		register(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values flags cannot type-check.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("schedule %q: %w", c.Schedule, err)
		}
	}
	return nil
}

// NewLogger builds the process logger writing to out.
func (c *Config) NewLogger(out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	if strings.EqualFold(c.LogFormat, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
