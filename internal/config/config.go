package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type (
	// Config represents an application configuration.
	Config struct {
		// The data source name (DSN) for connecting to the database.
		DSN string `yaml:"dsn" env:"DATABASE_URI"`
		// Subconfigs.
		HTTPServer HTTPServer `yaml:"http_server"`
		JWT        JWT        `yaml:"jwt"`
		Logger     Logger     `yaml:"logger"`
		RateLimit  RateLimit  `yaml:"rate_limit"`
		Orders     Orders     `yaml:"orders"`
		// Cost of the password to hash. Must be grater than 3.
		PasswordHashCost int `yaml:"password_hash_cost" env:"PASSWORD_HASH_COST" env-default:"14"`
	}
	// Config for HTTP server.
	HTTPServer struct {
		// The server startup address.
		Address string `yaml:"run_address" env:"RUN_ADDRESS" env-default:"127.0.0.1:8080"`
		// Read Header Timeout in seconds.
		Timeout time.Duration `yaml:"timeout" env-default:"5s"`
		// Idle timeoutin in seconds.
		IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
		// Shutdown timeout in seconds.
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"30s"`
	}
	// Config for application's logger.
	Logger struct {
		// Path to store log files.
		Path string `yaml:"path" env:"LOG_PATH"`
		// Application logging level.
		Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
		// Log files details.
		MaxSizeMB  int `yaml:"max_size_mb" env-default:"100"`
		MaxBackups int `yaml:"max_backups" env-default:"3"`
		MaxAgeDays int `yaml:"max_age_days" env-default:"28"`
	}
	// Config for JWT.
	JWT struct {
		// JWT signing key.
		SigningKey string `yaml:"signing_key" env:"JWT_SIGNING_KEY"`
		// JWT expiration in hours.
		Expiration time.Duration `yaml:"expiration" env:"JWT_EXPIRATION" env-default:"24h"`
	}
	// Config for the login and register rate limiter.
	RateLimit struct {
		// One token is refilled every interval.
		Interval time.Duration `yaml:"interval" env:"RATE_LIMIT_INTERVAL" env-default:"100ms"`
		Burst    int           `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"20"`
	}
	// Config for order handling.
	Orders struct {
		// Default size of the recent orders page.
		RecentLimit int `yaml:"recent_limit" env:"ORDERS_RECENT_LIMIT" env-default:"10"`
		// Manually maintained totals keyed by order ID,
		// used when nothing else yields a positive amount.
		TotalOverrides map[int]string `yaml:"total_overrides"`
	}
)

// Overrides parses the configured manual totals.
func (o Orders) Overrides() (map[int]decimal.Decimal, error) {
	out := make(map[int]decimal.Decimal, len(o.TotalOverrides))
	for id, raw := range o.TotalOverrides {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("total override for order %d: %w", id, err)
		}
		out[id] = amount
	}
	return out, nil
}

// MustLoad returns an application configuration which is populated
// from the given configuration file, .env file, environment variables and flags.
func MustLoad() *Config {
	// Configuration yaml file path.
	configPath := flag.String("config", "./config/local.yml", "path to the config file")
	address := flag.String("a", "", "server startup address")
	dsn := flag.String("d", "", "server data source name")
	flag.Parse()

	// Check if file exists.
	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %s", *configPath)
	}

	var cfg Config

	// Load from YAML cfg file.
	if err := cleanenv.ReadConfig(*configPath, &cfg); err != nil {
		log.Fatalf("failed to parse config file %s: %v", *configPath, err)
	}

	// Apply given flags.
	if *address != "" {
		cfg.HTTPServer.Address = *address
	}
	if *dsn != "" {
		cfg.DSN = *dsn
	}

	// Missing .env is fine, the process environment is used as is.
	_ = godotenv.Load()

	// Read environment variables.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("failed to read environment variables: %v", err)
	}

	if _, err := cfg.Orders.Overrides(); err != nil {
		log.Fatalf("invalid orders config: %v", err)
	}

	return &cfg
}
