// Package config loads the payroll service configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gartstein/payroll/internal/payroll/models"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable that overrides DefaultPath.
const EnvPath = "PAYROLL_CONFIG"

var DefaultPath = filepath.Join("internal", "payroll", "config", "config.yaml")

// Config mirrors config.yaml.
type Config struct {
	GRPCPort        int      `yaml:"GRPC_PORT"`
	HTTPPort        int      `yaml:"HTTP_PORT"`
	DBHost          string   `yaml:"DB_HOST"`
	DBPort          int      `yaml:"DB_PORT"`
	DBUser          string   `yaml:"DB_USER"`
	DBPassword      string   `yaml:"DB_PASSWORD"`
	DBName          string   `yaml:"DB_NAME"`
	DBSSLMode       string   `yaml:"DB_SSLMODE"`
	KafkaBrokers    []string `yaml:"KAFKA_BROKERS"`
	Topic           string   `yaml:"TOPIC"`
	SettlementTopic string   `yaml:"SETTLEMENT_TOPIC"`
	ConsumerGroup   string   `yaml:"CONSUMER_GROUP"`
	JWTSecret       string   `yaml:"JWT_SECRET"`
	BankVerifyURL   string   `yaml:"BANK_VERIFY_URL"`
	BankMaxRetries  uint64   `yaml:"BANK_MAX_RETRIES"`
	HolidayPolicy   string   `yaml:"HOLIDAY_POLICY"`
	Currency        string   `yaml:"CURRENCY"`
}

// Path returns the config file location, honouring PAYROLL_CONFIG.
func Path() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(file)
}

// Parse decodes raw YAML, fills defaults and validates the result.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.GRPCPort == 0 {
		c.GRPCPort = 50051
	}
	if c.HTTPPort == 0 {
		c.HTTPPort = 8080
	}
	if c.DBPort == 0 {
		c.DBPort = 5432
	}
	if c.DBSSLMode == "" {
		c.DBSSLMode = "disable"
	}
	if c.Topic == "" {
		c.Topic = "payroll-events"
	}
	if c.SettlementTopic == "" {
		c.SettlementTopic = "payment-settlements"
	}
	if c.ConsumerGroup == "" {
		c.ConsumerGroup = "payroll-service"
	}
	if c.BankMaxRetries == 0 {
		c.BankMaxRetries = 3
	}
	if c.Currency == "" {
		c.Currency = "GBP"
	}
	c.Currency = strings.ToUpper(c.Currency)
	c.HolidayPolicy = strings.ToLower(c.HolidayPolicy)
}

func (c *Config) validate() error {
	var missing []string
	for _, key := range []struct {
		name  string
		empty bool
	}{
		{"DB_HOST", c.DBHost == ""},
		{"DB_USER", c.DBUser == ""},
		{"DB_NAME", c.DBName == ""},
		{"KAFKA_BROKERS", len(c.KafkaBrokers) == 0},
		{"JWT_SECRET", c.JWTSecret == ""},
	} {
		if key.empty {
			missing = append(missing, key.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config keys: %s", strings.Join(missing, ", "))
	}

	if _, ok := models.ParseHolidayPolicy(c.HolidayPolicy); !ok {
		return fmt.Errorf("HOLIDAY_POLICY must be %q or %q, got %q",
			models.HolidayPolicyClamp, models.HolidayPolicyReject, c.HolidayPolicy)
	}
	if _, err := models.NewMoney(decimal.Zero, c.Currency); err != nil {
		return fmt.Errorf("CURRENCY: %w", err)
	}
	return nil
}

// Policy returns the configured holiday policy. Load has already validated it.
func (c *Config) Policy() models.HolidayPolicy {
	policy, _ := models.ParseHolidayPolicy(c.HolidayPolicy)
	return policy
}
