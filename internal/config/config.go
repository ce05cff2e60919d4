// Package config loads engine and ambient options from a YAML file,
// the way internal/patterns loads its pattern definitions in the
// teacher repo.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the engine's decay/threshold parameters (spec.md §6)
// plus the ambient fields the embedding service needs.
type Config struct {
	DecayFactor float64 `yaml:"decayFactor"`
	Cm          float64 `yaml:"cm"`
	Cl          float64 `yaml:"cl"`
	Beta        float64 `yaml:"beta"`
	TimeGap     int64   `yaml:"timeGap"`

	ListenAddr     string `yaml:"listenAddr"`
	APIAddr        string `yaml:"apiAddr"`
	HistoryBackend string `yaml:"historyBackend"` // "none" | "clickhouse"
	EventLogPath   string `yaml:"eventLogPath"`
}

// Default returns the configuration with every default from spec.md
// §6 and ambient listeners bound to all interfaces.
func Default() Config {
	return Config{
		DecayFactor:    0.998,
		Cm:             3.0,
		Cl:             0.8,
		Beta:           0.3,
		TimeGap:        0,
		ListenAddr:     "0.0.0.0:4320",
		APIAddr:        "0.0.0.0:8080",
		HistoryBackend: "none",
	}
}

// Load reads and unmarshals a YAML config file over the defaults, then
// applies environment-variable overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadOrDefault loads the YAML config at path if path is non-empty,
// otherwise starts from Default(). Either way, DSTREAM_* environment
// overrides are applied and the result validated before return.
func LoadOrDefault(path string) (Config, error) {
	if path != "" {
		return Load(path)
	}
	cfg := Default()
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.DecayFactor = getEnvFloat("DSTREAM_DECAY_FACTOR", cfg.DecayFactor)
	cfg.Cm = getEnvFloat("DSTREAM_CM", cfg.Cm)
	cfg.Cl = getEnvFloat("DSTREAM_CL", cfg.Cl)
	cfg.Beta = getEnvFloat("DSTREAM_BETA", cfg.Beta)
	cfg.TimeGap = getEnvInt("DSTREAM_TIME_GAP", cfg.TimeGap)
	cfg.ListenAddr = getEnv("DSTREAM_LISTEN_ADDR", cfg.ListenAddr)
	cfg.APIAddr = getEnv("DSTREAM_API_ADDR", cfg.APIAddr)
	cfg.HistoryBackend = getEnv("DSTREAM_HISTORY_BACKEND", cfg.HistoryBackend)
	cfg.EventLogPath = getEnv("DSTREAM_EVENT_LOG_PATH", cfg.EventLogPath)
}

// getEnv gets an environment variable with a default fallback.
func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// getEnvFloat gets a float64 environment variable with a default fallback.
func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvInt gets an int64 environment variable with a default fallback.
func getEnvInt(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

// Validate enforces the admissible ranges from spec.md §6. Failing
// fast here keeps the engine from ever entering RUNNING with an
// out-of-range parameter (spec.md §7).
func (c Config) Validate() error {
	if c.DecayFactor <= 0.001 || c.DecayFactor >= 0.999 {
		return fmt.Errorf("config: decayFactor %g out of range (0.001, 0.999)", c.DecayFactor)
	}
	if c.Cm <= 1.001 {
		return fmt.Errorf("config: cm %g must be > 1.001", c.Cm)
	}
	if c.Cl <= 0.001 || c.Cl >= 0.999 {
		return fmt.Errorf("config: cl %g out of range (0.001, 0.999)", c.Cl)
	}
	if c.Beta <= 0.001 {
		return fmt.Errorf("config: beta %g must be > 0.001", c.Beta)
	}
	if c.TimeGap < 0 {
		return fmt.Errorf("config: timeGap %d must be >= 0", c.TimeGap)
	}
	switch c.HistoryBackend {
	case "none", "clickhouse":
	default:
		return fmt.Errorf("config: historyBackend %q must be one of none, clickhouse", c.HistoryBackend)
	}
	return nil
}
