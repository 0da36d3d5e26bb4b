// Package cfg loads predictor configuration from a YAML file with
// environment-variable overrides. A .env file in the working directory is
// honored for local development.
package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pbpd/internal/material"
)

// Settings is the resolved runtime configuration.
type Settings struct {
	ModelPaths   map[material.Group]string
	FetchTimeout time.Duration
	DataPath     string
	ListenAddr   string
	MetricsPort  int
	BatchWorkers int
	LogLevel     string
	ReportDir    string
}

// ConfigFile mirrors the YAML layout.
type ConfigFile struct {
	Models struct {
		Ti           string `yaml:"ti"`
		Ss           string `yaml:"ss"`
		Al           string `yaml:"al"`
		FetchTimeout string `yaml:"fetchTimeout"`
	} `yaml:"models"`

	Server struct {
		ListenAddr  string `yaml:"listenAddr"`
		MetricsPort int    `yaml:"metricsPort"`
	} `yaml:"server"`

	Batch struct {
		Workers   int    `yaml:"workers"`
		ReportDir string `yaml:"reportDir"`
	} `yaml:"batch"`

	System struct {
		DataPath string `yaml:"dataPath"`
		LogLevel string `yaml:"logLevel"`
	} `yaml:"system"`
}

// Load resolves settings from CONFIG_FILE if set, else from environment
// variables alone. A .env file is loaded first when present.
func Load() (Settings, error) {
	_ = godotenv.Load() // optional

	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	fetchTimeout, err := time.ParseDuration(config.Models.FetchTimeout)
	if err != nil {
		fetchTimeout = 10 * time.Second
	}

	settings := Settings{
		ModelPaths: map[material.Group]string{
			material.Titanium:       getEnvOrDefault("MODEL_PATH_TI", config.Models.Ti),
			material.StainlessSteel: getEnvOrDefault("MODEL_PATH_SS", config.Models.Ss),
			material.Aluminum:       getEnvOrDefault("MODEL_PATH_AL", config.Models.Al),
		},
		FetchTimeout: fetchTimeout,
		DataPath:     getEnvOrDefault("DATA_PATH", config.System.DataPath),
		ListenAddr:   getEnvOrDefault("LISTEN_ADDR", config.Server.ListenAddr),
		MetricsPort:  getIntFromEnvOrConfig("METRICS_PORT", config.Server.MetricsPort),
		BatchWorkers: getIntFromEnvOrConfig("BATCH_WORKERS", config.Batch.Workers),
		LogLevel:     getEnvOrDefault("LOG_LEVEL", config.System.LogLevel),
		ReportDir:    getEnvOrDefault("REPORT_DIR", config.Batch.ReportDir),
	}
	applyDefaults(&settings)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ModelPaths: map[material.Group]string{
			material.Titanium:       getEnvOrDefault("MODEL_PATH_TI", "models/model_ti.json"),
			material.StainlessSteel: getEnvOrDefault("MODEL_PATH_SS", "models/model_ss.json"),
			material.Aluminum:       getEnvOrDefault("MODEL_PATH_AL", "models/model_al.json"),
		},
		FetchTimeout: getDurationOrDefault("MODEL_FETCH_TIMEOUT", 10*time.Second),
		DataPath:     os.Getenv("DATA_PATH"), // optional
		ListenAddr:   getEnvOrDefault("LISTEN_ADDR", ":8090"),
		MetricsPort:  getIntOrDefault("METRICS_PORT", 9090),
		BatchWorkers: getIntOrDefault("BATCH_WORKERS", 4),
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),
		ReportDir:    getEnvOrDefault("REPORT_DIR", "reports"),
	}
	applyDefaults(&settings)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func applyDefaults(s *Settings) {
	if s.ListenAddr == "" {
		s.ListenAddr = ":8090"
	}
	if s.MetricsPort == 0 {
		s.MetricsPort = 9090
	}
	if s.BatchWorkers == 0 {
		s.BatchWorkers = 4
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.ReportDir == "" {
		s.ReportDir = "reports"
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	return configValue
}

// validateSettings performs validation of configuration values.
func validateSettings(settings *Settings) error {
	for _, g := range material.Groups() {
		if settings.ModelPaths[g] == "" {
			return fmt.Errorf("model path for %s is required", g)
		}
	}

	if settings.FetchTimeout < time.Second || settings.FetchTimeout > time.Minute {
		return fmt.Errorf("model fetch timeout must be between 1s and 1m, got %v", settings.FetchTimeout)
	}
	if settings.MetricsPort < 1024 || settings.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be between 1024 and 65535, got %d", settings.MetricsPort)
	}
	if settings.BatchWorkers < 1 || settings.BatchWorkers > 256 {
		return fmt.Errorf("batch workers must be between 1 and 256, got %d", settings.BatchWorkers)
	}

	switch settings.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", settings.LogLevel)
	}
	return nil
}
