// Package config handles environment-based configuration loading with an
// optional YAML overlay file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// EnvConfig holds all startup settings. Precedence per setting is
// environment variable, then the overlay file, then the built-in default.
type EnvConfig struct {
	// Directories
	StateDir string

	// Network
	ListenAddress   string
	Port            int
	APIMaxBodyBytes int

	// Geolocation
	GeolocationAPIKey        string
	GeolocationEndpoint      string
	GeolocationTimeout       time.Duration
	GeolocationCacheCapacity int

	// Retention
	RetentionSchedule string
	RetentionMaxAge   time.Duration

	// Auth (empty disables authentication)
	AdminToken string
}

// FileConfig mirrors the ADPULSE_CONFIG_FILE overlay. All fields are
// pointers so an absent key is distinguishable from a zero value.
type FileConfig struct {
	StateDir                 *string `yaml:"state_dir"`
	ListenAddress            *string `yaml:"listen_address"`
	Port                     *int    `yaml:"port"`
	APIMaxBodyBytes          *int    `yaml:"api_max_body_bytes"`
	GeolocationAPIKey        *string `yaml:"geolocation_api_key"`
	GeolocationEndpoint      *string `yaml:"geolocation_endpoint"`
	GeolocationTimeout       *string `yaml:"geolocation_timeout"`
	GeolocationCacheCapacity *int    `yaml:"geolocation_cache_capacity"`
	RetentionSchedule        *string `yaml:"retention_schedule"`
	RetentionMaxAge          *string `yaml:"retention_max_age"`
	AdminToken               *string `yaml:"admin_token"`
}

// LoadEnvConfig reads environment variables (plus the optional overlay file
// named by ADPULSE_CONFIG_FILE) and returns a validated EnvConfig.
func LoadEnvConfig() (*EnvConfig, error) {
	var errs []string

	file := loadFileOverlay(&errs)

	cfg := &EnvConfig{}
	cfg.StateDir = envStr("ADPULSE_STATE_DIR", file.StateDir, "/var/lib/adpulse")
	cfg.ListenAddress = strings.TrimSpace(envStr("ADPULSE_LISTEN_ADDRESS", file.ListenAddress, "0.0.0.0"))
	cfg.Port = envInt("ADPULSE_PORT", file.Port, 8080, &errs)
	cfg.APIMaxBodyBytes = envInt("ADPULSE_API_MAX_BODY_BYTES", file.APIMaxBodyBytes, 1<<20, &errs)

	cfg.GeolocationAPIKey = envStr("ADPULSE_GEOLOCATION_API_KEY", file.GeolocationAPIKey, "")
	cfg.GeolocationEndpoint = envStr("ADPULSE_GEOLOCATION_ENDPOINT", file.GeolocationEndpoint, "")
	cfg.GeolocationTimeout = envDuration("ADPULSE_GEOLOCATION_TIMEOUT", file.GeolocationTimeout, 10*time.Second, &errs)
	cfg.GeolocationCacheCapacity = envInt("ADPULSE_GEOLOCATION_CACHE_CAPACITY", file.GeolocationCacheCapacity, 4096, &errs)

	cfg.RetentionSchedule = envStr("ADPULSE_RETENTION_SCHEDULE", file.RetentionSchedule, "30 3 * * *")
	cfg.RetentionMaxAge = envDuration("ADPULSE_RETENTION_MAX_AGE", file.RetentionMaxAge, 90*24*time.Hour, &errs)

	if v, ok := os.LookupEnv("ADPULSE_ADMIN_TOKEN"); ok {
		cfg.AdminToken = v
	} else if file.AdminToken != nil {
		cfg.AdminToken = *file.AdminToken
	}

	// --- Validation ---
	if cfg.ListenAddress == "" {
		errs = append(errs, "ADPULSE_LISTEN_ADDRESS must not be empty")
	}
	if cfg.StateDir == "" {
		errs = append(errs, "ADPULSE_STATE_DIR must not be empty")
	}
	validatePort("ADPULSE_PORT", cfg.Port, &errs)
	validatePositive("ADPULSE_API_MAX_BODY_BYTES", cfg.APIMaxBodyBytes, &errs)
	validatePositive("ADPULSE_GEOLOCATION_CACHE_CAPACITY", cfg.GeolocationCacheCapacity, &errs)
	if cfg.GeolocationTimeout <= 0 {
		errs = append(errs, "ADPULSE_GEOLOCATION_TIMEOUT must be positive")
	}
	if cfg.RetentionMaxAge <= 0 {
		errs = append(errs, "ADPULSE_RETENTION_MAX_AGE must be positive")
	}
	if _, err := cron.ParseStandard(cfg.RetentionSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("ADPULSE_RETENTION_SCHEDULE: invalid cron expression %q: %v", cfg.RetentionSchedule, err))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return cfg, nil
}

// loadFileOverlay parses the YAML file named by ADPULSE_CONFIG_FILE. An
// unset variable yields an empty overlay; a set but unreadable or invalid
// file is a configuration error.
func loadFileOverlay(errs *[]string) FileConfig {
	var file FileConfig
	path := os.Getenv("ADPULSE_CONFIG_FILE")
	if path == "" {
		return file
	}
	data, err := os.ReadFile(path)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("ADPULSE_CONFIG_FILE: %v", err))
		return file
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		*errs = append(*errs, fmt.Sprintf("ADPULSE_CONFIG_FILE: parse %s: %v", path, err))
	}
	return file
}

// --- helpers ---

func envStr(key string, fileVal *string, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	if fileVal != nil {
		return *fileVal
	}
	return defaultVal
}

func envInt(key string, fileVal *int, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		if fileVal != nil {
			return *fileVal
		}
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envDuration(key string, fileVal *string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		if fileVal == nil {
			return defaultVal
		}
		v = *fileVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePort(name string, value int, errs *[]string) {
	if value < 1 || value > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: port must be 1-65535, got %d", name, value))
	}
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}
