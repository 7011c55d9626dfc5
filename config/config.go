package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Keys understood by Load
const (
	KeyURL             = "url"
	KeySubprotocols    = "subprotocols"
	KeyResponseTimeout = "response_timeout"
	KeyDebug           = "debug"
)

// EnvPrefix prefixes the environment variables that override file settings,
// e.g. ROCKETS_URL
const EnvPrefix = "ROCKETS_"

// Default settings
const (
	DefaultURL             = "ws://localhost:8200"
	DefaultResponseTimeout = 30 * time.Second
)

// Config structure
type Config map[string]string

// Settings is the resolved client configuration
type Settings struct {
	URL             string
	Subprotocols    []string
	ResponseTimeout time.Duration
	Debug           bool
}

// overridable for tests
var (
	localConfigPath  = filepath.Join(".rockets", "config.yaml")
	globalConfigPath = func() string {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return filepath.Join(home, ".rockets.yaml")
	}
	envFile = ".env"
)

func configPath(isGlobal bool) string {
	if isGlobal {
		return globalConfigPath()
	}
	return localConfigPath
}

// Load configuration
func loadConfig(isGlobal bool) Config {
	path := configPath(isGlobal)
	if path == "" {
		return Config{}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}

	config := Config{}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}
	}
	return config
}

// Save configuration
func saveConfig(config Config, isGlobal bool) error {
	path := configPath(isGlobal)
	if path == "" {
		return fmt.Errorf("cannot locate home directory for global config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Get configuration value
func Get(key string) string {
	// Local config wins over global
	if value, ok := loadConfig(false)[key]; ok {
		return value
	}
	return loadConfig(true)[key]
}

// Set configuration value
func Set(key, value string, isGlobal bool) error {
	config := loadConfig(isGlobal)
	config[key] = value
	return saveConfig(config, isGlobal)
}

// Unset removes a configuration value
func Unset(key string, isGlobal bool) error {
	config := loadConfig(isGlobal)
	delete(config, key)
	return saveConfig(config, isGlobal)
}

// List returns the merged configuration as sorted "key=value" lines
func List() []string {
	merged := loadConfig(true)
	for k, v := range loadConfig(false) {
		merged[k] = v
	}

	lines := make([]string, 0, len(merged))
	for k, v := range merged {
		lines = append(lines, k+"="+v)
	}
	sort.Strings(lines)
	return lines
}

// Load resolves Settings from defaults, the config files, a .env file in
// the working directory and ROCKETS_* environment variables, in that order.
func Load() (Settings, error) {
	s := Settings{
		URL:             DefaultURL,
		ResponseTimeout: DefaultResponseTimeout,
	}

	// .env never overrides variables already set
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return s, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(EnvPrefix + strings.ToUpper(key)); ok {
			return v, true
		}
		v := Get(key)
		return v, v != ""
	}

	if v, ok := lookup(KeyURL); ok {
		s.URL = v
	}
	if v, ok := lookup(KeySubprotocols); ok {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				s.Subprotocols = append(s.Subprotocols, p)
			}
		}
	}
	if v, ok := lookup(KeyResponseTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return s, fmt.Errorf("invalid %s %q: %w", KeyResponseTimeout, v, err)
		}
		s.ResponseTimeout = d
	}
	if v, ok := lookup(KeyDebug); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return s, fmt.Errorf("invalid %s %q: %w", KeyDebug, v, err)
		}
		s.Debug = b
	}
	return s, nil
}
