package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage keys shared by the session manager and the login controller.
const (
	KeySessionToken = "warehouse_session_token"
	KeyUserInfo     = "warehouse_user_info"
	KeyRememberMe   = "warehouse_remember_me"
	KeyUsername     = "warehouse_username"
)

// Remote endpoint names (the apiPath query parameter).
const (
	EndpointLogin     = "login"
	EndpointInit      = "init"
	EndpointDashboard = "dashboard"
	EndpointProducts  = "products"
	EndpointInventory = "inventory"
	EndpointInbound   = "inbound"
	EndpointOutbound  = "outbound"
	EndpointSuppliers = "suppliers"
	EndpointCustomers = "customers"
	EndpointUsers     = "users"
	EndpointLogout    = "logout"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Backend      BackendConfig      `yaml:"backend"`
	Session      SessionConfig      `yaml:"session"`
	Login        LoginConfig        `yaml:"login"`
	Notification NotificationConfig `yaml:"notification"`
	Pagination   PaginationConfig   `yaml:"pagination"`
	Storage      StorageConfig      `yaml:"storage"`

	// ConfigPath is the path to the config file (not serialized)
	ConfigPath string `yaml:"-"`
}

// ServerConfig represents the local console server
type ServerConfig struct {
	Port           int           `yaml:"port"`
	Host           string        `yaml:"host"`
	WSPingInterval time.Duration `yaml:"ws_ping_interval"`
}

// BackendConfig describes the remote spreadsheet API
type BackendConfig struct {
	Endpoint string `yaml:"endpoint"`

	// VerbOverride sends every call as POST with the logical verb in _method.
	VerbOverride bool `yaml:"verb_override"`

	// Timeout of zero leaves the transport default in place.
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig controls the idle/expiry timers
type SessionConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	WarningLead    time.Duration `yaml:"warning_lead"`
	ActivityWindow time.Duration `yaml:"activity_window"`
}

// LoginConfig holds the login form limits
type LoginConfig struct {
	MaxAttempts          int           `yaml:"max_attempts"`
	PasswordMinLength    int           `yaml:"password_min_length"`
	UsernameMinLength    int           `yaml:"username_min_length"`
	NewPasswordMinLength int           `yaml:"new_password_min_length"`
	Lockout              time.Duration `yaml:"lockout"`
}

// NotificationConfig holds toast auto-hide delays
type NotificationConfig struct {
	AutoHideDelay time.Duration `yaml:"auto_hide_delay"`
	SuccessDelay  time.Duration `yaml:"success_delay"`
	ErrorDelay    time.Duration `yaml:"error_delay"`
	Capacity      int           `yaml:"capacity"`
}

// PaginationConfig holds table page sizes
type PaginationConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

// StorageConfig selects the durable store
type StorageConfig struct {
	Driver        string `yaml:"driver"` // "file" or "redis"
	Path          string `yaml:"path,omitempty"`
	RedisAddr     string `yaml:"redis_addr,omitempty"`
	RedisPassword string `yaml:"redis_password,omitempty"`
	RedisDB       int    `yaml:"redis_db,omitempty"`
	KeyPrefix     string `yaml:"key_prefix,omitempty"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			Host:           "127.0.0.1",
			WSPingInterval: 30 * time.Second,
		},
		Backend: BackendConfig{
			Endpoint:     "https://script.google.com/macros/s/AKfycbyEyGdnABA3tsYgiAzZnYHaxXNc9CEl6BPrIwGc9D2DIHhYEho1btLz1Jad5pYVCaYvQw/exec",
			VerbOverride: true, // the spreadsheet backend only accepts simple POSTs
		},
		Session: SessionConfig{
			Timeout:        30 * time.Minute,
			WarningLead:    5 * time.Minute,
			ActivityWindow: 60 * time.Second,
		},
		Login: LoginConfig{
			MaxAttempts:          5,
			PasswordMinLength:    6,
			UsernameMinLength:    3,
			NewPasswordMinLength: 8,
			Lockout:              5 * time.Minute,
		},
		Notification: NotificationConfig{
			AutoHideDelay: 5 * time.Second,
			SuccessDelay:  3 * time.Second,
			ErrorDelay:    8 * time.Second,
			Capacity:      100,
		},
		Pagination: PaginationConfig{
			DefaultPageSize: 10,
			MaxPageSize:     100,
		},
		Storage: StorageConfig{
			Driver:    "file",
			Path:      "warehouse-state.json",
			KeyPrefix: "warehouse:",
		},
	}
}

// Load loads configuration from the config file, then applies .env and
// WAREHOUSE_* environment overrides.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("WARN: could not read .env: %v", err)
	}

	// Try to find config file in common locations
	configPaths := []string{
		"config.yaml",
		"configs/config.yaml",
		"/etc/warehouse/config.yaml",
	}
	if p := os.Getenv("WAREHOUSE_CONFIG"); p != "" {
		configPaths = []string{p}
	}

	var data []byte
	var err error
	var loadedPath string

	for _, path := range configPaths {
		data, err = os.ReadFile(path)
		if err == nil {
			loadedPath = path
			break
		}
	}

	if err != nil {
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	cfg.ConfigPath = loadedPath
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// Parse decodes YAML on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides selected fields from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			} else {
				log.Printf("WARN: ignoring %s=%q: %v", key, v, err)
			}
		}
	}

	str("WAREHOUSE_HOST", &c.Server.Host)
	num("WAREHOUSE_PORT", &c.Server.Port)
	str("WAREHOUSE_BACKEND_ENDPOINT", &c.Backend.Endpoint)
	if v, ok := lookup("WAREHOUSE_VERB_OVERRIDE"); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Backend.VerbOverride = b
		}
	}
	str("WAREHOUSE_STORAGE_DRIVER", &c.Storage.Driver)
	str("WAREHOUSE_STORAGE_PATH", &c.Storage.Path)
	str("WAREHOUSE_REDIS_ADDR", &c.Storage.RedisAddr)
	str("WAREHOUSE_REDIS_PASSWORD", &c.Storage.RedisPassword)
	num("WAREHOUSE_REDIS_DB", &c.Storage.RedisDB)
}

// WarningDelay is how long after a renewal the expiry warning fires.
func (s SessionConfig) WarningDelay() time.Duration {
	d := s.Timeout - s.WarningLead
	if d < 0 {
		return 0
	}
	return d
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
