package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Backend struct {
		BaseURL     string        `yaml:"base_url"`
		Token       string        `yaml:"token"`
		TokenSecret string        `yaml:"token_secret"` // optional; verifies the agent's own token at startup
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"backend"`

	Geo struct {
		NativeBridgeURL  string        `yaml:"native_bridge_url"` // ws://127.0.0.1:8765/location
		WebEndpoint      string        `yaml:"web_endpoint"`
		WebAPIKey        string        `yaml:"web_api_key"`
		Static           *StaticFix    `yaml:"static"`
		HighAccuracy     bool          `yaml:"high_accuracy"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WatchTickTimeout time.Duration `yaml:"watch_tick_timeout"`
		PollInterval     time.Duration `yaml:"poll_interval"`
	} `yaml:"geo"`

	Tracker struct {
		FlushInterval time.Duration `yaml:"flush_interval"`
	} `yaml:"tracker"`

	Discovery struct {
		TrashRadiusKM float64 `yaml:"trash_radius_km"`
		ItemLimit     int     `yaml:"item_limit"`
	} `yaml:"discovery"`

	Cart struct {
		Store      string        `yaml:"store"` // sqlite | redis | postgres | memory
		Key        string        `yaml:"key"`
		SQLitePath string        `yaml:"sqlite_path"`
		SessionTTL time.Duration `yaml:"session_ttl"`
	} `yaml:"cart"`

	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"database"`
	} `yaml:"database"`

	Redis struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	RabbitMQ struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"rabbitmq"`

	Agent struct {
		DriverPort      int           `yaml:"driver_port"`
		SellerPort      int           `yaml:"seller_port"`
		RefreshInterval time.Duration `yaml:"refresh_interval"`
		TickResolution  time.Duration `yaml:"tick_resolution"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
	} `yaml:"agent"`
}

// StaticFix pins the device to a fixed position (dev and kiosk setups).
type StaticFix struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
}

// LoadFromFile loads config from a YAML file, applies a .env file and PICKUP_* overrides,
// then applies defaults and validates required fields.
func LoadFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// a missing .env is normal outside development
	_ = godotenv.Load()
	if err := applyEnv(&cfg); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyEnv overrides secrets and endpoints from the environment.
func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("PICKUP_BACKEND_URL", &cfg.Backend.BaseURL)
	str("PICKUP_BACKEND_TOKEN", &cfg.Backend.Token)
	str("PICKUP_TOKEN_SECRET", &cfg.Backend.TokenSecret)
	str("PICKUP_GEO_BRIDGE_URL", &cfg.Geo.NativeBridgeURL)
	str("PICKUP_GEO_WEB_ENDPOINT", &cfg.Geo.WebEndpoint)
	str("PICKUP_GEO_WEB_API_KEY", &cfg.Geo.WebAPIKey)
	str("PICKUP_CART_STORE", &cfg.Cart.Store)
	str("PICKUP_DB_PASSWORD", &cfg.Database.Password)
	str("PICKUP_REDIS_PASSWORD", &cfg.Redis.Password)
	str("PICKUP_RABBITMQ_PASSWORD", &cfg.RabbitMQ.Password)

	return errors.Join(
		num("PICKUP_DRIVER_PORT", &cfg.Agent.DriverPort),
		num("PICKUP_SELLER_PORT", &cfg.Agent.SellerPort),
	)
}

// applyDefaults sets safe defaults for some fields.
func applyDefaults(cfg *Config) {
	// Backend
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 10 * time.Second
	}

	// Geo
	if cfg.Geo.ReadTimeout == 0 {
		cfg.Geo.ReadTimeout = 60 * time.Second
	}
	if cfg.Geo.WatchTickTimeout == 0 {
		cfg.Geo.WatchTickTimeout = 15 * time.Second
	}
	if cfg.Geo.PollInterval == 0 {
		cfg.Geo.PollInterval = 3 * time.Second
	}

	// Tracker
	if cfg.Tracker.FlushInterval == 0 {
		cfg.Tracker.FlushInterval = 5 * time.Second
	}

	// Discovery
	if cfg.Discovery.TrashRadiusKM == 0 {
		cfg.Discovery.TrashRadiusKM = 10
	}
	if cfg.Discovery.ItemLimit == 0 {
		cfg.Discovery.ItemLimit = 20
	}

	// Cart
	if cfg.Cart.Store == "" {
		cfg.Cart.Store = "sqlite"
	}
	cfg.Cart.Store = strings.ToLower(strings.TrimSpace(cfg.Cart.Store))
	if cfg.Cart.Key == "" {
		cfg.Cart.Key = "reservation_cart"
	}
	if cfg.Cart.SQLitePath == "" {
		cfg.Cart.SQLitePath = "./pickup-agent.db"
	}
	if cfg.Cart.SessionTTL == 0 {
		cfg.Cart.SessionTTL = 12 * time.Hour
	}

	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}

	// Redis
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	// RabbitMQ
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}

	// Agent
	if cfg.Agent.DriverPort == 0 {
		cfg.Agent.DriverPort = 3100
	}
	if cfg.Agent.SellerPort == 0 {
		cfg.Agent.SellerPort = 3101
	}
	if cfg.Agent.RefreshInterval == 0 {
		cfg.Agent.RefreshInterval = 5 * time.Second
	}
	if cfg.Agent.TickResolution == 0 {
		cfg.Agent.TickResolution = 250 * time.Millisecond
	}
	if len(cfg.Agent.AllowedOrigins) == 0 {
		cfg.Agent.AllowedOrigins = []string{"http://localhost", "capacitor://localhost"}
	}
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	// Backend
	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, "backend.base_url must be an absolute URL")
	}
	if c.Backend.Token == "" {
		problems = append(problems, "backend.token is required")
	}

	// Geo
	if c.Geo.NativeBridgeURL == "" && c.Geo.WebEndpoint == "" && c.Geo.Static == nil {
		problems = append(problems, "geo needs at least one of native_bridge_url, web_endpoint, static")
	}
	if c.Geo.ReadTimeout < 0 || c.Geo.WatchTickTimeout < 0 || c.Geo.PollInterval < 0 {
		problems = append(problems, "geo timeouts must be positive")
	}

	// Tracker
	if c.Tracker.FlushInterval < time.Second {
		problems = append(problems, "tracker.flush_interval must be at least 1s")
	}

	// Discovery
	if c.Discovery.TrashRadiusKM < 0 {
		problems = append(problems, "discovery.trash_radius_km cannot be negative")
	}
	if c.Discovery.ItemLimit < 0 {
		problems = append(problems, "discovery.item_limit cannot be negative")
	}

	// Cart
	switch c.Cart.Store {
	case "sqlite", "memory":
	case "redis":
		if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
			problems = append(problems, "redis.port must be in 1..65535")
		}
	case "postgres":
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			problems = append(problems, "database.port must be in 1..65535")
		}
		if c.Database.User == "" {
			problems = append(problems, "database.user is required")
		}
		if c.Database.Name == "" {
			problems = append(problems, "database.name is required")
		}
	default:
		problems = append(problems, "cart.store must be one of sqlite, redis, postgres, memory")
	}

	// RabbitMQ
	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
			problems = append(problems, "rabbitmq.port must be in 1..65535")
		}
		if c.RabbitMQ.User == "" {
			problems = append(problems, "rabbitmq.user is required")
		}
		if c.RabbitMQ.Password == "" {
			problems = append(problems, "rabbitmq.password is required")
		}
	}

	// Agent
	if c.Agent.DriverPort <= 0 || c.Agent.DriverPort > 65535 {
		problems = append(problems, "agent.driver_port must be in 1..65535")
	}
	if c.Agent.SellerPort <= 0 || c.Agent.SellerPort > 65535 {
		problems = append(problems, "agent.seller_port must be in 1..65535")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
