package app

import (
	"fmt"
	"io"
	"time"

	"github.com/aussiebroadwan/neupass/pkg/httpx"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// envPrefix prefixes every variable, e.g. NEUPASS_STUDENT_ID.
const envPrefix = "NEUPASS"

type Config struct {
	StudentID string `envconfig:"STUDENT_ID"` // Required: SSO username
	Password  string `envconfig:"PASSWORD"`   // Required: SSO password

	AppVersion string        `envconfig:"APP_VERSION"`           // Optional: X-App-Version override
	UserAgent  string        `envconfig:"USER_AGENT"`            // Optional: User-Agent override
	Timeout    time.Duration `envconfig:"TIMEOUT" default:"10s"` // Per-hop timeout

	// Optional host overrides, defaults are the production portals.
	PassURL      string `envconfig:"PASS_URL"`
	PersonalURL  string `envconfig:"PERSONAL_URL"`
	ECodeURL     string `envconfig:"ECODE_URL"`
	AssistantURL string `envconfig:"ASSISTANT_URL"`

	Env       string `envconfig:"ENV" default:"dev"`         // Environment (dev, prod)
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`  // debug, info, warn, error
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"` // json, text

	// Outbound throttle, read from RATELIMIT_SSO_*.
	Throttle httpx.RateLimitConfig `ignored:"true"`

	// LogOutput defaults to stderr.
	LogOutput io.Writer `ignored:"true"`
}

// LoadConfig reads an optional .env file and then the NEUPASS_* environment.
func LoadConfig() (Config, error) {
	_ = godotenv.Overload()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Throttle = httpx.ParseRateLimitFromEnv("SSO", httpx.DefaultOutboundLimit)

	return cfg, nil
}

// Validate reports missing required settings.
func (c Config) Validate() error {
	if c.StudentID == "" || c.Password == "" {
		return fmt.Errorf("%s_STUDENT_ID and %s_PASSWORD must be set", envPrefix, envPrefix)
	}
	return nil
}
