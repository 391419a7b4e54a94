package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/thand-io/skypost/internal/models"
)

type InputMode string

const (
	// A single read of whatever is available, up to max_bytes.
	InputModeChunk InputMode = "chunk"
	// Read up to the first newline.
	InputModeLine InputMode = "line"
	// Read until EOF.
	InputModeAll InputMode = "all"
)

type InteractiveMode string

const (
	InteractiveAuto   InteractiveMode = "auto"
	InteractiveAlways InteractiveMode = "always"
	InteractiveNever  InteractiveMode = "never"
)

// Config represents the application configuration structure
type Config struct {
	Service ServiceConfig `mapstructure:"service"`
	Bluesky BlueskyConfig `mapstructure:"bluesky"`
	Session SessionConfig `mapstructure:"session"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Input   InputConfig   `mapstructure:"input"`
	Post    PostConfig    `mapstructure:"post"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServiceConfig points at the personal data server
type ServiceConfig struct {
	URL       string        `mapstructure:"url" validate:"required,url"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gte=0"` // 0 disables the timeout
	UserAgent string        `mapstructure:"user_agent"`
}

// BlueskyConfig holds the account credentials. They are deliberately not
// validated here; a bad or missing value surfaces as an auth error.
type BlueskyConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type SessionConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type AuthConfig struct {
	// When a cached session is rejected, log in again with the
	// credentials instead of failing.
	FallbackToLogin bool `mapstructure:"fallback_to_login"`
}

type InputConfig struct {
	Mode           InputMode       `mapstructure:"mode" validate:"oneof=chunk line all"`
	MaxBytes       int             `mapstructure:"max_bytes" validate:"gt=0"`
	Interactive    InteractiveMode `mapstructure:"interactive" validate:"oneof=auto always never"`
	CloseAfterRead bool            `mapstructure:"close_after_read"`
}

type PostConfig struct {
	MaxGraphemes int      `mapstructure:"max_graphemes" validate:"gt=0"`
	Langs        []string `mapstructure:"langs" validate:"dive,bcp47_language_tag"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
	Output string `mapstructure:"output" validate:"oneof=stderr stdout"`
}

func (c *Config) GetServiceUrl() string {
	return strings.TrimSuffix(c.Service.URL, "/")
}

func (c *Config) GetServiceHostname() string {
	parsed, err := url.Parse(c.Service.URL)
	if err != nil || len(parsed.Hostname()) == 0 {
		return c.Service.URL
	}
	return parsed.Hostname()
}

func (c *Config) GetCredentials() models.Credentials {
	return models.Credentials{
		Identifier: c.Bluesky.Username,
		Password:   c.Bluesky.Password,
	}
}

func (c *Config) SetServiceUrl(serviceUrl string) {
	c.Service.URL = serviceUrl
}
