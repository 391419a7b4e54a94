package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const (
	DefaultServiceUrl   = "https://bsky.social"
	DefaultSessionPath  = "./session.json"
	DefaultMaxInput     = 64 * 1024
	DefaultMaxGraphemes = 300
)

func DefaultConfig() *Config {

	v := viper.New()

	// Set default values
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("error unmarshaling default config: %v", err)
	}

	return &config
}

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	v := viper.New()

	if err := setupViperConfig(v, configFile); err != nil {
		return nil, err
	}

	bindEnvironmentVariables(v)

	config, err := readAndUnmarshalConfig(v)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := setupLogging(config, v); err != nil {
		return nil, err
	}

	return config, nil
}

// loadEnvFile loads the .env file if it exists
func loadEnvFile() error {
	if err := gotenv.Load(); err != nil {
		// .env file not found, that's okay - continue with other sources
		if !os.IsNotExist(err) {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}
	return nil
}

// setupViperConfig configures viper with file paths and defaults
func setupViperConfig(v *viper.Viper, configFile string) error {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if home, err := os.UserHomeDir(); err == nil && len(home) > 0 {
		v.AddConfigPath(filepath.Join(home, ".config", "skypost"))
	}

	if len(configFile) > 0 {
		v.SetConfigFile(configFile)
	}

	setDefaults(v)

	v.SetEnvPrefix("SKYPOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)

	return nil
}

// bindEnvironmentVariables binds all environment variables to viper
func bindEnvironmentVariables(v *viper.Viper) {

	// Account credentials use the unprefixed names
	v.BindEnv("bluesky.username", "BLUESKY_USERNAME")
	v.BindEnv("bluesky.password", "BLUESKY_PASSWORD")

	v.BindEnv("service.url", "SKYPOST_SERVICE_URL")
	v.BindEnv("service.timeout", "SKYPOST_SERVICE_TIMEOUT")
	v.BindEnv("session.path", "SKYPOST_SESSION_PATH")
	v.BindEnv("auth.fallback_to_login", "SKYPOST_AUTH_FALLBACK_TO_LOGIN")

	v.BindEnv("input.mode", "SKYPOST_INPUT_MODE")
	v.BindEnv("input.max_bytes", "SKYPOST_INPUT_MAX_BYTES")
	v.BindEnv("input.interactive", "SKYPOST_INPUT_INTERACTIVE")

	v.BindEnv("post.max_graphemes", "SKYPOST_POST_MAX_GRAPHEMES")
	v.BindEnv("post.langs", "SKYPOST_POST_LANGS")

	v.BindEnv("logging.level", "SKYPOST_LOGGING_LEVEL")
	v.BindEnv("logging.format", "SKYPOST_LOGGING_FORMAT")
	v.BindEnv("logging.output", "SKYPOST_LOGGING_OUTPUT")
}

// readAndUnmarshalConfig reads the configuration file and unmarshals it
func readAndUnmarshalConfig(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setupLogging configures the logging system based on the config
func setupLogging(config *Config, v *viper.Viper) error {
	logrusLevel, err := logrus.ParseLevel(config.Logging.Level)
	if err != nil {
		return fmt.Errorf("error parsing log level: %w", err)
	}

	logrus.SetLevel(logrusLevel)
	logrus.SetOutput(config.GetLogOutput())

	switch strings.ToLower(config.Logging.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	default:
		logrus.WithFields(logrus.Fields{
			"format": config.Logging.Format,
		}).Warn("Unknown log format")
	}

	// Dump out the config settings if in debug mode. Never the password.
	if logrusLevel >= logrus.DebugLevel {
		for key, value := range v.AllSettings() {
			if key == "bluesky" {
				continue
			}
			logrus.Debugf("Config '%s': %v\n", key, value)
		}
	}

	return nil
}

func (c *Config) GetLogOutput() io.Writer {
	if strings.EqualFold(c.Logging.Output, "stdout") {
		return os.Stdout
	}
	return os.Stderr
}

func setDefaults(v *viper.Viper) {

	v.SetDefault("service.url", DefaultServiceUrl)
	v.SetDefault("service.timeout", "0s")
	v.SetDefault("service.user_agent", "")

	v.SetDefault("bluesky.username", "")
	v.SetDefault("bluesky.password", "")

	v.SetDefault("session.path", DefaultSessionPath)

	v.SetDefault("auth.fallback_to_login", false)

	v.SetDefault("input.mode", string(InputModeLine))
	v.SetDefault("input.max_bytes", DefaultMaxInput)
	v.SetDefault("input.interactive", string(InteractiveNever))
	v.SetDefault("input.close_after_read", false)

	v.SetDefault("post.max_graphemes", DefaultMaxGraphemes)
	v.SetDefault("post.langs", []string{})

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")
}
