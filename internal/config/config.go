package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"stockwatch/internal/core"
	"stockwatch/internal/detect"
	"stockwatch/internal/messaging"
	"stockwatch/internal/normalize"
)

// Config holds all application configuration
type Config struct {
	App      App            `mapstructure:"app"`
	State    State          `mapstructure:"state"`
	Fetch    Fetch          `mapstructure:"fetch"`
	Notify   Notify         `mapstructure:"notify"`
	Schedule Schedule       `mapstructure:"schedule"`
	Server   Server         `mapstructure:"server"`
	Targets  []TargetConfig `mapstructure:"targets"`
}

// App holds general application configuration
type App struct {
	LogLevel   string `mapstructure:"log_level"`
	LogFormat  string `mapstructure:"log_format"`
	ConfigFile string `mapstructure:"config_file"`
}

// State holds the de-duplication state store configuration
type State struct {
	Backend string `mapstructure:"backend"` // "file", "sqlite" or "postgres"
	Path    string `mapstructure:"path"`    // File path, or a connection string for postgres
}

// Fetch holds page fetcher configuration
type Fetch struct {
	Timeout      string `mapstructure:"timeout"`
	UserAgent    string `mapstructure:"user_agent"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
}

// Notify holds webhook notifier configuration
type Notify struct {
	Platform   string `mapstructure:"platform"` // "discord" or "slack"
	WebhookURL string `mapstructure:"webhook_url"`
	Username   string `mapstructure:"username"`
	AvatarURL  string `mapstructure:"avatar_url"`
	IconEmoji  string `mapstructure:"icon_emoji"`
	Timeout    string `mapstructure:"timeout"`
}

// Schedule holds the cron configuration used by the watch command
type Schedule struct {
	Cron     string `mapstructure:"cron"`
	Timezone string `mapstructure:"timezone"`
}

// Server holds the status endpoint configuration used by the watch command
type Server struct {
	Listen       string `mapstructure:"listen"` // empty disables the endpoint
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// TargetConfig describes one monitored product
type TargetConfig struct {
	Name     string        `mapstructure:"name"`
	URLs     []string      `mapstructure:"urls"`
	Strategy string        `mapstructure:"strategy"`
	Phrases  PhrasesConfig `mapstructure:"phrases"`
	Topic    TopicConfig   `mapstructure:"topic"`
}

// PhrasesConfig holds a target's phrase sets
type PhrasesConfig struct {
	StrictPositive []string `mapstructure:"strict_positive"`
	WidePositive   []string `mapstructure:"wide_positive"`
	Negative       []string `mapstructure:"negative"`
}

// TopicConfig holds a target's topical gate terms
type TopicConfig struct {
	Required []string `mapstructure:"required"`
	AnyOf    []string `mapstructure:"any_of"`
}

// Default timeouts, also used when a duration cannot be parsed.
const (
	DefaultFetchTimeout  = 25 * time.Second
	DefaultNotifyTimeout = 15 * time.Second
)

// DefaultUserAgent mimics a desktop browser; some storefronts serve a
// reduced page to unknown clients.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// DefaultTarget is monitored when the configuration names no targets.
func DefaultTarget() TargetConfig {
	return TargetConfig{
		Name:     "Steam Deck Refurbished (US)",
		URLs:     []string{"https://store.steampowered.com/sale/steamdeckrefurbished/"},
		Strategy: string(core.StrategyStrict),
		Topic: TopicConfig{
			Required: []string{"steam deck"},
			AnyOf:    []string{"refurb", "refurbished", "certified refurbished"},
		},
	}
}

// Load loads the configuration from the config file, .env and the
// environment. An empty configFile searches . and $HOME for .stockwatch.yaml.
func Load(configFile string) (*Config, error) {
	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.SetConfigName(".stockwatch")
		v.SetConfigType("yaml")
	}

	setDefaults(v)
	bindEnvironmentVariables(v)

	v.SetEnvPrefix("STOCKWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.App.ConfigFile = v.ConfigFileUsed()

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	v.SetDefault("state.backend", "file")
	v.SetDefault("state.path", ".stockwatch-state.json")

	v.SetDefault("fetch.timeout", DefaultFetchTimeout.String())
	v.SetDefault("fetch.user_agent", DefaultUserAgent)
	v.SetDefault("fetch.max_body_bytes", 5<<20)

	v.SetDefault("notify.platform", "discord")
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.username", "stockwatch")
	v.SetDefault("notify.avatar_url", "")
	v.SetDefault("notify.icon_emoji", ":shopping_trolley:")
	v.SetDefault("notify.timeout", DefaultNotifyTimeout.String())

	v.SetDefault("schedule.cron", "*/15 * * * *")
	v.SetDefault("schedule.timezone", "UTC")

	v.SetDefault("server.listen", "")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables(v *viper.Viper) {
	discord := bindEnvKeys(v, "notify.webhook_url", []string{
		"STOCKWATCH_WEBHOOK_URL",
		"DISCORD_WEBHOOK_URL",
		"DISCORD_WEBHOOK",
	})
	if discord == "" {
		if slack := bindEnvKeys(v, "notify.webhook_url", []string{
			"SLACK_WEBHOOK_URL",
			"SLACK_WEBHOOK",
		}); slack != "" {
			v.Set("notify.platform", "slack")
		}
	}

	bindEnvKeys(v, "state.path", []string{
		"STOCKWATCH_STATE_FILE",
	})

	bindEnvKeys(v, "app.log_level", []string{
		"STOCKWATCH_LOG_LEVEL",
		"LOG_LEVEL",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key and
// returns its value.
func bindEnvKeys(v *viper.Viper, viperKey string, envKeys []string) string {
	for _, envKey := range envKeys {
		if value := strings.TrimSpace(os.Getenv(envKey)); value != "" {
			v.Set(viperKey, value)
			return value
		}
	}
	return ""
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) error {
	config.State.Backend = strings.ToLower(strings.TrimSpace(config.State.Backend))
	// For postgres the path is a connection string and is used verbatim.
	if config.State.Path != "" && config.State.Backend != "postgres" {
		config.State.Path = expandPath(config.State.Path)
	}
	config.Notify.Platform = strings.ToLower(strings.TrimSpace(config.Notify.Platform))
	config.Notify.WebhookURL = strings.TrimSpace(config.Notify.WebhookURL)

	if len(config.Targets) == 0 {
		config.Targets = []TargetConfig{DefaultTarget()}
	}
	for i := range config.Targets {
		t := &config.Targets[i]
		t.Strategy = strings.ToLower(strings.TrimSpace(t.Strategy))
		if t.Name == "" && len(t.URLs) > 0 {
			if u, err := url.Parse(t.URLs[0]); err == nil && u.Host != "" {
				t.Name = u.Host + u.Path
			}
		}
	}

	durations := map[string]string{
		"fetch.timeout":        config.Fetch.Timeout,
		"notify.timeout":       config.Notify.Timeout,
		"server.read_timeout":  config.Server.ReadTimeout,
		"server.write_timeout": config.Server.WriteTimeout,
	}

	for key, duration := range durations {
		if duration != "" {
			d, err := time.ParseDuration(duration)
			if err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
			if d <= 0 {
				return fmt.Errorf("duration for %s must be positive: %s", key, duration)
			}
		}
	}

	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig ensures the configuration is structurally sound. Delivery
// settings are checked separately by ValidateForRun so that read-only
// commands work without a webhook.
func validateConfig(config *Config) error {
	var errors []string

	switch config.State.Backend {
	case "file", "sqlite", "postgres":
	default:
		errors = append(errors, fmt.Sprintf("Unknown state backend: %s. Supported: file, sqlite, postgres", config.State.Backend))
	}
	if config.State.Path == "" {
		errors = append(errors, "state.path must not be empty")
	} else if config.State.Backend == "postgres" && !isPostgresDSN(config.State.Path) {
		errors = append(errors, "state.path must be a postgres connection string when state.backend is postgres")
	}

	if platforms := messaging.GetAvailablePlatforms(); !slices.Contains(platforms, config.Notify.Platform) {
		errors = append(errors, fmt.Sprintf("Unknown notify platform: %s. Supported: %s", config.Notify.Platform, strings.Join(platforms, ", ")))
	}

	if config.Fetch.MaxBodyBytes < 0 {
		errors = append(errors, "fetch.max_body_bytes must not be negative")
	}

	seen := make(map[string]bool)
	for i, t := range config.Targets {
		label := fmt.Sprintf("targets[%d]", i)
		blankName := normalize.IsBlank(t.Name)
		if !blankName {
			label = fmt.Sprintf("target %q", t.Name)
		}
		if blankName {
			errors = append(errors, fmt.Sprintf("%s: name is required", label))
		} else if seen[t.Name] {
			errors = append(errors, fmt.Sprintf("%s: duplicate target name", label))
		}
		seen[t.Name] = true

		if len(t.URLs) == 0 {
			errors = append(errors, fmt.Sprintf("%s: at least one URL is required", label))
		}
		for _, raw := range t.URLs {
			u, err := url.ParseRequestURI(raw)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				errors = append(errors, fmt.Sprintf("%s: invalid URL %q", label, raw))
			}
		}

		if _, err := detect.New(t.Target()); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func isPostgresDSN(s string) bool {
	return strings.HasPrefix(s, "postgres://") || strings.HasPrefix(s, "postgresql://") || strings.Contains(s, "=")
}

// ValidateForRun checks the settings a monitoring pass cannot start without.
func (c *Config) ValidateForRun() error {
	if c.Notify.WebhookURL == "" {
		return fmt.Errorf("configuration errors:\n- no delivery destination configured. Set DISCORD_WEBHOOK (or SLACK_WEBHOOK_URL) or notify.webhook_url in the config file")
	}
	u, err := url.ParseRequestURI(c.Notify.WebhookURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("configuration errors:\n- notify.webhook_url is not a valid http(s) URL")
	}
	return nil
}

// Target converts the configuration entry into a classifier target with
// default phrase sets applied.
func (t TargetConfig) Target() core.Target {
	return detect.ApplyDefaults(core.Target{
		Name:     t.Name,
		URLs:     append([]string(nil), t.URLs...),
		Strategy: core.Strategy(t.Strategy),
		Phrases: core.PhraseConfig{
			StrictPositive: append([]string(nil), t.Phrases.StrictPositive...),
			WidePositive:   append([]string(nil), t.Phrases.WidePositive...),
			Negative:       append([]string(nil), t.Phrases.Negative...),
		},
		Topic: core.TopicGate{
			Required: append([]string(nil), t.Topic.Required...),
			AnyOf:    append([]string(nil), t.Topic.AnyOf...),
		},
	})
}

// CoreTargets returns every configured target in configuration order.
func (c *Config) CoreTargets() []core.Target {
	targets := make([]core.Target, 0, len(c.Targets))
	for _, t := range c.Targets {
		targets = append(targets, t.Target())
	}
	return targets
}

// FetchTimeout returns the parsed fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return parseDuration(c.Fetch.Timeout, DefaultFetchTimeout)
}

// NotifyTimeout returns the parsed notify timeout.
func (c *Config) NotifyTimeout() time.Duration {
	return parseDuration(c.Notify.Timeout, DefaultNotifyTimeout)
}

// ServerReadTimeout returns the parsed status endpoint read timeout.
func (c *Config) ServerReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 10*time.Second)
}

// ServerWriteTimeout returns the parsed status endpoint write timeout.
func (c *Config) ServerWriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 10*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
