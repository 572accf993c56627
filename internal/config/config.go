// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Browser() BrowserConfig
	Engine() EngineConfig
	Resolver() ResolverConfig
	LLM() LLMConfig

	// Engine setters, used by CLI flag binding.
	SetEngineMaxRecoveryAttempts(int)
	SetEngineStartURL(string)

	// Browser setters.
	SetBrowserHeadless(bool)

	// Resolver setters.
	SetResolverStrategy(string)
}

// Config holds the entire application configuration. Private fields
// enforce access through the Interface's getter methods.
type Config struct {
	logger   LoggerConfig
	database DatabaseConfig
	browser  BrowserConfig
	engine   EngineConfig
	resolver ResolverConfig
	llm      LLMConfig
}

// rawConfig mirrors Config with exported fields so viper can decode into
// it. Decoding cannot reach unexported fields directly.
type rawConfig struct {
	Logger   LoggerConfig   `mapstructure:"logger"`
	Database DatabaseConfig `mapstructure:"database"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	LLM      LLMConfig      `mapstructure:"llm"`
}

func (r rawConfig) toConfig() *Config {
	return &Config{
		logger:   r.Logger,
		database: r.Database,
		browser:  r.Browser,
		engine:   r.Engine,
		resolver: r.Resolver,
		llm:      r.LLM,
	}
}

// -- Interface Method Implementations (Getters) --

func (c *Config) Logger() LoggerConfig     { return c.logger }
func (c *Config) Database() DatabaseConfig { return c.database }
func (c *Config) Browser() BrowserConfig   { return c.browser }
func (c *Config) Engine() EngineConfig     { return c.engine }
func (c *Config) Resolver() ResolverConfig { return c.resolver }
func (c *Config) LLM() LLMConfig           { return c.llm }

// -- Interface Method Implementations (Setters) --

func (c *Config) SetEngineMaxRecoveryAttempts(n int) { c.engine.MaxRecoveryAttempts = n }
func (c *Config) SetEngineStartURL(u string)         { c.engine.StartURL = u }
func (c *Config) SetBrowserHeadless(b bool)          { c.browser.Headless = b }
func (c *Config) SetResolverStrategy(s string)       { c.resolver.Strategy = s }

var _ Interface = (*Config)(nil)

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the fragment store connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	UserAgent       string   `mapstructure:"user_agent" yaml:"user_agent"`
	WindowWidth     int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight    int      `mapstructure:"window_height" yaml:"window_height"`
	Args            []string `mapstructure:"args" yaml:"args"`
}

// EngineConfig tunes the execution state machine.
type EngineConfig struct {
	StartURL            string        `mapstructure:"start_url" yaml:"start_url"`
	MaxRecoveryAttempts int           `mapstructure:"max_recovery_attempts" yaml:"max_recovery_attempts"`
	StepTimeout         time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
	ActionTimeout       time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	NavigationTimeout   time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostActionWait      time.Duration `mapstructure:"post_action_wait" yaml:"post_action_wait"`
	RecordFragments     bool          `mapstructure:"record_fragments" yaml:"record_fragments"`
}

// ResolverConfig tunes scanning and ranking.
type ResolverConfig struct {
	Strategy           string        `mapstructure:"strategy" yaml:"strategy"`
	MaxClickables      int           `mapstructure:"max_clickables" yaml:"max_clickables"`
	MaxInputs          int           `mapstructure:"max_inputs" yaml:"max_inputs"`
	ScanTimeout        time.Duration `mapstructure:"scan_timeout" yaml:"scan_timeout"`
	ScrollSettle       time.Duration `mapstructure:"scroll_settle" yaml:"scroll_settle"`
	EmbeddingCacheSize int           `mapstructure:"embedding_cache_size" yaml:"embedding_cache_size"`
}

// LLMConfig configures the model used for planning, recovery advice and
// text embeddings. An empty APIKey disables remote calls; every consumer
// has a deterministic local fallback.
type LLMConfig struct {
	APIKey         string        `mapstructure:"api_key" yaml:"-"`
	Model          string        `mapstructure:"model" yaml:"model"`
	EmbeddingModel string        `mapstructure:"embedding_model" yaml:"embedding_model"`
	Temperature    float32       `mapstructure:"temperature" yaml:"temperature"`
	APITimeout     time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	RequestsPerMin int           `mapstructure:"requests_per_min" yaml:"requests_per_min"`
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		// Cannot happen with defaults only.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return raw.toConfig()
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "flowpilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Database --
	v.SetDefault("database.url", "")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.window_width", 1366)
	v.SetDefault("browser.window_height", 900)

	// -- Engine --
	v.SetDefault("engine.max_recovery_attempts", 3)
	v.SetDefault("engine.step_timeout", "30s")
	v.SetDefault("engine.action_timeout", "5s")
	v.SetDefault("engine.navigation_timeout", "45s")
	v.SetDefault("engine.post_action_wait", "1500ms")
	v.SetDefault("engine.record_fragments", true)

	// -- Resolver --
	v.SetDefault("resolver.strategy", "production")
	v.SetDefault("resolver.max_clickables", 200)
	v.SetDefault("resolver.max_inputs", 50)
	v.SetDefault("resolver.scan_timeout", "4s")
	v.SetDefault("resolver.scroll_settle", "700ms")
	v.SetDefault("resolver.embedding_cache_size", 2048)

	// -- LLM --
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.embedding_model", "gemini-embedding-001")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.api_timeout", "45s")
	v.SetDefault("llm.requests_per_min", 30)
}

// AddConfigPaths registers the config file search locations: the working
// directory first, then ~/.flowpilot.
func AddConfigPaths(v *viper.Viper) {
	v.AddConfigPath(".")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".flowpilot"))
	}
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data.
	v.BindEnv("llm.api_key", "FLOWPILOT_LLM_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("database.url", "FLOWPILOT_DATABASE_URL")

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg := raw.toConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.engine.MaxRecoveryAttempts < 0 {
		return fmt.Errorf("engine.max_recovery_attempts must not be negative")
	}
	if c.engine.ActionTimeout <= 0 {
		return fmt.Errorf("engine.action_timeout must be a positive duration")
	}
	if c.resolver.MaxClickables <= 0 || c.resolver.MaxInputs <= 0 {
		return fmt.Errorf("resolver element caps must be positive")
	}
	switch c.resolver.Strategy {
	case "legacy", "production", "fused":
	default:
		return fmt.Errorf("resolver.strategy must be one of legacy, production, fused (got %q)", c.resolver.Strategy)
	}
	if c.resolver.EmbeddingCacheSize <= 0 {
		return fmt.Errorf("resolver.embedding_cache_size must be positive")
	}
	return nil
}
