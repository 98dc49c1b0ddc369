// Package config loads the application configuration from an optional
// YAML file, environment variables (WAYFINDER_ prefix) and defaults,
// in ascending precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	LLM     LLMConfig     `mapstructure:"llm"`
	Browser BrowserConfig `mapstructure:"browser"`
	Run     RunConfig     `mapstructure:"run"`
	Log     LogConfig     `mapstructure:"log"`
	Tasks   TaskBook      `mapstructure:"tasks"`
}

type LLMConfig struct {
	Model          string        `mapstructure:"model"`
	BaseURL        string        `mapstructure:"base_url"`
	Temperature    float32       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

type BrowserConfig struct {
	Headless      bool          `mapstructure:"headless"`
	SlowMotion    time.Duration `mapstructure:"slow_motion"`
	ActionTimeout time.Duration `mapstructure:"action_timeout"`
	NavTimeout    time.Duration `mapstructure:"nav_timeout"`
	SettleTimeout time.Duration `mapstructure:"settle_timeout"`
	ViewportW     int           `mapstructure:"viewport_width"`
	ViewportH     int           `mapstructure:"viewport_height"`
}

type RunConfig struct {
	MaxSteps     int    `mapstructure:"max_steps"`
	FailureLimit int    `mapstructure:"failure_limit"`
	LoopWindow   int    `mapstructure:"loop_window"`
	HistoryDepth int    `mapstructure:"history_depth"`
	OutputDir    string `mapstructure:"output_dir"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age"`
}

// TaskBook maps app name to its named tasks. Runs may also bypass the
// book entirely with an explicit URL and description.
type TaskBook map[string]map[string]TaskSpec

type TaskSpec struct {
	URL         string `mapstructure:"url" yaml:"url"`
	Description string `mapstructure:"description" yaml:"description"`
}

// Lookup resolves a task-book entry by app and task name.
func (b TaskBook) Lookup(app, task string) (TaskSpec, bool) {
	tasks, ok := b[app]
	if !ok {
		return TaskSpec{}, false
	}
	spec, ok := tasks[task]
	return spec, ok
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("llm.model", "openai/gpt-4o-mini")
	v.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 500)
	v.SetDefault("llm.request_timeout", "60s")
	v.SetDefault("llm.max_retries", 3)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.slow_motion", "0s")
	v.SetDefault("browser.action_timeout", "10s")
	v.SetDefault("browser.nav_timeout", "30s")
	v.SetDefault("browser.settle_timeout", "3s")
	v.SetDefault("browser.viewport_width", 1920)
	v.SetDefault("browser.viewport_height", 1080)

	v.SetDefault("run.max_steps", 15)
	v.SetDefault("run.failure_limit", 5)
	v.SetDefault("run.loop_window", 5)
	v.SetDefault("run.history_depth", 5)
	v.SetDefault("run.output_dir", "dataset")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 50)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 14)
}

// Load reads the configuration. cfgFile may be empty, in which case
// wayfinder.yaml is picked up from the working directory when present.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("WAYFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName("wayfinder")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Run.MaxSteps < 0 {
		return fmt.Errorf("run.max_steps must not be negative")
	}
	if c.Run.FailureLimit <= 0 {
		return fmt.Errorf("run.failure_limit must be a positive integer")
	}
	if c.Run.LoopWindow <= 0 {
		return fmt.Errorf("run.loop_window must be a positive integer")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.RequestTimeout <= 0 {
		return fmt.Errorf("llm.request_timeout must be positive")
	}
	if c.Browser.ActionTimeout <= 0 || c.Browser.NavTimeout <= 0 || c.Browser.SettleTimeout <= 0 {
		return fmt.Errorf("browser timeouts must be positive")
	}
	if c.Run.OutputDir == "" {
		return fmt.Errorf("run.output_dir is required")
	}
	return nil
}
