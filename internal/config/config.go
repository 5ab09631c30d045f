// Package config loads the strategist core's process configuration: LLM
// provider selection and per-task overrides, workflow timeouts, and
// logging. It mirrors the teacher's internal/config package: a single YAML
// file, typed into a Config struct, with defaults applied for anything the
// operator omits.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TaskKind identifies one of the six LLM task types the gateway serves.
type TaskKind string

const (
	TaskFeatures TaskKind = "features"
	TaskInsights TaskKind = "insights"
	TaskPatch    TaskKind = "patch"
	TaskEdit     TaskKind = "edit"
	TaskBrief    TaskKind = "brief"
	TaskAnalyze  TaskKind = "analyze"
)

// defaultTemperatures is the immutable per-task temperature map from
// spec.md §4.3. A task not present here falls back to 0.3.
var defaultTemperatures = map[TaskKind]float32{
	TaskFeatures: 0.2,
	TaskInsights: 0.35,
	TaskPatch:    0.2,
	TaskEdit:     0.2,
	TaskBrief:    0.3,
	TaskAnalyze:  0.35,
}

const defaultTemperature = 0.3

// TemperatureFor returns the task's entry in TaskTemperatures, falling
// back to the compiled-in per-task default and then to 0.3.
func (c *LLMConfig) TemperatureFor(task TaskKind) float32 {
	if c != nil {
		if t, ok := c.TaskTemperatures[task]; ok {
			return t
		}
	}
	if t, ok := defaultTemperatures[task]; ok {
		return t
	}
	return defaultTemperature
}

// ModelFor returns the per-task model override, or the provider-wide
// default model when none is set for this task.
func (c *LLMConfig) ModelFor(task TaskKind) string {
	if c != nil {
		if m, ok := c.TaskModels[task]; ok && m != "" {
			return m
		}
		return c.Model
	}
	return ""
}

type ServerConfig struct {
	WebhookPort string `yaml:"webhook_port"`
	MetricsPort string `yaml:"metrics_port"`
}

// LLMConfig selects the provider and describes the per-task overrides
// layered on top of the compiled-in temperature table.
type LLMConfig struct {
	Provider         string              `yaml:"provider"`
	Endpoint         string              `yaml:"endpoint"`
	Model            string              `yaml:"model"`
	APIKeyEnv        string              `yaml:"api_key_env"`
	Timeout          time.Duration       `yaml:"timeout"`
	MaxTokens        int                 `yaml:"max_tokens"`
	MaxContextSize   int                 `yaml:"max_context_size"`
	TaskModels       map[TaskKind]string `yaml:"task_models"`
	TaskTemperatures map[TaskKind]float32 `yaml:"task_temperatures"`
}

type WorkflowConfig struct {
	StepTimeout time.Duration `yaml:"step_timeout"`
	Debug       bool          `yaml:"debug"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Logging  LoggingConfig  `yaml:"logging"`
}

func applyDefaults(c *Config) {
	if c.Server.WebhookPort == "" {
		c.Server.WebhookPort = "8080"
	}
	if c.Server.MetricsPort == "" {
		c.Server.MetricsPort = "9090"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "anthropic"
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 30 * time.Second
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 2048
	}
	if c.Workflow.StepTimeout == 0 {
		c.Workflow.StepTimeout = 120 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Load reads and parses the YAML file at path, applying defaults for any
// field the file omits. The file is re-readable: Watcher (watch.go)
// reloads it on change.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}
