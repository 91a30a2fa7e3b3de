// Copyright 2026 Tolga Akin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the runtime configuration: YAML with ${VAR}
// environment expansion, seeded by an optional .env file.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the top-level runtime configuration.
type Config struct {
	Agent       AgentConfig       `yaml:"agent"`
	Logging     LoggingConfig     `yaml:"logging"`
	Server      ServerConfig      `yaml:"server"`
	Checkpoints CheckpointsConfig `yaml:"checkpoints"`
	Tasks       TasksConfig       `yaml:"tasks"`
	Shell       ShellConfig       `yaml:"shell"`

	// Features lists feature keys to install with defaults. Load only
	// decodes it; no code in this module reads it or merges it with the
	// WEFT_FEATURES environment variable.
	Features []string `yaml:"features"`

	// FeatureOptions carries per-feature option maps, decoded with
	// DecodeFeatureOptions.
	FeatureOptions map[string]map[string]any `yaml:"feature_options"`
}

// AgentConfig configures the default agent.
type AgentConfig struct {
	ID                 string `yaml:"id"`
	Model              string `yaml:"model"`
	MaxIterations      int    `yaml:"max_iterations"`
	SystemPrompt       string `yaml:"system_prompt"`
	NumberOfChoices    int    `yaml:"number_of_choices"`
	EnablePromptCache  bool   `yaml:"enable_prompt_cache"`
	EnablePersistence  bool   `yaml:"enable_persistence"`
	PersistenceBackend string `yaml:"persistence_backend"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// ServerConfig configures the A2A HTTP surface.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CheckpointsConfig selects a checkpoint storage backend.
type CheckpointsConfig struct {
	// Backend is "memory", "file" or "sqlite".
	Backend string `yaml:"backend"`

	// Root is the file backend's directory.
	Root string `yaml:"root"`

	// Path is the sqlite backend's database file.
	Path string `yaml:"path"`
}

// TasksConfig selects a task storage backend.
type TasksConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend"`

	// Path is the sqlite backend's database file.
	Path string `yaml:"path"`
}

// ShellConfig configures the shell tool.
type ShellConfig struct {
	Enabled        bool          `yaml:"enabled"`
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	AutoApprove    bool          `yaml:"auto_approve"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Agent.ID == "" {
		c.Agent.ID = "weft"
	}
	if c.Agent.MaxIterations == 0 {
		c.Agent.MaxIterations = 10
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "simple"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Checkpoints.Backend == "" {
		c.Checkpoints.Backend = "memory"
	}
	if c.Tasks.Backend == "" {
		c.Tasks.Backend = "memory"
	}
	if c.Shell.DefaultTimeout == 0 {
		c.Shell.DefaultTimeout = 5 * time.Minute
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Checkpoints.Backend {
	case "memory", "file", "sqlite":
	default:
		return fmt.Errorf("unknown checkpoints backend %q", c.Checkpoints.Backend)
	}
	if c.Checkpoints.Backend == "file" && c.Checkpoints.Root == "" {
		return fmt.Errorf("checkpoints.root is required for the file backend")
	}
	if c.Checkpoints.Backend == "sqlite" && c.Checkpoints.Path == "" {
		return fmt.Errorf("checkpoints.path is required for the sqlite backend")
	}

	switch c.Tasks.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown tasks backend %q", c.Tasks.Backend)
	}
	if c.Tasks.Backend == "sqlite" && c.Tasks.Path == "" {
		return fmt.Errorf("tasks.path is required for the sqlite backend")
	}
	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("agent.max_iterations must be >= 1")
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv substitutes ${VAR} references with environment values; unset
// variables expand to empty strings.
func expandEnv(raw []byte) []byte {
	return envVarPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// Load reads, expands and validates a configuration file. A .env file next
// to the process, when present, seeds the environment first.
func Load(path string) (*Config, error) {
	// Missing .env is fine; explicit config errors are not.
	_ = godotenv.Load()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expandEnv(raw), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated default configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// DecodeFeatureOptions decodes a feature's option map into a typed struct
// using mapstructure tags.
func DecodeFeatureOptions(options map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(options)
}
