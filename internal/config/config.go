// Package config loads application configuration from ~/.brain/config.yaml
// with BRAIN_* environment variable overrides. A missing config file is
// replaced with a written default so users always have a file to edit.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/yeehaa123/personal-brain-sub002/pkg/types"
)

// Config holds all application configuration for the brain engine.
type Config struct {
	Data     DataConfig     `mapstructure:"data" yaml:"data"`
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	Memory   MemoryConfig   `mapstructure:"memory" yaml:"memory"`
	Query    QueryConfig    `mapstructure:"query" yaml:"query"`
	External ExternalConfig `mapstructure:"external" yaml:"external"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// DataConfig locates the on-disk state (SQLite database, profile file).
type DataConfig struct {
	// Dir is the directory holding brain.db and profile.yaml.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// LLMConfig contains configuration for the Ollama backend.
type LLMConfig struct {
	// Endpoint is the Ollama server URL.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// Model is the chat model used for answers and summaries.
	Model string `mapstructure:"model" yaml:"model"`
	// EmbeddingModel is the model used for embeddings. Empty disables
	// embedding-based relevance and falls back to keyword matching.
	EmbeddingModel string `mapstructure:"embedding_model" yaml:"embedding_model"`
	// TimeoutSec is the per-request timeout in seconds.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// MemoryConfig bounds the tiered conversation memory.
type MemoryConfig struct {
	// MaxActiveTurns is the active-tier size above which summarization triggers.
	MaxActiveTurns int `mapstructure:"max_active_turns" yaml:"max_active_turns"`
	// SummaryTurnCount caps how many turns one summary condenses.
	SummaryTurnCount int `mapstructure:"summary_turn_count" yaml:"summary_turn_count"`
	// MaxArchivedTurns bounds how many summarized turns history retrieval returns.
	MaxArchivedTurns int `mapstructure:"max_archived_turns" yaml:"max_archived_turns"`
}

// QueryConfig bounds a single orchestrated query.
type QueryConfig struct {
	// NoteLimit is the maximum number of notes retrieved per query.
	NoteLimit int `mapstructure:"note_limit" yaml:"note_limit"`
	// RelatedLimit is the maximum number of related notes returned.
	RelatedLimit int `mapstructure:"related_limit" yaml:"related_limit"`
	// HistoryTokens is the token budget for formatted conversation history.
	HistoryTokens int `mapstructure:"history_tokens" yaml:"history_tokens"`
	// AnswerTokens is the generation budget for the final answer.
	AnswerTokens int `mapstructure:"answer_tokens" yaml:"answer_tokens"`
	// RoomPrecedence orders interface types when resolving a bare room ID.
	RoomPrecedence []string `mapstructure:"room_precedence" yaml:"room_precedence"`
}

// ExternalConfig controls the optional external search service.
type ExternalConfig struct {
	// Enabled turns external search on. The engine still gates each query
	// on note coverage and query keywords.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Endpoint is the external semantic search URL.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// Limit is the maximum number of external results per query.
	Limit int `mapstructure:"limit" yaml:"limit"`
}

// LoggingConfig controls structured logging output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`
	// File is an optional log file path; empty logs to stderr.
	File string `mapstructure:"file" yaml:"file"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Dir: "~/.brain",
		},
		LLM: LLMConfig{
			Endpoint:       "http://localhost:11434",
			Model:          "llama3.1:8b",
			EmbeddingModel: "nomic-embed-text",
			TimeoutSec:     120,
		},
		Memory: MemoryConfig{
			MaxActiveTurns:   10,
			SummaryTurnCount: 5,
			MaxArchivedTurns: 50,
		},
		Query: QueryConfig{
			NoteLimit:      5,
			RelatedLimit:   3,
			HistoryTokens:  1500,
			AnswerTokens:   1000,
			RoomPrecedence: []string{string(types.InterfaceCLI), string(types.InterfaceMatrix)},
		},
		External: ExternalConfig{
			Enabled: false,
			Limit:   3,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// Load reads configuration from ~/.brain/config.yaml.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}

	return LoadFromPath(filepath.Join(homeDir, ".brain", "config.yaml"))
}

// LoadFromPath reads configuration from an explicit path, writing the
// default config there first when the file does not exist.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Environment overrides, e.g. BRAIN_LLM_ENDPOINT, BRAIN_LOGGING_LEVEL.
	v.SetEnvPrefix("BRAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Data.Dir = expandPath(cfg.Data.Dir)
	cfg.Logging.File = expandPath(cfg.Logging.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir must be set")
	}
	if c.LLM.Endpoint == "" {
		return fmt.Errorf("llm.endpoint must be set")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model must be set")
	}
	if c.Memory.MaxActiveTurns < 1 {
		return fmt.Errorf("memory.max_active_turns must be at least 1")
	}
	if c.Memory.SummaryTurnCount < 1 {
		return fmt.Errorf("memory.summary_turn_count must be at least 1")
	}

	for _, it := range c.Query.RoomPrecedence {
		switch types.InterfaceType(it) {
		case types.InterfaceCLI, types.InterfaceMatrix:
		default:
			return fmt.Errorf("query.room_precedence: unknown interface type %q", it)
		}
	}

	if c.External.Enabled && c.External.Endpoint == "" {
		return fmt.Errorf("external.endpoint must be set when external search is enabled")
	}

	return nil
}

// RoomPrecedence converts the configured precedence into interface types.
func (c *Config) RoomPrecedence() []types.InterfaceType {
	out := make([]types.InterfaceType, 0, len(c.Query.RoomPrecedence))
	for _, it := range c.Query.RoomPrecedence {
		out = append(out, types.InterfaceType(it))
	}
	return out
}

func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
