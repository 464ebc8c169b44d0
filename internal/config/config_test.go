package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/yeehaa123/personal-brain-sub002/pkg/types"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.LLM.Endpoint != "http://localhost:11434" {
		t.Errorf("expected default ollama endpoint, got '%s'", cfg.LLM.Endpoint)
	}
	if cfg.Memory.MaxActiveTurns != 10 {
		t.Errorf("expected 10 max active turns, got %d", cfg.Memory.MaxActiveTurns)
	}
	if cfg.Memory.SummaryTurnCount != 5 {
		t.Errorf("expected summary turn count 5, got %d", cfg.Memory.SummaryTurnCount)
	}
	if cfg.External.Enabled {
		t.Error("expected external search disabled by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got '%s'", cfg.Logging.Level)
	}

	precedence := cfg.RoomPrecedence()
	if len(precedence) != 2 || precedence[0] != types.InterfaceCLI || precedence[1] != types.InterfaceMatrix {
		t.Errorf("unexpected default room precedence: %v", precedence)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config fails validation: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, ".brain", "config.yaml")

	// First load writes the default config.
	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	if cfg.LLM.Model == "" {
		t.Error("expected default model to be set")
	}

	// Second load reads the written file back.
	cfg2, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("failed to reload config: %v", err)
	}
	if cfg2.LLM.Model != cfg.LLM.Model {
		t.Errorf("reloaded model '%s' differs from '%s'", cfg2.LLM.Model, cfg.LLM.Model)
	}
}

func TestLoadFromPathCustomValues(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	custom := `
data:
  dir: ` + tempDir + `
llm:
  endpoint: http://ollama.internal:11434
  model: mistral:7b
memory:
  max_active_turns: 20
  summary_turn_count: 8
query:
  room_precedence: [matrix, cli]
`
	if err := os.WriteFile(configPath, []byte(custom), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.LLM.Model != "mistral:7b" {
		t.Errorf("expected model 'mistral:7b', got '%s'", cfg.LLM.Model)
	}
	if cfg.Memory.MaxActiveTurns != 20 {
		t.Errorf("expected 20 max active turns, got %d", cfg.Memory.MaxActiveTurns)
	}

	precedence := cfg.RoomPrecedence()
	if len(precedence) != 2 || precedence[0] != types.InterfaceMatrix {
		t.Errorf("expected matrix-first precedence, got %v", precedence)
	}
}

func TestValidate(t *testing.T) {
	t.Run("rejects unknown precedence interface", func(t *testing.T) {
		cfg := Default()
		cfg.Query.RoomPrecedence = []string{"telegram"}
		if err := cfg.Validate(); err == nil {
			t.Error("expected validation error for unknown interface type")
		}
	})

	t.Run("rejects enabled external search without endpoint", func(t *testing.T) {
		cfg := Default()
		cfg.External.Enabled = true
		cfg.External.Endpoint = ""
		if err := cfg.Validate(); err == nil {
			t.Error("expected validation error for missing external endpoint")
		}
	})

	t.Run("rejects zero memory bounds", func(t *testing.T) {
		cfg := Default()
		cfg.Memory.MaxActiveTurns = 0
		if err := cfg.Validate(); err == nil {
			t.Error("expected validation error for zero max active turns")
		}
	})
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	got := expandPath("~/.brain")
	want := filepath.Join(home, ".brain")
	if got != want {
		t.Errorf("expandPath('~/.brain') = '%s', want '%s'", got, want)
	}

	if got := expandPath("/absolute/path"); got != "/absolute/path" {
		t.Errorf("absolute path was rewritten to '%s'", got)
	}
}
