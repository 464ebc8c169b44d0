package orchestrator

import (
	"context"

	"github.com/yeehaa123/personal-brain-sub002/pkg/types"
)

// Collaborator contracts consumed by the orchestrator. Concrete
// implementations (SQLite notes, YAML profile, Ollama model) live in their
// own packages; the engine depends only on these interfaces.

// NoteRetrieval searches the persistent note store.
type NoteRetrieval interface {
	// Search returns candidate notes for a query, optionally filtered by tags.
	Search(ctx context.Context, query string, tags []string, limit int) ([]*types.Note, error)

	// GetByID retrieves a single note, or nil when absent.
	GetByID(ctx context.Context, id string) (*types.Note, error)

	// GetRelated returns notes related to an existing note.
	GetRelated(ctx context.Context, noteID string, limit int) ([]*types.Note, error)
}

// ProfileRetrieval loads the user's profile, or nil when none is configured.
type ProfileRetrieval interface {
	Get(ctx context.Context) (*types.Profile, error)
}

// ExternalSearch queries an external semantic search service.
type ExternalSearch interface {
	SemanticSearch(ctx context.Context, query string, limit int) ([]types.ExternalResult, error)
}

// Completion is a language model response with usage accounting.
type Completion struct {
	Text             string `json:"text"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

// LanguageModel generates the final answer.
type LanguageModel interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (*Completion, error)
}
