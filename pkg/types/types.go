// Package types defines shared types used across all brain modules.
package types

import "time"

// ═══════════════════════════════════════════════════════════════════════════════
// TOKEN ESTIMATION
// ═══════════════════════════════════════════════════════════════════════════════

// CharsPerToken is the heuristic for token estimation (~4 chars per token).
// This is a common approximation for English text with LLM tokenizers.
const CharsPerToken = 4

// EstimateTokens provides a rough token estimate for a given text.
// Rounds up so a non-empty string never estimates to zero tokens.
func EstimateTokens(text string) int {
	return (len(text) + CharsPerToken - 1) / CharsPerToken
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONVERSATION TYPES
// ═══════════════════════════════════════════════════════════════════════════════

// InterfaceType identifies which adapter a conversation belongs to.
type InterfaceType string

const (
	InterfaceCLI    InterfaceType = "cli"
	InterfaceMatrix InterfaceType = "matrix"
)

// TurnState tracks whether a turn is still part of the active tier.
// The transition active -> summarized is one-way.
type TurnState string

const (
	TurnStateActive     TurnState = "active"
	TurnStateSummarized TurnState = "summarized"
)

// Conversation is a durable record of an exchange thread in a room.
// There is at most one conversation per (RoomID, InterfaceType).
type Conversation struct {
	ID            string            `json:"id"`
	InterfaceType InterfaceType     `json:"interface_type"`
	RoomID        string            `json:"room_id"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Turn is a single query/response exchange. Query and Response are
// immutable once stored; only State and SummaryID may change.
type Turn struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversation_id"`
	Timestamp      time.Time         `json:"timestamp"`
	Query          string            `json:"query"`
	Response       string            `json:"response"`
	UserID         string            `json:"user_id,omitempty"`
	UserName       string            `json:"user_name,omitempty"`
	State          TurnState         `json:"state"`
	SummaryID      string            `json:"summary_id,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Summary is a condensed representation of a contiguous block of turns.
// Summaries are append-only.
type Summary struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversation_id"`
	Content        string            `json:"content"`
	StartTurnID    string            `json:"start_turn_id"`
	EndTurnID      string            `json:"end_turn_id"`
	TurnCount      int               `json:"turn_count"`
	TurnIDs        []string          `json:"turn_ids"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// ConversationInfo is the lightweight shape returned by FindConversations.
// It carries no turn or summary payload.
type ConversationInfo struct {
	ID            string        `json:"id"`
	InterfaceType InterfaceType `json:"interface_type"`
	RoomID        string        `json:"room_id"`
	TurnCount     int           `json:"turn_count"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// NOTE AND PROFILE TYPES
// ═══════════════════════════════════════════════════════════════════════════════

// Note is a stored knowledge item returned by note retrieval.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile describes the user the assistant answers on behalf of.
type Profile struct {
	FullName   string       `json:"full_name" yaml:"full_name"`
	Headline   string       `json:"headline,omitempty" yaml:"headline"`
	Occupation string       `json:"occupation,omitempty" yaml:"occupation"`
	City       string       `json:"city,omitempty" yaml:"city"`
	Country    string       `json:"country,omitempty" yaml:"country"`
	Summary    string       `json:"summary,omitempty" yaml:"summary"`
	Experience []Experience `json:"experience,omitempty" yaml:"experience"`
	Education  []Education  `json:"education,omitempty" yaml:"education"`
	Projects   []Project    `json:"projects,omitempty" yaml:"projects"`
	Languages  []string     `json:"languages,omitempty" yaml:"languages"`
	Embedding  []float32    `json:"embedding,omitempty" yaml:"-"`
}

// Experience is a single role in a profile.
type Experience struct {
	Title        string `json:"title" yaml:"title"`
	Organization string `json:"organization" yaml:"organization"`
	Description  string `json:"description,omitempty" yaml:"description"`
	StartDate    string `json:"start_date,omitempty" yaml:"start_date"`
	EndDate      string `json:"end_date,omitempty" yaml:"end_date"`
	Current      bool   `json:"current,omitempty" yaml:"current"`
}

// Education is a single education entry in a profile.
type Education struct {
	Degree    string `json:"degree" yaml:"degree"`
	School    string `json:"school" yaml:"school"`
	StartDate string `json:"start_date,omitempty" yaml:"start_date"`
	EndDate   string `json:"end_date,omitempty" yaml:"end_date"`
}

// Project is a single project entry in a profile.
type Project struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// QUERY RESULT TYPES
// ═══════════════════════════════════════════════════════════════════════════════

// NoteCitation points back at a note that backed part of an answer.
// Citation order aligns 1:1 with the numbered context blocks in the prompt.
type NoteCitation struct {
	NoteID  string `json:"note_id"`
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
}

// ExternalCitation points back at an external search result.
type ExternalCitation struct {
	URL    string `json:"url"`
	Source string `json:"source"`
	Title  string `json:"title"`
}

// ExternalResult is a single hit from external semantic search.
type ExternalResult struct {
	Title   string `json:"title"`
	Source  string `json:"source"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// QueryResponse is the packaged result of one orchestrated query.
// Profile and ExternalSources are present only when their response
// thresholds are met; the prompt may have seen more than is echoed back.
type QueryResponse struct {
	Answer          string             `json:"answer"`
	Citations       []NoteCitation     `json:"citations"`
	RelatedNotes    []*Note            `json:"related_notes"`
	Profile         *Profile           `json:"profile,omitempty"`
	ExternalSources []ExternalCitation `json:"external_sources,omitempty"`
}
