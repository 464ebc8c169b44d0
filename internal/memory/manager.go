// Package memory implements the tiered conversation memory policy: recent
// turns stay verbatim in the active tier, older batches are compressed into
// summaries, and raw inactive turns remain archived for export and audit.
package memory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/yeehaa123/personal-brain-sub002/internal/data"
	"github.com/yeehaa123/personal-brain-sub002/pkg/types"
)

// Default tier bounds.
const (
	DefaultMaxActiveTurns   = 10
	DefaultSummaryTurnCount = 5
	DefaultMaxArchivedTurns = 50

	// minSummarizableTurns is the smallest batch worth compressing;
	// summarization needs at least two turns of context.
	minSummarizableTurns = 2
)

// Summarizer condenses a block of turns into prose. The LLM-backed
// implementation lives outside this package.
type Summarizer interface {
	Summarize(ctx context.Context, turns []*types.Turn) (string, error)
}

// Config bounds the memory tiers.
type Config struct {
	MaxActiveTurns   int
	SummaryTurnCount int
	MaxArchivedTurns int
}

// DefaultConfig returns sensible tier bounds.
func DefaultConfig() Config {
	return Config{
		MaxActiveTurns:   DefaultMaxActiveTurns,
		SummaryTurnCount: DefaultSummaryTurnCount,
		MaxArchivedTurns: DefaultMaxArchivedTurns,
	}
}

// Manager applies the tiered memory policy over the conversation store.
type Manager struct {
	store      *data.Store
	summarizer Summarizer
	cfg        Config
}

// NewManager creates a tiered memory manager.
func NewManager(store *data.Store, summarizer Summarizer, cfg Config) *Manager {
	if cfg.MaxActiveTurns <= 0 {
		cfg.MaxActiveTurns = DefaultMaxActiveTurns
	}
	if cfg.SummaryTurnCount <= 0 {
		cfg.SummaryTurnCount = DefaultSummaryTurnCount
	}
	if cfg.MaxArchivedTurns <= 0 {
		cfg.MaxArchivedTurns = DefaultMaxArchivedTurns
	}
	return &Manager{store: store, summarizer: summarizer, cfg: cfg}
}

// TieredHistory is the three-tier view of a conversation. All slices are
// timestamp-ascending.
type TieredHistory struct {
	ActiveTurns   []*types.Turn    `json:"active_turns"`
	Summaries     []*types.Summary `json:"summaries"`
	ArchivedTurns []*types.Turn    `json:"archived_turns"`
}

// CheckAndSummarize compresses the oldest block of active turns when the
// active tier has overflowed. It is best-effort: any failure abandons the
// whole step, is logged, and returns false. Callers must treat false as
// retryable, never fatal. Returns true only when a summary was created.
//
// The check is not transactional with turn appends; a turn added after the
// check began may be swept into the batch. Re-running always summarizes
// disjoint turn sets, so the race is tolerated.
func (m *Manager) CheckAndSummarize(ctx context.Context, conversationID string) bool {
	return m.summarize(ctx, conversationID, false)
}

// ForceSummarize compresses the oldest active turns regardless of whether
// the active tier has overflowed. Same best-effort semantics as
// CheckAndSummarize; fewer than two active turns returns false.
func (m *Manager) ForceSummarize(ctx context.Context, conversationID string) bool {
	return m.summarize(ctx, conversationID, true)
}

func (m *Manager) summarize(ctx context.Context, conversationID string, force bool) bool {
	active, _, err := m.loadTiers(ctx, conversationID)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID).Msg("summarization: load turns failed")
		return false
	}

	if !force && len(active) <= m.cfg.MaxActiveTurns {
		return false
	}

	batchSize := m.batchSize(len(active), force)
	if batchSize < minSummarizableTurns {
		log.Debug().
			Str("conversation_id", conversationID).
			Int("active", len(active)).
			Msg("summarization skipped: batch too small")
		return false
	}

	// Oldest contiguous run; active is already timestamp-ascending.
	batch := active[:batchSize]

	content, err := m.summarizer.Summarize(ctx, batch)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID).Msg("summarization: compress failed")
		return false
	}

	turnIDs := make([]string, len(batch))
	for i, turn := range batch {
		turnIDs[i] = turn.ID
	}

	summaryID, err := m.store.AddSummary(ctx, &types.Summary{
		ConversationID: conversationID,
		Content:        content,
		StartTurnID:    batch[0].ID,
		EndTurnID:      batch[len(batch)-1].ID,
		TurnCount:      len(batch),
		TurnIDs:        turnIDs,
	})
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID).Msg("summarization: persist summary failed")
		return false
	}

	// Irreversible transition out of the active tier.
	for _, turn := range batch {
		if err := m.store.MarkTurnSummarized(ctx, turn.ID, summaryID); err != nil {
			log.Warn().Err(err).
				Str("conversation_id", conversationID).
				Str("turn_id", turn.ID).
				Msg("summarization: mark turn failed")
			return false
		}
	}

	log.Info().
		Str("conversation_id", conversationID).
		Str("summary_id", summaryID).
		Int("turns", len(batch)).
		Msg("summarized oldest active turns")

	return true
}

// batchSize selects how many of the oldest active turns to compress. On
// overflow the batch shrinks so roughly 80% of the active bound stays
// verbatim; forced summarization takes up to a full batch.
func (m *Manager) batchSize(activeCount int, force bool) int {
	if force {
		if activeCount < m.cfg.SummaryTurnCount {
			return activeCount
		}
		return m.cfg.SummaryTurnCount
	}

	overflow := activeCount - int(float64(m.cfg.MaxActiveTurns)*0.8)
	if overflow < m.cfg.SummaryTurnCount {
		return overflow
	}
	return m.cfg.SummaryTurnCount
}

// GetTieredHistory returns the three-tier view of a conversation: the newest
// active turns bounded by MaxActiveTurns, all summaries, and the newest
// archived turns bounded by MaxArchivedTurns. Each slice is
// timestamp-ascending.
func (m *Manager) GetTieredHistory(ctx context.Context, conversationID string) (*TieredHistory, error) {
	active, archived, err := m.loadTiers(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	summaries, err := m.store.GetSummaries(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load summaries: %w", err)
	}

	return &TieredHistory{
		ActiveTurns:   tailTurns(active, m.cfg.MaxActiveTurns),
		Summaries:     summaries,
		ArchivedTurns: tailTurns(archived, m.cfg.MaxArchivedTurns),
	}, nil
}

// loadTiers loads all turns and splits them into active and archived,
// both timestamp-ascending.
func (m *Manager) loadTiers(ctx context.Context, conversationID string) (active, archived []*types.Turn, err error) {
	turns, err := m.store.GetTurns(ctx, conversationID, 0, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("load turns: %w", err)
	}

	for _, turn := range turns {
		switch turn.State {
		case types.TurnStateSummarized:
			archived = append(archived, turn)
		default:
			active = append(active, turn)
		}
	}

	return active, archived, nil
}

// tailTurns keeps the newest n turns, preserving ascending order.
func tailTurns(turns []*types.Turn, n int) []*types.Turn {
	if n <= 0 || len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
