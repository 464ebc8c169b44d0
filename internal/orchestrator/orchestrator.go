// Package orchestrator sequences the query pipeline: classify, retrieve,
// assemble, complete, package. Every step degrades to a safe default rather
// than aborting, except a missing conversation or turn, which is fatal for
// that call.
package orchestrator

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/yeehaa123/personal-brain-sub002/internal/data"
	"github.com/yeehaa123/personal-brain-sub002/internal/memory"
	"github.com/yeehaa123/personal-brain-sub002/internal/prompt"
	"github.com/yeehaa123/personal-brain-sub002/internal/relevance"
	"github.com/yeehaa123/personal-brain-sub002/pkg/types"
)

// defaultQuery replaces an empty query; validation never rejects.
const defaultQuery = "What have I been working on recently?"

// fallbackAnswer is returned when the language model itself fails. The
// response stays structured; citations gathered so far are still attached.
const fallbackAnswer = "I wasn't able to generate an answer right now. Please try again in a moment."

// Config bounds retrieval and generation for one orchestrator instance.
type Config struct {
	NoteLimit      int
	RelatedLimit   int
	ExternalLimit  int
	HistoryTokens  int
	AnswerTokens   int
	RoomPrecedence []types.InterfaceType
}

// DefaultConfig returns sensible pipeline bounds.
func DefaultConfig() Config {
	return Config{
		NoteLimit:      5,
		RelatedLimit:   3,
		ExternalLimit:  3,
		HistoryTokens:  1500,
		AnswerTokens:   1000,
		RoomPrecedence: []types.InterfaceType{types.InterfaceCLI, types.InterfaceMatrix},
	}
}

// Orchestrator owns one query pipeline. Construct one long-lived instance at
// process start and pass it by handle; tests construct fresh instances
// instead of resetting shared state.
type Orchestrator struct {
	store     *data.Store
	memory    *memory.Manager
	scorer    *relevance.Scorer
	assembler *prompt.Assembler

	notes    NoteRetrieval
	profiles ProfileRetrieval
	external ExternalSearch
	model    LanguageModel

	cfg Config

	// Lazily loaded profile. A failed load is not cached; the next query
	// retries.
	mu            sync.Mutex
	profile       *types.Profile
	profileLoaded bool
}

// New creates an orchestrator. The external search collaborator may be nil,
// in which case the external path is simply never taken.
func New(store *data.Store, mem *memory.Manager, scorer *relevance.Scorer,
	notes NoteRetrieval, profiles ProfileRetrieval, external ExternalSearch,
	model LanguageModel, cfg Config) *Orchestrator {

	def := DefaultConfig()
	if cfg.NoteLimit <= 0 {
		cfg.NoteLimit = def.NoteLimit
	}
	if cfg.RelatedLimit <= 0 {
		cfg.RelatedLimit = def.RelatedLimit
	}
	if cfg.ExternalLimit <= 0 {
		cfg.ExternalLimit = def.ExternalLimit
	}
	if cfg.HistoryTokens <= 0 {
		cfg.HistoryTokens = def.HistoryTokens
	}
	if cfg.AnswerTokens <= 0 {
		cfg.AnswerTokens = def.AnswerTokens
	}
	if len(cfg.RoomPrecedence) == 0 {
		cfg.RoomPrecedence = def.RoomPrecedence
	}

	return &Orchestrator{
		store:     store,
		memory:    mem,
		scorer:    scorer,
		assembler: prompt.NewAssembler(),
		notes:     notes,
		profiles:  profiles,
		external:  external,
		model:     model,
		cfg:       cfg,
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// QUERY PIPELINE
// ═══════════════════════════════════════════════════════════════════════════════

// ProcessQuery runs the pipeline for a standalone query with no
// conversation history.
func (o *Orchestrator) ProcessQuery(ctx context.Context, query string) (*types.QueryResponse, error) {
	return o.ProcessQueryForConversation(ctx, "", query)
}

// ProcessQueryForConversation runs the strictly sequential pipeline:
// validate, load profile, classify and score, retrieve notes, conditionally
// retrieve external results, assemble prompt and citations, fetch related
// notes, select system prompt, invoke the model, package the response.
//
// An empty conversationID skips history. Profile and external sources are
// included in the response under their own thresholds, independent of their
// inclusion in the prompt.
func (o *Orchestrator) ProcessQueryForConversation(ctx context.Context, conversationID, query string) (*types.QueryResponse, error) {
	if strings.TrimSpace(query) == "" {
		log.Debug().Msg("empty query, substituting default question")
		query = defaultQuery
	}

	profile := o.ensureProfile(ctx)
	profileRel := o.scorer.ProfileRelevance(ctx, query, profile)
	// A query is profile-directed either by keyword or by relevance alone,
	// so keyword-free questions about the user still take the profile paths.
	isProfile := o.scorer.IsProfileQuery(query) || profileRel >= relevance.ProfileQueryThreshold

	notes := o.retrieveNotes(ctx, query)
	external := o.retrieveExternal(ctx, query, notes)
	history := o.loadHistory(ctx, conversationID)

	assembled := o.assembler.Assemble(prompt.Input{
		Query:            query,
		History:          history,
		Notes:            notes,
		Profile:          profile,
		ProfileRelevance: profileRel,
		IncludeProfile:   isProfile || profileRel >= relevance.PromptInclusionThreshold,
		External:         external,
	})

	related := o.retrieveRelated(ctx, notes)
	systemPrompt := prompt.SystemPrompt(isProfile, profileRel, len(external) > 0)

	answer := fallbackAnswer
	completion, err := o.model.Complete(ctx, systemPrompt, assembled.Prompt, o.cfg.AnswerTokens)
	if err != nil {
		log.Warn().Err(err).Msg("language model failed, returning fallback answer")
	} else {
		answer = completion.Text
	}

	resp := &types.QueryResponse{
		Answer:       answer,
		Citations:    assembled.NoteCitations,
		RelatedNotes: related,
	}
	if profile != nil && (isProfile || profileRel >= relevance.ResponseInclusionThreshold) {
		resp.Profile = profile
	}
	resp.ExternalSources = assembled.ExternalCitations

	return resp, nil
}

// ensureProfile lazily loads and caches the profile. Load failures are
// logged and retried on the next call rather than cached.
func (o *Orchestrator) ensureProfile(ctx context.Context) *types.Profile {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.profileLoaded {
		return o.profile
	}
	if o.profiles == nil {
		o.profileLoaded = true
		return nil
	}

	profile, err := o.profiles.Get(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("profile load failed, continuing without profile")
		return nil
	}

	o.profile = profile
	o.profileLoaded = true
	return profile
}

func (o *Orchestrator) retrieveNotes(ctx context.Context, query string) []*types.Note {
	if o.notes == nil {
		return nil
	}
	notes, err := o.notes.Search(ctx, query, nil, o.cfg.NoteLimit)
	if err != nil {
		log.Warn().Err(err).Msg("note search failed, continuing without notes")
		return nil
	}
	return notes
}

func (o *Orchestrator) retrieveExternal(ctx context.Context, query string, notes []*types.Note) []types.ExternalResult {
	if o.external == nil || !o.scorer.ShouldQueryExternal(query, notes) {
		return nil
	}
	results, err := o.external.SemanticSearch(ctx, query, o.cfg.ExternalLimit)
	if err != nil {
		log.Warn().Err(err).Msg("external search failed, continuing without external results")
		return nil
	}
	return results
}

func (o *Orchestrator) retrieveRelated(ctx context.Context, notes []*types.Note) []*types.Note {
	if o.notes == nil || len(notes) == 0 {
		return nil
	}
	related, err := o.notes.GetRelated(ctx, notes[0].ID, o.cfg.RelatedLimit)
	if err != nil {
		log.Warn().Err(err).Msg("related note lookup failed")
		return nil
	}
	return related
}

func (o *Orchestrator) loadHistory(ctx context.Context, conversationID string) string {
	if conversationID == "" {
		return ""
	}
	history, err := o.memory.FormatHistoryForPrompt(ctx, conversationID, o.cfg.HistoryTokens)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID).Msg("history load failed")
		return ""
	}
	return history
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONVERSATION SURFACE
// ═══════════════════════════════════════════════════════════════════════════════

// CreateConversation creates a conversation for a room and interface.
func (o *Orchestrator) CreateConversation(ctx context.Context, interfaceType types.InterfaceType, roomID string) (string, error) {
	return o.store.CreateConversation(ctx, interfaceType, roomID, nil)
}

// GetOrCreateConversation resolves a room's conversation, creating one on
// the first interaction.
func (o *Orchestrator) GetOrCreateConversation(ctx context.Context, interfaceType types.InterfaceType, roomID string) (string, error) {
	id, err := o.store.GetConversationByRoom(ctx, roomID, interfaceType)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	return o.store.CreateConversation(ctx, interfaceType, roomID, nil)
}

// ResolveRoomConversation resolves a room's conversation across interface
// types using the configured precedence policy.
func (o *Orchestrator) ResolveRoomConversation(ctx context.Context, roomID string) (string, error) {
	return o.store.ResolveRoomConversation(ctx, roomID, o.cfg.RoomPrecedence)
}

// AddTurn appends a turn and immediately runs the synchronous summarization
// check. Summarization failures never propagate to the caller; the
// conversation simply stays uncompressed until a later attempt succeeds.
// A missing conversation is fatal for this call.
func (o *Orchestrator) AddTurn(ctx context.Context, conversationID string, turn *types.Turn) (string, error) {
	id, err := o.store.AddTurn(ctx, conversationID, turn)
	if err != nil {
		return "", err
	}

	o.memory.CheckAndSummarize(ctx, conversationID)

	return id, nil
}

// GetConversationHistory returns the tiered view of a conversation.
func (o *Orchestrator) GetConversationHistory(ctx context.Context, conversationID string) (*memory.TieredHistory, error) {
	return o.memory.GetTieredHistory(ctx, conversationID)
}

// ForceSummarize compresses the oldest active turns regardless of overflow.
func (o *Orchestrator) ForceSummarize(ctx context.Context, conversationID string) bool {
	return o.memory.ForceSummarize(ctx, conversationID)
}

// FindConversations searches conversations by the given criteria.
func (o *Orchestrator) FindConversations(ctx context.Context, criteria data.FindCriteria) ([]*types.ConversationInfo, error) {
	return o.store.FindConversations(ctx, criteria)
}
