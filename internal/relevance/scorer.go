// Package relevance classifies queries and scores how relevant the user's
// profile and stored notes are to them. All heuristics here are cheap gating
// signals, not ranking signals.
package relevance

import (
	"context"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/yeehaa123/personal-brain-sub002/pkg/types"
)

// Threshold constants gating profile behavior. Three independent knobs:
// treating a query as profile-directed, including the profile in the prompt,
// and echoing the profile back in the response. Tune separately.
const (
	// ProfileQueryThreshold marks a query as profile-directed by relevance alone.
	ProfileQueryThreshold = 0.6

	// PromptInclusionThreshold admits the profile into the assembled prompt.
	PromptInclusionThreshold = 0.3

	// ResponseInclusionThreshold echoes the profile back in the final response.
	ResponseInclusionThreshold = 0.5

	// ExtendedProfileThreshold adds past roles, education, and projects
	// on top of the basic profile block.
	ExtendedProfileThreshold = 0.5

	// HighRelevanceThreshold selects the high-relevance system prompt bucket.
	HighRelevanceThreshold = 0.7

	// MediumRelevanceThreshold selects the medium-relevance system prompt bucket.
	MediumRelevanceThreshold = 0.4

	// CoverageThreshold is the note-coverage level below which external
	// search is consulted. External search is a gap-filler, never a
	// primary path.
	CoverageThreshold = 0.6
)

// Fallback relevance when the profile carries no embedding.
const (
	keywordMatchRelevance = 0.9
	keywordMissRelevance  = 0.2
)

// profileKeywords is the fixed pre-filter set for profile-directed queries.
// Matching is substring over the lowercased query, independent of embeddings.
var profileKeywords = []string{
	"profile",
	"my experience",
	"my background",
	"my work history",
	"my skills",
	"my education",
	"my projects",
	"who am i",
	"about me",
	"resume",
	"curriculum vitae",
	" cv",
}

// externalKeywords explicitly request an external lookup.
var externalKeywords = []string{
	"latest",
	"news",
	"current",
	"today",
	"this week",
	"recent developments",
	"search online",
	"search the web",
	"look up",
	"google",
}

// Embedder produces embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Scorer combines keyword heuristics with embedding similarity.
type Scorer struct {
	embedder Embedder
}

// NewScorer creates a scorer. The embedder may be nil, in which case
// profile relevance falls back to the keyword heuristic.
func NewScorer(embedder Embedder) *Scorer {
	return &Scorer{embedder: embedder}
}

// IsProfileQuery reports whether the query is directed at the user's profile.
// This is a fast keyword pre-filter; it never consults embeddings.
func (s *Scorer) IsProfileQuery(query string) bool {
	lowered := strings.ToLower(query)
	for _, kw := range profileKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// ProfileRelevance scores the semantic relevance of the profile to the query
// in [0,1]. Without a profile embedding (or without an embedder) it returns
// 0.9 for keyword-matched profile queries and 0.2 otherwise. With embeddings
// it computes cosine similarity and applies a decisiveness transform,
// (sim*0.5+0.5)^2, pushing mid-range scores toward the extremes.
func (s *Scorer) ProfileRelevance(ctx context.Context, query string, profile *types.Profile) float64 {
	if profile == nil {
		return 0
	}

	fallback := func() float64 {
		if s.IsProfileQuery(query) {
			return keywordMatchRelevance
		}
		return keywordMissRelevance
	}

	if len(profile.Embedding) == 0 || s.embedder == nil {
		return fallback()
	}

	queryEmb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		log.Warn().Err(err).Msg("query embedding failed, falling back to keyword relevance")
		return fallback()
	}

	similarity := CosineSimilarity(queryEmb, profile.Embedding)

	// Normalize [-1,1] into [0,1], then square to spread mid-range scores.
	scaled := similarity*0.5 + 0.5
	return clamp01(math.Pow(scaled, 2))
}

// CalculateCoverage returns the fraction of significant query words (length
// > 3, punctuation stripped) textually present in the note. Range [0,1].
func CalculateCoverage(query string, note *types.Note) float64 {
	if note == nil {
		return 0
	}

	words := significantWords(query)
	if len(words) == 0 {
		return 0
	}

	haystack := strings.ToLower(note.Title + " " + note.Content + " " + strings.Join(note.Tags, " "))

	matched := 0
	for _, w := range words {
		if strings.Contains(haystack, w) {
			matched++
		}
	}

	return float64(matched) / float64(len(words))
}

// ShouldQueryExternal decides whether external search should supplement the
// retrieved notes. Profile queries never go external. A query with no note
// coverage, or one explicitly asking for an external lookup, always does.
// Otherwise external search runs only when the best note coverage falls
// below CoverageThreshold.
func (s *Scorer) ShouldQueryExternal(query string, notes []*types.Note) bool {
	if s.IsProfileQuery(query) {
		return false
	}

	if len(notes) == 0 {
		return true
	}

	lowered := strings.ToLower(query)
	for _, kw := range externalKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}

	best := 0.0
	for _, note := range notes {
		if c := CalculateCoverage(query, note); c > best {
			best = c
		}
	}

	return best < CoverageThreshold
}

// significantWords splits a query into lowercased words longer than three
// characters with surrounding punctuation stripped.
func significantWords(query string) []string {
	var words []string
	for _, field := range strings.Fields(strings.ToLower(query)) {
		word := strings.TrimFunc(field, func(r rune) bool {
			return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
		})
		if len(word) > 3 {
			words = append(words, word)
		}
	}
	return words
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
