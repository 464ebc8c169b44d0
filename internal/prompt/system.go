package prompt

import (
	"github.com/yeehaa123/personal-brain-sub002/internal/relevance"
)

// The six system-prompt variants. Wording is a content concern; the
// selection priority in SystemPrompt is part of the contract.
const (
	systemProfileExternal = `You are a personal knowledge assistant. The user is asking about themselves.
Ground your answer in their profile first, then weave in the external information where it adds context.
Cite external sources by their numbered blocks. Never invent biographical details.`

	systemProfile = `You are a personal knowledge assistant. The user is asking about themselves.
Answer from their profile and notes, speaking about the user in the second person.
Never invent biographical details; say so when the profile does not cover something.`

	systemHighRelevance = `You are a personal knowledge assistant. The user's profile is highly relevant here,
so connect your answer to their background and experience where it helps.
Prefer their notes for factual claims and cite the numbered context blocks you used.`

	systemMediumRelevance = `You are a personal knowledge assistant. The user's profile may add useful color,
but their notes are the primary source. Cite the numbered context blocks you used
and only bring in profile details when they are clearly relevant.`

	systemDefaultExternal = `You are a personal knowledge assistant. Answer from the user's notes first and use
the external information to fill gaps, citing numbered blocks for both.
Keep internal and external claims clearly attributed.`

	systemDefault = `You are a personal knowledge assistant. Answer from the user's notes, citing the
numbered context blocks you used. When the notes do not cover the question,
say so rather than guessing.`
)

// SystemPrompt selects one of six instruction variants. Priority order:
// profile+external, profile-only, high-relevance non-profile, medium
// relevance, then default with or without external sources.
func SystemPrompt(isProfileQuery bool, profileRelevance float64, hasExternal bool) string {
	switch {
	case isProfileQuery && hasExternal:
		return systemProfileExternal
	case isProfileQuery:
		return systemProfile
	case profileRelevance > relevance.HighRelevanceThreshold:
		return systemHighRelevance
	case profileRelevance > relevance.MediumRelevanceThreshold:
		return systemMediumRelevance
	case hasExternal:
		return systemDefaultExternal
	default:
		return systemDefault
	}
}
