// Package prompt assembles retrieved context into a deterministic prompt
// string with aligned citation lists, and selects the system prompt variant
// for the language model.
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yeehaa123/personal-brain-sub002/internal/relevance"
	"github.com/yeehaa123/personal-brain-sub002/pkg/types"
)

// maxExcerptChars bounds citation excerpts.
const maxExcerptChars = 150

// Input is everything a single query's prompt is assembled from.
type Input struct {
	Query            string
	History          string
	Notes            []*types.Note
	Profile          *types.Profile
	ProfileRelevance float64
	// IncludeProfile admits the profile into the prompt. Whether the
	// profile is echoed in the response is a separate decision.
	IncludeProfile bool
	External       []types.ExternalResult
}

// Assembled is one prompt plus citation lists aligned 1:1 with the numbered
// context blocks the prompt contains.
type Assembled struct {
	Prompt            string
	NoteCitations     []types.NoteCitation
	ExternalCitations []types.ExternalCitation
}

// Assembler serializes retrieved context. It is stateless; the same input
// always yields the same output.
type Assembler struct{}

// NewAssembler creates an assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Assemble merges history, profile, notes, and external results into one
// prompt string. Note blocks are numbered INTERNAL CONTEXT [n] and each emits
// a citation at index n-1; external results get their own EXTERNAL SOURCE [n]
// numbering and citation list.
func (a *Assembler) Assemble(in Input) Assembled {
	hasProfile := in.IncludeProfile && in.Profile != nil
	hasNotes := len(in.Notes) > 0
	hasExternal := len(in.External) > 0

	var sb strings.Builder
	out := Assembled{}

	sb.WriteString(prefixSentence(hasProfile, hasNotes, hasExternal))
	sb.WriteString("\n\n")

	if in.History != "" {
		sb.WriteString("RECENT CONVERSATION:\n")
		sb.WriteString(in.History)
		sb.WriteString("\n\n")
	}

	if hasProfile {
		writeProfile(&sb, in.Profile, in.ProfileRelevance)
	}

	for i, note := range in.Notes {
		fmt.Fprintf(&sb, "INTERNAL CONTEXT [%d]: %s\n", i+1, note.Title)
		if len(note.Tags) > 0 {
			fmt.Fprintf(&sb, "Tags: %s\n", strings.Join(note.Tags, ", "))
		}
		sb.WriteString(note.Content)
		sb.WriteString("\n\n")

		out.NoteCitations = append(out.NoteCitations, types.NoteCitation{
			NoteID:  note.ID,
			Title:   note.Title,
			Excerpt: excerpt(note.Content),
		})
	}

	if hasExternal {
		sb.WriteString("EXTERNAL INFORMATION:\n\n")
		for i, result := range in.External {
			fmt.Fprintf(&sb, "EXTERNAL SOURCE [%d]: %s (%s)\n", i+1, result.Title, result.Source)
			sb.WriteString(result.Content)
			sb.WriteString("\n\n")

			out.ExternalCitations = append(out.ExternalCitations, types.ExternalCitation{
				URL:    result.URL,
				Source: result.Source,
				Title:  result.Title,
			})
		}
	}

	sb.WriteString("Question: ")
	sb.WriteString(in.Query)

	out.Prompt = sb.String()
	return out
}

// writeProfile renders the profile at one of two fidelity levels. The basic
// block is always present; the extended block (past roles, education,
// projects) appears only above the extended relevance tier and never without
// the basic block.
func writeProfile(sb *strings.Builder, profile *types.Profile, rel float64) {
	sb.WriteString("USER PROFILE:\n")

	if profile.FullName != "" {
		fmt.Fprintf(sb, "Name: %s\n", profile.FullName)
	}
	if profile.Headline != "" {
		fmt.Fprintf(sb, "Headline: %s\n", profile.Headline)
	}
	if profile.Occupation != "" {
		fmt.Fprintf(sb, "Occupation: %s\n", profile.Occupation)
	}
	if loc := location(profile); loc != "" {
		fmt.Fprintf(sb, "Location: %s\n", loc)
	}
	if profile.Summary != "" {
		fmt.Fprintf(sb, "Summary: %s\n", profile.Summary)
	}

	current := currentRoles(profile)
	if len(current) > 0 {
		sb.WriteString("Current roles:\n")
		for _, exp := range current {
			fmt.Fprintf(sb, "  - %s at %s\n", exp.Title, exp.Organization)
		}
	}

	if rel > relevance.ExtendedProfileThreshold {
		writeExtendedProfile(sb, profile)
	}

	sb.WriteString("\n")
}

func writeExtendedProfile(sb *strings.Builder, profile *types.Profile) {
	past := pastRoles(profile)
	if len(past) > 0 {
		sb.WriteString("Past roles:\n")
		for _, exp := range past {
			fmt.Fprintf(sb, "  - %s at %s (%s - %s)\n", exp.Title, exp.Organization, exp.StartDate, exp.EndDate)
		}
	}

	if len(profile.Education) > 0 {
		sb.WriteString("Education:\n")
		for _, edu := range profile.Education {
			fmt.Fprintf(sb, "  - %s, %s\n", edu.Degree, edu.School)
		}
	}

	if len(profile.Projects) > 0 {
		sb.WriteString("Projects:\n")
		for _, project := range profile.Projects {
			fmt.Fprintf(sb, "  - %s: %s\n", project.Name, project.Description)
		}
	}
}

func currentRoles(profile *types.Profile) []types.Experience {
	var roles []types.Experience
	for _, exp := range profile.Experience {
		if exp.Current {
			roles = append(roles, exp)
		}
	}
	return roles
}

func pastRoles(profile *types.Profile) []types.Experience {
	var roles []types.Experience
	for _, exp := range profile.Experience {
		if !exp.Current {
			roles = append(roles, exp)
		}
	}
	return roles
}

func location(profile *types.Profile) string {
	switch {
	case profile.City != "" && profile.Country != "":
		return profile.City + ", " + profile.Country
	case profile.City != "":
		return profile.City
	default:
		return profile.Country
	}
}

// excerpt trims note content to the citation excerpt bound, cutting on a
// rune boundary so multibyte content never yields invalid UTF-8.
func excerpt(content string) string {
	content = strings.TrimSpace(content)
	if len(content) <= maxExcerptChars {
		return content
	}
	cut := maxExcerptChars - 3
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "..."
}

// prefixSentence is the fixed decision table over which context sections are
// non-empty. All eight combinations are covered, including the degraded
// all-empty case.
func prefixSentence(hasProfile, hasNotes, hasExternal bool) string {
	switch {
	case hasProfile && hasNotes && hasExternal:
		return "Answer using the user's profile, their personal notes, and the external information below."
	case hasProfile && hasNotes:
		return "Answer using the user's profile and their personal notes below."
	case hasProfile && hasExternal:
		return "Answer using the user's profile and the external information below."
	case hasNotes && hasExternal:
		return "Answer using the user's personal notes and the external information below."
	case hasProfile:
		return "Answer using the user's profile below."
	case hasNotes:
		return "Answer using the user's personal notes below."
	case hasExternal:
		return "Answer using the external information below."
	default:
		return "No stored context matched this question. Answer from general knowledge and be clear about the limits of what you know."
	}
}
