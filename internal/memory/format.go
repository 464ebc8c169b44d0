package memory

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/yeehaa123/personal-brain-sub002/pkg/types"
)

const (
	summaryHeader  = "[Conversation summary]"
	ellipsis       = "..."
	blockSeparator = "\n\n"
)

// FormatHistoryForPrompt serializes a conversation's tiered history into one
// string under a hard token budget. Token counts use types.EstimateTokens
// (ceil of chars/4); a real tokenizer can be substituted without changing
// this contract.
//
// Summaries appear first, oldest to newest. When the budget is short, older
// summaries are dropped whole and only the most recent one may be truncated
// with an ellipsis. Active turns then fill the remaining budget newest-first
// and are re-ordered chronologically before joining, so recent exchanges are
// never dropped ahead of older ones.
//
// The result is deterministic for unchanged storage state and budget.
func (m *Manager) FormatHistoryForPrompt(ctx context.Context, conversationID string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		return "", nil
	}

	history, err := m.GetTieredHistory(ctx, conversationID)
	if err != nil {
		return "", err
	}

	// The budget is tracked in characters so the join separators between
	// blocks are charged too: maxTokens tokens admit at most
	// maxTokens*CharsPerToken characters in the joined string.
	chars := maxTokens * types.CharsPerToken

	summaryBlocks, chars := selectSummaryBlocks(history.Summaries, chars)
	turnBlocks := selectTurnBlocks(history.ActiveTurns, chars, len(summaryBlocks) > 0)

	blocks := append(summaryBlocks, turnBlocks...)
	return strings.Join(blocks, blockSeparator), nil
}

// selectSummaryBlocks picks which summaries fit the character budget, newest
// winning. Every block after the first also pays for its join separator.
// Returned blocks are in chronological order.
func selectSummaryBlocks(summaries []*types.Summary, chars int) ([]string, int) {
	var chosen []string

	for i := len(summaries) - 1; i >= 0; i-- {
		block := summaryHeader + "\n" + summaries[i].Content
		cost := len(block)
		if len(chosen) > 0 {
			cost += len(blockSeparator)
		}

		if cost <= chars {
			chosen = append([]string{block}, chosen...)
			chars -= cost
			continue
		}

		// Truncation privilege belongs to the most recent summary only;
		// anything older that does not fit is dropped whole.
		if i == len(summaries)-1 {
			if truncated, ok := truncateSummary(summaries[i].Content, chars); ok {
				chosen = append([]string{truncated}, chosen...)
				chars = 0
			}
		}
	}

	return chosen, chars
}

// truncateSummary fits a summary's content into the character budget with a
// trailing ellipsis, cutting on a rune boundary. Returns false when the
// budget cannot hold even the header.
func truncateSummary(content string, chars int) (string, bool) {
	allowed := chars - len(summaryHeader) - 1 - len(ellipsis)
	if allowed > len(content) {
		allowed = len(content)
	}
	for allowed > 0 && allowed < len(content) && !utf8.RuneStart(content[allowed]) {
		allowed--
	}
	if allowed <= 0 {
		return "", false
	}
	return summaryHeader + "\n" + content[:allowed] + ellipsis, true
}

// selectTurnBlocks fills the remaining character budget with active turns,
// newest first, then returns them in chronological order. hasPrior charges
// the first turn block for the separator joining it to the summary section.
func selectTurnBlocks(turns []*types.Turn, chars int, hasPrior bool) []string {
	var chosen []string

	for i := len(turns) - 1; i >= 0; i-- {
		block := "User: " + turns[i].Query + "\nAssistant: " + turns[i].Response
		cost := len(block)
		if hasPrior || len(chosen) > 0 {
			cost += len(blockSeparator)
		}

		if cost > chars {
			break
		}

		chosen = append([]string{block}, chosen...)
		chars -= cost
	}

	return chosen
}
