package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSystemPrompt(t *testing.T) {
	cases := []struct {
		name        string
		isProfile   bool
		relevance   float64
		hasExternal bool
		want        string
	}{
		{"profile with external", true, 0.9, true, systemProfileExternal},
		{"profile without external", true, 0.9, false, systemProfile},
		{"profile flag beats relevance buckets", true, 0.1, false, systemProfile},
		{"high relevance non-profile", false, 0.8, false, systemHighRelevance},
		{"high relevance beats external", false, 0.8, true, systemHighRelevance},
		{"medium relevance", false, 0.5, false, systemMediumRelevance},
		{"default with external", false, 0.2, true, systemDefaultExternal},
		{"default", false, 0.2, false, systemDefault},
		{"boundary: exactly high threshold is medium", false, 0.7, false, systemMediumRelevance},
		{"boundary: exactly medium threshold is default", false, 0.4, false, systemDefault},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SystemPrompt(tc.isProfile, tc.relevance, tc.hasExternal)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("all six variants are distinct", func(t *testing.T) {
		variants := []string{
			systemProfileExternal, systemProfile, systemHighRelevance,
			systemMediumRelevance, systemDefaultExternal, systemDefault,
		}
		seen := make(map[string]bool)
		for _, v := range variants {
			assert.False(t, seen[v])
			seen[v] = true
		}
	})
}
