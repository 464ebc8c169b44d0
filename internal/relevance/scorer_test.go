package relevance

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/yeehaa123/personal-brain-sub002/pkg/types"
)

// fakeEmbedder returns a fixed vector or a failure.
type fakeEmbedder struct {
	vector []float32
	fail   bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.fail {
		return nil, fmt.Errorf("embedding service down")
	}
	return f.vector, nil
}

func TestIsProfileQuery(t *testing.T) {
	scorer := NewScorer(nil)

	profileQueries := []string{
		"What is my profile?",
		"Tell me about my experience",
		"what's my background in engineering",
		"Who am I?",
		"Show my education",
		"Can you write my resume?",
		"summarize my CV",
	}
	for _, q := range profileQueries {
		if !scorer.IsProfileQuery(q) {
			t.Errorf("IsProfileQuery(%q) = false, want true", q)
		}
	}

	otherQueries := []string{
		"What is the capital of France?",
		"Summarize my notes on gardening",
		"How do I configure the database?",
	}
	for _, q := range otherQueries {
		if scorer.IsProfileQuery(q) {
			t.Errorf("IsProfileQuery(%q) = true, want false", q)
		}
	}
}

func TestProfileRelevance(t *testing.T) {
	ctx := context.Background()

	t.Run("nil profile scores zero", func(t *testing.T) {
		scorer := NewScorer(nil)
		if got := scorer.ProfileRelevance(ctx, "what is my profile", nil); got != 0 {
			t.Errorf("relevance = %v, want 0", got)
		}
	})

	t.Run("keyword fallback without embeddings", func(t *testing.T) {
		scorer := NewScorer(nil)
		profile := &types.Profile{FullName: "Ada Lovelace"}

		if got := scorer.ProfileRelevance(ctx, "What is my profile?", profile); got != keywordMatchRelevance {
			t.Errorf("profile query relevance = %v, want %v", got, keywordMatchRelevance)
		}
		if got := scorer.ProfileRelevance(ctx, "weather tomorrow", profile); got != keywordMissRelevance {
			t.Errorf("non-profile relevance = %v, want %v", got, keywordMissRelevance)
		}
	})

	t.Run("embedding failure falls back to keywords", func(t *testing.T) {
		scorer := NewScorer(&fakeEmbedder{fail: true})
		profile := &types.Profile{
			FullName:  "Ada Lovelace",
			Embedding: []float32{1, 0, 0},
		}

		if got := scorer.ProfileRelevance(ctx, "What is my profile?", profile); got != keywordMatchRelevance {
			t.Errorf("relevance = %v, want keyword fallback %v", got, keywordMatchRelevance)
		}
	})

	t.Run("decisiveness transform spreads similarity", func(t *testing.T) {
		profile := &types.Profile{
			FullName:  "Ada Lovelace",
			Embedding: []float32{1, 0, 0},
		}

		cases := []struct {
			query []float32
			want  float64
		}{
			{[]float32{1, 0, 0}, 1.0},   // identical: (1*0.5+0.5)^2
			{[]float32{0, 1, 0}, 0.25},  // orthogonal: (0*0.5+0.5)^2
			{[]float32{-1, 0, 0}, 0.0},  // opposite: (-1*0.5+0.5)^2
		}
		for _, tc := range cases {
			scorer := NewScorer(&fakeEmbedder{vector: tc.query})
			got := scorer.ProfileRelevance(ctx, "anything", profile)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("relevance for query vector %v = %v, want %v", tc.query, got, tc.want)
			}
		}
	})
}

func TestCalculateCoverage(t *testing.T) {
	note := &types.Note{
		Title:   "Gardening basics",
		Content: "Tomatoes need full sun and regular watering.",
		Tags:    []string{"garden", "vegetables"},
	}

	t.Run("full coverage", func(t *testing.T) {
		// Significant words: gardening (title), tomatoes (content).
		got := CalculateCoverage("gardening tomatoes", note)
		if got != 1.0 {
			t.Errorf("coverage = %v, want 1.0", got)
		}
	})

	t.Run("partial coverage", func(t *testing.T) {
		// tomatoes and need match; quantum and light do not. Short words
		// are skipped entirely.
		got := CalculateCoverage("do my tomatoes need quantum light?", note)
		if got != 0.5 {
			t.Errorf("coverage = %v, want 0.5", got)
		}
	})

	t.Run("tags count toward coverage", func(t *testing.T) {
		got := CalculateCoverage("vegetables", note)
		if got != 1.0 {
			t.Errorf("coverage = %v, want 1.0 via tag match", got)
		}
	})

	t.Run("punctuation and case are ignored", func(t *testing.T) {
		got := CalculateCoverage("TOMATOES!", note)
		if got != 1.0 {
			t.Errorf("coverage = %v, want 1.0", got)
		}
	})

	t.Run("no significant words yields zero", func(t *testing.T) {
		if got := CalculateCoverage("is it ok", note); got != 0 {
			t.Errorf("coverage = %v, want 0", got)
		}
	})

	t.Run("nil note yields zero", func(t *testing.T) {
		if got := CalculateCoverage("tomatoes", nil); got != 0 {
			t.Errorf("coverage = %v, want 0", got)
		}
	})
}

func TestShouldQueryExternal(t *testing.T) {
	scorer := NewScorer(nil)
	covered := &types.Note{
		Title:   "Gardening basics",
		Content: "Tomatoes need full sun and regular watering in summer.",
	}

	t.Run("profile queries never go external", func(t *testing.T) {
		if scorer.ShouldQueryExternal("what is my profile, latest news edition", nil) {
			t.Error("profile query went external despite external keywords")
		}
	})

	t.Run("no notes always goes external", func(t *testing.T) {
		if !scorer.ShouldQueryExternal("obscure question", nil) {
			t.Error("query with no notes should go external")
		}
	})

	t.Run("external keywords force the lookup", func(t *testing.T) {
		if !scorer.ShouldQueryExternal("latest gardening tomatoes watering news", []*types.Note{covered}) {
			t.Error("explicit external request ignored")
		}
	})

	t.Run("well-covered query stays internal", func(t *testing.T) {
		// All significant words present in the note: coverage 1.0.
		if scorer.ShouldQueryExternal("tomatoes watering summer", []*types.Note{covered}) {
			t.Error("well-covered query went external")
		}
	})

	t.Run("poorly covered query goes external", func(t *testing.T) {
		if !scorer.ShouldQueryExternal("quantum entanglement hardware pricing", []*types.Note{covered}) {
			t.Error("uncovered query stayed internal")
		}
	})

	t.Run("best note decides, not the average", func(t *testing.T) {
		unrelated := &types.Note{Title: "Tax filing", Content: "Deadlines and deductions."}
		if scorer.ShouldQueryExternal("tomatoes watering summer", []*types.Note{unrelated, covered}) {
			t.Error("best-note coverage above threshold should stay internal")
		}
	})
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"mismatched lengths", []float32{1, 2}, []float32{1}, 0.0},
		{"empty", nil, nil, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CosineSimilarity(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("CosineSimilarity = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEmbeddingRoundtrip(t *testing.T) {
	original := []float32{0.1, -2.5, 3.75, 0}

	bytes := Float32SliceToBytes(original)
	restored := BytesToFloat32Slice(bytes)

	if len(restored) != len(original) {
		t.Fatalf("restored %d values, want %d", len(restored), len(original))
	}
	for i := range original {
		if restored[i] != original[i] {
			t.Errorf("value %d = %v, want %v", i, restored[i], original[i])
		}
	}

	t.Run("nil and truncated blobs", func(t *testing.T) {
		if Float32SliceToBytes(nil) != nil {
			t.Error("nil slice should produce nil bytes")
		}
		if BytesToFloat32Slice([]byte{1, 2, 3}) != nil {
			t.Error("non-multiple-of-4 blob should produce nil")
		}
	})
}
