package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yeehaa123/personal-brain-sub002/pkg/types"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		URL:            server.URL,
		Model:          "test-model",
		EmbeddingModel: "test-embed",
		Timeout:        5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestNewClient(t *testing.T) {
	t.Run("requires URL", func(t *testing.T) {
		if _, err := NewClient(Config{Model: "m"}); err == nil {
			t.Error("expected error for missing URL")
		}
	})

	t.Run("requires model", func(t *testing.T) {
		if _, err := NewClient(Config{URL: "http://localhost:11434"}); err == nil {
			t.Error("expected error for missing model")
		}
	})

	t.Run("trailing slash is trimmed", func(t *testing.T) {
		c, err := NewClient(Config{URL: "http://localhost:11434/", Model: "m"})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}
		if strings.HasSuffix(c.baseURL, "/") {
			t.Errorf("baseURL %q keeps trailing slash", c.baseURL)
		}
	})
}

func TestComplete(t *testing.T) {
	ctx := context.Background()

	t.Run("sends system and user messages", func(t *testing.T) {
		var got chatRequest
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/chat" {
				t.Errorf("path = %q, want /api/chat", r.URL.Path)
			}
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			json.NewEncoder(w).Encode(chatResponse{
				Message:     chatMessage{Role: "assistant", Content: "  hello there  "},
				Done:        true,
				PromptCount: 42,
				EvalCount:   7,
			})
		}))

		completion, err := client.Complete(ctx, "be brief", "say hello", 100)
		if err != nil {
			t.Fatalf("Complete failed: %v", err)
		}

		if got.Model != "test-model" {
			t.Errorf("model = %q", got.Model)
		}
		if got.Stream {
			t.Error("streaming must be disabled")
		}
		if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "say hello" {
			t.Errorf("messages = %+v", got.Messages)
		}
		if got.Options["num_predict"] != float64(100) {
			t.Errorf("num_predict = %v, want 100", got.Options["num_predict"])
		}

		if completion.Text != "hello there" {
			t.Errorf("text = %q, want trimmed content", completion.Text)
		}
		if completion.PromptTokens != 42 || completion.CompletionTokens != 7 {
			t.Errorf("token counts = %d/%d", completion.PromptTokens, completion.CompletionTokens)
		}
	})

	t.Run("empty system prompt sends only the user message", func(t *testing.T) {
		var got chatRequest
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&got)
			json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Content: "ok"}})
		}))

		if _, err := client.Complete(ctx, "", "question", 0); err != nil {
			t.Fatalf("Complete failed: %v", err)
		}
		if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
			t.Errorf("messages = %+v", got.Messages)
		}
		if got.Options != nil {
			t.Errorf("options = %v, want omitted without a token cap", got.Options)
		}
	})

	t.Run("server error surfaces status and body", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
		}))

		_, err := client.Complete(ctx, "", "q", 0)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "model not found") {
			t.Errorf("error %q missing status or body", err)
		}
	})
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()

	t.Run("formats turns and returns the summary", func(t *testing.T) {
		var got chatRequest
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&got)
			json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Content: "they discussed tomatoes"}})
		}))

		summary, err := client.Summarize(ctx, []*types.Turn{
			{Query: "how do I grow tomatoes?", Response: "full sun"},
			{Query: "how often to water?", Response: "daily in summer"},
		})
		if err != nil {
			t.Fatalf("Summarize failed: %v", err)
		}
		if summary != "they discussed tomatoes" {
			t.Errorf("summary = %q", summary)
		}

		user := got.Messages[len(got.Messages)-1].Content
		if !strings.Contains(user, "User: how do I grow tomatoes?") ||
			!strings.Contains(user, "Assistant: daily in summer") {
			t.Errorf("turns not serialized into the prompt: %q", user)
		}
	})

	t.Run("no turns is an error", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		if _, err := client.Summarize(ctx, nil); err == nil {
			t.Error("expected error for empty batch")
		}
	})

	t.Run("empty summary is an error", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Content: "   "}})
		}))

		_, err := client.Summarize(ctx, []*types.Turn{{Query: "q", Response: "a"}})
		if err == nil {
			t.Error("expected error for empty summary")
		}
	})
}

func TestEmbed(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the embedding vector", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/embeddings" {
				t.Errorf("path = %q, want /api/embeddings", r.URL.Path)
			}
			var req embeddingRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Model != "test-embed" {
				t.Errorf("embedding model = %q", req.Model)
			}
			json.NewEncoder(w).Encode(embeddingResponse{Embedding: []float32{0.1, 0.2}})
		}))

		vec, err := client.Embed(ctx, "some text")
		if err != nil {
			t.Fatalf("Embed failed: %v", err)
		}
		if len(vec) != 2 || vec[0] != 0.1 {
			t.Errorf("embedding = %v", vec)
		}
	})

	t.Run("requires an embedding model", func(t *testing.T) {
		client, err := NewClient(Config{URL: "http://localhost:11434", Model: "m"})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}
		if _, err := client.Embed(ctx, "text"); err == nil {
			t.Error("expected error without embedding model")
		}
	})

	t.Run("empty embedding is an error", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(embeddingResponse{})
		}))

		if _, err := client.Embed(ctx, "text"); err == nil {
			t.Error("expected error for empty embedding")
		}
	})
}

func TestHealth(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy server", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/tags" {
				t.Errorf("path = %q, want /api/tags", r.URL.Path)
			}
			w.WriteHeader(http.StatusOK)
		}))

		if err := client.Health(ctx); err != nil {
			t.Errorf("Health failed: %v", err)
		}
	})

	t.Run("unhealthy server", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))

		if err := client.Health(ctx); err == nil {
			t.Error("expected error from unhealthy server")
		}
	})
}
