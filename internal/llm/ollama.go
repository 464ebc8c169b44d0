// Package llm provides the Ollama client backing completion, summarization,
// and embedding for the query engine.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yeehaa123/personal-brain-sub002/internal/orchestrator"
	"github.com/yeehaa123/personal-brain-sub002/pkg/types"
)

const (
	defaultTimeout      = 120 * time.Second
	summarySystemPrompt = "You are a conversation summarizer. Summarize the following exchanges " +
		"concisely in third person, preserving concrete facts, decisions, and open questions. " +
		"Respond with the summary only."
)

// Config holds Ollama client configuration.
type Config struct {
	URL            string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
}

// Client talks to a local Ollama server. It implements the engine's
// LanguageModel, Summarizer, and Embedder collaborator interfaces.
type Client struct {
	baseURL        string
	model          string
	embeddingModel string
	httpClient     *http.Client
}

// NewClient creates a new Ollama client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("ollama URL is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.URL, "/"),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		httpClient:     &http.Client{Timeout: timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string                 `json:"model"`
	Messages []chatMessage          `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type chatResponse struct {
	Message     chatMessage `json:"message"`
	Done        bool        `json:"done"`
	PromptCount int         `json:"prompt_eval_count"`
	EvalCount   int         `json:"eval_count"`
}

// Complete sends a non-streaming chat completion request.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (*orchestrator.Completion, error) {
	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	req := chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
	}
	if maxTokens > 0 {
		req.Options = map[string]interface{}{"num_predict": maxTokens}
	}

	var resp chatResponse
	if err := c.post(ctx, "/api/chat", req, &resp); err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	return &orchestrator.Completion{
		Text:             strings.TrimSpace(resp.Message.Content),
		PromptTokens:     resp.PromptCount,
		CompletionTokens: resp.EvalCount,
	}, nil
}

// Summarize condenses a block of turns into a short third-person summary.
func (c *Client) Summarize(ctx context.Context, turns []*types.Turn) (string, error) {
	if len(turns) == 0 {
		return "", fmt.Errorf("no turns to summarize")
	}

	var b strings.Builder
	for _, turn := range turns {
		b.WriteString("User: " + turn.Query + "\n")
		b.WriteString("Assistant: " + turn.Response + "\n\n")
	}

	completion, err := c.Complete(ctx, summarySystemPrompt, b.String(), 300)
	if err != nil {
		return "", fmt.Errorf("summarize turns: %w", err)
	}
	if completion.Text == "" {
		return "", fmt.Errorf("empty summary from model")
	}

	return completion.Text, nil
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns an embedding vector for the given text. Requires an
// embedding model to be configured.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.embeddingModel == "" {
		return nil, fmt.Errorf("no embedding model configured")
	}

	req := embeddingRequest{Model: c.embeddingModel, Prompt: text}

	var resp embeddingResponse
	if err := c.post(ctx, "/api/embeddings", req, &resp); err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding from model")
	}

	return resp.Embedding, nil
}

// Health checks that the Ollama server is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check returned status %d", resp.StatusCode)
	}

	return nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Keep error bodies small; Ollama errors are short JSON blobs.
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(errBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
