// Package external provides an HTTP client for an external semantic search
// service. The service contract is a single POST endpoint taking a query
// and a result limit.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yeehaa123/personal-brain-sub002/pkg/types"
)

const defaultTimeout = 15 * time.Second

// Client queries an external semantic search endpoint. It implements the
// engine's ExternalSearch collaborator interface.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a new external search client.
func NewClient(endpoint string) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("external search endpoint is required")
	}

	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}, nil
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchResponse struct {
	Results []types.ExternalResult `json:"results"`
}

// SemanticSearch returns up to limit external results for the query.
func (c *Client) SemanticSearch(ctx context.Context, query string, limit int) ([]types.ExternalResult, error) {
	body, err := json.Marshal(searchRequest{Query: query, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("external search returned status %d: %s", resp.StatusCode, string(errBody))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	if limit > 0 && len(parsed.Results) > limit {
		parsed.Results = parsed.Results[:limit]
	}

	return parsed.Results, nil
}
