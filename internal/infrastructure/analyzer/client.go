// Package analyzer provides the HTTP client for the external
// document-analysis service.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ledgerpilot/ledgerpilot/internal/application/agents"
)

// Client calls the analysis service over HTTP. It implements
// agents.Analyzer.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

func NewClient(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger.With().Str("service", "analyzer").Logger(),
	}
}

type analyzeRequest struct {
	FileRef string `json:"fileRef"`
}

// Analyze submits a file reference for extraction.
func (c *Client) Analyze(ctx context.Context, fileRef string) (*agents.Analysis, error) {
	body, err := json.Marshal(analyzeRequest{FileRef: fileRef})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyzer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analyzer returned status %d", resp.StatusCode)
	}

	var out agents.Analysis
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	c.logger.Debug().Str("file_ref", fileRef).Float64("confidence", out.Confidence).Msg("document analyzed")
	return &out, nil
}
