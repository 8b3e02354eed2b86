// Package perspective wraps the Perspective API comment-analysis endpoint.
package perspective

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/conversationai/harassment-manager/internal/toxicity"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const defaultEndpoint = "https://commentanalyzer.googleapis.com/v1alpha1"

// Client calls the Perspective comments:analyze endpoint.
type Client struct {
	apiKey   string
	endpoint string
	client   *resty.Client
}

type analyzeRequest struct {
	Comment             analyzeComment      `json:"comment"`
	RequestedAttributes map[string]struct{} `json:"requestedAttributes"`
	Languages           []string            `json:"languages,omitempty"`
	DoNotStore          bool                `json:"doNotStore"`
}

type analyzeComment struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	AttributeScores map[string]struct {
		SummaryScore struct {
			Value float64 `json:"value"`
			Type  string  `json:"type"`
		} `json:"summaryScore"`
	} `json:"attributeScores"`
}

// NewClient creates a Perspective client. An empty endpoint uses the public
// API host.
func NewClient(apiKey, endpoint string) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: endpoint,
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", "harassment-manager/1.0"),
	}
}

// IsEnabled reports whether an API key is configured.
func (c *Client) IsEnabled() bool {
	return c.apiKey != ""
}

// Score analyzes one comment and returns its attribute summary scores, keyed
// by attribute name. Attributes the API declines to score are simply absent
// from the map; an empty comment returns an empty map without a network call.
func (c *Client) Score(ctx context.Context, text string) (map[string]float64, error) {
	if text == "" {
		return map[string]float64{}, nil
	}

	requested := make(map[string]struct{}, len(toxicity.AllAttributes))
	for _, attribute := range toxicity.AllAttributes {
		requested[attribute] = struct{}{}
	}

	body, err := json.Marshal(analyzeRequest{
		Comment:             analyzeComment{Text: text},
		RequestedAttributes: requested,
		DoNotStore:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analyze request: %w", err)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", c.apiKey).
		SetBody(body).
		Post(c.endpoint + "/comments:analyze")
	if err != nil {
		return nil, fmt.Errorf("perspective request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		logrus.Errorf("Perspective API error: status %d, body: %s", resp.StatusCode(), string(resp.Body()))
		return nil, fmt.Errorf("perspective API returned status %d", resp.StatusCode())
	}

	var analyzeResp analyzeResponse
	if err := json.Unmarshal(resp.Body(), &analyzeResp); err != nil {
		return nil, fmt.Errorf("failed to parse perspective response: %w", err)
	}

	scores := make(map[string]float64, len(analyzeResp.AttributeScores))
	for attribute, attributeScore := range analyzeResp.AttributeScores {
		scores[attribute] = attributeScore.SummaryScore.Value
	}
	return scores, nil
}
