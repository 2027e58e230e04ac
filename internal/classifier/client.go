// Package classifier calls an external batch inference service over HTTP.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"newspipe/internal/models"
)

// batchSize bounds how many texts go to the inference service per request,
// which in turn bounds the service's peak memory. Not caller-visible.
const batchSize = 64

// classifyRequest is a batch classification request. Labels carries the
// candidate label set for zero-shot models; simplex models ignore it.
type classifyRequest struct {
	Texts  []string `json:"texts"`
	Labels []string `json:"labels,omitempty"`
}

// classifyResponse holds one score distribution per input text, in input
// order.
type classifyResponse struct {
	Results []map[string]float64 `json:"results"`
}

// Client is a classification service client. Output distributions are keyed
// by the destination table's column names; every configured label is always
// present (zero score back-filled when the model omits it), so the output
// shape is fixed regardless of input content.
type Client struct {
	baseURL    string
	labels     []string
	columns    []string
	sendLabels bool
	httpClient *http.Client
}

// NewSentimentClassifier talks to the sentiment service: three labels
// approximating a probability simplex.
func NewSentimentClassifier(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		labels:     models.SentimentColumns,
		columns:    models.SentimentColumns,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewTopicTagger talks to the zero-shot tagging service: eight independent
// topic labels, multi-label, submitted as candidate labels with each request.
func NewTopicTagger(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		labels:     models.TopicLabels,
		columns:    models.TopicColumns,
		sendLabels: true,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Columns returns the fixed output key set, in label order.
func (c *Client) Columns() []string { return c.columns }

// Classify scores all texts, batching internally. The result has exactly one
// distribution per input, in input order; callers zip results back onto
// their rows positionally.
func (c *Client) Classify(ctx context.Context, texts []string) ([]map[string]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([]map[string]float64, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := c.classifyBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, batch...)
	}
	return results, nil
}

func (c *Client) classifyBatch(ctx context.Context, texts []string) ([]map[string]float64, error) {
	reqBody := classifyRequest{Texts: texts}
	if c.sendLabels {
		reqBody.Labels = c.labels
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/classify", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, string(body))
	}

	var result classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Results) != len(texts) {
		return nil, fmt.Errorf("classifier returned %d results for %d texts", len(result.Results), len(texts))
	}

	scores := make([]map[string]float64, len(result.Results))
	for i, raw := range result.Results {
		scores[i] = c.projectScores(raw)
	}
	return scores, nil
}

// projectScores maps a raw model distribution onto the fixed column set.
// Labels are matched case-insensitively; anything the model omitted gets a
// zero score (the zero-shot tagger drops low-confidence labels).
func (c *Client) projectScores(raw map[string]float64) map[string]float64 {
	lowered := make(map[string]float64, len(raw))
	for label, score := range raw {
		lowered[strings.ToLower(label)] = score
	}

	out := make(map[string]float64, len(c.columns))
	for i, label := range c.labels {
		score, ok := lowered[strings.ToLower(label)]
		if !ok {
			score = lowered[c.columns[i]]
		}
		out[c.columns[i]] = score
	}
	return out
}
