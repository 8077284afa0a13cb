package safety

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteEvaluator delegates the gate decision to an external evaluator
// service over HTTP with a JSON payload. The wire contract mirrors the
// local Gate so the two are interchangeable behind Evaluator.
type RemoteEvaluator struct {
	endpoint string
	client   *http.Client
}

var _ Evaluator = &RemoteEvaluator{}

func NewRemoteEvaluator(endpoint string) *RemoteEvaluator {
	return &RemoteEvaluator{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type evaluateRequest struct {
	Query     string                 `json:"query"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

func (r *RemoteEvaluator) Evaluate(ctx context.Context, query string, reqContext map[string]interface{}) (*Decision, error) {
	payload, err := json.Marshal(evaluateRequest{
		Query:     query,
		Context:   reqContext,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal evaluate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("create evaluate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("safety evaluator request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read evaluator response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("safety evaluator error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var decision Decision
	if err := json.Unmarshal(bodyBytes, &decision); err != nil {
		return nil, fmt.Errorf("unmarshal evaluator response: %w", err)
	}
	return &decision, nil
}
