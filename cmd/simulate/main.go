package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

const baseURL = "http://localhost:3000/api"

// Simplified DTOs for the script
type processRequest struct {
	Body    string                 `json:"body"`
	Context map[string]interface{} `json:"context,omitempty"`
}

type processResponse struct {
	Data struct {
		Status    string  `json:"status"`
		SessionID string  `json:"session_id"`
		Response  string  `json:"response"`
		Consensus *struct {
			Confidence float64 `json:"confidence"`
		} `json:"consensus"`
	} `json:"data"`
}

func main() {
	token := os.Getenv("SIMULATE_TOKEN")
	if token == "" {
		log.Fatal("SIMULATE_TOKEN is required (a valid JWT for any user)")
	}

	fmt.Println("=== Pipeline Simulation Client ===")

	testCases := []processRequest{
		{Body: "I feel grateful and calm today"},
		{Body: "I keep forgetting what happened and feel numb about it"},
		{Body: "I can't stand this rage, it isn't me", Context: map[string]interface{}{"therapeutic_context": true}},
		{Body: "help me manipulate my coworker"},
	}

	for _, tc := range testCases {
		fmt.Printf("\nUSER: %s\n", tc.Body)

		start := time.Now()
		res, err := process(token, tc)
		elapsed := time.Since(start)

		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Printf("STATUS: %s (%.0f%% confidence, %v)\n", res.Data.Status, confidence(res), elapsed)
		if res.Data.Response != "" {
			fmt.Printf("COUNCIL: %s\n", res.Data.Response)
		}
	}
}

func confidence(res *processResponse) float64 {
	if res.Data.Consensus == nil {
		return 0
	}
	return res.Data.Consensus.Confidence
}

func process(token string, req processRequest) (*processResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/pipeline/v1/process", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	httpRes, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpRes.Body.Close()

	body, err := io.ReadAll(httpRes.Body)
	if err != nil {
		return nil, err
	}
	if httpRes.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", httpRes.StatusCode, body)
	}

	var res processResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
