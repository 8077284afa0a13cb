package factory

import (
	"fmt"

	"everlight-os/pkg/llm"
	"everlight-os/pkg/llm/ollama"
	"everlight-os/pkg/llm/openaicompat"
)

// NewProvider selects the adapter for a backend family once, at
// configuration time. No runtime dispatch on model names happens
// anywhere else.
func NewProvider(family, model, baseURL, apiKey string) (llm.Provider, error) {
	switch family {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, model), nil
	case "openai", "openaicompat":
		return openaicompat.NewProvider(apiKey, baseURL, model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM backend family: %s", family)
	}
}
