package factory

import (
	"fmt"

	"therapist-bot-be/pkg/llm"
	"therapist-bot-be/pkg/llm/ollama"
	"therapist-bot-be/pkg/llm/openai"
)

const huggingFaceRouterURL = "https://router.huggingface.co/v1"

func NewLLMProvider(providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "openai":
		return openai.NewProvider(baseURL, apiKey, modelName), nil
	case "huggingface":
		// The HF router speaks the OpenAI chat completions protocol.
		if baseURL == "" {
			baseURL = huggingFaceRouterURL
		}
		return openai.NewProvider(baseURL, apiKey, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
