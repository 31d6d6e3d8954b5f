package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaLLMClient implements LLMClient against a local Ollama server.
type OllamaLLMClient struct {
	baseURL string
	model   string
	http    *http.Client
}

// NewOllamaLLMClient creates an Ollama-backed LLM client.
func NewOllamaLLMClient(baseURL, model string) *OllamaLLMClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "http://localhost:11434"
	}
	if strings.TrimSpace(model) == "" {
		model = "llama3.1"
	}
	return &OllamaLLMClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type ollamaChatRequest struct {
	Model    string             `json:"model"`
	Messages []ChatMessage      `json:"messages"`
	Stream   bool               `json:"stream"`
	Options  *ollamaChatOptions `json:"options,omitempty"`
}

type ollamaChatOptions struct {
	Temperature float32 `json:"temperature,omitempty"`
	TopP        float32 `json:"top_p,omitempty"`
	NumPredict  int32   `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Message         ChatMessage `json:"message"`
	DoneReason      string      `json:"done_reason"`
	PromptEvalCount int32       `json:"prompt_eval_count"`
	EvalCount       int32       `json:"eval_count"`
}

// Complete sends a non-streaming chat request to Ollama and returns the response.
func (c *OllamaLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]ChatMessage, 0, len(req.System)+len(req.Messages))
	for _, sys := range req.System {
		if strings.TrimSpace(sys) == "" {
			continue
		}
		messages = append(messages, ChatMessage{Role: ChatRoleSystem, Content: sys})
	}
	messages = append(messages, req.Messages...)
	if len(messages) == 0 {
		return LLMResponse{}, errors.New("conversation: ollama requires at least one message")
	}

	payload := ollamaChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
	}
	if req.Temperature > 0 || req.TopP > 0 || req.MaxTokens > 0 {
		payload.Options = &ollamaChatOptions{
			Temperature: req.Temperature,
			TopP:        req.TopP,
			NumPredict:  req.MaxTokens,
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("conversation: failed to encode ollama payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewBuffer(data))
	if err != nil {
		return LLMResponse{}, fmt.Errorf("conversation: ollama request build failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("conversation: ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("conversation: read ollama response failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		return LLMResponse{}, fmt.Errorf("conversation: ollama %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out ollamaChatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return LLMResponse{}, fmt.Errorf("conversation: decode ollama response failed: %w", err)
	}

	return LLMResponse{
		Text:       strings.TrimSpace(out.Message.Content),
		StopReason: out.DoneReason,
		Usage: TokenUsage{
			InputTokens:  out.PromptEvalCount,
			OutputTokens: out.EvalCount,
			TotalTokens:  out.PromptEvalCount + out.EvalCount,
		},
	}, nil
}
