package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"coursewise_backend/internal/config"
	"coursewise_backend/pkg/monitoring"
)

// LLMClient is the chat-completion surface the recommendation pipeline
// depends on. Tests inject stubs; production uses LLMService.
type LLMClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
	HealthCheck(ctx context.Context) error
}

type AIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model       string          `json:"model"`
	Messages    []AIChatMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type ChatCompletionResponse struct {
	Choices []struct {
		Message AIChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// LLMService talks to an OpenAI-compatible chat completions endpoint.
type LLMService struct {
	config config.AIConfig
	client *http.Client
}

func NewLLMService(cfg config.AIConfig) *LLMService {
	return &LLMService{
		config: cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
}

func (s *LLMService) Complete(ctx context.Context, system, user string) (string, error) {
	reqBody := ChatCompletionRequest{
		Model: s.config.Model,
		Messages: []AIChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.3,
		MaxTokens:   2000,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.config.BaseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		monitoring.LLMRequestDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		monitoring.LLMRequestDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return "", fmt.Errorf("AI API error (status %d): %s", resp.StatusCode, string(body))
	}
	monitoring.LLMRequestDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())

	var completion ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", err
	}
	if completion.Error != nil {
		return "", fmt.Errorf("AI API error: %s", completion.Error.Message)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("AI API returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

func (s *LLMService) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := s.Complete(ctx, "", "Hello")
	return err
}
