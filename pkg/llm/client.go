// Package llm provides streaming chat clients for locally hosted and OpenAI-compatible models.
//
// A Client turns a conversation into a stream.Source; the caller pulls chunks at its own pace
// and closes the source when done. No retries are attempted.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"seekmind-go/internal/config"
	"seekmind-go/internal/stream"
	"strings"
)

var (
	// ErrUnavailable means the model service could not be reached.
	ErrUnavailable = errors.New("llm service unavailable")
	// ErrModelNotFound means the service does not know the configured model.
	ErrModelNotFound = errors.New("model not found")
)

// APIError is a non-200 response from the model service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api returned status %d: %s", e.StatusCode, e.Message)
}

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams 控制生成行为，nil 字段不发送。
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Client defines the interface for an LLM client.
type Client interface {
	// Stream starts a chat completion for messages and returns its chunks.
	Stream(ctx context.Context, messages []Message) (stream.Source, error)
	// Model returns the model identifier requests are sent to.
	Model() string
}

// NewClient creates a new LLM client based on the provider in the config.
func NewClient(cfg config.LLMConfig) (Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	gen := generationFromConfig(cfg.Generation)
	switch cfg.Provider {
	case "", "ollama":
		return &ollamaClient{baseURL: base, model: cfg.Model, gen: gen, client: &http.Client{}}, nil
	case "openai":
		return &openAIClient{baseURL: base, apiKey: cfg.APIKey, model: cfg.Model, gen: gen, client: &http.Client{}}, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func generationFromConfig(g config.LLMGenerationConfig) GenerationParams {
	var gp GenerationParams
	if g.Temperature != 0 {
		t := g.Temperature
		gp.Temperature = &t
	}
	if g.TopP != 0 {
		p := g.TopP
		gp.TopP = &p
	}
	if g.MaxTokens != 0 {
		m := g.MaxTokens
		gp.MaxTokens = &m
	}
	return gp
}

// post sends a JSON body and returns the response when the status is 200.
func post(ctx context.Context, client *http.Client, url string, body interface{}, header http.Header) (*http.Response, error) {
	reqBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := errorMessage(bodyBytes)
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, msg)
	}
	return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
}

// errorMessage extracts {"error":"..."} or {"error":{"message":"..."}} and falls back to the raw body.
func errorMessage(body []byte) string {
	var flat struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &flat) == nil && flat.Error != "" {
		return flat.Error
	}
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &nested) == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}
	return strings.TrimSpace(string(body))
}

// reasoningWrapper re-inserts markers around reasoning delivered in a separate field, so every
// provider yields the same "<think>...</think>answer" text stream.
type reasoningWrapper struct {
	open   bool
	closed bool
}

func (w *reasoningWrapper) wrap(reasoning, content string) string {
	var b strings.Builder
	if reasoning != "" && !w.closed {
		if !w.open {
			b.WriteString(stream.OpenMarker)
			w.open = true
		}
		b.WriteString(reasoning)
	}
	if content != "" && w.open && !w.closed {
		b.WriteString(stream.CloseMarker)
		w.closed = true
	}
	b.WriteString(content)
	return b.String()
}

// finish closes a reasoning block that was never followed by content.
func (w *reasoningWrapper) finish() string {
	if w.open && !w.closed {
		w.closed = true
		return stream.CloseMarker
	}
	return ""
}
