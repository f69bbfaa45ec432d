package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"seekmind-go/internal/stream"
	"strings"
)

// openAIClient talks to any OpenAI-compatible /chat/completions endpoint (DeepSeek, vLLM,
// Ollama's /v1 compatibility layer).
type openAIClient struct {
	baseURL string
	apiKey  string
	model   string
	gen     GenerationParams
	client  *http.Client
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *openAIClient) Model() string {
	return c.model
}

// Stream calls POST /chat/completions and reads the server-sent events.
func (c *openAIClient) Stream(ctx context.Context, messages []Message) (stream.Source, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Stream:      true,
		Temperature: c.gen.Temperature,
		TopP:        c.gen.TopP,
		MaxTokens:   c.gen.MaxTokens,
	}
	header := http.Header{}
	header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := post(ctx, c.client, c.baseURL+"/chat/completions", reqBody, header)
	if err != nil {
		return nil, err
	}
	return &sseSource{body: resp.Body, reader: bufio.NewReader(resp.Body)}, nil
}

type sseSource struct {
	body    io.ReadCloser
	reader  *bufio.Reader
	wrapper reasoningWrapper
	pending string
	done    bool
	err     error
}

func (s *sseSource) Next(ctx context.Context) (stream.Chunk, error) {
	for {
		if s.pending != "" {
			out := s.pending
			s.pending = ""
			return stream.Chunk{Content: out}, nil
		}
		if s.err != nil {
			return stream.Chunk{}, s.err
		}
		if s.done {
			return stream.Chunk{}, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return stream.Chunk{}, err
		}

		line, err := s.reader.ReadString('\n')
		if line != "" {
			s.consume(line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if s.err == nil {
					s.finish()
				}
				continue
			}
			return stream.Chunk{}, fmt.Errorf("failed to read from stream: %w", err)
		}
	}
}

func (s *sseSource) consume(line string) {
	if !strings.HasPrefix(line, "data:") {
		return
	}
	data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if data == "[DONE]" {
		s.finish()
		return
	}
	var chunk chatResponse
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return
	}
	// 流中途的错误事件：已收到的内容照常交出，之后返回错误
	if chunk.Error != nil {
		s.err = &APIError{StatusCode: http.StatusOK, Message: chunk.Error.Message}
		s.done = true
		return
	}
	if len(chunk.Choices) > 0 {
		d := chunk.Choices[0].Delta
		s.pending += s.wrapper.wrap(d.ReasoningContent, d.Content)
	}
}

func (s *sseSource) finish() {
	s.done = true
	s.pending += s.wrapper.finish()
}

func (s *sseSource) Close() error {
	s.done = true
	return s.body.Close()
}
