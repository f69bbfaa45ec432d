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
)

type ollamaClient struct {
	baseURL string
	model   string
	gen     GenerationParams
	client  *http.Client
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

// ollamaChunk is one NDJSON line of /api/chat.
type ollamaChunk struct {
	Message struct {
		Content  string `json:"content"`
		Thinking string `json:"thinking"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

func (c *ollamaClient) Model() string {
	return c.model
}

// Stream calls POST /api/chat with stream=true.
func (c *ollamaClient) Stream(ctx context.Context, messages []Message) (stream.Source, error) {
	reqBody := ollamaChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	}
	if c.gen.Temperature != nil || c.gen.TopP != nil || c.gen.MaxTokens != nil {
		reqBody.Options = &ollamaOptions{
			Temperature: c.gen.Temperature,
			TopP:        c.gen.TopP,
			NumPredict:  c.gen.MaxTokens,
		}
	}

	resp, err := post(ctx, c.client, c.baseURL+"/api/chat", reqBody, nil)
	if err != nil {
		return nil, err
	}
	return &ollamaSource{body: resp.Body, reader: bufio.NewReader(resp.Body)}, nil
}

type ollamaSource struct {
	body    io.ReadCloser
	reader  *bufio.Reader
	wrapper reasoningWrapper
	pending string
	done    bool
}

func (s *ollamaSource) Next(ctx context.Context) (stream.Chunk, error) {
	for {
		if s.pending != "" {
			out := s.pending
			s.pending = ""
			return stream.Chunk{Content: out}, nil
		}
		if s.done {
			return stream.Chunk{}, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return stream.Chunk{}, err
		}

		line, err := s.reader.ReadBytes('\n')
		if len(line) > 0 {
			if chunkErr := s.consume(line); chunkErr != nil {
				return stream.Chunk{}, chunkErr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.done = true
				s.pending += s.wrapper.finish()
				continue
			}
			return stream.Chunk{}, fmt.Errorf("failed to read from stream: %w", err)
		}
	}
}

// consume decodes one line into pending text. Malformed lines are skipped.
func (s *ollamaSource) consume(line []byte) error {
	var chunk ollamaChunk
	if err := json.Unmarshal(line, &chunk); err != nil {
		return nil
	}
	if chunk.Error != "" {
		return &APIError{StatusCode: http.StatusOK, Message: chunk.Error}
	}
	s.pending += s.wrapper.wrap(chunk.Message.Thinking, chunk.Message.Content)
	if chunk.Done {
		s.done = true
		s.pending += s.wrapper.finish()
	}
	return nil
}

func (s *ollamaSource) Close() error {
	s.done = true
	return s.body.Close()
}
