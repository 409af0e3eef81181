package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	olla "github.com/ollama/ollama/api"
)

// Ollama calls a local Ollama instance.
type Ollama struct {
	client *olla.Client
	model  string
}

// NewOllama creates a new Ollama client.
func NewOllama(baseURL, model string, timeout time.Duration) (*Ollama, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url: %w", err)
	}
	return &Ollama{
		client: olla.NewClient(parsed, &http.Client{Timeout: timeout}),
		model:  model,
	}, nil
}

// Complete sends the request to Ollama's chat endpoint. A schema is passed
// through as the "format" constraint.
func (o *Ollama) Complete(ctx context.Context, req *Request) (*Response, error) {
	messages := make([]olla.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, olla.Message{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, olla.Message{Role: m.Role, Content: m.Content})
	}

	stream := false
	chatReq := &olla.ChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": req.Temperature,
			"num_predict": maxTokens(req),
		},
	}
	if req.Schema != nil {
		format, err := json.Marshal(req.Schema)
		if err != nil {
			return nil, fmt.Errorf("marshal schema: %w", err)
		}
		chatReq.Format = json.RawMessage(format)
	}

	var result olla.ChatResponse
	err := o.client.Chat(ctx, chatReq, func(resp olla.ChatResponse) error {
		result = resp
		return nil
	})
	if err != nil {
		var se olla.StatusError
		if errors.As(err, &se) {
			return nil, &StatusError{Provider: "ollama", Code: se.StatusCode, Body: se.ErrorMessage}
		}
		return nil, fmt.Errorf("ollama api: %w", err)
	}

	return &Response{
		Content:    result.Message.Content,
		Provider:   "ollama",
		TokensUsed: result.PromptEvalCount + result.EvalCount,
	}, nil
}
