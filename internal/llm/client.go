package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/unfoldindia/unfold/internal/config"
)

// Client is the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Message is one turn of a conversation sent to the model.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Request describes a single completion call.
type Request struct {
	System      string
	Messages    []Message
	Schema      *Schema // when set, the model must answer with matching JSON
	MaxTokens   int
	Temperature float32
}

// Prompt builds a request with a single user message.
func Prompt(text string) *Request {
	return &Request{Messages: []Message{{Role: "user", Content: text}}}
}

// Response holds the result of an LLM completion.
type Response struct {
	Content    string
	Provider   string
	TokensUsed int
}

// Schema is a JSON Schema subset accepted by OpenAI-style structured output.
type Schema struct {
	Name                 string             `json:"-"`
	Type                 string             `json:"type"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Description          string             `json:"description,omitempty"`
	AdditionalProperties bool               `json:"additionalProperties"`
}

// MarshalJSON lets Schema be passed wherever a json.Marshaler is expected.
func (s *Schema) MarshalJSON() ([]byte, error) {
	type alias Schema
	return json.Marshal((*alias)(s))
}

// StatusError is a non-2xx answer from a provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s api status %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s api status %d: %s", e.Provider, e.Code, e.Body)
}

// StatusCode returns the provider's HTTP status if err carries one.
func StatusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}

const (
	defaultMaxTokens = 1024
	defaultTimeout   = 120 * time.Second
)

func maxTokens(req *Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultMaxTokens
}

// NewClient creates an LLM client based on the config provider setting.
func NewClient(cfg config.LLMConfig) (Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	switch cfg.Provider {
	case "openai", "groq":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires GROQ_API_KEY or config")
		}
		model := cfg.Model
		if model == "" {
			model = "llama-3.1-8b-instant"
		}
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, model, timeout), nil
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("anthropic provider requires ANTHROPIC_API_KEY or config")
		}
		model := cfg.Model
		if model == "" {
			model = "claude-haiku-4-5-20251001"
		}
		return NewAnthropic(cfg.AnthropicKey, model, timeout), nil
	case "ollama":
		url := cfg.OllamaURL
		if url == "" {
			url = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = "llama3.2"
		}
		client, err := NewOllama(url, model, timeout)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}
