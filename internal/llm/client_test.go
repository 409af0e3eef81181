package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unfoldindia/unfold/internal/config"
)

func TestNewClientOpenAI(t *testing.T) {
	cfg := config.LLMConfig{Provider: "openai", APIKey: "gsk-test"}
	client, err := NewClient(cfg)
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, client)
}

func TestNewClientOpenAIMissingKey(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Provider: "openai"})
	assert.Error(t, err)
}

func TestNewClientAnthropic(t *testing.T) {
	cfg := config.LLMConfig{Provider: "anthropic", AnthropicKey: "test-key"}
	client, err := NewClient(cfg)
	require.NoError(t, err)
	assert.IsType(t, &Anthropic{}, client)
}

func TestNewClientAnthropicMissingKey(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Provider: "anthropic"})
	assert.Error(t, err)
}

func TestNewClientOllama(t *testing.T) {
	client, err := NewClient(config.LLMConfig{Provider: "ollama", Model: "llama3.2"})
	require.NoError(t, err)
	assert.IsType(t, &Ollama{}, client)
}

func TestNewClientUnknown(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Provider: "gpt"})
	assert.Error(t, err)
}

func TestOpenAIComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "chatcmpl-1", "object": "chat.completion", "model": "llama-3.1-8b-instant",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Namaste!"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13}
		}`)
	}))
	defer srv.Close()

	client := NewOpenAI("gsk-test", srv.URL, "llama-3.1-8b-instant", 5*time.Second)
	resp, err := client.Complete(context.Background(), &Request{
		System:   "be brief",
		Messages: []Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}, {Role: "user", Content: "again"}},
		Schema:   ProgressInsightSchema,
	})
	require.NoError(t, err)

	assert.Equal(t, "Namaste!", resp.Content)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, 13, resp.TokensUsed)

	msgs := got["messages"].([]any)
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "assistant", msgs[2].(map[string]any)["role"])

	format := got["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
}

func TestOpenAICompleteNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error": {"message": "rate limited", "type": "rate_limit"}}`)
	}))
	defer srv.Close()

	client := NewOpenAI("gsk-test", srv.URL, "m", 5*time.Second)
	_, err := client.Complete(context.Background(), Prompt("hi"))
	require.Error(t, err)
	code, ok := StatusCode(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, code)
}

func TestStatusCodeWithoutStatus(t *testing.T) {
	_, ok := StatusCode(context.DeadlineExceeded)
	assert.False(t, ok)
}

func TestAnthropicCompleteSendsSchemaInSystem(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		io.WriteString(w, `{"content":[{"text":"{}"}],"usage":{"input_tokens":4,"output_tokens":2}}`)
	}))
	defer srv.Close()

	client := NewAnthropic("test-key", "claude-haiku-4-5-20251001", 5*time.Second)
	client.endpoint = srv.URL

	resp, err := client.Complete(context.Background(), &Request{Messages: []Message{{Role: "user", Content: "x"}}, Schema: ProgressInsightSchema})
	require.NoError(t, err)
	assert.Equal(t, "{}", resp.Content)
	assert.Equal(t, 6, resp.TokensUsed)
	assert.Contains(t, got["system"], "next_milestone")
}

func TestOllamaComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{"model":"llama3.2","message":{"role":"assistant","content":"ok"},"done":true,"prompt_eval_count":3,"eval_count":1}`)
	}))
	defer srv.Close()

	client, err := NewOllama(srv.URL, "llama3.2", 5*time.Second)
	require.NoError(t, err)
	resp, err := client.Complete(context.Background(), &Request{
		System:   "be brief",
		Messages: []Message{{Role: "user", Content: "hi"}},
		Schema:   ProgressInsightSchema,
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 4, resp.TokensUsed)

	assert.Equal(t, false, got["stream"])
	assert.Equal(t, "llama3.2", got["model"])
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	format, ok := got["format"].(map[string]any)
	require.True(t, ok, "schema should be sent as format")
	assert.Contains(t, format["required"], "next_milestone")
}

func TestOllamaStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":"model \"llama3.2\" not found"}`)
	}))
	defer srv.Close()

	client, err := NewOllama(srv.URL, "llama3.2", 5*time.Second)
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), Prompt("hi"))
	require.Error(t, err)
	code, ok := StatusCode(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, err.Error(), "not found")
}

func TestProgressInsightPrompt(t *testing.T) {
	p := ProgressInsightPrompt(40, []string{"Adventure"}, nil, []string{"Northeast"})

	assert.Contains(t, p, "40%")
	assert.Contains(t, p, "Adventure")
	assert.Contains(t, p, "UNLOCKED BADGES: none yet")
	assert.Contains(t, p, "Northeast")
	for _, field := range ProgressInsightSchema.Required {
		assert.True(t, strings.Contains(p, field), "prompt should name field %s", field)
	}
}

func TestMockClient(t *testing.T) {
	mock := &MockClient{
		Response: &Response{Content: "test response", Provider: "mock"},
	}

	resp, err := mock.Complete(context.Background(), Prompt("test prompt"))
	require.NoError(t, err)
	assert.Equal(t, "test response", resp.Content)
	require.Equal(t, 1, mock.CallCount())
	assert.Equal(t, "test prompt", mock.Calls[0].Messages[0].Content)
}

func TestMockClientHonorsContext(t *testing.T) {
	mock := &MockClient{Response: &Response{Content: "late"}, Delay: time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := mock.Complete(ctx, Prompt("x"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
