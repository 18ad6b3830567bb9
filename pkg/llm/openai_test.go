package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClient_Chat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":3}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", "gpt-4o", WithBaseURL(srv.URL+"/v1/"))
	resp, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, &SamplingOptions{
		MaxTokens:      4000,
		ResponseFormat: &ResponseFormat{Name: "sample", Schema: json.RawMessage(`{"type":"object"}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 12, resp.Usage.PromptTokens)

	assert.Equal(t, "gpt-4o", got["model"])
	assert.EqualValues(t, 4000, got["max_completion_tokens"])
	format := got["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	assert.Equal(t, "sample", format["json_schema"].(map[string]any)["name"])
}

func TestOpenAIClient_Errors(t *testing.T) {
	tests := map[string]struct {
		status int
		body   string
		want   string
	}{
		"status":  {http.StatusTooManyRequests, `{"error":"slow down"}`, "openai error: 429"},
		"empty":   {http.StatusOK, `{"choices":[]}`, "empty choices"},
		"refusal": {http.StatusOK, `{"choices":[{"message":{"refusal":"no"}}]}`, "refused"},
		"garbage": {http.StatusOK, `not json`, "decode response"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewOpenAIClient("k", "m", WithBaseURL(srv.URL))
			_, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "x"}}, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
