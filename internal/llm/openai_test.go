package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClientGenerate(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"ok\":true}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 4, "total_tokens": 7}
		}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(WithAPIKey("sk-test"), WithBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)
	assert.Equal(t, ModelGPT4oMini, client.Name())

	resp, err := client.Generate(context.Background(), "summarise",
		WithGenerateSystem("you are an analyst"),
		WithGenerateJSON(),
		WithGenerateStop("\nObservation:"),
	)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp.Text)
	assert.Equal(t, 7, resp.TokenCount)

	messages, ok := captured["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, []any{"\nObservation:"}, captured["stop"])
	format, ok := captured["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
}

func TestOpenAIClientImageMessage(t *testing.T) {
	msg := toOpenAIMessage(Message{
		Role:    RoleUser,
		Content: "read this slide",
		Images:  []Image{{MimeType: "image/png", Data: []byte("abc")}},
	})
	require.Len(t, msg.MultiContent, 2)
	assert.Empty(t, msg.Content)
	assert.Equal(t, "read this slide", msg.MultiContent[0].Text)
	assert.Equal(t, "data:image/png;base64,YWJj", msg.MultiContent[1].ImageURL.URL)
}

func TestOpenAIClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(WithAPIKey("sk-bad"), WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "hi")
	require.Error(t, err)
	var llmErr LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeInvalidAPIKey, llmErr.Code)
	assert.False(t, IsRetryable(err))

	_, err = NewOpenAIClient()
	assert.Error(t, err)
}
