package differ

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

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

func chatServer(t *testing.T, reply string, seen *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(seen))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   seen.Model,
			"choices": []map[string]interface{}{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": reply},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAISummarize(t *testing.T) {
	var seen chatRequest
	srv := chatServer(t, " Clarified the scope section. ", &seen)

	gen, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1/"})
	require.NoError(t, err)

	long := strings.Repeat("x", summaryInputLimit+500)
	summary, err := gen.Summarize(context.Background(), long, "new text")
	require.NoError(t, err)

	assert.Equal(t, "Clarified the scope section.", summary)
	assert.Equal(t, DefaultOpenAIModel, seen.Model)
	require.Len(t, seen.Messages, 2)
	assert.Equal(t, "system", seen.Messages[0].Role)
	assert.NotContains(t, seen.Messages[1].Content, strings.Repeat("x", summaryInputLimit+1))
	assert.Contains(t, seen.Messages[1].Content, "new text")
}

func TestOpenAIDiffParsesFencedJSON(t *testing.T) {
	var seen chatRequest
	reply := "```json\n{\"added\":[\"New section on MFA\"],\"modified\":[\"Scope reworded\"]}\n```"
	srv := chatServer(t, reply, &seen)

	gen, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1", Model: "gpt-test"})
	require.NoError(t, err)

	diff, err := gen.Diff(context.Background(), "old", "new")
	require.NoError(t, err)

	assert.Equal(t, []string{"New section on MFA"}, diff.Added)
	assert.Equal(t, []string{}, diff.Removed)
	assert.Equal(t, []string{"Scope reworded"}, diff.Modified)
	assert.Equal(t, "gpt-test", seen.Model)
	require.NotNil(t, seen.ResponseFormat)
	assert.Equal(t, "json_object", seen.ResponseFormat.Type)
}

func TestOpenAIDiffRejectsNonJSONReply(t *testing.T) {
	var seen chatRequest
	srv := chatServer(t, "I could not compare these.", &seen)

	gen, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = gen.Diff(context.Background(), "old", "new")
	assert.Error(t, err)
}

func TestOpenAIUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	gen, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = gen.Summarize(context.Background(), "old", "new")
	assert.Error(t, err)
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{})
	assert.Error(t, err)
}
