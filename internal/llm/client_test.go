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

func chatServer(t *testing.T, status int, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Model)
		require.NotEmpty(t, req.Messages)

		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"upstream unavailable"}}`))
			return
		}
		resp := ChatResponse{
			Model: req.Model,
			Choices: []Choice{
				{Message: ChatMessage{Role: "assistant", Content: reply}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestCompleteWithSystem(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"action":"enter_long"}`)
	defer srv.Close()

	c := NewClient(ClientConfig{Endpoint: srv.URL, Model: "test-model", APIKey: "k"})
	content, err := c.CompleteWithSystem(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"action":"enter_long"}`, content)
}

func TestCompleteErrorStatus(t *testing.T) {
	srv := chatServer(t, http.StatusBadGateway, "")
	defer srv.Close()

	c := NewClient(ClientConfig{Endpoint: srv.URL, Model: "test-model"})
	_, err := c.CompleteWithSystem(context.Background(), "sys", "user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream unavailable")
}

func TestParseJSONResponseFencing(t *testing.T) {
	type out struct {
		Action string `json:"action"`
	}

	cases := []string{
		`{"action":"hold"}`,
		"```json\n{\"action\":\"hold\"}\n```",
		"Here is my answer:\n```\n{\"action\":\"hold\"}\n```\nthanks",
	}
	for _, c := range cases {
		var v out
		require.NoError(t, ParseJSONResponse(c, &v), c)
		assert.Equal(t, "hold", v.Action)
	}

	var v out
	assert.Error(t, ParseJSONResponse("not json at all", &v))
}

func TestFallbackClientOrder(t *testing.T) {
	primary := NewClient(ClientConfig{Model: "primary"})
	fallback := NewClient(ClientConfig{Model: "fallback"})

	clients := NewFallbackClient(primary, fallback).Clients()
	require.Len(t, clients, 2)
	assert.Equal(t, "primary", clients[0].Model())
	assert.Equal(t, "fallback", clients[1].Model())

	clients = NewFallbackClient(primary, nil).Clients()
	require.Len(t, clients, 1)
	assert.Equal(t, "primary", clients[0].Model())
}
