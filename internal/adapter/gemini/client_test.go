package gemini

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/civic-risk-service/internal/adapter/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "gm-secret"

func testClient(baseURL string) *Client {
	c := NewClient(upstream.NewClient(5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil))), testKey, "gemini-1.5-flash")
	c.baseURL = baseURL
	return c
}

func TestClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, testKey, r.URL.Query().Get("key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "user", req.Contents[0].Role)
		assert.Equal(t, "will it flood today", req.Contents[0].Parts[0].Text)
		assert.InDelta(t, 0.3, req.GenerationConfig.Temperature, 1e-9)
		assert.Equal(t, 400, req.GenerationConfig.MaxOutputTokens)

		_, _ = w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "River levels are elevated."}, {"text": "Avoid low-water crossings. "}]}}]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	text, err := c.Generate(context.Background(), "will it flood today")
	require.NoError(t, err)
	assert.Equal(t, "River levels are elevated.\nAvoid low-water crossings.", text)
	assert.Equal(t, "gemini/gemini-1.5-flash", c.Name())
}

func TestClient_Generate_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Generate(context.Background(), "hi")
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestClient_Generate_ErrorHidesKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": {"message": "API key not valid"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Generate(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.NotContains(t, err.Error(), testKey)
}
