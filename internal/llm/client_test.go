package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veltrix/shoprec/internal/config"
)

func testClient(t *testing.T, serverURL string, maxRetries int) *Client {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	return NewClient(&config.LLMConfig{
		BaseURL:        serverURL,
		APIKey:         "test-key",
		Model:          "test-model",
		RequestTimeout: 5 * time.Second,
		MaxRetries:     maxRetries,
	}, logger)
}

func completionResponse(content string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	}
}

func TestClientGenerate(t *testing.T) {
	t.Run("returns completion content", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var req map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "test-model", req["model"])

			json.NewEncoder(w).Encode(completionResponse(`{"intent": "browsing"}`))
		}))
		defer server.Close()

		client := testClient(t, server.URL, 0)

		text, err := client.Generate(context.Background(), "analyze this user")
		require.NoError(t, err)
		assert.Equal(t, `{"intent": "browsing"}`, text)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			json.NewEncoder(w).Encode(completionResponse("ok"))
		}))
		defer server.Close()

		client := testClient(t, server.URL, 2)

		text, err := client.Generate(context.Background(), "prompt")
		require.NoError(t, err)
		assert.Equal(t, "ok", text)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("fails after retries exhausted", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := testClient(t, server.URL, 1)

		_, err := client.Generate(context.Background(), "prompt")
		assert.Error(t, err)
	})

	t.Run("empty choices is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
		}))
		defer server.Close()

		client := testClient(t, server.URL, 0)

		_, err := client.Generate(context.Background(), "prompt")
		assert.Error(t, err)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := testClient(t, server.URL, 5)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.Generate(ctx, "prompt")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
