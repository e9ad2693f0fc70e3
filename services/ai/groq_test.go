package aisvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/ai"
	testutil "github.com/trezcool/elimu/tests"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	conf := testutil.NewConfig().AI
	conf.BaseURL = srv.URL
	conf.APIKey = "test-key"
	conf.BreakerThreshold = 2
	conf.BreakerTimeout = time.Minute
	return NewClient(conf, testutil.NewLogger(t)), &hits
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestClient_Generate(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, completionsPath, r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama-3.3-70b-versatile", req.Model)
		assert.Equal(t, 1024, req.MaxTokens)
		assert.Equal(t, 0.7, req.Temperature)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "hello", req.Messages[0].Content)

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "hi there"}},
			},
		})
	})

	text, err := client.Generate(context.Background(), "hello", 1024, 0.7)
	require.NoError(t, err)
	assert.Equal(t, "hi there", text)
}

func TestClient_Generate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    interface{}
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, map[string]interface{}{"error": map[string]string{"message": "bad key"}}, ai.ErrUnauthorized},
		{"rate limited", http.StatusTooManyRequests, map[string]interface{}{"error": map[string]string{"message": "slow down"}}, ai.ErrRateLimited},
		{"server error", http.StatusInternalServerError, map[string]interface{}{"error": map[string]string{"message": "boom"}}, ai.ErrUnavailable},
		{"no choices", http.StatusOK, map[string]interface{}{"choices": []interface{}{}}, ai.ErrInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := client.Generate(context.Background(), "hello", 10, 0.7)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, core.KindUpstreamUnavailable, core.KindOf(err))
		})
	}
}

func TestClient_Generate_Timeout(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Generate(ctx, "hello", 10, 0.7)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_CircuitBreaker(t *testing.T) {
	t.Run("opens after consecutive failures", func(t *testing.T) {
		client, hits := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusBadGateway, map[string]interface{}{})
		})

		for i := 0; i < 2; i++ {
			_, err := client.Generate(context.Background(), "hello", 10, 0.7)
			assert.ErrorIs(t, err, ai.ErrUnavailable)
		}
		_, err := client.Generate(context.Background(), "hello", 10, 0.7)
		assert.ErrorIs(t, err, ai.ErrUnavailable)
		assert.Equal(t, int32(2), atomic.LoadInt32(hits), "open breaker must not reach the provider")
	})

	t.Run("bad key does not open it", func(t *testing.T) {
		client, hits := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{})
		})

		for i := 0; i < 4; i++ {
			_, err := client.Generate(context.Background(), "hello", 10, 0.7)
			assert.ErrorIs(t, err, ai.ErrUnauthorized)
		}
		assert.Equal(t, int32(4), atomic.LoadInt32(hits))
	})
	t.Run("callers giving up do not open it", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})

		for i := 0; i < 3; i++ {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			_, err := client.Generate(ctx, "hello", 10, 0.7)
			cancel()
			assert.ErrorIs(t, err, context.DeadlineExceeded)
		}
		assert.Equal(t, gobreaker.StateClosed, client.breaker.State())
	})

	t.Run("malformed completions do not open it", func(t *testing.T) {
		client, hits := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"choices": []interface{}{}})
		})

		for i := 0; i < 3; i++ {
			_, err := client.Generate(context.Background(), "hello", 10, 0.7)
			assert.ErrorIs(t, err, ai.ErrInvalidResponse)
		}
		assert.Equal(t, int32(3), atomic.LoadInt32(hits))
	})
}

func Test_providerHealthy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"success", nil, true},
		{"bad key", ai.ErrUnauthorized, true},
		{"malformed", ai.ErrInvalidResponse, true},
		{"caller canceled", errors.Wrap(context.Canceled, "calling AI provider"), true},
		{"caller deadline", errors.Wrap(context.DeadlineExceeded, "calling AI provider"), true},
		{"provider down", errors.Wrap(ai.ErrUnavailable, "status 502"), false},
		{"rate limited", ai.ErrRateLimited, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, providerHealthy(tt.err))
		})
	}
}
