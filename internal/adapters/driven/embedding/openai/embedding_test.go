package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/simmatch/internal/core/domain"
)

// fastLimit keeps tests from waiting on the token bucket.
var fastLimit = RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 1000}

func newTestService(t *testing.T, cfg Config, handler http.HandlerFunc) *EmbeddingService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg.BaseURL = server.URL
	if cfg.APIKey == "" {
		cfg.APIKey = "sk-test"
	}
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit = fastLimit
	}
	svc, err := NewEmbeddingService(cfg)
	require.NoError(t, err)
	return svc
}

// echoEmbeddings answers with one embedding per input, [len(input), index].
func echoEmbeddings(t *testing.T, requests *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var resp embeddingResponse
		// Answer in reverse to check ordering by index.
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, embeddingDatum{
				Embedding: []float64{float64(len(req.Input[i])), float64(i)},
				Index:     i,
			})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func TestNewEmbeddingService_RequiresAPIKey(t *testing.T) {
	_, err := NewEmbeddingService(Config{})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	svc, err := NewEmbeddingService(Config{APIKey: "sk-test"})
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.Equal(t, 1536, svc.Dimensions())
	assert.Equal(t, DefaultMaxBatch, svc.maxBatch)
	assert.Equal(t, DefaultConcurrency, svc.concurrency)
	assert.Equal(t, DefaultBaseURL, svc.api.BaseURL())

	svc, err = NewEmbeddingService(Config{APIKey: "sk-test", Model: "text-embedding-3-large"})
	require.NoError(t, err)
	assert.Equal(t, 3072, svc.Dimensions())
}

func TestEmbeddingService_Embed(t *testing.T) {
	var requests atomic.Int32
	svc := newTestService(t, Config{}, echoEmbeddings(t, &requests))

	vec, err := svc.Embed(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, []float32{5, 0}, vec)
}

func TestEmbeddingService_EmbedBatch_SplitsAndOrders(t *testing.T) {
	var requests atomic.Int32
	svc := newTestService(t, Config{MaxBatch: 2}, echoEmbeddings(t, &requests))

	vecs, err := svc.EmbedBatch(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})

	require.NoError(t, err)
	require.Len(t, vecs, 5)
	for i, v := range vecs {
		assert.Equal(t, float32(i+1), v[0], "input %d", i)
	}
	assert.Equal(t, int32(3), requests.Load())
}

func TestEmbeddingService_EmbedBatch_Empty(t *testing.T) {
	var requests atomic.Int32
	svc := newTestService(t, Config{}, echoEmbeddings(t, &requests))

	vecs, err := svc.EmbedBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Nil(t, vecs)
	assert.Zero(t, requests.Load())
}

func TestEmbeddingService_SendsDimensionsForV3Models(t *testing.T) {
	svc := newTestService(t, Config{Model: "text-embedding-3-small", Dimensions: 256},
		func(w http.ResponseWriter, r *http.Request) {
			var req embeddingRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, 256, req.Dimensions)
			_, _ = w.Write([]byte(`{"data":[{"embedding":[1,0],"index":0}]}`))
		})

	_, err := svc.Embed(context.Background(), "x")
	require.NoError(t, err)
}

func TestEmbeddingService_NativeSizeOmitsDimensions(t *testing.T) {
	svc := newTestService(t, Config{Model: "text-embedding-ada-002"},
		func(w http.ResponseWriter, r *http.Request) {
			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.NotContains(t, req, "dimensions")
			_, _ = w.Write([]byte(`{"data":[{"embedding":[1,0],"index":0}]}`))
		})

	_, err := svc.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 1536, svc.Dimensions())
}

func TestEmbeddingService_APIError(t *testing.T) {
	svc := newTestService(t, Config{}, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key","type":"invalid_request_error"}}`))
	})

	_, err := svc.Embed(context.Background(), "x")

	assert.ErrorContains(t, err, "Incorrect API key")
}

func TestEmbeddingService_IndexOutOfRange(t *testing.T) {
	svc := newTestService(t, Config{}, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1,0],"index":4}]}`))
	})

	_, err := svc.Embed(context.Background(), "x")

	assert.ErrorContains(t, err, "index 4 out of range")
}

func TestEmbeddingService_MissingEmbedding(t *testing.T) {
	svc := newTestService(t, Config{}, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1,0],"index":0}]}`))
	})

	_, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})

	assert.ErrorContains(t, err, "no embedding returned for input 1")
}

func TestEmbeddingService_RateLimited(t *testing.T) {
	svc := newTestService(t, Config{}, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := svc.Embed(context.Background(), "x")

	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.False(t, svc.limiter.Allow())
	assert.InDelta(t, 7*time.Second, svc.limiter.pause(), float64(time.Second))
}

func TestEmbeddingService_Ping(t *testing.T) {
	svc := newTestService(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	assert.NoError(t, svc.Ping(context.Background()))
	assert.NoError(t, svc.Close())
}

func TestRateLimiter_Backoff(t *testing.T) {
	r := NewRateLimiter(fastLimit)

	assert.True(t, r.Allow())
	assert.Equal(t, 3*time.Second, r.Backoff(3*time.Second))
	assert.False(t, r.Allow())
	assert.Equal(t, defaultBackoff, r.Backoff(0))
}

func TestRateLimiter_WaitRespectsContext(t *testing.T) {
	r := NewRateLimiter(fastLimit)
	r.Backoff(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}

func TestRateLimiter_Defaults(t *testing.T) {
	r := NewRateLimiter(RateLimitConfig{})

	assert.Equal(t, DefaultRateLimit.BurstSize, r.bucket.Burst())
}
