// Package openai embeds text with the OpenAI embeddings API or any
// service that speaks the same protocol.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/simmatch/internal/adapters/driven/embedding/remote"
	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "text-embedding-3-small"
	DefaultTimeout     = 60 * time.Second
	DefaultMaxBatch    = 256
	DefaultConcurrency = 2

	fallbackDimensions = 1536
)

// Config holds configuration for the OpenAI embedding service.
type Config struct {
	// APIKey is sent as a bearer token. Required.
	APIKey string

	// BaseURL points at the API root (default: DefaultBaseURL).
	// Azure OpenAI and compatible gateways work here too.
	BaseURL string

	Model   string
	Timeout time.Duration

	// Dimensions asks text-embedding-3 models to shorten their output.
	// Zero keeps the model's native size.
	Dimensions int

	RateLimit RateLimitConfig

	// MaxBatch caps inputs per request; EmbedBatch splits larger inputs.
	MaxBatch int

	// Concurrency bounds requests in flight during EmbedBatch.
	Concurrency int
}

// EmbeddingService generates embeddings over the OpenAI API.
type EmbeddingService struct {
	api         *remote.Client
	model       string
	dimensions  int
	shorten     bool
	maxBatch    int
	concurrency int
	limiter     *RateLimiter
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingDatum struct {
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingResponse struct {
	Data  []embeddingDatum `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// NewEmbeddingService creates a new OpenAI embedding service.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai API key is required", domain.ErrInvalidInput)
	}
	cfg.BaseURL = cmpOr(cfg.BaseURL, DefaultBaseURL)
	cfg.Model = cmpOr(cfg.Model, DefaultModel)
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = DefaultMaxBatch
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	shorten := strings.HasPrefix(cfg.Model, "text-embedding-3-") && cfg.Dimensions > 0
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = domain.EmbeddingDimensions()[cfg.Model]
	}
	if dims <= 0 {
		dims = fallbackDimensions
	}

	header := http.Header{"Authorization": {"Bearer " + cfg.APIKey}}
	return &EmbeddingService{
		api:         remote.NewClient("openai", cfg.BaseURL, cfg.Timeout, header),
		model:       cfg.Model,
		dimensions:  dims,
		shorten:     shorten,
		maxBatch:    cfg.MaxBatch,
		concurrency: cfg.Concurrency,
		limiter:     NewRateLimiter(cfg.RateLimit),
	}, nil
}

func cmpOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := s.embedChunk(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch splits texts into chunks of at most MaxBatch and sends up to
// Concurrency chunks at once. Results keep the input order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for start := 0; start < len(texts); start += s.maxBatch {
		end := min(start+s.maxBatch, len(texts))
		g.Go(func() error {
			vecs, err := s.embedChunk(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *EmbeddingService) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	req := embeddingRequest{Model: s.model, Input: texts}
	if s.shorten {
		req.Dimensions = s.dimensions
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("openai: waiting for rate limiter: %w", err)
	}

	var resp embeddingResponse
	if err := s.api.Post(ctx, "/embeddings", req, &resp); err != nil {
		if se, ok := remote.AsStatus(err); ok && se.Code == http.StatusTooManyRequests {
			s.limiter.Backoff(se.RetryAfter)
		}
		return nil, err
	}

	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai: response index %d out of range", d.Index)
		}
		vecs[d.Index] = remote.Float32s(d.Embedding)
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("openai: no embedding returned for input %d", i)
		}
	}
	return vecs, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int { return s.dimensions }

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string { return s.model }

// Ping lists models, which checks the key without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.api.Get(ctx, "/models", nil)
}

// Close releases idle connections.
func (s *EmbeddingService) Close() error {
	s.api.Close()
	return nil
}
