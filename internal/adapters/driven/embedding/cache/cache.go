// Package cache decorates an embedding service with a content-addressed,
// time-bounded cache.
//
// Keys are the SHA-256 of the model name and the normalised text, so the
// same query spelled with different spacing or case is embedded once.
package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
	"github.com/custodia-labs/simmatch/internal/logger"
)

// Ensure Service implements the interface.
var _ driven.EmbeddingService = (*Service)(nil)

// Default configuration values.
const (
	DefaultTTL        = time.Hour
	DefaultMaxEntries = 1024
)

// Options configures the cache.
type Options struct {
	// TTL is how long an embedding is reused (default: 1h).
	TTL time.Duration

	// MaxEntries bounds the cache; the oldest entry is evicted first (default: 1024).
	MaxEntries int

	// Now is the time source (default: time.Now).
	Now func() time.Time
}

type entry struct {
	key     string
	vector  []float32
	expires time.Time
}

// Service caches Embed results of the wrapped service.
// EmbedBatch consults the cache per text and sends only the misses.
type Service struct {
	inner driven.EmbeddingService
	ttl   time.Duration
	max   int
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // insertion order, so front expires first
	hits    uint64
	misses  uint64

	group singleflight.Group
	log   *logger.Logger
}

// New wraps inner with a cache.
func New(inner driven.EmbeddingService, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		inner:   inner,
		ttl:     opts.TTL,
		max:     opts.MaxEntries,
		now:     opts.Now,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		log:     logger.For("embedding-cache"),
	}
}

// Normalize trims text, collapses internal whitespace and lower-cases it.
func Normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Key returns the cache key for text embedded by model.
func Key(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// Embed returns the cached vector for text or asks the wrapped service.
// Concurrent misses for the same key share one request.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	key := Key(s.inner.ModelName(), text)
	if vec, ok := s.get(key); ok {
		return vec, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		if vec, ok := s.get(key); ok {
			return vec, nil
		}
		vec, err := s.inner.Embed(ctx, Normalize(text))
		if err != nil {
			return nil, err
		}
		s.put(key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return clone(v.([]float32)), nil
}

// EmbedBatch serves cached texts locally and embeds the rest in one call.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	model := s.inner.ModelName()

	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if vec, ok := s.get(Key(model, text)); ok {
			out[i] = vec
			continue
		}
		missTexts = append(missTexts, Normalize(text))
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := s.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embedding batch returned %d vectors for %d texts", len(vecs), len(missTexts))
	}
	for j, i := range missIdx {
		s.put(Key(model, texts[i]), vecs[j])
		out[i] = clone(vecs[j])
	}
	return out, nil
}

// Stats returns hit and miss counts and the current size.
func (s *Service) Stats() (hits, misses uint64, size int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits, s.misses, s.order.Len()
}

// Dimensions returns the wrapped service's vector size.
func (s *Service) Dimensions() int {
	return s.inner.Dimensions()
}

// ModelName returns the wrapped service's model.
func (s *Service) ModelName() string {
	return s.inner.ModelName()
}

// Ping checks the wrapped service.
func (s *Service) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Close drops every entry and closes the wrapped service.
func (s *Service) Close() error {
	s.mu.Lock()
	s.entries = make(map[string]*list.Element)
	s.order.Init()
	s.mu.Unlock()
	return s.inner.Close()
}

func (s *Service) get(key string) ([]float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		s.misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if !s.now().Before(e.expires) {
		s.order.Remove(el)
		delete(s.entries, key)
		s.misses++
		return nil, false
	}
	s.hits++
	return clone(e.vector), true
}

func (s *Service) put(key string, vec []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		s.order.Remove(el)
		delete(s.entries, key)
	}
	for s.order.Len() >= s.max {
		oldest := s.order.Front()
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(*entry).key)
		s.log.Debug("evicted oldest entry, size %d", s.max)
	}
	s.entries[key] = s.order.PushBack(&entry{
		key:     key,
		vector:  clone(vec),
		expires: s.now().Add(s.ttl),
	})
}

func clone(v []float32) []float32 {
	return append([]float32(nil), v...)
}
