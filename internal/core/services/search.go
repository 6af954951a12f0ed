package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
	"github.com/custodia-labs/simmatch/internal/core/ports/driving"
	"github.com/custodia-labs/simmatch/internal/logger"
	"github.com/custodia-labs/simmatch/internal/vecmath"
)

// Ensure SearchService implements the interfaces.
var (
	_ driving.SearchService  = (*SearchService)(nil)
	_ driving.SearchDefaults = (*SearchService)(nil)
)

// query is a resolved search request.
type query struct {
	vector        []float32
	contentType   domain.ContentType
	limit         int
	threshold     float64
	includeVector bool
	exclude       string // content ID left out of results
}

// SearchService ranks records by cosine similarity. It asks the index for
// candidates and re-scores them exactly; when the index cannot serve it
// scans the store instead.
type SearchService struct {
	store    driven.EmbeddingStore
	index    *IndexManager
	embedder driven.EmbeddingService
	settings *domain.EngineSettings
	defaults atomic.Pointer[domain.SearchSettings]
	log      *logger.Logger
}

// NewSearchService creates a new search service.
// The embedder parameter is optional (can be nil).
func NewSearchService(
	store driven.EmbeddingStore,
	index *IndexManager,
	embedder driven.EmbeddingService,
	settings *domain.EngineSettings,
) *SearchService {
	s := &SearchService{
		store:    store,
		index:    index,
		embedder: embedder,
		settings: settings,
		log:      logger.For("search"),
	}
	defaults := settings.Search
	s.defaults.Store(&defaults)
	return s
}

// Defaults returns the search defaults currently in effect.
func (s *SearchService) Defaults() domain.SearchSettings {
	return *s.defaults.Load()
}

// SetDefaults replaces the default threshold and limit used when a query
// omits them. In-flight queries keep the values they started with.
func (s *SearchService) SetDefaults(threshold float64, defaultLimit int) error {
	next := s.Defaults()
	next.Threshold = threshold
	next.DefaultLimit = defaultLimit
	if threshold < -1 || threshold > 1 || math.IsNaN(threshold) {
		return fmt.Errorf("%w: threshold %v outside [-1, 1]", domain.ErrInvalidInput, threshold)
	}
	if defaultLimit <= 0 || defaultLimit > next.MaxLimit {
		return fmt.Errorf("%w: default limit must be in 1..%d", domain.ErrInvalidInput, next.MaxLimit)
	}
	s.defaults.Store(&next)
	return nil
}

// Search ranks records of contentType by similarity to vector.
func (s *SearchService) Search(
	ctx context.Context, vector []float32, contentType domain.ContentType, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	logger.Section("Similarity Search")

	if !contentType.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidContentType, contentType)
	}
	if err := s.settings.CheckDimension(contentType, vector); err != nil {
		return nil, err
	}
	q, err := s.resolve(opts)
	if err != nil {
		return nil, err
	}
	q.vector = vector
	q.contentType = contentType

	ctx, cancel := withTimeout(ctx, s.settings.OperationTimeout)
	defer cancel()

	results, err := s.search(ctx, q)
	if err != nil {
		return nil, classify(fmt.Errorf("search %s: %w", contentType, err))
	}
	return results, nil
}

// Match searches target records with the stored vector of source.
// When source and target share a type the source is left out.
func (s *SearchService) Match(
	ctx context.Context, source domain.RecordKey, target domain.ContentType, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	logger.Section("Match")

	if err := source.Validate(); err != nil {
		return nil, err
	}
	if !target.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidContentType, target)
	}
	q, err := s.resolve(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.settings.OperationTimeout)
	defer cancel()

	var src *domain.EmbeddingRecord
	err = retryStorage(ctx, "get", func() error {
		var err error
		src, err = s.store.Get(ctx, source)
		return err
	})
	if err != nil {
		return nil, classify(fmt.Errorf("match source %s: %w", source, err))
	}
	if err := s.settings.CheckDimension(target, src.Vector); err != nil {
		return nil, err
	}

	q.vector = src.Vector
	q.contentType = target
	if source.ContentType == target {
		q.exclude = source.ContentID
	}
	s.log.Debug("matching %s against %s", source, target)

	results, err := s.search(ctx, q)
	if err != nil {
		return nil, classify(fmt.Errorf("match %s -> %s: %w", source, target, err))
	}
	return results, nil
}

// SemanticSearch embeds text and searches with the resulting vector.
func (s *SearchService) SemanticSearch(
	ctx context.Context, text string, contentType domain.ContentType, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: query text is empty", domain.ErrInvalidInput)
	}

	ctx, cancel := withTimeout(ctx, s.settings.OperationTimeout)
	defer cancel()

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, classify(fmt.Errorf("embedding query: %w", err))
	}
	s.log.Debug("embedded %d chars with %s", len(text), s.embedder.ModelName())

	return s.Search(ctx, vector, contentType, opts)
}

// resolve applies defaults and bounds to the caller's options.
func (s *SearchService) resolve(opts domain.SearchOptions) (query, error) {
	d := s.Defaults()
	q := query{limit: opts.Limit, threshold: d.Threshold, includeVector: opts.IncludeVector}

	switch {
	case q.limit < 0:
		return query{}, fmt.Errorf("%w: limit must not be negative", domain.ErrInvalidInput)
	case q.limit == 0:
		q.limit = d.DefaultLimit
	case q.limit > d.MaxLimit:
		q.limit = d.MaxLimit
	}

	if opts.Threshold != nil {
		t := *opts.Threshold
		if t < -1 || t > 1 || math.IsNaN(t) {
			return query{}, fmt.Errorf("%w: threshold %v outside [-1, 1]", domain.ErrInvalidInput, t)
		}
		q.threshold = t
	}
	return q, nil
}

// search picks the indexed path and degrades to brute force when the
// index cannot serve.
func (s *SearchService) search(ctx context.Context, q query) ([]domain.SearchResult, error) {
	want := q.limit
	if q.exclude != "" {
		want++
	}
	k := want * max(s.Defaults().CandidateMultiplier, 1)

	hits, err := s.index.Search(ctx, q.contentType, q.vector, k)
	if err == nil {
		s.log.Debug("index returned %d candidates for k=%d", len(hits), k)
		return s.rerank(ctx, q, hits)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		return nil, err
	}

	s.index.RecordFallback(q.contentType)
	s.log.Info("brute-force search: %v", err)
	return s.bruteForce(ctx, q)
}

// rerank scores index candidates exactly against their stored vectors.
// Candidates whose records are gone are dropped.
func (s *SearchService) rerank(ctx context.Context, q query, hits []driven.VectorHit) ([]domain.SearchResult, error) {
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Key != q.exclude {
			ids = append(ids, h.Key)
		}
	}
	if len(ids) == 0 {
		return []domain.SearchResult{}, nil
	}

	var records []*domain.EmbeddingRecord
	err := retryStorage(ctx, "get many", func() error {
		var err error
		records, err = s.store.GetMany(ctx, q.contentType, ids)
		return err
	})
	if err != nil {
		return nil, err
	}

	top := vecmath.NewTopK(q.limit)
	byID := make(map[string]*domain.EmbeddingRecord, len(records))
	for _, rec := range records {
		score := vecmath.Cosine(q.vector, rec.Vector)
		if score < q.threshold {
			continue
		}
		top.Push(rec.ContentID, score)
		byID[rec.ContentID] = rec
	}
	return assemble(q, top, byID), nil
}

// bruteForce scores every record of the type and keeps the best.
func (s *SearchService) bruteForce(ctx context.Context, q query) ([]domain.SearchResult, error) {
	var top *vecmath.TopK
	var kept map[string]*domain.EmbeddingRecord
	scanned := 0

	err := retryStorage(ctx, "scan", func() error {
		top = vecmath.NewTopK(q.limit)
		kept = make(map[string]*domain.EmbeddingRecord)
		scanned = 0
		return s.store.Scan(ctx, q.contentType, func(rec *domain.EmbeddingRecord) error {
			scanned++
			if rec.ContentID == q.exclude {
				return nil
			}
			score := vecmath.Cosine(q.vector, rec.Vector)
			if score < q.threshold {
				return nil
			}
			top.Push(rec.ContentID, score)
			kept[rec.ContentID] = rec
			if len(kept) > 4*q.limit+64 {
				prune(kept, top)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("scanned %d %s records", scanned, q.contentType)
	return assemble(q, top, kept), nil
}

// prune drops records that fell out of the top set.
func prune(kept map[string]*domain.EmbeddingRecord, top *vecmath.TopK) {
	live := make(map[string]struct{}, top.Len())
	for _, r := range top.Results() {
		live[r.Key] = struct{}{}
	}
	for id := range kept {
		if _, ok := live[id]; !ok {
			delete(kept, id)
		}
	}
}

// assemble turns ranked scores into results.
func assemble(q query, top *vecmath.TopK, records map[string]*domain.EmbeddingRecord) []domain.SearchResult {
	ranked := top.Results()
	results := make([]domain.SearchResult, 0, len(ranked))
	for _, r := range ranked {
		rec := records[r.Key]
		result := domain.SearchResult{
			ContentID:       rec.ContentID,
			ContentType:     rec.ContentType,
			SimilarityScore: r.Score,
			Metadata:        rec.Metadata,
		}
		if q.includeVector {
			result.Vector = rec.Vector
		}
		results = append(results, result)
	}
	return results
}
