package ivf

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
	"github.com/custodia-labs/simmatch/internal/vecmath"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Default configuration values
const (
	DefaultProbes        = 8
	DefaultMaxIterations = 20
)

var errClosed = errors.New("ivf: index is closed")

// Options configures partitioning and search.
type Options struct {
	// Lists is the partition count. Zero picks ceil(sqrt(n)) at build time.
	Lists int

	// Probes is the number of partitions scanned per query.
	Probes int

	// MaxIterations bounds k-means training.
	MaxIterations int

	// Seed drives centroid initialisation.
	Seed int64
}

func (o Options) withDefaults() Options {
	if o.Probes <= 0 {
		o.Probes = DefaultProbes
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	return o
}

// Index is an in-memory inverted file over unit vectors.
type Index struct {
	mu sync.RWMutex

	dim       int
	probes    int
	centroids [][]float32
	lists     []map[string][]float32
	assigned  map[string]int
	closed    bool
}

// newIndex creates an index with fixed centroids.
func newIndex(dim, probes int, centroids [][]float32) *Index {
	lists := make([]map[string][]float32, len(centroids))
	for i := range lists {
		lists[i] = make(map[string][]float32)
	}
	return &Index{
		dim:       dim,
		probes:    probes,
		centroids: centroids,
		lists:     lists,
		assigned:  make(map[string]int),
	}
}

// Upsert places the vector in its nearest partition, replacing any previous
// vector under the same key. An index built from no entries adopts the first
// vector as its only centroid.
func (idx *Index) Upsert(ctx context.Context, key string, embedding []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("ivf: %w: empty key", domain.ErrInvalidInput)
	}
	if len(embedding) != idx.dim {
		return fmt.Errorf("ivf: %w", &domain.DimensionMismatchError{Expected: idx.dim, Actual: len(embedding)})
	}

	vec := vecmath.Normalize(embedding)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return errClosed
	}

	if len(idx.centroids) == 0 {
		idx.centroids = [][]float32{vec}
		idx.lists = []map[string][]float32{{}}
	}
	idx.put(key, vec)
	return nil
}

func (idx *Index) put(key string, vec []float32) {
	if old, ok := idx.assigned[key]; ok {
		delete(idx.lists[old], key)
	}
	list := nearest(idx.centroids, vec)
	idx.lists[list][key] = vec
	idx.assigned[key] = list
}

// Delete removes key from its partition. Unknown keys are ignored.
func (idx *Index) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return errClosed
	}

	if list, ok := idx.assigned[key]; ok {
		delete(idx.lists[list], key)
		delete(idx.assigned, key)
	}
	return nil
}

// Search scores every member of the closest partitions and returns the best k.
func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("ivf: %w", &domain.DimensionMismatchError{Expected: idx.dim, Actual: len(query)})
	}
	if k <= 0 {
		return nil, nil
	}

	q := vecmath.Normalize(query)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, errClosed
	}

	top := vecmath.NewTopK(k)
	for _, list := range idx.closestLists(q) {
		for key, vec := range idx.lists[list] {
			top.Push(key, vecmath.Clamp(vecmath.Dot(q, vec)))
		}
	}

	results := top.Results()
	hits := make([]driven.VectorHit, len(results))
	for i, r := range results {
		hits[i] = driven.VectorHit{Key: r.Key, Similarity: r.Score}
	}
	return hits, nil
}

// closestLists returns the partitions to probe, nearest first.
func (idx *Index) closestLists(q []float32) []int {
	type scored struct {
		list int
		sim  float64
	}
	all := make([]scored, len(idx.centroids))
	for i, c := range idx.centroids {
		all[i] = scored{list: i, sim: vecmath.Dot(q, c)}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].sim != all[j].sim {
			return all[i].sim > all[j].sim
		}
		return all[i].list < all[j].list
	})

	n := min(idx.probes, len(all))
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = all[i].list
	}
	return out
}

// Len returns the number of live vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.assigned)
}

// Lists returns the number of partitions.
func (idx *Index) Lists() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.centroids)
}

// Kind reports the index variant.
func (idx *Index) Kind() domain.IndexKind {
	return domain.IndexKindIVF
}

// Close releases the partitions. Further calls fail.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.closed = true
	idx.centroids = nil
	idx.lists = nil
	idx.assigned = nil
	return nil
}

// build trains centroids over entries and fills the partitions.
func build(ctx context.Context, dim int, entries []domain.IndexEntry, opts Options) (*Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if dim <= 0 {
		return nil, fmt.Errorf("ivf: %w: dimension must be positive", domain.ErrInvalidInput)
	}

	// Later entries replace earlier ones; training sees each key once.
	position := make(map[string]int, len(entries))
	keys := make([]string, 0, len(entries))
	vectors := make([][]float32, 0, len(entries))
	for _, e := range entries {
		if e.Key == "" {
			return nil, fmt.Errorf("ivf: %w: empty key", domain.ErrInvalidInput)
		}
		if len(e.Vector) != dim {
			return nil, fmt.Errorf("ivf: %w", &domain.DimensionMismatchError{Expected: dim, Actual: len(e.Vector)})
		}
		vec := vecmath.Normalize(e.Vector)
		if i, ok := position[e.Key]; ok {
			vectors[i] = vec
			continue
		}
		position[e.Key] = len(keys)
		keys = append(keys, e.Key)
		vectors = append(vectors, vec)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lists := opts.Lists
	if lists <= 0 {
		lists = defaultLists(len(vectors))
	}
	rng := rand.New(rand.NewSource(opts.Seed)) //nolint:gosec // centroid sampling, not security
	centroids := train(vectors, lists, opts.MaxIterations, rng)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx := newIndex(dim, opts.Probes, centroids)
	for i, key := range keys {
		idx.put(key, vectors[i])
	}
	return idx, nil
}
