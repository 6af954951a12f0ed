package hnsw

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
	"github.com/custodia-labs/simmatch/internal/vecmath"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Default configuration values
const (
	DefaultM              = 16
	DefaultEFConstruction = 200
	DefaultEFSearch       = 64
)

var errClosed = errors.New("hnsw: index is closed")

// Options configures graph construction and search.
type Options struct {
	// M is the number of links made for each inserted node. Layer 0 allows 2*M.
	M int

	// EFConstruction is the candidate list size used while linking.
	EFConstruction int

	// EFSearch is the candidate list size used by Search. It is raised to k
	// when a query asks for more results.
	EFSearch int

	// Seed drives level generation. Equal seeds and insert order give equal graphs.
	Seed int64
}

func (o Options) withDefaults() Options {
	if o.M < 2 {
		o.M = DefaultM
	}
	if o.EFConstruction <= 0 {
		o.EFConstruction = DefaultEFConstruction
	}
	if o.EFSearch <= 0 {
		o.EFSearch = DefaultEFSearch
	}
	return o
}

type node struct {
	key   string
	vec   []float32
	level int
	links [][]uint32
}

// Index is an in-memory HNSW graph over unit vectors.
type Index struct {
	mu sync.RWMutex

	dim   int
	opts  Options
	mmax  int
	mmax0 int
	ml    float64
	rng   *rand.Rand

	nodes    []*node
	ids      map[string]uint32
	deleted  bitset.BitSet
	entry    uint32
	hasEntry bool
	maxLevel int
	closed   bool
}

// New creates an empty index for vectors of length dim.
func New(dim int, opts Options) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("hnsw: %w: dimension must be positive", domain.ErrInvalidInput)
	}
	opts = opts.withDefaults()

	return &Index{
		dim:   dim,
		opts:  opts,
		mmax:  opts.M,
		mmax0: 2 * opts.M,
		ml:    1 / math.Log(float64(opts.M)),
		rng:   rand.New(rand.NewSource(opts.Seed)), //nolint:gosec // level sampling, not security
		ids:   make(map[string]uint32),
	}, nil
}

// Upsert inserts a vector, replacing any previous vector under the same key.
// A replaced node is tombstoned and a new node is linked in its place.
func (idx *Index) Upsert(ctx context.Context, key string, embedding []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("hnsw: %w: empty key", domain.ErrInvalidInput)
	}
	if len(embedding) != idx.dim {
		return fmt.Errorf("hnsw: %w", &domain.DimensionMismatchError{Expected: idx.dim, Actual: len(embedding)})
	}

	vec := vecmath.Normalize(embedding)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return errClosed
	}

	if old, ok := idx.ids[key]; ok {
		idx.deleted.Set(uint(old))
	}
	idx.insert(key, vec)
	return nil
}

// Delete tombstones the node for key. Unknown keys are ignored.
func (idx *Index) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return errClosed
	}

	if id, ok := idx.ids[key]; ok {
		idx.deleted.Set(uint(id))
		delete(idx.ids, key)
	}
	return nil
}

// Search returns up to k live nodes nearest to query.
func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("hnsw: %w", &domain.DimensionMismatchError{Expected: idx.dim, Actual: len(query)})
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
	if !idx.hasEntry || len(idx.ids) == 0 {
		return nil, nil
	}

	ep := candidate{id: idx.entry, sim: idx.sim(q, idx.entry)}
	for level := idx.maxLevel; level > 0; level-- {
		ep = idx.greedy(q, ep, level)
	}

	// Tombstones occupy slots in the candidate list, so widen it by their count.
	ef := max(idx.opts.EFSearch, k) + int(idx.deleted.Count())
	ef = min(ef, len(idx.nodes))

	top := vecmath.NewTopK(k)
	for _, c := range idx.searchLayer(q, ep, ef, 0) {
		if idx.deleted.Test(uint(c.id)) {
			continue
		}
		top.Push(idx.nodes[c.id].key, vecmath.Clamp(c.sim))
	}

	results := top.Results()
	hits := make([]driven.VectorHit, len(results))
	for i, r := range results {
		hits[i] = driven.VectorHit{Key: r.Key, Similarity: r.Score}
	}
	return hits, nil
}

// Len returns the number of live vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.ids)
}

// Tombstones returns the number of deleted or replaced nodes still in the graph.
func (idx *Index) Tombstones() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return int(idx.deleted.Count())
}

// Kind reports the index variant.
func (idx *Index) Kind() domain.IndexKind {
	return domain.IndexKindHNSW
}

// Close releases the graph. Further calls fail.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.closed = true
	idx.nodes = nil
	idx.ids = nil
	idx.deleted.ClearAll()
	return nil
}

// ==================== Graph ====================

// insert links a new node into the graph. Callers hold the write lock.
func (idx *Index) insert(key string, vec []float32) {
	id := uint32(len(idx.nodes))
	level := idx.randomLevel()
	n := &node{key: key, vec: vec, level: level, links: make([][]uint32, level+1)}
	idx.nodes = append(idx.nodes, n)
	idx.ids[key] = id

	if !idx.hasEntry {
		idx.entry = id
		idx.maxLevel = level
		idx.hasEntry = true
		return
	}

	ep := candidate{id: idx.entry, sim: idx.sim(vec, idx.entry)}
	for l := idx.maxLevel; l > level; l-- {
		ep = idx.greedy(vec, ep, l)
	}

	for l := min(level, idx.maxLevel); l >= 0; l-- {
		found := idx.searchLayer(vec, ep, idx.opts.EFConstruction, l)
		neighbours := idx.selectNeighbours(found, idx.opts.M)

		n.links[l] = make([]uint32, len(neighbours))
		for i, nb := range neighbours {
			n.links[l][i] = nb.id
		}
		for _, nb := range neighbours {
			idx.link(nb.id, id, l)
		}
		ep = found[0]
	}

	if level > idx.maxLevel {
		idx.entry = id
		idx.maxLevel = level
	}
}

// randomLevel draws floor(-ln(U) * ml).
func (idx *Index) randomLevel() int {
	return int(math.Floor(-math.Log(1-idx.rng.Float64()) * idx.ml))
}

func (idx *Index) sim(q []float32, id uint32) float64 {
	return vecmath.Dot(q, idx.nodes[id].vec)
}

// greedy walks one layer towards q until no neighbour is closer.
func (idx *Index) greedy(q []float32, ep candidate, level int) candidate {
	for changed := true; changed; {
		changed = false
		n := idx.nodes[ep.id]
		if level >= len(n.links) {
			break
		}
		for _, nb := range n.links[level] {
			c := candidate{id: nb, sim: idx.sim(q, nb)}
			if closer(c, ep) {
				ep = c
				changed = true
			}
		}
	}
	return ep
}

// searchLayer returns up to ef nodes nearest to q on one layer, nearest first.
func (idx *Index) searchLayer(q []float32, ep candidate, ef, level int) []candidate {
	var visited bitset.BitSet
	visited.Set(uint(ep.id))

	candidates := newQueue(true, ef)
	candidates.push(ep)
	results := newQueue(false, ef+1)
	results.push(ep)

	for candidates.Len() > 0 {
		c := candidates.pop()
		if results.Len() >= ef && closer(results.top(), c) {
			break
		}

		n := idx.nodes[c.id]
		if level >= len(n.links) {
			continue
		}

		for _, nb := range n.links[level] {
			if visited.Test(uint(nb)) {
				continue
			}
			visited.Set(uint(nb))

			next := candidate{id: nb, sim: idx.sim(q, nb)}
			if results.Len() < ef || closer(next, results.top()) {
				candidates.push(next)
				results.push(next)
				if results.Len() > ef {
					results.pop()
				}
			}
		}
	}

	return results.drainNearest()
}

// selectNeighbours applies the diversity heuristic to a nearest-first
// candidate list. A candidate is kept when it is closer to the base than to
// every neighbour already kept; pruned candidates fill any remaining slots.
func (idx *Index) selectNeighbours(found []candidate, m int) []candidate {
	if len(found) <= m {
		return found
	}

	selected := make([]candidate, 0, m)
	var pruned []candidate

	for _, c := range found {
		if len(selected) >= m {
			break
		}
		keep := true
		for _, s := range selected {
			if vecmath.Dot(idx.nodes[c.id].vec, idx.nodes[s.id].vec) > c.sim {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, c)
		} else {
			pruned = append(pruned, c)
		}
	}

	for _, c := range pruned {
		if len(selected) >= m {
			break
		}
		selected = append(selected, c)
	}
	return selected
}

// link adds a directed edge and prunes the source's links if over capacity.
func (idx *Index) link(from, to uint32, level int) {
	maxLinks := idx.mmax
	if level == 0 {
		maxLinks = idx.mmax0
	}

	n := idx.nodes[from]
	n.links[level] = append(n.links[level], to)
	if len(n.links[level]) <= maxLinks {
		return
	}

	cands := make([]candidate, len(n.links[level]))
	for i, id := range n.links[level] {
		cands[i] = candidate{id: id, sim: vecmath.Dot(n.vec, idx.nodes[id].vec)}
	}
	sort.Slice(cands, func(i, j int) bool { return closer(cands[i], cands[j]) })

	kept := idx.selectNeighbours(cands, maxLinks)
	n.links[level] = n.links[level][:0]
	for _, c := range kept {
		n.links[level] = append(n.links[level], c.id)
	}
}
