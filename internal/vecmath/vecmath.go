// Package vecmath holds the vector arithmetic shared by the search paths:
// cosine similarity, normalisation and a bounded top-k collector whose
// ordering matches the ranking rule used everywhere in simmatch
// (descending score, ties by ascending key).
package vecmath

import (
	"container/heap"
	"math"
	"sort"
)

// Dot returns the dot product of two equal-length vectors.
// Extra trailing elements of the longer vector are ignored.
func Dot(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm returns the Euclidean length of v.
func Norm(v []float32) float64 {
	return math.Sqrt(Dot(v, v))
}

// Cosine returns the cosine similarity between a and b in [-1, 1].
// Mismatched lengths, empty vectors and zero-norm vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return Clamp(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Clamp limits a similarity to [-1, 1] to absorb rounding drift.
func Clamp(s float64) float64 {
	switch {
	case s > 1:
		return 1
	case s < -1:
		return -1
	case math.IsNaN(s):
		return 0
	}
	return s
}

// Normalize returns a unit-length copy of v.
// A zero vector is returned as a zero copy.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	norm := Norm(v)
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Scored is a key with its similarity score.
type Scored struct {
	Key   string
	Score float64
}

// Better reports whether a ranks ahead of b.
func Better(a, b Scored) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Key < b.Key
}

// SortScored orders items best first.
func SortScored(items []Scored) {
	sort.Slice(items, func(i, j int) bool {
		return Better(items[i], items[j])
	})
}

// TopK keeps the k best items pushed into it.
// The zero value is not usable; create one with NewTopK.
type TopK struct {
	k    int
	heap worstFirst
}

// NewTopK returns a collector that keeps at most k items.
func NewTopK(k int) *TopK {
	if k < 0 {
		k = 0
	}
	return &TopK{k: k, heap: make(worstFirst, 0, k)}
}

// Push offers an item to the collector.
func (t *TopK) Push(key string, score float64) {
	if t.k == 0 {
		return
	}
	item := Scored{Key: key, Score: score}
	if len(t.heap) < t.k {
		heap.Push(&t.heap, item)
		return
	}
	if Better(item, t.heap[0]) {
		t.heap[0] = item
		heap.Fix(&t.heap, 0)
	}
}

// Len returns the number of items currently held.
func (t *TopK) Len() int {
	return len(t.heap)
}

// Results returns the held items best first. The collector is left intact.
func (t *TopK) Results() []Scored {
	out := make([]Scored, len(t.heap))
	copy(out, t.heap)
	SortScored(out)
	return out
}

// worstFirst is a heap whose root is the lowest-ranked item.
type worstFirst []Scored

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return Better(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *worstFirst) Push(x any) {
	*h = append(*h, x.(Scored))
}

func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
