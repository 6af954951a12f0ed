package hnsw

import "container/heap"

// candidate is a node reached during a graph walk.
type candidate struct {
	id  uint32
	sim float64
}

// closer reports whether a is nearer to the query than b.
// Ties go to the lower node id so walks are deterministic.
func closer(a, b candidate) bool {
	if a.sim != b.sim {
		return a.sim > b.sim
	}
	return a.id < b.id
}

// queue is a binary heap of candidates. With nearestFirst set the root is
// the closest candidate, otherwise it is the furthest.
type queue struct {
	items        []candidate
	nearestFirst bool
}

func newQueue(nearestFirst bool, capacity int) *queue {
	return &queue{items: make([]candidate, 0, capacity), nearestFirst: nearestFirst}
}

func (q *queue) Len() int { return len(q.items) }

func (q *queue) Less(i, j int) bool {
	if q.nearestFirst {
		return closer(q.items[i], q.items[j])
	}
	return closer(q.items[j], q.items[i])
}

func (q *queue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *queue) Push(x any) { q.items = append(q.items, x.(candidate)) }

func (q *queue) Pop() any {
	n := len(q.items)
	item := q.items[n-1]
	q.items = q.items[:n-1]
	return item
}

func (q *queue) push(c candidate) { heap.Push(q, c) }

func (q *queue) pop() candidate { return heap.Pop(q).(candidate) }

func (q *queue) top() candidate { return q.items[0] }

// drainNearest empties the queue and returns its items nearest first.
func (q *queue) drainNearest() []candidate {
	out := make([]candidate, q.Len())
	if q.nearestFirst {
		for i := range out {
			out[i] = q.pop()
		}
		return out
	}
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = q.pop()
	}
	return out
}
