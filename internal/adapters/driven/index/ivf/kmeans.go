package ivf

import (
	"math"
	"math/rand"

	"github.com/custodia-labs/simmatch/internal/vecmath"
)

// train runs Lloyd's algorithm on unit vectors and returns k unit centroids.
// Initial centroids are drawn from the data with rng, so a fixed seed and
// input order give fixed centroids.
func train(vectors [][]float32, k, maxIter int, rng *rand.Rand) [][]float32 {
	n := len(vectors)
	if n == 0 || k <= 0 {
		return nil
	}
	k = min(k, n)
	dim := len(vectors[0])

	centroids := make([][]float32, k)
	perm := rng.Perm(n)
	for i := 0; i < k; i++ {
		centroids[i] = append([]float32(nil), vectors[perm[i]]...)
	}

	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}
	sums := make([][]float64, k)
	for i := range sums {
		sums[i] = make([]float64, dim)
	}
	counts := make([]int, k)

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, vec := range vectors {
			best := nearest(centroids, vec)
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		for j := range sums {
			clear(sums[j])
			counts[j] = 0
		}
		for i, vec := range vectors {
			c := assignments[i]
			for d, x := range vec {
				sums[c][d] += float64(x)
			}
			counts[c]++
		}

		for j := range centroids {
			if counts[j] == 0 {
				// Reseed an empty partition from a random point.
				centroids[j] = append([]float32(nil), vectors[rng.Intn(n)]...)
				continue
			}
			mean := make([]float32, dim)
			for d := range mean {
				mean[d] = float32(sums[j][d] / float64(counts[j]))
			}
			centroids[j] = vecmath.Normalize(mean)
		}
	}

	return centroids
}

// nearest returns the index of the centroid with the highest dot product.
// Ties go to the lower index.
func nearest(centroids [][]float32, vec []float32) int {
	best, bestSim := 0, math.Inf(-1)
	for j, c := range centroids {
		if s := vecmath.Dot(c, vec); s > bestSim {
			best, bestSim = j, s
		}
	}
	return best
}

// defaultLists picks ceil(sqrt(n)) partitions.
func defaultLists(n int) int {
	if n <= 0 {
		return 1
	}
	return int(math.Ceil(math.Sqrt(float64(n))))
}
