package ivfflat

import "github.com/jaywyawhare/GigaVector-sub002/pkg/distance"

// trainKMeans runs Lloyd's algorithm over samples for iters iterations,
// starting from evenly spread centroids (sample[k*count/nlist]), and
// returns the nlist centroids. Assignment always uses Euclidean
// distance; empty clusters leave their centroid unchanged for that
// iteration.
func trainKMeans(samples [][]float32, nlist, iters int) [][]float32 {
	dim := len(samples[0])
	count := len(samples)

	centroids := make([][]float32, nlist)
	for k := 0; k < nlist; k++ {
		src := samples[k*count/nlist]
		c := make([]float32, dim)
		copy(c, src)
		centroids[k] = c
	}

	assign := make([]int, count)
	for iter := 0; iter < iters; iter++ {
		for i, s := range samples {
			assign[i] = nearestCentroid(centroids, s)
		}

		sums := make([][]float64, nlist)
		counts := make([]int, nlist)
		for k := range sums {
			sums[k] = make([]float64, dim)
		}
		for i, s := range samples {
			k := assign[i]
			counts[k]++
			for d := 0; d < dim; d++ {
				sums[k][d] += float64(s[d])
			}
		}

		for k := 0; k < nlist; k++ {
			if counts[k] == 0 {
				continue
			}
			for d := 0; d < dim; d++ {
				centroids[k][d] = float32(sums[k][d] / float64(counts[k]))
			}
		}
	}
	return centroids
}

func nearestCentroid(centroids [][]float32, v []float32) int {
	best := 0
	bestDist, _ := distance.Dense(distance.Euclidean, v, centroids[0])
	for k := 1; k < len(centroids); k++ {
		d, _ := distance.Dense(distance.Euclidean, v, centroids[k])
		if d < bestDist {
			bestDist = d
			best = k
		}
	}
	return best
}
