package pq

import "math"

// trainSubKMeans runs Lloyd's algorithm over dsub-dimensional
// sub-vectors for iters iterations, ksub clusters, starting from evenly
// spread centroids. Mirrors ivfflat.trainKMeans but kept local to avoid
// a cross-package dependency for what is conceptually the same small
// routine applied per sub-quantizer.
func trainSubKMeans(subvecs [][]float32, ksub, dsub, iters int) []float32 {
	count := len(subvecs)
	centroids := make([][]float32, ksub)
	for k := 0; k < ksub; k++ {
		src := subvecs[k*count/ksub]
		c := make([]float32, dsub)
		copy(c, src)
		centroids[k] = c
	}

	assign := make([]int, count)
	for iter := 0; iter < iters; iter++ {
		for i, v := range subvecs {
			assign[i] = nearestSub(centroids, v)
		}

		sums := make([][]float64, ksub)
		counts := make([]int, ksub)
		for k := range sums {
			sums[k] = make([]float64, dsub)
		}
		for i, v := range subvecs {
			k := assign[i]
			counts[k]++
			for d := 0; d < dsub; d++ {
				sums[k][d] += float64(v[d])
			}
		}
		for k := 0; k < ksub; k++ {
			if counts[k] == 0 {
				continue
			}
			for d := 0; d < dsub; d++ {
				centroids[k][d] = float32(sums[k][d] / float64(counts[k]))
			}
		}
	}

	flat := make([]float32, ksub*dsub)
	for k := 0; k < ksub; k++ {
		copy(flat[k*dsub:(k+1)*dsub], centroids[k])
	}
	return flat
}

func nearestSub(centroids [][]float32, v []float32) int {
	best := 0
	bestDist := sqDist(v, centroids[0])
	for k := 1; k < len(centroids); k++ {
		d := sqDist(v, centroids[k])
		if d < bestDist {
			bestDist = d
			best = k
		}
	}
	return best
}

func sqDist(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func sqrtf32(v float64) float32 {
	return float32(math.Sqrt(v))
}
