package domain

import (
	"math"
	"slices"
	"sort"
)

// gradient returns the first discrete derivative of values: central
// differences inside, one-sided differences at the two ends.
func gradient(values []float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n < 2 {
		return out
	}
	out[0] = values[1] - values[0]
	out[n-1] = values[n-1] - values[n-2]
	for i := 1; i < n-1; i++ {
		out[i] = (values[i+1] - values[i-1]) / 2
	}
	return out
}

// percentile returns the p-th percentile (0-100) of values, interpolating
// linearly between the closest ranks: rank = p/100 * (n-1).
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// findPeaks returns the indices of strict local maxima of x that reach
// minHeight and are at least distance samples apart, in ascending order.
//
// Flat tops count once, at their middle sample; a plateau touching either
// end of the series is not a peak. When two candidates are closer than
// distance the higher one wins.
func findPeaks(x []float64, minHeight float64, distance int) []int {
	var peaks []int
	for _, i := range localMaxima(x) {
		if x[i] >= minHeight {
			peaks = append(peaks, i)
		}
	}
	if distance <= 1 || len(peaks) < 2 {
		return peaks
	}
	return selectByDistance(x, peaks, distance)
}

func localMaxima(x []float64) []int {
	var maxima []int
	last := len(x) - 1
	for i := 1; i < last; i++ {
		if x[i-1] >= x[i] {
			continue
		}
		ahead := i + 1
		for ahead < last && x[ahead] == x[i] {
			ahead++
		}
		if x[ahead] < x[i] {
			maxima = append(maxima, (i+ahead-1)/2)
			i = ahead
		}
	}
	return maxima
}

// selectByDistance drops peaks within distance of a higher peak, visiting
// candidates from highest to lowest.
func selectByDistance(x []float64, peaks []int, distance int) []int {
	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return x[peaks[order[a]]] < x[peaks[order[b]]]
	})

	keep := make([]bool, len(peaks))
	for i := range keep {
		keep[i] = true
	}
	for i := len(order) - 1; i >= 0; i-- {
		j := order[i]
		if !keep[j] {
			continue
		}
		for k := j - 1; k >= 0 && peaks[j]-peaks[k] < distance; k-- {
			keep[k] = false
		}
		for k := j + 1; k < len(peaks) && peaks[k]-peaks[j] < distance; k++ {
			keep[k] = false
		}
	}

	out := make([]int, 0, len(peaks))
	for i, p := range peaks {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}
