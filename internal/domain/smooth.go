package domain

import (
	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultSmoothingWindow and DefaultPolyOrder configure the
	// Savitzky-Golay filter used for MODIS-cadence NDVI.
	DefaultSmoothingWindow = 5
	DefaultPolyOrder       = 2

	movingAverageMaxWindow = 5
	minSmoothPoints        = 3
)

// Smoother denoises a scalar series while keeping its length and alignment.
// Long enough series use a Savitzky-Golay filter; shorter ones fall back to
// an edge-padded centered moving average.
type Smoother struct {
	window    int
	polyOrder int
}

// NewSmoother creates a smoother. Even windows are bumped to the next odd
// value; non-positive windows use the default.
func NewSmoother(window, polyOrder int) Smoother {
	if window <= 0 {
		window = DefaultSmoothingWindow
	}
	if window%2 == 0 {
		window++
	}
	if polyOrder < 0 {
		polyOrder = 0
	}
	return Smoother{window: window, polyOrder: polyOrder}
}

// DefaultSmoother returns a window-5, order-2 smoother.
func DefaultSmoother() Smoother {
	return NewSmoother(DefaultSmoothingWindow, DefaultPolyOrder)
}

// Window reports the effective (odd) filter window.
func (s Smoother) Window() int { return s.window }

// PolyOrder reports the polynomial degree of the filter.
func (s Smoother) PolyOrder() int { return s.polyOrder }

// Smooth returns a denoised copy of values. It never fails: inputs shorter
// than three points come back unchanged.
func (s Smoother) Smooth(values []float64) []float64 {
	if len(values) < minSmoothPoints {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	if len(values) < s.window || s.polyOrder >= s.window {
		return movingAverage(values)
	}
	if out, ok := savitzkyGolay(values, s.window, s.polyOrder); ok {
		return out
	}
	return movingAverage(values)
}

// movingAverage applies a centered mean over min(5, n) samples (forced odd),
// replicating the edge values so the output keeps the input length.
func movingAverage(values []float64) []float64 {
	n := len(values)
	k := min(movingAverageMaxWindow, n)
	if k%2 == 0 {
		k--
	}
	half := k / 2

	out := make([]float64, n)
	for i := range values {
		var sum float64
		for j := i - half; j <= i+half; j++ {
			sum += values[clampIndex(j, n)]
		}
		out[i] = sum / float64(k)
	}
	return out
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// savitzkyGolay filters values with a least-squares polynomial of the given
// order over each centered window. The first and last window/2 samples are
// evaluated on the polynomial fitted to the first and last full window.
func savitzkyGolay(values []float64, window, polyOrder int) ([]float64, bool) {
	n := len(values)
	half := window / 2

	weights, ok := savgolWeights(window, polyOrder)
	if !ok {
		return nil, false
	}

	out := make([]float64, n)
	for i := half; i < n-half; i++ {
		var sum float64
		for j, w := range weights {
			sum += w * values[i-half+j]
		}
		out[i] = sum
	}

	xs := make([]float64, window)
	for i := range xs {
		xs[i] = float64(i)
	}
	head, ok := polyFit(xs, values[:window], polyOrder)
	if !ok {
		return nil, false
	}
	tail, ok := polyFit(xs, values[n-window:], polyOrder)
	if !ok {
		return nil, false
	}
	for i := 0; i < half; i++ {
		out[i] = polyEval(head, float64(i))
		out[n-half+i] = polyEval(tail, float64(window-half+i))
	}
	return out, true
}

// savgolWeights returns the convolution weights that evaluate a centered
// least-squares fit at its middle sample. The fit is linear in the samples,
// so weight j is the fitted constant term for the unit impulse at j.
func savgolWeights(window, polyOrder int) ([]float64, bool) {
	half := window / 2
	a := mat.NewDense(window, polyOrder+1, nil)
	for r := 0; r < window; r++ {
		x := float64(r - half)
		p := 1.0
		for c := 0; c <= polyOrder; c++ {
			a.Set(r, c, p)
			p *= x
		}
	}

	var qr mat.QR
	qr.Factorize(a)

	weights := make([]float64, window)
	for j := range weights {
		impulse := mat.NewVecDense(window, nil)
		impulse.SetVec(j, 1)
		coeffs := mat.NewVecDense(polyOrder+1, nil)
		if err := qr.SolveVecTo(coeffs, false, impulse); err != nil {
			return nil, false
		}
		weights[j] = coeffs.AtVec(0)
	}
	return weights, true
}

// polyFit returns least-squares polynomial coefficients, constant term first.
func polyFit(xs, ys []float64, degree int) ([]float64, bool) {
	a := mat.NewDense(len(xs), degree+1, nil)
	for r, x := range xs {
		p := 1.0
		for c := 0; c <= degree; c++ {
			a.Set(r, c, p)
			p *= x
		}
	}
	y := mat.NewVecDense(len(ys), append([]float64(nil), ys...))

	var qr mat.QR
	qr.Factorize(a)
	coeffs := mat.NewVecDense(degree+1, nil)
	if err := qr.SolveVecTo(coeffs, false, y); err != nil {
		return nil, false
	}

	out := make([]float64, degree+1)
	for i := range out {
		out[i] = coeffs.AtVec(i)
	}
	return out, true
}

func polyEval(coeffs []float64, x float64) float64 {
	var sum float64
	for i := len(coeffs) - 1; i >= 0; i-- {
		sum = sum*x + coeffs[i]
	}
	return sum
}
