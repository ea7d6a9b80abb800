package core

import "fmt"

const (
	minDCBlockerR = 0.995
	maxDCBlockerR = 0.9995
)

// DCBlocker is a one-pole highpass that removes DC offset:
//
//	y[n] = x[n] - x[n-1] + R*y[n-1]
//
// R controls the corner frequency; values near 1 keep more low end.
type DCBlocker struct {
	r  float64
	x1 float64
	y1 float64
}

// NewDCBlocker creates a DC blocker with coefficient r in [0.995, 0.9995].
func NewDCBlocker(r float64) (*DCBlocker, error) {
	if r < minDCBlockerR || r > maxDCBlockerR {
		return nil, fmt.Errorf("dc blocker coefficient must be in [%g, %g]: %g",
			minDCBlockerR, maxDCBlockerR, r)
	}
	return &DCBlocker{r: r}, nil
}

// Reset clears filter history.
func (d *DCBlocker) Reset() {
	d.x1 = 0
	d.y1 = 0
}

// ProcessSample filters one sample.
func (d *DCBlocker) ProcessSample(x float64) float64 {
	y := x - d.x1 + d.r*d.y1
	d.x1 = x
	d.y1 = FlushDenormals(y)
	return y
}

// ProcessInPlace filters buf in place.
func (d *DCBlocker) ProcessInPlace(buf []float64) {
	for i := range buf {
		buf[i] = d.ProcessSample(buf[i])
	}
}
