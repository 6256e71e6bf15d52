package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
	"github.com/cwbudde/algo-chord/pitch"
)

const (
	silenceThreshold = 1e-4

	minFFTSize = 2048
	maxFFTSize = 16384

	// Spectral peaks more than this far below the strongest are ignored.
	peakFloorDB = -24.0
	// Relative deviation allowed when matching a peak to k*f0.
	harmonicTolerance = 0.03
	maxHarmonic       = 16
	minPitchHz        = 20.0
)

// ErrTooShort is returned when the signal cannot fill the smallest FFT.
var ErrTooShort = errors.New("analysis: signal too short for pitch detection")

// DetectPitches estimates the notes sounding at the start of x. Peaks that
// sit on a harmonic of an already detected lower note are treated as
// overtones, so octave doublings are not reported.
func DetectPitches(x []float64, sampleRate int) ([]int, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	n := fftSize(len(x))
	if n == 0 {
		return nil, ErrTooShort
	}

	plan, err := algofft.NewPlanReal64(n)
	if err != nil {
		return nil, fmt.Errorf("fft plan: %w", err)
	}
	buf := make([]float64, n)
	for i := range buf {
		w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		buf[i] = x[i] * w
	}
	spec := make([]complex128, n/2+1)
	plan.Forward(spec, buf)

	mag := make([]float64, len(spec))
	var peak float64
	for k := 1; k < len(spec); k++ {
		mag[k] = cmplx.Abs(spec[k])
		if mag[k] > peak {
			peak = mag[k]
		}
	}
	out := []int{}
	if peak <= 0 {
		return out, nil
	}

	floor := peak * math.Pow(10, peakFloorDB/20)
	binHz := float64(sampleRate) / float64(n)
	var fundamentals []float64
	for k := 2; k < len(mag)-1; k++ {
		if mag[k] < floor || mag[k] <= mag[k-1] || mag[k] < mag[k+1] {
			continue
		}
		f := (float64(k) + interpolatePeak(mag[k-1], mag[k], mag[k+1])) * binHz
		if f < minPitchHz || isHarmonic(f, fundamentals) {
			continue
		}
		p := pitch.Nearest(f)
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		fundamentals = append(fundamentals, f)
		out = append(out, p)
	}
	return out, nil
}

func fftSize(frames int) int {
	n := maxFFTSize
	for n > frames {
		n >>= 1
	}
	if n < minFFTSize {
		return 0
	}
	return n
}

// interpolatePeak returns the fractional bin offset of a parabola through
// three log magnitudes.
func interpolatePeak(a, b, c float64) float64 {
	la := math.Log(a + 1e-300)
	lb := math.Log(b + 1e-300)
	lc := math.Log(c + 1e-300)
	den := la - 2*lb + lc
	if den == 0 {
		return 0
	}
	d := 0.5 * (la - lc) / den
	if d < -0.5 || d > 0.5 {
		return 0
	}
	return d
}

func isHarmonic(f float64, fundamentals []float64) bool {
	for _, f0 := range fundamentals {
		r := f / f0
		k := math.Round(r)
		if k < 2 || k > maxHarmonic {
			continue
		}
		if math.Abs(r-k)/k < harmonicTolerance {
			return true
		}
	}
	return false
}
