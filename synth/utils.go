package synth

import (
	"math"

	"github.com/cwbudde/algo-approx"
	"github.com/cwbudde/algo-chord/pitch"
)

const twoPi = 2 * math.Pi

// softClip maps x smoothly into (-level, level) with level*tanh(x/level).
func softClip(x float64, level float64) float64 {
	y := float32(x / level)
	if y > 9 {
		return level
	}
	if y < -9 {
		return -level
	}
	e := approx.FastExp(2 * y)
	return level * float64(1-2/(e+1))
}

// quantize converts a sample in [-1,1] to signed 16-bit.
func quantize(x float64) int16 {
	v := math.Round(x * math.MaxInt16)
	return int16(pitch.Clamp(v, -math.MaxInt16, math.MaxInt16))
}

func wrapPhase(phase float64) float64 {
	if phase >= twoPi {
		phase -= twoPi
		if phase >= twoPi {
			phase = math.Mod(phase, twoPi)
		}
	}
	return phase
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
