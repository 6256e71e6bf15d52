// Package analysis measures rendered audio: levels, decay and the chord that
// is sounding.
package analysis

import (
	"math"

	"github.com/cwbudde/algo-chord/chord"
)

const (
	envFrame = 256
	envHop   = 128
)

// Report summarizes a mono signal.
type Report struct {
	SampleRate int     `json:"sample_rate"`
	Frames     int     `json:"frames"`
	DurationS  float64 `json:"duration_s"`

	Peak          float64 `json:"peak"`
	PeakDBFS      float64 `json:"peak_dbfs"`
	RMSDBFS       float64 `json:"rms_dbfs"`
	ClippedFrames int     `json:"clipped_frames"`
	// OnsetFrame is the first frame above the silence threshold, -1 if none.
	OnsetFrame int `json:"onset_frame"`
	// DecayDBPerS is the fitted envelope slope; 0 when it cannot be estimated.
	DecayDBPerS float64 `json:"decay_db_per_s"`

	Pitches []int        `json:"pitches"`
	Chord   chord.Result `json:"chord"`
}

// PCMToFloat converts 16-bit frames to [-1,1).
func PCMToFloat(pcm []int16) []float64 {
	out := make([]float64, len(pcm))
	for i, v := range pcm {
		out[i] = float64(v) / 32768.0
	}
	return out
}

// MeasurePCM is Measure for 16-bit frames. Full-scale samples count as clipped.
func MeasurePCM(pcm []int16, sampleRate int) Report {
	r := Measure(PCMToFloat(pcm), sampleRate)
	r.ClippedFrames = 0
	for _, v := range pcm {
		if v == math.MaxInt16 || v == math.MinInt16 {
			r.ClippedFrames++
		}
	}
	return r
}

// Measure computes levels, decay and detected pitches for x.
func Measure(x []float64, sampleRate int) Report {
	r := Report{
		SampleRate: sampleRate,
		Frames:     len(x),
		OnsetFrame: -1,
		Pitches:    []int{},
		Chord:      chord.Analyze(nil),
	}
	if sampleRate <= 0 || len(x) == 0 {
		r.PeakDBFS = linToDB(0)
		r.RMSDBFS = linToDB(0)
		return r
	}
	r.DurationS = float64(len(x)) / float64(sampleRate)

	for _, v := range x {
		if a := math.Abs(v); a > r.Peak {
			r.Peak = a
		}
		if math.Abs(v) >= 1 {
			r.ClippedFrames++
		}
	}
	r.PeakDBFS = linToDB(r.Peak)
	r.RMSDBFS = linToDB(rms1(x))

	body := trimLeadingSilence(x, silenceThreshold)
	if body == nil {
		return r
	}
	r.OnsetFrame = len(x) - len(body)

	env := rmsEnvelope(body, envFrame, envHop)
	if slope := decaySlopeDBPerS(env, float64(envHop)/float64(sampleRate)); isFinite(slope) {
		r.DecayDBPerS = slope
	}

	if pitches, err := DetectPitches(body, sampleRate); err == nil {
		r.Pitches = pitches
		r.Chord = chord.Analyze(pitches)
	}
	return r
}

func trimLeadingSilence(x []float64, threshold float64) []float64 {
	for i := 0; i < len(x); i++ {
		if math.Abs(x[i]) > threshold {
			return x[i:]
		}
	}
	return nil
}

func rms1(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func rmsEnvelope(x []float64, frame int, hop int) []float64 {
	if frame <= 0 || hop <= 0 || len(x) < frame {
		return nil
	}
	n := 1 + (len(x)-frame)/hop
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i * hop
		out[i] = rms1(x[start : start+frame])
	}
	return out
}

func linToDB(x float64) float64 {
	if x < 1e-12 {
		x = 1e-12
	}
	return 20.0 * math.Log10(x)
}

// decaySlopeDBPerS fits a line to the envelope in dB from its peak down to
// 60 dB below it.
func decaySlopeDBPerS(env []float64, hopSec float64) float64 {
	if len(env) < 8 || hopSec <= 0 {
		return math.NaN()
	}
	peak := -math.MaxFloat64
	peakIdx := 0
	for i, v := range env {
		db := linToDB(v)
		if db > peak {
			peak = db
			peakIdx = i
		}
	}
	start := peakIdx + 1
	if start >= len(env)-4 {
		return math.NaN()
	}

	threshold := peak - 60.0
	end := len(env)
	for i := start; i < len(env); i++ {
		if linToDB(env[i]) < threshold {
			end = i
			break
		}
	}
	if end-start < 6 {
		return math.NaN()
	}

	var sx, sy, sxx, sxy float64
	n := float64(end - start)
	for i := start; i < end; i++ {
		x := float64(i-start) * hopSec
		y := linToDB(env[i])
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	den := n*sxx - sx*sx
	if math.Abs(den) < 1e-12 {
		return math.NaN()
	}
	return (n*sxy - sx*sy) / den
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
