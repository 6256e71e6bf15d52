package synth

import (
	"fmt"
	"math"
	"testing"
)

// TestTuningAccuracy verifies that the rendered pitch is within tolerance.
func TestTuningAccuracy(t *testing.T) {
	params := NewDefaultParams()
	params.Harmonics = []float64{1.0}
	params.DecayFactor = 0.99999

	tests := []struct {
		note         int
		expectedFreq float64
		tolerance    float64 // Hz
	}{
		{69, 440.0, 1.0},
		{60, 261.63, 1.0},
		{72, 523.25, 2.0},
		{48, 130.81, 1.0},
		{57, 220.0, 1.0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("Note%d", tt.note), func(t *testing.T) {
			p := NewPool(params)
			p.NoteOn(tt.note, 100)
			out := p.RenderFrames(params.SampleRate)

			measured := measureFundamentalFreq(out, float64(params.SampleRate))
			diff := math.Abs(measured - tt.expectedFreq)
			if diff > tt.tolerance {
				t.Errorf("Note %d: expected %.2f Hz, got %.2f Hz (diff: %.2f Hz)", tt.note, tt.expectedFreq, measured, diff)
			}
		})
	}
}

func TestVoicePartialsStopBelowNyquist(t *testing.T) {
	vLow := NewVoice(44100, 48, 100, 4, 0)
	vHigh := NewVoice(44100, 120, 100, 4, 0) // ~8.4 kHz

	if vLow.partials != 4 {
		t.Fatalf("expected 4 partials for low note, got %d", vLow.partials)
	}
	if vHigh.partials != 2 {
		t.Fatalf("expected 2 partials below Nyquist for high note, got %d", vHigh.partials)
	}
}

func TestVoicePhaseStaysWrapped(t *testing.T) {
	v := NewVoice(44100, 100, 100, 4, 0)
	mix := make([]float64, 10000)
	v.Process(mix, []float64{1, 0.5, 0.25, 0.125}, 0.1, 0.9999)
	if v.phase < 0 || v.phase >= 2*math.Pi {
		t.Fatalf("phase out of range: %f", v.phase)
	}
	if v.envelope >= 1.0 || v.envelope <= 0 {
		t.Fatalf("unexpected envelope after processing: %f", v.envelope)
	}
}

func TestVelocityScalesAmplitude(t *testing.T) {
	loud := NewVoice(44100, 60, 127, 4, 0)
	soft := NewVoice(44100, 60, 32, 4, 0)
	h := []float64{1, 0.5, 0.25, 0.125}
	a := make([]float64, 512)
	b := make([]float64, 512)
	loud.Process(a, h, 0.1, 0.9998)
	soft.Process(b, h, 0.1, 0.9998)
	if windowRMS(a) <= windowRMS(b) {
		t.Fatalf("expected louder voice for higher velocity: loud=%f soft=%f", windowRMS(a), windowRMS(b))
	}
}

func measureFundamentalFreq(samples []int16, sampleRate float64) float64 {
	startIdx := len(samples) / 10
	crossings := 0
	for i := startIdx + 1; i < len(samples); i++ {
		if (samples[i-1] < 0 && samples[i] >= 0) || (samples[i-1] >= 0 && samples[i] < 0) {
			crossings++
		}
	}
	if crossings == 0 {
		return 0
	}
	duration := float64(len(samples)-startIdx) / sampleRate
	return float64(crossings) / (2.0 * duration)
}

func windowRMS(samples []float64) float64 {
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}
