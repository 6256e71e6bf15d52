package synth

import (
	"math"

	"github.com/cwbudde/algo-chord/pitch"
)

// Voice represents one sounding note.
type Voice struct {
	note       int
	velocity   int
	freq       float64
	phaseInc   float64
	phase      float64
	envelope   float64
	startOrder uint64
	partials   int // harmonics below Nyquist
}

// VoiceInfo is a read-only snapshot of a voice.
type VoiceInfo struct {
	Note       int     `json:"note"`
	Name       string  `json:"name"`
	Frequency  float64 `json:"frequency_hz"`
	Velocity   int     `json:"velocity"`
	Envelope   float64 `json:"envelope"`
	StartOrder uint64  `json:"start_order"`
}

// NewVoice creates a new voice for a note. Out-of-range input is clamped.
func NewVoice(sampleRate, note, velocity int, harmonics int, startOrder uint64) *Voice {
	note = pitch.ClampPitch(note)
	freq := pitch.FrequencyOf(note)
	v := &Voice{
		note:     note,
		freq:     freq,
		phaseInc: twoPi * freq / float64(sampleRate),
	}

	nyquist := 0.5 * float64(sampleRate)
	for k := 1; k <= harmonics; k++ {
		if freq*float64(k) >= nyquist {
			break
		}
		v.partials = k
	}
	v.Retrigger(velocity, startOrder)
	return v
}

// Retrigger restarts the note: phase to 0, envelope to 1.
func (v *Voice) Retrigger(velocity int, startOrder uint64) {
	v.velocity = pitch.ClampVelocity(velocity)
	v.phase = 0
	v.envelope = 1.0
	v.startOrder = startOrder
}

// Info returns a snapshot of the voice.
func (v *Voice) Info() VoiceInfo {
	return VoiceInfo{
		Note:       v.note,
		Name:       pitch.Name(v.note),
		Frequency:  v.freq,
		Velocity:   v.velocity,
		Envelope:   v.envelope,
		StartOrder: v.startOrder,
	}
}

// quieterThan orders eviction candidates: lowest envelope first, then oldest.
func (v *Voice) quieterThan(o *Voice) bool {
	if v.envelope != o.envelope {
		return v.envelope < o.envelope
	}
	return v.startOrder < o.startOrder
}

// Process adds numFrames of this voice into mix, advancing phase and envelope.
func (v *Voice) Process(mix []float64, harmonics []float64, gain float64, decay float64) {
	amp := float64(v.velocity) / float64(pitch.MaxVelocity) * gain
	for i := range mix {
		var wave float64
		for k := 0; k < v.partials; k++ {
			wave += harmonics[k] * math.Sin(float64(k+1)*v.phase)
		}
		mix[i] += wave * amp * v.envelope

		v.phase = wrapPhase(v.phase + v.phaseInc)
		v.envelope *= decay
	}
}
