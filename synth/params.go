package synth

import (
	"fmt"
	"math"
)

// Params holds all synthesis parameters.
type Params struct {
	SampleRate   int
	MaxPolyphony int

	// DecayFactor multiplies each voice envelope once per frame.
	DecayFactor float64
	// DecaySeconds, when > 0, replaces DecayFactor with the per-frame factor
	// that takes the envelope from 1.0 to Cutoff in that many seconds.
	DecaySeconds float64
	// Cutoff is the envelope level below which a voice is reclaimed.
	Cutoff float64

	MasterGain float64 // Per-voice gain before mixing
	ClipLevel  float64 // Soft-clip ceiling in (0,1]

	// Harmonics are partial weights; index 0 is the fundamental.
	Harmonics []float64
}

// NewDefaultParams creates default parameters.
func NewDefaultParams() *Params {
	return &Params{
		SampleRate:   44100,
		MaxPolyphony: 8,
		DecayFactor:  0.9998,
		DecaySeconds: 0,
		Cutoff:       1e-3,
		MasterGain:   0.12,
		ClipLevel:    0.9,
		Harmonics:    []float64{1.0, 0.5, 0.25, 0.125},
	}
}

// Decay returns the effective per-frame envelope factor.
func (p *Params) Decay() float64 {
	if p.DecaySeconds > 0 && p.SampleRate > 0 && p.Cutoff > 0 && p.Cutoff < 1 {
		frames := p.DecaySeconds * float64(p.SampleRate)
		return math.Exp(math.Log(p.Cutoff) / frames)
	}
	return p.DecayFactor
}

// SustainSeconds estimates how long a voice sounds before reclamation.
func (p *Params) SustainSeconds() float64 {
	d := p.Decay()
	if d <= 0 || d >= 1 || p.SampleRate <= 0 {
		return math.Inf(1)
	}
	return math.Log(p.Cutoff) / math.Log(d) / float64(p.SampleRate)
}

// Validate checks parameter ranges.
func (p *Params) Validate() error {
	if p == nil {
		return fmt.Errorf("nil params")
	}
	if p.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be > 0")
	}
	if p.MaxPolyphony < 1 {
		return fmt.Errorf("max_polyphony must be >= 1")
	}
	if d := p.Decay(); d <= 0 || d >= 1 {
		return fmt.Errorf("decay factor must be in (0,1), got %g", d)
	}
	if p.Cutoff <= 0 || p.Cutoff >= 1 {
		return fmt.Errorf("cutoff must be in (0,1)")
	}
	if p.MasterGain <= 0 {
		return fmt.Errorf("master_gain must be > 0")
	}
	if p.ClipLevel <= 0 || p.ClipLevel > 1 {
		return fmt.Errorf("clip_level must be in (0,1]")
	}
	if len(p.Harmonics) == 0 {
		return fmt.Errorf("harmonics must not be empty")
	}
	return nil
}

// Clone returns a deep copy.
func (p *Params) Clone() *Params {
	c := *p
	c.Harmonics = append([]float64(nil), p.Harmonics...)
	return &c
}
