package synth

import (
	"sort"

	"github.com/cwbudde/algo-chord/pitch"
)

// Pool is the polyphonic voice pool. One voice per note, at most
// MaxPolyphony voices. A Pool is not safe for concurrent use; see package
// engine for the synchronized wrapper.
type Pool struct {
	params  *Params
	decay   float64
	voices  []*Voice // admission order
	nextSeq uint64
	mix     []float64
}

// NewPool creates a voice pool. nil params selects defaults.
func NewPool(params *Params) *Pool {
	if params == nil {
		params = NewDefaultParams()
	}
	maxPoly := params.MaxPolyphony
	if maxPoly < 1 {
		maxPoly = 1
	}
	return &Pool{
		params: params,
		decay:  params.Decay(),
		voices: make([]*Voice, 0, maxPoly),
	}
}

// Params returns the pool's parameters.
func (p *Pool) Params() *Params { return p.params }

func (p *Pool) maxPolyphony() int {
	if p.params.MaxPolyphony < 1 {
		return 1
	}
	return p.params.MaxPolyphony
}

func (p *Pool) find(note int) int {
	for i, v := range p.voices {
		if v.note == note {
			return i
		}
	}
	return -1
}

// NoteOn starts or retriggers a note, evicting the quietest voice when full.
func (p *Pool) NoteOn(note int, velocity int) {
	note = pitch.ClampPitch(note)
	seq := p.nextSeq
	p.nextSeq++

	if i := p.find(note); i >= 0 {
		p.voices[i].Retrigger(velocity, seq)
		return
	}
	for len(p.voices) >= p.maxPolyphony() {
		p.evict()
	}
	v := NewVoice(p.params.SampleRate, note, velocity, len(p.params.Harmonics), seq)
	p.voices = append(p.voices, v)
}

func (p *Pool) evict() {
	victim := 0
	for i := 1; i < len(p.voices); i++ {
		if p.voices[i].quieterThan(p.voices[victim]) {
			victim = i
		}
	}
	p.remove(victim)
}

func (p *Pool) remove(i int) {
	copy(p.voices[i:], p.voices[i+1:])
	p.voices[len(p.voices)-1] = nil
	p.voices = p.voices[:len(p.voices)-1]
}

// NoteOff stops a note. Unknown notes are ignored.
func (p *Pool) NoteOff(note int) {
	if i := p.find(pitch.ClampPitch(note)); i >= 0 {
		p.remove(i)
	}
}

// AllNotesOff clears the pool.
func (p *Pool) AllNotesOff() {
	for i := range p.voices {
		p.voices[i] = nil
	}
	p.voices = p.voices[:0]
}

// PlayChord starts every note of a chord, lowest first.
func (p *Pool) PlayChord(notes []int, velocity int) {
	sorted := append([]int(nil), notes...)
	sort.Ints(sorted)
	for _, n := range sorted {
		p.NoteOn(n, velocity)
	}
}

// Len returns the number of active voices.
func (p *Pool) Len() int { return len(p.voices) }

// Voices returns voice snapshots sorted by note.
func (p *Pool) Voices() []VoiceInfo {
	out := make([]VoiceInfo, 0, len(p.voices))
	for _, v := range p.voices {
		out = append(out, v.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Note < out[j].Note })
	return out
}

// Envelope reports the envelope of the voice playing note.
func (p *Pool) Envelope(note int) (float64, bool) {
	if i := p.find(note); i >= 0 {
		return p.voices[i].envelope, true
	}
	return 0, false
}

// RenderFrames renders count mono samples into a new buffer.
func (p *Pool) RenderFrames(count int) []int16 {
	if count < 0 {
		count = 0
	}
	out := make([]int16, count)
	p.Render(out)
	return out
}

// Render fills dst with mono 16-bit samples and then reclaims voices whose
// envelope fell below the cutoff.
func (p *Pool) Render(dst []int16) {
	if len(p.voices) == 0 {
		for i := range dst {
			dst[i] = 0
		}
		return
	}

	if cap(p.mix) < len(dst) {
		p.mix = make([]float64, len(dst))
	}
	mix := p.mix[:len(dst)]
	for i := range mix {
		mix[i] = 0
	}

	for _, v := range p.voices {
		v.Process(mix, p.params.Harmonics, p.params.MasterGain, p.decay)
	}

	level := p.params.ClipLevel
	if level <= 0 || level > 1 {
		level = 1
	}
	for i, s := range mix {
		if !isFinite(s) {
			s = 0
		}
		dst[i] = quantize(softClip(s, level))
	}

	keep := p.voices[:0]
	for _, v := range p.voices {
		if v.envelope >= p.params.Cutoff {
			keep = append(keep, v)
		}
	}
	for i := len(keep); i < len(p.voices); i++ {
		p.voices[i] = nil
	}
	p.voices = keep
}
