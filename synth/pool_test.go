package synth

import (
	"testing"
)

func TestRenderWithoutNotesIsSilent(t *testing.T) {
	p := NewPool(NewDefaultParams())
	for _, n := range []int{0, 1, 256, 4097} {
		out := p.RenderFrames(n)
		if len(out) != n {
			t.Fatalf("expected %d frames, got %d", n, len(out))
		}
		for i, s := range out {
			if s != 0 {
				t.Fatalf("expected silence at frame %d of %d, got %d", i, n, s)
			}
		}
	}
}

func TestNoteOnProducesSoundAtMinimumVelocity(t *testing.T) {
	p := NewPool(NewDefaultParams())
	p.NoteOn(60, 1)
	out := p.RenderFrames(16)
	if !hasNonZero(out) {
		t.Fatalf("expected non-silent output for velocity 1: %v", out)
	}
}

func TestNoteOnClampsInput(t *testing.T) {
	p := NewPool(NewDefaultParams())
	p.NoteOn(-4, 0)
	p.NoteOn(300, 999)
	voices := p.Voices()
	if len(voices) != 2 {
		t.Fatalf("expected 2 voices, got %d", len(voices))
	}
	if voices[0].Note != 0 || voices[0].Velocity != 1 {
		t.Fatalf("expected low input clamped to note 0 vel 1, got %+v", voices[0])
	}
	if voices[1].Note != 127 || voices[1].Velocity != 127 {
		t.Fatalf("expected high input clamped to note 127 vel 127, got %+v", voices[1])
	}
}

func TestPolyphonyCapNeverExceeded(t *testing.T) {
	params := NewDefaultParams()
	p := NewPool(params)
	for i := 0; i <= params.MaxPolyphony; i++ {
		p.NoteOn(48+i, 100)
		if p.Len() > params.MaxPolyphony {
			t.Fatalf("pool exceeded polyphony after %d notes: %d", i+1, p.Len())
		}
	}
	if p.Len() != params.MaxPolyphony {
		t.Fatalf("expected full pool, got %d", p.Len())
	}
	// Equal envelopes: the oldest admission goes first.
	if _, ok := p.Envelope(48); ok {
		t.Fatalf("expected oldest note 48 to be evicted")
	}
	if _, ok := p.Envelope(48 + params.MaxPolyphony); !ok {
		t.Fatalf("expected newest note to be admitted")
	}
}

func TestEvictionPrefersQuietestVoice(t *testing.T) {
	params := NewDefaultParams()
	p := NewPool(params)
	for i := 0; i < params.MaxPolyphony; i++ {
		p.NoteOn(60+i, 100)
	}
	quiet := p.voices[3].note
	p.voices[3].envelope = 0.1

	p.NoteOn(40, 100)
	if _, ok := p.Envelope(quiet); ok {
		t.Fatalf("expected quietest note %d to be evicted", quiet)
	}
	if _, ok := p.Envelope(60); !ok {
		t.Fatalf("expected oldest but loud note 60 to survive")
	}
	if p.Len() != params.MaxPolyphony {
		t.Fatalf("expected pool size %d, got %d", params.MaxPolyphony, p.Len())
	}
}

func TestRetriggerResetsEnvelopeWithoutNewVoice(t *testing.T) {
	p := NewPool(NewDefaultParams())
	p.NoteOn(64, 90)
	p.RenderFrames(2048)
	env, ok := p.Envelope(64)
	if !ok || env >= 1.0 {
		t.Fatalf("expected decayed envelope, got=%f ok=%v", env, ok)
	}
	p.NoteOn(64, 40)
	env, _ = p.Envelope(64)
	if env != 1.0 {
		t.Fatalf("expected retrigger to reset envelope, got=%f", env)
	}
	if p.Len() != 1 {
		t.Fatalf("expected a single voice after retrigger, got %d", p.Len())
	}
	if v := p.Voices()[0]; v.Velocity != 40 {
		t.Fatalf("expected retrigger velocity 40, got %d", v.Velocity)
	}
}

func TestNoteOffUnknownIsNoop(t *testing.T) {
	p := NewPool(NewDefaultParams())
	p.NoteOff(61)
	p.NoteOn(60, 100)
	p.NoteOff(61)
	if p.Len() != 1 {
		t.Fatalf("expected note-off of unknown note to leave pool intact, got %d", p.Len())
	}
	p.NoteOff(60)
	if p.Len() != 0 {
		t.Fatalf("expected note 60 removed, got %d voices", p.Len())
	}
}

func TestNoteOffLeavesOtherVoices(t *testing.T) {
	p := NewPool(NewDefaultParams())
	p.PlayChord([]int{67, 60, 64}, 100)
	p.NoteOff(64)
	voices := p.Voices()
	if len(voices) != 2 || voices[0].Note != 60 || voices[1].Note != 67 {
		t.Fatalf("unexpected voices after note off: %+v", voices)
	}
}

func TestAllNotesOffSilences(t *testing.T) {
	p := NewPool(NewDefaultParams())
	p.PlayChord([]int{60, 64, 67}, 100)
	p.AllNotesOff()
	if p.Len() != 0 {
		t.Fatalf("expected empty pool, got %d", p.Len())
	}
	if hasNonZero(p.RenderFrames(512)) {
		t.Fatalf("expected silence after all notes off")
	}
}

func TestEnvelopeDecaysUntilVoiceIsReclaimed(t *testing.T) {
	p := NewPool(NewDefaultParams())
	p.NoteOn(69, 100)

	prev := 1.0
	removed := false
	for block := 0; block < 400; block++ {
		p.RenderFrames(256)
		env, ok := p.Envelope(69)
		if !ok {
			removed = true
			break
		}
		if env >= prev {
			t.Fatalf("expected envelope to decrease at block %d: got=%f prev=%f", block, env, prev)
		}
		prev = env
	}
	if !removed {
		t.Fatalf("expected voice to be reclaimed after decaying below cutoff")
	}
	if p.Len() != 0 {
		t.Fatalf("expected empty pool after reclamation, got %d", p.Len())
	}
	if hasNonZero(p.RenderFrames(1024)) {
		t.Fatalf("expected silence after voice reclamation")
	}
}

func TestDecaySecondsControlsSustain(t *testing.T) {
	params := NewDefaultParams()
	params.DecaySeconds = 0.25
	p := NewPool(params)
	p.NoteOn(60, 100)

	const block = 128
	frames := 0
	for p.Len() > 0 && frames < params.SampleRate {
		p.RenderFrames(block)
		frames += block
	}
	want := int(0.25 * float64(params.SampleRate))
	if frames < want || frames > want+block {
		t.Fatalf("expected reclamation after ~%d frames, got %d", want, frames)
	}
}

func TestOutputStaysWithinClipLevel(t *testing.T) {
	params := NewDefaultParams()
	params.MasterGain = 1.0
	p := NewPool(params)
	p.PlayChord([]int{36, 40, 43, 48, 52, 55, 60, 64}, 127)

	limit := quantize(params.ClipLevel)
	out := p.RenderFrames(params.SampleRate / 4)
	for i, s := range out {
		if s > limit || s < -limit {
			t.Fatalf("sample %d exceeds clip level: got=%d limit=%d", i, s, limit)
		}
	}
}

func hasNonZero(buf []int16) bool {
	for _, s := range buf {
		if s != 0 {
			return true
		}
	}
	return false
}
