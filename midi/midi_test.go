package midi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
)

type recorder struct {
	calls []string
	notes []int
}

func (r *recorder) NoteOn(note int, velocity int) {
	r.calls = append(r.calls, "on")
	r.notes = append(r.notes, note, velocity)
}

func (r *recorder) NoteOff(note int) {
	r.calls = append(r.calls, "off")
	r.notes = append(r.notes, note)
}

func (r *recorder) AllNotesOff() {
	r.calls = append(r.calls, "all_off")
}

func TestDecodeNoteOn(t *testing.T) {
	ev, ok := Decode(NoteOn(2, 60, 100))
	require.True(t, ok)
	assert.Equal(t, Event{Kind: KindNoteOn, Channel: 2, Key: 60, Velocity: 100}, ev)
}

func TestDecodeNoteOnZeroVelocityIsNoteOff(t *testing.T) {
	ev, ok := Decode([]byte{0x90, 64, 0})
	require.True(t, ok)
	assert.Equal(t, KindNoteOff, ev.Kind)
	assert.Equal(t, uint8(64), ev.Key)
}

func TestDecodeNoteOff(t *testing.T) {
	ev, ok := Decode(NoteOff(0, 67))
	require.True(t, ok)
	assert.Equal(t, KindNoteOff, ev.Kind)
	assert.Equal(t, uint8(67), ev.Key)
}

func TestDecodeControlChangeAndPitchBend(t *testing.T) {
	ev, ok := Decode(gomidi.ControlChange(1, 7, 90))
	require.True(t, ok)
	assert.Equal(t, KindControlChange, ev.Kind)
	assert.Equal(t, uint8(7), ev.Controller)
	assert.Equal(t, uint8(90), ev.Value)

	ev, ok = Decode(gomidi.Pitchbend(0, 1000))
	require.True(t, ok)
	assert.Equal(t, KindPitchBend, ev.Kind)
	assert.Equal(t, int16(1000), ev.Bend)
}

func TestDecodeRejectsUnsupported(t *testing.T) {
	for name, raw := range map[string][]byte{
		"empty":          nil,
		"truncated":      {0x90, 60},
		"program_change": gomidi.ProgramChange(0, 5),
		"too_long":       {0x90, 60, 100, 0},
	} {
		if _, ok := Decode(raw); ok {
			t.Fatalf("%s: expected decode to fail for % X", name, raw)
		}
	}
}

func TestDispatch(t *testing.T) {
	r := &recorder{}
	for _, raw := range [][]byte{
		NoteOn(0, 60, 100),
		NoteOff(0, 60),
		gomidi.ControlChange(0, 64, 127),
		AllNotesOff(0),
		gomidi.ControlChange(0, CCAllSoundOff, 0),
		gomidi.Pitchbend(0, -200),
	} {
		Handle(raw, r)
	}
	assert.Equal(t, []string{"on", "off", "all_off", "all_off"}, r.calls)
	assert.Equal(t, []int{60, 100, 60}, r.notes)
}

func TestDispatchReportsEffect(t *testing.T) {
	r := &recorder{}
	assert.True(t, Dispatch(Event{Kind: KindNoteOn, Key: 1, Velocity: 1}, r))
	assert.False(t, Dispatch(Event{Kind: KindControlChange, Controller: 1}, r))
	assert.False(t, Dispatch(Event{Kind: KindPitchBend}, r))
	assert.False(t, Dispatch(Event{}, r))
}
