// Package midi decodes raw channel messages into control events for the
// synthesizer.
package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// Controllers that silence everything.
const (
	CCAllSoundOff = 120
	CCAllNotesOff = 123
)

// Kind classifies a decoded message.
type Kind int

const (
	KindNoteOn Kind = iota + 1
	KindNoteOff
	KindControlChange
	KindPitchBend
)

func (k Kind) String() string {
	switch k {
	case KindNoteOn:
		return "note_on"
	case KindNoteOff:
		return "note_off"
	case KindControlChange:
		return "control_change"
	case KindPitchBend:
		return "pitch_bend"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is a decoded channel message.
type Event struct {
	Kind       Kind
	Channel    uint8
	Key        uint8
	Velocity   uint8
	Controller uint8
	Value      uint8
	Bend       int16
}

// Target receives dispatched events.
type Target interface {
	NoteOn(note int, velocity int)
	NoteOff(note int)
	AllNotesOff()
}

// Decode parses one raw message. Note-on with velocity 0 decodes as note-off.
// Unsupported or truncated messages report false.
func Decode(raw []byte) (Event, bool) {
	if len(raw) != 3 {
		return Event{}, false
	}
	msg := gomidi.Message(raw)

	var ev Event
	switch {
	case msg.GetNoteStart(&ev.Channel, &ev.Key, &ev.Velocity):
		ev.Kind = KindNoteOn
	case msg.GetNoteEnd(&ev.Channel, &ev.Key):
		ev.Kind = KindNoteOff
	case msg.GetControlChange(&ev.Channel, &ev.Controller, &ev.Value):
		ev.Kind = KindControlChange
	default:
		var abs uint16
		if !msg.GetPitchBend(&ev.Channel, &ev.Bend, &abs) {
			return Event{}, false
		}
		ev.Kind = KindPitchBend
	}
	return ev, true
}

// Dispatch applies ev to t and reports whether it had an effect.
// Pitch bend and other controllers are decoded but not acted on.
func Dispatch(ev Event, t Target) bool {
	switch ev.Kind {
	case KindNoteOn:
		t.NoteOn(int(ev.Key), int(ev.Velocity))
	case KindNoteOff:
		t.NoteOff(int(ev.Key))
	case KindControlChange:
		if ev.Controller != CCAllNotesOff && ev.Controller != CCAllSoundOff {
			return false
		}
		t.AllNotesOff()
	default:
		return false
	}
	return true
}

// Handle decodes raw and dispatches it to t.
func Handle(raw []byte, t Target) (Event, bool) {
	ev, ok := Decode(raw)
	if !ok {
		return ev, false
	}
	return ev, Dispatch(ev, t)
}

// NoteOn builds a raw note-on message.
func NoteOn(channel, key, velocity uint8) []byte {
	return gomidi.NoteOn(channel, key, velocity)
}

// NoteOff builds a raw note-off message.
func NoteOff(channel, key uint8) []byte {
	return gomidi.NoteOff(channel, key)
}

// AllNotesOff builds a raw all-notes-off controller message.
func AllNotesOff(channel uint8) []byte {
	return gomidi.ControlChange(channel, CCAllNotesOff, 0)
}
