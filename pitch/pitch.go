package pitch

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/exp/constraints"
)

const (
	// Min and Max bound the MIDI note range.
	Min = 0
	Max = 127

	// MinVelocity and MaxVelocity bound a sounding note's velocity.
	MinVelocity = 1
	MaxVelocity = 127

	a4Freq = 440.0
	a4Note = 69
)

var classNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// FrequencyOf converts a MIDI note number to its equal-tempered frequency in Hz.
func FrequencyOf(p int) float64 {
	return a4Freq * math.Pow(2, float64(p-a4Note)/12.0)
}

// Nearest returns the MIDI note closest to freq, clamped to the note range.
func Nearest(freq float64) int {
	if freq <= 0 || math.IsNaN(freq) {
		return Min
	}
	return ClampPitch(int(math.Round(a4Note + 12*math.Log2(freq/a4Freq))))
}

// Clamp limits v to [lo, hi].
func Clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampPitch limits p to the MIDI note range.
func ClampPitch(p int) int {
	return Clamp(p, Min, Max)
}

// ClampVelocity limits v to [1,127]; noisy controllers send 0 or >127.
func ClampVelocity(v int) int {
	return Clamp(v, MinVelocity, MaxVelocity)
}

// Class returns the pitch class (0 = C ... 11 = B).
func Class(p int) int {
	return ((p % 12) + 12) % 12
}

// Octave returns the scientific octave number, so that 60 is octave 4.
func Octave(p int) int {
	return p/12 - 1
}

// ClassName returns the note name without octave, e.g. "C#".
func ClassName(p int) string {
	return classNames[Class(p)]
}

// Name returns note name plus octave, e.g. 61 -> "C#4".
func Name(p int) string {
	return fmt.Sprintf("%s%d", ClassName(p), Octave(p))
}

var flatToSharp = map[string]string{
	"DB": "C#", "EB": "D#", "GB": "F#", "AB": "G#", "BB": "A#",
	"CB": "B", "FB": "E", "E#": "F", "B#": "C",
}

// Parse reads a note name ("C4", "f#3", "Bb-1") or a plain MIDI number ("60").
func Parse(s string) (int, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, fmt.Errorf("empty note")
	}
	if n, err := strconv.Atoi(raw); err == nil {
		if n < Min || n > Max {
			return 0, fmt.Errorf("note %d out of range %d..%d", n, Min, Max)
		}
		return n, nil
	}

	up := strings.ToUpper(raw)
	nameLen := 1
	if len(up) > 1 && (up[1] == '#' || up[1] == 'B') {
		nameLen = 2
	}
	name := up[:nameLen]
	octaveStr := up[nameLen:]
	if octaveStr == "" {
		return 0, fmt.Errorf("note %q has no octave", raw)
	}
	octave, err := strconv.Atoi(octaveStr)
	if err != nil {
		return 0, fmt.Errorf("note %q: invalid octave %q", raw, octaveStr)
	}

	// B#/Cb wrap across the octave boundary.
	octaveShift := 0
	switch name {
	case "B#":
		octaveShift = 1
	case "CB":
		octaveShift = -1
	}
	if mapped, ok := flatToSharp[name]; ok {
		name = mapped
	}
	class := -1
	for i, n := range classNames {
		if n == name {
			class = i
			break
		}
	}
	if class < 0 {
		return 0, fmt.Errorf("note %q: unknown name", raw)
	}

	n := (octave+1+octaveShift)*12 + class
	if n < Min || n > Max {
		return 0, fmt.Errorf("note %q out of range %d..%d", raw, Min, Max)
	}
	return n, nil
}
