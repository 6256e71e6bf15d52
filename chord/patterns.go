package chord

// Quality is the coarse label produced when no table pattern matches.
type Quality string

const (
	Major        Quality = "Major"
	Minor        Quality = "Minor"
	Diminished   Quality = "Diminished"
	Augmented    Quality = "Augmented"
	PowerChord   Quality = "Power chord"
	MajorNoFifth Quality = "Major (no 5th)"
	MinorNoFifth Quality = "Minor (no 5th)"
	Unknown      Quality = "Unknown"
)

// Extensions above the octave are folded into one octave (9th -> 2, 11th -> 5,
// 13th -> 9).
var patterns = map[IntervalSet]string{
	// major
	NewIntervalSet(0, 4, 7):             "Maj",
	NewIntervalSet(0, 4, 7, 11):         "Maj7",
	NewIntervalSet(0, 4, 7, 10):         "7",
	NewIntervalSet(0, 4, 7, 9):          "6",
	NewIntervalSet(0, 4, 7, 14):         "add9",
	NewIntervalSet(0, 4, 7, 10, 14):     "9",
	NewIntervalSet(0, 4, 7, 11, 14):     "Maj9",
	NewIntervalSet(0, 4, 7, 10, 14, 17): "11",
	NewIntervalSet(0, 4, 7, 10, 14, 21): "13",

	// minor
	NewIntervalSet(0, 3, 7):         "m",
	NewIntervalSet(0, 3, 7, 10):     "m7",
	NewIntervalSet(0, 3, 7, 11):     "mMaj7",
	NewIntervalSet(0, 3, 7, 9):      "m6",
	NewIntervalSet(0, 3, 7, 14):     "madd9",
	NewIntervalSet(0, 3, 7, 10, 14): "m9",

	// diminished
	NewIntervalSet(0, 3, 6):     "dim",
	NewIntervalSet(0, 3, 6, 9):  "dim7",
	NewIntervalSet(0, 3, 6, 10): "m7b5",

	// augmented
	NewIntervalSet(0, 4, 8):     "aug",
	NewIntervalSet(0, 4, 8, 11): "augMaj7",

	// suspended
	NewIntervalSet(0, 5, 7):     "sus4",
	NewIntervalSet(0, 2, 7):     "sus2",
	NewIntervalSet(0, 5, 7, 10): "7sus4",
	NewIntervalSet(0, 2, 7, 10): "7sus2",

	NewIntervalSet(0, 7): "5",
}

// Lookup returns the table quality for an interval set.
func Lookup(s IntervalSet) (string, bool) {
	q, ok := patterns[s]
	return q, ok
}

// Patterns returns a copy of the pattern table.
func Patterns() map[IntervalSet]string {
	out := make(map[IntervalSet]string, len(patterns))
	for k, v := range patterns {
		out[k] = v
	}
	return out
}

func classify(s IntervalSet) Quality {
	minorThird := s.Has(3)
	majorThird := s.Has(4)
	flatFifth := s.Has(6)
	fifth := s.Has(7)
	sharpFifth := s.Has(8)

	switch {
	case majorThird && fifth:
		return Major
	case minorThird && fifth:
		return Minor
	case majorThird && flatFifth:
		return Diminished
	case majorThird && sharpFifth:
		return Augmented
	case minorThird && flatFifth:
		return Diminished
	case fifth && !majorThird && !minorThird:
		return PowerChord
	case majorThird && !fifth:
		return MajorNoFifth
	case minorThird && !fifth:
		return MinorNoFifth
	default:
		return Unknown
	}
}
