package chord

import (
	"sort"
	"strings"

	"github.com/cwbudde/algo-chord/pitch"
)

// Result is the label and ordered note names for a held-pitch set.
type Result struct {
	Label string   `json:"label"`
	Names []string `json:"names"`
}

// IntervalSet is a bitmask of pitch-class intervals above a root (bit 0 = root).
type IntervalSet uint16

// NewIntervalSet builds a set from interval values; values are folded mod 12.
func NewIntervalSet(intervals ...int) IntervalSet {
	var s IntervalSet
	for _, iv := range intervals {
		s |= 1 << uint(pitch.Class(iv))
	}
	return s
}

// Has reports whether interval iv (mod 12) is present.
func (s IntervalSet) Has(iv int) bool {
	return s&(1<<uint(pitch.Class(iv))) != 0
}

// Intervals returns the members in ascending order.
func (s IntervalSet) Intervals() []int {
	out := make([]int, 0, 12)
	for i := 0; i < 12; i++ {
		if s.Has(i) {
			out = append(out, i)
		}
	}
	return out
}

func intervalsFrom(root int, pitches []int) IntervalSet {
	var s IntervalSet
	for _, p := range pitches {
		s |= 1 << uint(pitch.Class(p-root))
	}
	return s
}

// Analyze labels the chord formed by held. It is pure: order and duplicates in
// held do not matter.
func Analyze(held []int) Result {
	sorted := normalize(held)
	names := make([]string, len(sorted))
	for i, p := range sorted {
		names[i] = pitch.Name(p)
	}
	switch len(sorted) {
	case 0:
		return Result{Label: "", Names: names}
	case 1:
		return Result{Label: names[0], Names: names}
	}

	root := sorted[0]
	rootSet := intervalsFrom(root, sorted)
	if q, ok := patterns[rootSet]; ok {
		return Result{Label: pitch.ClassName(root) + q, Names: names}
	}

	for _, candidate := range sorted {
		q, ok := patterns[intervalsFrom(candidate, sorted)]
		if !ok {
			continue
		}
		label := pitch.ClassName(candidate) + q
		if pitch.Class(candidate) != pitch.Class(root) {
			label += " (" + inversionTag(pitch.Class(root-candidate)) + ")"
		}
		return Result{Label: label, Names: names}
	}

	if q := classify(rootSet); q != Unknown {
		return Result{Label: pitch.ClassName(root) + " " + string(q), Names: names}
	}
	return Result{Label: strings.Join(names, "-"), Names: names}
}

// inversionTag names the inversion from the bass note's interval above the root.
func inversionTag(bass int) string {
	switch bass {
	case 3, 4:
		return "1st inversion"
	case 6, 7, 8:
		return "2nd inversion"
	default:
		return "inversion"
	}
}

func normalize(held []int) []int {
	seen := make(map[int]struct{}, len(held))
	out := make([]int, 0, len(held))
	for _, p := range held {
		p = pitch.ClampPitch(p)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
