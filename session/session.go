// Package session tracks which keys are held, forwards note control to a
// player and keeps the chord label for the held set up to date.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/cwbudde/algo-chord/chord"
	"github.com/cwbudde/algo-chord/pitch"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Player is the sound-producing side of a session. *engine.Engine satisfies it.
type Player interface {
	NoteOn(note int, velocity int)
	NoteOff(note int)
	AllNotesOff()
	PlayChord(notes []int, velocity int)
}

// Listener receives the chord label after the held set changes.
type Listener func(chord.Result)

// Options configures a Session.
type Options struct {
	// OnChange is called with the current chord after each change.
	OnChange Listener
	// Debounce coalesces bursts of changes; the listener sees only the last.
	Debounce time.Duration
	Logger   *slog.Logger
}

// Session owns the held-key set.
type Session struct {
	player   Player
	onChange Listener
	debounce func(func())
	log      *slog.Logger

	// order keeps the player seeing changes in the order they hit held.
	order sync.Mutex

	mu      sync.Mutex
	held    map[int]int
	current chord.Result
}

// New creates a session that drives p. p may be nil for analysis only.
func New(p Player, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		player:   p,
		onChange: opts.OnChange,
		log:      logger,
		held:     make(map[int]int),
		current:  chord.Analyze(nil),
	}
	if opts.Debounce > 0 {
		s.debounce = debounce.New(opts.Debounce)
	}
	return s
}

// NoteOn marks note as held and starts it on the player.
func (s *Session) NoteOn(note int, velocity int) {
	note = pitch.ClampPitch(note)
	velocity = pitch.ClampVelocity(velocity)

	s.order.Lock()
	s.mu.Lock()
	_, already := s.held[note]
	s.held[note] = velocity
	s.mu.Unlock()
	if s.player != nil {
		s.player.NoteOn(note, velocity)
	}
	s.order.Unlock()

	if !already {
		s.changed()
	}
}

// NoteOff releases note. The player is told even when the key was not held.
func (s *Session) NoteOff(note int) {
	note = pitch.ClampPitch(note)

	s.order.Lock()
	s.mu.Lock()
	_, was := s.held[note]
	delete(s.held, note)
	s.mu.Unlock()
	if s.player != nil {
		s.player.NoteOff(note)
	}
	s.order.Unlock()

	if was {
		s.changed()
	}
}

// AllNotesOff releases every key.
func (s *Session) AllNotesOff() {
	s.order.Lock()
	s.mu.Lock()
	n := len(s.held)
	s.held = make(map[int]int)
	s.mu.Unlock()
	if s.player != nil {
		s.player.AllNotesOff()
	}
	s.order.Unlock()

	if n > 0 {
		s.changed()
	}
}

// PlayChord holds every note of notes and starts them together.
func (s *Session) PlayChord(notes []int, velocity int) {
	velocity = pitch.ClampVelocity(velocity)
	clamped := make([]int, len(notes))

	s.order.Lock()
	s.mu.Lock()
	added := false
	for i, n := range notes {
		n = pitch.ClampPitch(n)
		clamped[i] = n
		if _, ok := s.held[n]; !ok {
			added = true
		}
		s.held[n] = velocity
	}
	s.mu.Unlock()
	if s.player != nil {
		s.player.PlayChord(clamped, velocity)
	}
	s.order.Unlock()

	if added {
		s.changed()
	}
}

// Held returns the held pitches in ascending order.
func (s *Session) Held() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := maps.Keys(s.held)
	slices.Sort(keys)
	return keys
}

// Chord returns the label for the held set.
func (s *Session) Chord() chord.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) changed() {
	s.mu.Lock()
	res := chord.Analyze(maps.Keys(s.held))
	s.current = res
	s.mu.Unlock()

	s.log.Debug("session: chord", "label", res.Label, "notes", res.Names)
	if s.onChange == nil {
		return
	}
	if s.debounce != nil {
		s.debounce(func() { s.onChange(s.Chord()) })
		return
	}
	s.onChange(res)
}
