// Package engine runs a synth.Pool behind a thread-safe control surface and
// drives the real-time render loop.
//
// Control calls (NoteOn, NoteOff, AllNotesOff, PlayChord) only append to an
// event queue under a short lock. The render path drains the queue at each
// buffer boundary, so events for one note are applied in the order they were
// submitted and callers never wait for a buffer to finish.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-chord/pitch"
	"github.com/cwbudde/algo-chord/sink"
	"github.com/cwbudde/algo-chord/synth"
	"github.com/google/uuid"
)

var (
	ErrAlreadyStarted = errors.New("engine: already started")
	ErrShutdown       = errors.New("engine: shut down")
)

// EventType identifies a control event.
type EventType int

const (
	EventNoteOn EventType = iota
	EventNoteOff
	EventAllNotesOff
)

func (t EventType) String() string {
	switch t {
	case EventNoteOn:
		return "note_on"
	case EventNoteOff:
		return "note_off"
	case EventAllNotesOff:
		return "all_notes_off"
	default:
		return "unknown"
	}
}

// Event is a queued control change.
type Event struct {
	Type     EventType
	Note     int
	Velocity int
}

// Status is a point-in-time view of the engine for adapters.
type Status struct {
	ID              string `json:"id"`
	SampleRate      int    `json:"sample_rate"`
	BufferFrames    int    `json:"buffer_frames"`
	Running         bool   `json:"running"`
	ActiveVoices    int    `json:"active_voices"`
	PendingEvents   int    `json:"pending_events"`
	BuffersRendered uint64 `json:"buffers_rendered"`
	BuffersDropped  uint64 `json:"buffers_dropped"`
	Degraded        bool   `json:"degraded"`
	LastError       string `json:"last_error,omitempty"`
}

// Engine owns a voice pool, an event queue and an optional audio sink.
type Engine struct {
	cfg  *Config
	id   string
	log  *slog.Logger
	sink sink.Sink

	qmu    sync.Mutex
	queue  []Event
	closed bool

	rmu   sync.Mutex
	pool  *synth.Pool
	spare []Event

	activeVoices atomic.Int32
	rendered     atomic.Uint64
	dropped      atomic.Uint64
	degraded     atomic.Bool
	running      atomic.Bool

	errMu   sync.Mutex
	lastErr error

	startMu  sync.Mutex
	started  bool
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// New creates an engine. A nil sink runs the engine degraded: the pool keeps
// updating and rendered buffers are discarded.
func New(cfg *Config, out sink.Sink) (*Engine, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	e := &Engine{
		cfg:  cfg,
		id:   id,
		log:  logger.With("engine", id),
		sink: out,
		pool: synth.NewPool(cfg.Params),
	}
	if out == nil {
		e.setDegraded(errors.New("no audio sink"))
	}
	e.log.Debug("engine: created",
		"sample_rate", cfg.Params.SampleRate,
		"buffer_frames", cfg.BufferFrames,
		"max_polyphony", cfg.Params.MaxPolyphony,
		"sustain_s", cfg.Params.SustainSeconds(),
	)
	return e, nil
}

// ID identifies this engine instance in logs and status.
func (e *Engine) ID() string { return e.id }

// Config returns the engine configuration.
func (e *Engine) Config() *Config { return e.cfg }

func (e *Engine) submit(evs ...Event) {
	e.qmu.Lock()
	if !e.closed {
		e.queue = append(e.queue, evs...)
	}
	e.qmu.Unlock()
}

// NoteOn queues a note start. Out-of-range input is clamped.
func (e *Engine) NoteOn(note int, velocity int) {
	e.submit(Event{Type: EventNoteOn, Note: pitch.ClampPitch(note), Velocity: pitch.ClampVelocity(velocity)})
}

// NoteOff queues a note stop.
func (e *Engine) NoteOff(note int) {
	e.submit(Event{Type: EventNoteOff, Note: pitch.ClampPitch(note)})
}

// AllNotesOff queues a full reset of the pool.
func (e *Engine) AllNotesOff() {
	e.submit(Event{Type: EventAllNotesOff})
}

// PlayChord queues note starts for every note, lowest first, atomically with
// respect to rendering.
func (e *Engine) PlayChord(notes []int, velocity int) {
	sorted := append([]int(nil), notes...)
	sort.Ints(sorted)
	evs := make([]Event, len(sorted))
	for i, n := range sorted {
		evs[i] = Event{Type: EventNoteOn, Note: pitch.ClampPitch(n), Velocity: pitch.ClampVelocity(velocity)}
	}
	e.submit(evs...)
}

// Render applies queued events and fills dst with the next frames.
func (e *Engine) Render(dst []int16) {
	e.rmu.Lock()
	defer e.rmu.Unlock()

	e.qmu.Lock()
	events := e.queue
	e.queue = e.spare[:0]
	e.qmu.Unlock()

	for _, ev := range events {
		switch ev.Type {
		case EventNoteOn:
			e.pool.NoteOn(ev.Note, ev.Velocity)
		case EventNoteOff:
			e.pool.NoteOff(ev.Note)
		case EventAllNotesOff:
			e.pool.AllNotesOff()
		}
	}
	e.spare = events[:0]

	e.pool.Render(dst)
	e.activeVoices.Store(int32(e.pool.Len()))
	e.rendered.Add(1)
}

// RenderFrames renders count frames into a new buffer.
func (e *Engine) RenderFrames(count int) []int16 {
	if count < 0 {
		count = 0
	}
	out := make([]int16, count)
	e.Render(out)
	return out
}

// Voices returns a snapshot of the sounding voices. It waits for an in-flight
// render to finish.
func (e *Engine) Voices() []synth.VoiceInfo {
	e.rmu.Lock()
	defer e.rmu.Unlock()
	return e.pool.Voices()
}

// Degraded reports whether rendered audio is currently being discarded.
func (e *Engine) Degraded() bool { return e.degraded.Load() }

// Status returns counters and health for adapters.
func (e *Engine) Status() Status {
	e.qmu.Lock()
	pending := len(e.queue)
	e.qmu.Unlock()

	s := Status{
		ID:              e.id,
		SampleRate:      e.cfg.Params.SampleRate,
		BufferFrames:    e.cfg.BufferFrames,
		Running:         e.running.Load(),
		ActiveVoices:    int(e.activeVoices.Load()),
		PendingEvents:   pending,
		BuffersRendered: e.rendered.Load(),
		BuffersDropped:  e.dropped.Load(),
		Degraded:        e.degraded.Load(),
	}
	e.errMu.Lock()
	if e.lastErr != nil {
		s.LastError = e.lastErr.Error()
	}
	e.errMu.Unlock()
	return s
}

func (e *Engine) setDegraded(err error) {
	e.errMu.Lock()
	e.lastErr = err
	e.errMu.Unlock()
	if !e.degraded.Swap(true) {
		e.log.Warn("engine: audio sink unavailable, discarding frames", "err", err)
	}
}

func (e *Engine) clearDegraded() {
	if e.degraded.Swap(false) {
		e.log.Info("engine: audio sink recovered")
	}
}

// Start launches the render loop. It stops when ctx is done or on Shutdown.
func (e *Engine) Start(ctx context.Context) error {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	e.qmu.Lock()
	closed := e.closed
	e.qmu.Unlock()
	if closed {
		return ErrShutdown
	}
	if e.started {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	e.started = true
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running.Store(true)
	go e.run(ctx)
	e.log.Info("engine: render loop started", "buffer", e.cfg.BufferDuration())
	return nil
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	defer e.running.Store(false)

	ticker := time.NewTicker(e.cfg.BufferDuration())
	defer ticker.Stop()
	buf := make([]int16, e.cfg.BufferFrames)

	for {
		select {
		case <-ctx.Done():
			e.log.Info("engine: render loop stopped")
			return
		case <-ticker.C:
		}

		start := time.Now()
		e.Render(buf)
		if elapsed := time.Since(start); elapsed > e.cfg.BufferDuration() {
			e.log.Warn("engine: render overran buffer", "elapsed", elapsed, "budget", e.cfg.BufferDuration())
		}
		e.deliver(ctx, buf)
	}
}

// deliver writes one buffer with bounded retries. On failure the buffer is
// dropped and the engine is marked degraded until a write succeeds.
func (e *Engine) deliver(ctx context.Context, buf []int16) {
	if e.sink == nil {
		e.dropped.Add(1)
		return
	}

	var err error
	for attempt := 0; attempt <= e.cfg.WriteRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				e.dropped.Add(1)
				return
			case <-time.After(e.cfg.RetryBackoff):
			}
		}
		if err = e.sink.Write(buf); err == nil {
			e.clearDegraded()
			return
		}
		e.log.Debug("engine: sink write failed", "attempt", attempt+1, "err", err)
	}
	e.dropped.Add(1)
	e.setDegraded(err)
}

// Shutdown stops the render loop after the current buffer, clears all notes
// and closes the sink. It is safe to call more than once.
func (e *Engine) Shutdown() error {
	e.stopOnce.Do(func() {
		e.qmu.Lock()
		e.closed = true
		e.queue = nil
		e.qmu.Unlock()

		e.startMu.Lock()
		cancel, done := e.cancel, e.done
		e.startMu.Unlock()
		if cancel != nil {
			cancel()
			<-done
		}

		e.rmu.Lock()
		e.pool.AllNotesOff()
		e.activeVoices.Store(0)
		e.rmu.Unlock()

		if e.sink != nil {
			if err := e.sink.Close(); err != nil {
				e.stopErr = err
				e.log.Error("engine: closing sink failed", "err", err)
			}
		}
		e.log.Info("engine: shut down",
			"buffers_rendered", e.rendered.Load(),
			"buffers_dropped", e.dropped.Load(),
		)
	})
	return e.stopErr
}
