package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSink records writes and fails while failing is set.
type fakeSink struct {
	mu      sync.Mutex
	failing bool
	writes  int
	frames  int
	nonZero int
	closes  int
}

func (s *fakeSink) Write(frames []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("device gone")
	}
	s.writes++
	s.frames += len(frames)
	for _, v := range frames {
		if v != 0 {
			s.nonZero++
			break
		}
	}
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeSink) setFailing(v bool) {
	s.mu.Lock()
	s.failing = v
	s.mu.Unlock()
}

func (s *fakeSink) snapshot() (writes, nonZero, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes, s.nonZero, s.closes
}

func testConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.BufferFrames = 64
	cfg.RetryBackoff = time.Millisecond
	return cfg
}

func newTestEngine(t *testing.T, out *fakeSink) *Engine {
	t.Helper()
	var e *Engine
	var err error
	if out == nil {
		e, err = New(testConfig(), nil)
	} else {
		e, err = New(testConfig(), out)
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Shutdown() })
	return e
}

func hasNonZero(buf []int16) bool {
	for _, v := range buf {
		if v != 0 {
			return true
		}
	}
	return false
}

func TestRenderAppliesQueuedEvents(t *testing.T) {
	e := newTestEngine(t, &fakeSink{})

	assert.False(t, hasNonZero(e.RenderFrames(64)))

	e.NoteOn(60, 100)
	assert.Equal(t, 1, e.Status().PendingEvents)
	assert.Equal(t, 0, e.Status().ActiveVoices)

	out := e.RenderFrames(64)
	assert.True(t, hasNonZero(out))
	assert.Equal(t, 1, e.Status().ActiveVoices)
	assert.Equal(t, 0, e.Status().PendingEvents)
}

func TestEventsForOneNoteApplyInOrder(t *testing.T) {
	e := newTestEngine(t, &fakeSink{})

	e.NoteOn(60, 100)
	e.NoteOff(60)
	e.RenderFrames(64)
	assert.Empty(t, e.Voices())

	e.NoteOff(62)
	e.NoteOn(62, 100)
	e.RenderFrames(64)
	require.Len(t, e.Voices(), 1)
	assert.Equal(t, 62, e.Voices()[0].Note)
}

func TestPlayChordAndAllNotesOff(t *testing.T) {
	e := newTestEngine(t, &fakeSink{})

	e.PlayChord([]int{67, 60, 64}, 90)
	e.RenderFrames(32)
	voices := e.Voices()
	require.Len(t, voices, 3)
	assert.Equal(t, []int{60, 64, 67}, []int{voices[0].Note, voices[1].Note, voices[2].Note})

	e.AllNotesOff()
	out := e.RenderFrames(32)
	assert.False(t, hasNonZero(out))
	assert.Equal(t, 0, e.Status().ActiveVoices)
}

func TestControlCallsClampInput(t *testing.T) {
	e := newTestEngine(t, &fakeSink{})
	e.NoteOn(200, 500)
	e.RenderFrames(16)
	voices := e.Voices()
	require.Len(t, voices, 1)
	assert.Equal(t, 127, voices[0].Note)
	assert.Equal(t, 127, voices[0].Velocity)
}

func TestControlDoesNotWaitForRender(t *testing.T) {
	e := newTestEngine(t, &fakeSink{})

	e.rmu.Lock()
	done := make(chan struct{})
	go func() {
		e.NoteOn(60, 100)
		e.NoteOff(61)
		e.PlayChord([]int{64, 67}, 80)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("control call blocked behind render lock")
	}
	e.rmu.Unlock()
}

func TestRenderLoopDeliversToSink(t *testing.T) {
	out := &fakeSink{}
	e := newTestEngine(t, out)

	require.NoError(t, e.Start(context.Background()))
	assert.ErrorIs(t, e.Start(context.Background()), ErrAlreadyStarted)
	e.NoteOn(69, 100)

	assert.Eventually(t, func() bool {
		_, nonZero, _ := out.snapshot()
		return nonZero > 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, e.Status().Running)
	assert.False(t, e.Degraded())
}

func TestSinkFailureDegradesAndRecovers(t *testing.T) {
	out := &fakeSink{failing: true}
	e := newTestEngine(t, out)
	require.NoError(t, e.Start(context.Background()))

	assert.Eventually(t, e.Degraded, 2*time.Second, 2*time.Millisecond)
	st := e.Status()
	assert.NotZero(t, st.BuffersDropped)
	assert.Equal(t, "device gone", st.LastError)

	// The pool keeps updating while degraded.
	e.NoteOn(60, 100)
	assert.Eventually(t, func() bool { return e.Status().ActiveVoices == 1 }, 2*time.Second, 2*time.Millisecond)

	out.setFailing(false)
	assert.Eventually(t, func() bool { return !e.Degraded() }, 2*time.Second, 2*time.Millisecond)
	writes, _, _ := out.snapshot()
	assert.NotZero(t, writes)
}

func TestNilSinkRunsDegraded(t *testing.T) {
	e := newTestEngine(t, nil)
	assert.True(t, e.Degraded())

	require.NoError(t, e.Start(context.Background()))
	e.NoteOn(60, 100)
	assert.Eventually(t, func() bool {
		st := e.Status()
		return st.ActiveVoices == 1 && st.BuffersDropped > 0
	}, 2*time.Second, 2*time.Millisecond)
	assert.Equal(t, "no audio sink", e.Status().LastError)
}

func TestShutdownIsIdempotent(t *testing.T) {
	out := &fakeSink{}
	e, err := New(testConfig(), out)
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))
	e.PlayChord([]int{60, 64, 67}, 100)

	require.NoError(t, e.Shutdown())
	require.NoError(t, e.Shutdown())

	_, _, closes := out.snapshot()
	assert.Equal(t, 1, closes)
	st := e.Status()
	assert.False(t, st.Running)
	assert.Equal(t, 0, st.ActiveVoices)
	assert.Empty(t, e.Voices())
	assert.ErrorIs(t, e.Start(context.Background()), ErrShutdown)

	// Control after shutdown is ignored.
	e.NoteOn(60, 100)
	assert.Equal(t, 0, e.Status().PendingEvents)
}

func TestStartAfterShutdownReportsShutdown(t *testing.T) {
	running := newTestEngine(t, &fakeSink{})
	require.NoError(t, running.Start(context.Background()))
	require.NoError(t, running.Shutdown())
	assert.ErrorIs(t, running.Start(context.Background()), ErrShutdown)

	idle := newTestEngine(t, &fakeSink{})
	require.NoError(t, idle.Shutdown())
	assert.ErrorIs(t, idle.Start(context.Background()), ErrShutdown)
	assert.False(t, idle.Status().Running)
}

func TestContextCancelStopsLoop(t *testing.T) {
	e := newTestEngine(t, &fakeSink{})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, e.Start(ctx))
	cancel()
	assert.Eventually(t, func() bool { return !e.Status().Running }, time.Second, 2*time.Millisecond)
}

func TestConcurrentControlWhileRendering(t *testing.T) {
	e := newTestEngine(t, &fakeSink{})
	require.NoError(t, e.Start(context.Background()))

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				n := base + i%12
				e.NoteOn(n, 80)
				e.NoteOff(n)
				if i%50 == 0 {
					_ = e.Status()
					_ = e.Voices()
				}
			}
		}(48 + g*12)
	}
	wg.Wait()

	e.AllNotesOff()
	assert.Eventually(t, func() bool { return e.Status().ActiveVoices == 0 }, 2*time.Second, 2*time.Millisecond)
	assert.LessOrEqual(t, len(e.Voices()), e.Config().Params.MaxPolyphony)
}

func TestConfigValidate(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 256, cfg.BufferFrames)
	assert.InDelta(t, 5.8, float64(cfg.BufferDuration().Microseconds())/1000, 0.1)

	cfg.BufferFrames = 0
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Params.MaxPolyphony = 0
	_, err := New(cfg, nil)
	assert.Error(t, err)
}
