// Package sink holds audio outputs for rendered mono 16-bit frames.
package sink

import (
	"errors"
	"sync/atomic"
	"time"
)

var (
	// ErrClosed is returned by Write after Close.
	ErrClosed = errors.New("sink: closed")
	// ErrTimeout is returned when a device does not accept frames in time.
	ErrTimeout = errors.New("sink: write timed out")
)

// Sink consumes fixed-size mono int16 buffers at the engine's sample rate.
// Write must not retain frames after returning.
type Sink interface {
	Write(frames []int16) error
	Close() error
}

const (
	minBufferFrames = 64
	maxBufferFrames = 8192
)

// MinBufferFrames sizes a render buffer for the requested latency, rounded up
// to a power of two.
func MinBufferFrames(sampleRate int, latency time.Duration) int {
	want := int(float64(sampleRate) * latency.Seconds())
	n := minBufferFrames
	for n < want && n < maxBufferFrames {
		n <<= 1
	}
	return n
}

// Discard accepts and drops frames. It is the headless sink.
type Discard struct {
	frames atomic.Int64
	closed atomic.Bool
}

// NewDiscard creates a Discard sink.
func NewDiscard() *Discard {
	return &Discard{}
}

func (d *Discard) Write(frames []int16) error {
	if d.closed.Load() {
		return ErrClosed
	}
	d.frames.Add(int64(len(frames)))
	return nil
}

func (d *Discard) Close() error {
	d.closed.Store(true)
	return nil
}

// Frames returns the number of frames accepted so far.
func (d *Discard) Frames() int64 {
	return d.frames.Load()
}
