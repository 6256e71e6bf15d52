// Package otosink plays rendered frames on the default audio device.
package otosink

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cwbudde/algo-chord/sink"
	"github.com/hajimehoshi/oto/v2"
)

// Sink streams frames to the default audio device. Writes go through a
// bounded queue; when the device stops draining it, Write fails with
// sink.ErrTimeout instead of blocking the render loop. When the queue runs
// dry the device is fed silence.
type Sink struct {
	ctx     *oto.Context
	player  oto.Player
	queue   chan []byte
	done    chan struct{}
	timeout time.Duration

	pending []byte
	once    sync.Once
}

// Config configures the device sink.
type Config struct {
	SampleRate int
	// QueueBuffers bounds how many render buffers may wait for the device.
	QueueBuffers int
	// WriteTimeout bounds a single Write.
	WriteTimeout time.Duration
}

var _ sink.Sink = (*Sink)(nil)

// New opens the default output device.
func New(cfg Config) (*Sink, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", cfg.SampleRate)
	}
	ctx, ready, err := oto.NewContext(cfg.SampleRate, 1, oto.FormatSignedInt16LE)
	if err != nil {
		return nil, fmt.Errorf("oto: %w", err)
	}
	<-ready

	s := newSink(cfg)
	s.ctx = ctx
	s.player = ctx.NewPlayer(s)
	s.player.Play()
	return s, nil
}

func newSink(cfg Config) *Sink {
	if cfg.QueueBuffers < 1 {
		cfg.QueueBuffers = 4
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 50 * time.Millisecond
	}
	return &Sink{
		queue:   make(chan []byte, cfg.QueueBuffers),
		done:    make(chan struct{}),
		timeout: cfg.WriteTimeout,
	}
}

func (s *Sink) Write(frames []int16) error {
	select {
	case <-s.done:
		return sink.ErrClosed
	default:
	}
	b := make([]byte, len(frames)*2)
	for i, v := range frames {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(v))
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case <-s.done:
		return sink.ErrClosed
	case s.queue <- b:
		return nil
	case <-timer.C:
		return sink.ErrTimeout
	}
}

// Read implements io.Reader for the oto player.
func (s *Sink) Read(p []byte) (int, error) {
	select {
	case <-s.done:
		return 0, io.EOF
	default:
	}

	n := 0
	for n < len(p) {
		if len(s.pending) == 0 {
			select {
			case b := <-s.queue:
				s.pending = b
			default:
			}
		}
		if len(s.pending) == 0 {
			break
		}
		c := copy(p[n:], s.pending)
		s.pending = s.pending[c:]
		n += c
	}
	// Underrun: keep the device primed with silence.
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

func (s *Sink) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		if s.player != nil {
			err = s.player.Close()
		}
	})
	return err
}
