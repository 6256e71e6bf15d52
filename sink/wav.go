package sink

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// WAV collects frames in memory and writes a 16-bit mono WAV file on Close.
type WAV struct {
	path       string
	sampleRate int
	outputRate int

	mu      sync.Mutex
	samples []float64
	closed  bool
}

// WAVOption configures a WAV sink.
type WAVOption func(*WAV)

// WithOutputRate resamples to rate before encoding.
func WithOutputRate(rate int) WAVOption {
	return func(w *WAV) {
		if rate > 0 {
			w.outputRate = rate
		}
	}
}

// NewWAV creates a WAV sink that writes to path.
func NewWAV(path string, sampleRate int, opts ...WAVOption) (*WAV, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	w := &WAV{
		path:       path,
		sampleRate: sampleRate,
		outputRate: sampleRate,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *WAV) Write(frames []int16) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	for _, s := range frames {
		w.samples = append(w.samples, float64(s)/math.MaxInt16)
	}
	return nil
}

// Frames returns the number of frames collected at the engine rate.
func (w *WAV) Frames() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.samples)
}

// Close encodes the collected frames. Subsequent calls are no-ops.
func (w *WAV) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	data, err := resampleIfNeeded(w.samples, w.sampleRate, w.outputRate)
	if err != nil {
		return fmt.Errorf("resample %d->%d: %w", w.sampleRate, w.outputRate, err)
	}
	return writeMonoWAV(w.path, data, w.outputRate)
}

func resampleIfNeeded(in []float64, fromRate int, toRate int) ([]float64, error) {
	if fromRate == toRate || len(in) == 0 {
		return in, nil
	}
	r, err := dspresample.NewForRates(
		float64(fromRate),
		float64(toRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, err
	}
	return r.Process(in), nil
}

func writeMonoWAV(path string, data []float64, sampleRate int) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	samples := make([]float32, len(data))
	for i, s := range data {
		samples[i] = float32(s)
	}
	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: 1,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}
