package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/algo-chord/synth"
)

// Config holds engine settings on top of the synthesis parameters.
type Config struct {
	Params *synth.Params

	// BufferFrames is the render buffer size; its duration sets the loop cadence.
	BufferFrames int
	// WriteRetries is the number of extra attempts for a failed sink write.
	WriteRetries int
	// RetryBackoff is the pause between attempts.
	RetryBackoff time.Duration

	Logger *slog.Logger
}

// NewDefaultConfig creates default engine settings.
func NewDefaultConfig() *Config {
	return &Config{
		Params:       synth.NewDefaultParams(),
		BufferFrames: 256,
		WriteRetries: 2,
		RetryBackoff: 10 * time.Millisecond,
	}
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("nil config")
	}
	if err := c.Params.Validate(); err != nil {
		return err
	}
	if c.BufferFrames < 1 {
		return fmt.Errorf("buffer_frames must be >= 1")
	}
	if c.WriteRetries < 0 {
		return fmt.Errorf("write_retries must be >= 0")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry_backoff must be >= 0")
	}
	return nil
}

// BufferDuration is the wall-clock length of one render buffer.
func (c *Config) BufferDuration() time.Duration {
	return time.Duration(float64(time.Second) * float64(c.BufferFrames) / float64(c.Params.SampleRate))
}
