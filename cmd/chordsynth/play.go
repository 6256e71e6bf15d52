package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwbudde/algo-chord/chord"
	"github.com/cwbudde/algo-chord/engine"
	"github.com/cwbudde/algo-chord/sink"
	"github.com/cwbudde/algo-chord/sink/otosink"
	"github.com/spf13/cobra"
)

var (
	playFlags   chordFlags
	playLatency time.Duration
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a chord on the default audio device",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPreset()
		if err != nil {
			return err
		}
		notes, err := playFlags.resolve(p)
		if err != nil {
			return err
		}
		cfg := p.Config
		cfg.Logger = logger
		playFlags.apply(cfg)
		if playLatency > 0 {
			cfg.BufferFrames = sink.MinBufferFrames(cfg.Params.SampleRate, playLatency)
		}

		out, err := otosink.New(otosink.Config{SampleRate: cfg.Params.SampleRate})
		if err != nil {
			return err
		}
		e, err := engine.New(cfg, out)
		if err != nil {
			_ = out.Close()
			return err
		}
		defer e.Shutdown()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := e.Start(ctx); err != nil {
			return err
		}

		res := chord.Analyze(notes)
		fmt.Fprintf(cmd.OutOrStdout(), "Playing %s (%v)\n", res.Label, res.Names)
		e.PlayChord(notes, playFlags.velocity)

		frames, untilSilent := playFlags.frameLimit(cfg.Params.SampleRate)
		return waitForPlayback(ctx, e, time.Duration(float64(frames)/float64(cfg.Params.SampleRate)*float64(time.Second)), untilSilent)
	},
}

func init() {
	playFlags.register(playCmd)
	playCmd.Flags().DurationVar(&playLatency, "latency", 0, "target buffer latency (e.g. 10ms); sizes the render buffer")
	rootCmd.AddCommand(playCmd)
}

// waitForPlayback blocks until limit elapses, ctx is done, or (untilSilent)
// the pool has emptied after sounding.
func waitForPlayback(ctx context.Context, e *engine.Engine, limit time.Duration, untilSilent bool) error {
	deadline := time.NewTimer(limit)
	defer deadline.Stop()
	poll := time.NewTicker(20 * time.Millisecond)
	defer poll.Stop()

	sounded := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline.C:
			return nil
		case <-poll.C:
			st := e.Status()
			if st.ActiveVoices > 0 {
				sounded = true
			}
			if untilSilent && sounded && st.ActiveVoices == 0 {
				return nil
			}
			if st.Degraded {
				logger.Debug("playback degraded", "last_error", st.LastError, "dropped", st.BuffersDropped)
			}
		}
	}
}
