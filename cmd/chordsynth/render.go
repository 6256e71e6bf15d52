package main

import (
	"fmt"

	"github.com/cwbudde/algo-chord/analysis"
	"github.com/cwbudde/algo-chord/engine"
	"github.com/cwbudde/algo-chord/preset"
	"github.com/cwbudde/algo-chord/sink"
	"github.com/spf13/cobra"
)

// chordFlags select what to sound; shared by render and play.
type chordFlags struct {
	notes      string
	chordName  string
	velocity   int
	duration   float64
	maxSeconds float64
	sampleRate int
}

func (f *chordFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.notes, "notes", "C4,E4,G4", "comma-separated notes to play")
	cmd.Flags().StringVar(&f.chordName, "chord", "", "named chord from the preset (overrides --notes)")
	cmd.Flags().IntVar(&f.velocity, "velocity", 100, "MIDI velocity (1-127)")
	cmd.Flags().Float64Var(&f.duration, "duration", 0, "seconds to sound; 0 stops when all voices have decayed")
	cmd.Flags().Float64Var(&f.maxSeconds, "max-duration", 20, "upper bound in seconds when --duration is 0")
	cmd.Flags().IntVar(&f.sampleRate, "sample-rate", 0, "engine sample rate override in Hz")
}

func (f *chordFlags) resolve(p *preset.Preset) ([]int, error) {
	if f.chordName != "" {
		notes, ok := p.Chords[f.chordName]
		if !ok {
			return nil, fmt.Errorf("chord %q not found in preset", f.chordName)
		}
		return notes, nil
	}
	notes, err := preset.ParseNotes(splitNotes([]string{f.notes}))
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, fmt.Errorf("no notes given")
	}
	return notes, nil
}

func (f *chordFlags) apply(cfg *engine.Config) {
	if f.sampleRate > 0 {
		cfg.Params.SampleRate = f.sampleRate
	}
}

// frameLimit returns the number of frames to render and whether rendering
// should stop early once the pool is silent.
func (f *chordFlags) frameLimit(sampleRate int) (int, bool) {
	if f.duration > 0 {
		return max(1, int(f.duration*float64(sampleRate))), false
	}
	return max(1, int(f.maxSeconds*float64(sampleRate))), true
}

var (
	renderFlags      chordFlags
	renderOutput     string
	renderOutputRate int
	renderReport     bool
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a chord to a WAV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPreset()
		if err != nil {
			return err
		}
		notes, err := renderFlags.resolve(p)
		if err != nil {
			return err
		}
		cfg := p.Config
		cfg.Logger = logger
		renderFlags.apply(cfg)

		output := renderOutput
		if output == "" {
			output = p.OutputPath
		}
		if output == "" {
			output = "chord.wav"
		}

		var opts []sink.WAVOption
		if renderOutputRate > 0 {
			opts = append(opts, sink.WithOutputRate(renderOutputRate))
		}
		w, err := sink.NewWAV(output, cfg.Params.SampleRate, opts...)
		if err != nil {
			return err
		}
		e, err := engine.New(cfg, w)
		if err != nil {
			return err
		}

		frames, untilSilent := renderFlags.frameLimit(cfg.Params.SampleRate)
		logger.Info("rendering",
			"notes", notes,
			"velocity", renderFlags.velocity,
			"sample_rate", cfg.Params.SampleRate,
			"output", output,
		)
		rendered, renderErr := renderOffline(e, w, notes, renderFlags.velocity, frames, untilSilent)
		if err := e.Shutdown(); err != nil {
			return fmt.Errorf("write %s: %w", output, err)
		}
		if renderErr != nil {
			return renderErr
		}

		sr := cfg.Params.SampleRate
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d frames, %.3fs at %d Hz)\n",
			output, rendered, float64(rendered)/float64(sr), sr)
		if renderReport {
			r, err := analysis.MeasureWAV(output)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), r)
		}
		return nil
	},
}

func init() {
	renderFlags.register(renderCmd)
	renderCmd.Flags().StringVar(&renderOutput, "output", "", "output WAV path (default from preset, else chord.wav)")
	renderCmd.Flags().IntVar(&renderOutputRate, "output-rate", 0, "resample the file to this rate in Hz")
	renderCmd.Flags().BoolVar(&renderReport, "report", false, "measure the written file and print levels and detected chord")
	rootCmd.AddCommand(renderCmd)
}

// renderOffline drives e buffer by buffer faster than real time and writes
// every buffer to out.
func renderOffline(e *engine.Engine, out sink.Sink, notes []int, velocity int, maxFrames int, untilSilent bool) (int, error) {
	e.PlayChord(notes, velocity)
	buf := make([]int16, e.Config().BufferFrames)
	rendered := 0
	for rendered < maxFrames {
		n := min(len(buf), maxFrames-rendered)
		e.Render(buf[:n])
		if err := out.Write(buf[:n]); err != nil {
			return rendered, err
		}
		rendered += n
		if untilSilent && e.Status().ActiveVoices == 0 {
			break
		}
	}
	return rendered, nil
}
