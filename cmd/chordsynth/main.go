package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/cwbudde/algo-chord/preset"
	"github.com/spf13/cobra"
)

var logger = slog.Default()

var (
	debugFlag  bool
	presetPath string
)

var rootCmd = &cobra.Command{
	Use:   "chordsynth",
	Short: "Polyphonic chord synthesizer and chord recognizer",
	Long: `chordsynth renders, plays and names chords.

Notes are given as names (C4, Eb3, F#5) or MIDI numbers (60).`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger(debugFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging (adds source location)")
	rootCmd.PersistentFlags().StringVar(&presetPath, "preset", "", "preset JSON file path")
}

func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

func loadPreset() (*preset.Preset, error) {
	if presetPath == "" {
		return preset.Default(), nil
	}
	p, err := preset.LoadJSON(presetPath)
	if err != nil {
		return nil, fmt.Errorf("load preset %q: %w", presetPath, err)
	}
	logger.Debug("preset loaded", "path", presetPath, "chords", len(p.Chords))
	return p, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
