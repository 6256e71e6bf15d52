package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cwbudde/algo-chord/analysis"
	"github.com/cwbudde/algo-chord/chord"
	"github.com/cwbudde/algo-chord/preset"
	"github.com/spf13/cobra"
)

var (
	analyzeJSON bool
	analyzeWAV  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [note...]",
	Short: "Name the chord formed by the given notes or sounding in a WAV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if analyzeWAV != "" {
			r, err := analysis.MeasureWAV(analyzeWAV)
			if err != nil {
				return err
			}
			if analyzeJSON {
				return writeJSON(out, r)
			}
			printReport(out, r)
			return nil
		}

		if len(args) == 0 {
			return fmt.Errorf("give notes or --wav")
		}
		notes, err := preset.ParseNotes(splitNotes(args))
		if err != nil {
			return err
		}
		res := chord.Analyze(notes)
		if analyzeJSON {
			return writeJSON(out, res)
		}
		fmt.Fprintf(out, "%s\t%s\n", res.Label, strings.Join(res.Names, " "))
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the result as JSON")
	analyzeCmd.Flags().StringVar(&analyzeWAV, "wav", "", "detect the chord in a WAV file instead")
	rootCmd.AddCommand(analyzeCmd)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReport(w io.Writer, r analysis.Report) {
	fmt.Fprintf(w, "Chord:    %s\t%s\n", r.Chord.Label, strings.Join(r.Chord.Names, " "))
	fmt.Fprintf(w, "Length:   %d frames (%.3fs at %d Hz)\n", r.Frames, r.DurationS, r.SampleRate)
	fmt.Fprintf(w, "Level:    peak %.1f dBFS, rms %.1f dBFS, %d clipped\n", r.PeakDBFS, r.RMSDBFS, r.ClippedFrames)
	fmt.Fprintf(w, "Decay:    %.1f dB/s\n", r.DecayDBPerS)
}

// splitNotes accepts both "C4 E4 G4" and "C4,E4,G4".
func splitNotes(args []string) []string {
	var out []string
	for _, a := range args {
		for _, n := range strings.Split(a, ",") {
			if n = strings.TrimSpace(n); n != "" {
				out = append(out, n)
			}
		}
	}
	return out
}
