package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cwbudde/algo-chord/engine"
	"github.com/cwbudde/algo-chord/sink"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestAnalyzeCommand(t *testing.T) {
	out, err := runCLI(t, "analyze", "G4", "E4", "C5")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.HasPrefix(out, "CMaj (1st inversion)\tE4 G4 C5") {
		t.Fatalf("unexpected output: %q", out)
	}

	out, err = runCLI(t, "analyze", "--json", "A3,C4,E4")
	if err != nil {
		t.Fatalf("analyze --json: %v", err)
	}
	if !strings.Contains(out, `"label": "Am"`) {
		t.Fatalf("unexpected json output: %q", out)
	}
	analyzeJSON = false
}

func TestAnalyzeRejectsBadNote(t *testing.T) {
	if _, err := runCLI(t, "analyze", "C4", "nope"); err == nil {
		t.Fatalf("expected error for invalid note")
	}
}

func TestRenderCommandWritesWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chord.wav")
	out, err := runCLI(t, "render", "--notes", "C4,E4,G4", "--duration", "0.25", "--output", path)
	if err != nil {
		t.Fatalf("render: %v (%s)", err, out)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	// 44-byte header plus 16-bit mono frames.
	want := int64(44 + 2*int(0.25*44100))
	if info.Size() < want-64 || info.Size() > want+64 {
		t.Fatalf("unexpected wav size: got=%d want~%d", info.Size(), want)
	}

	out, err = runCLI(t, "analyze", "--wav", path)
	analyzeWAV = ""
	if err != nil {
		t.Fatalf("analyze --wav: %v", err)
	}
	if !strings.Contains(out, "Chord:    CMaj\tC4 E4 G4") {
		t.Fatalf("unexpected report: %q", out)
	}
}

func TestRenderOfflineStopsWhenSilent(t *testing.T) {
	cfg := engine.NewDefaultConfig()
	cfg.Params.DecaySeconds = 0.05
	d := sink.NewDiscard()
	e, err := engine.New(cfg, d)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	defer e.Shutdown()

	maxFrames := 10 * cfg.Params.SampleRate
	rendered, err := renderOffline(e, d, []int{60, 64, 67}, 100, maxFrames, true)
	if err != nil {
		t.Fatalf("renderOffline: %v", err)
	}
	if rendered >= maxFrames {
		t.Fatalf("expected early stop: got=%d frames", rendered)
	}
	if rendered < int(0.05*float64(cfg.Params.SampleRate)) {
		t.Fatalf("stopped before decay finished: got=%d frames", rendered)
	}
	if d.Frames() != int64(rendered) {
		t.Fatalf("sink frame count mismatch: got=%d want=%d", d.Frames(), rendered)
	}
}
