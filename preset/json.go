package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cwbudde/algo-chord/engine"
	"github.com/cwbudde/algo-chord/pitch"
)

// File is the JSON schema for synth presets.
type File struct {
	SampleRate     *int                `json:"sample_rate"`
	MaxPolyphony   *int                `json:"max_polyphony"`
	DecayFactor    *float64            `json:"decay_factor"`
	DecaySeconds   *float64            `json:"decay_seconds"`
	Cutoff         *float64            `json:"cutoff"`
	MasterGain     *float64            `json:"master_gain"`
	ClipLevel      *float64            `json:"clip_level"`
	Harmonics      []float64           `json:"harmonics"`
	BufferFrames   *int                `json:"buffer_frames"`
	WriteRetries   *int                `json:"write_retries"`
	RetryBackoffMS *int                `json:"retry_backoff_ms"`
	OutputWavPath  string              `json:"output_wav_path"`
	Chords         map[string][]string `json:"chords"`
}

// Preset is a resolved preset: engine settings plus named chords.
type Preset struct {
	Config     *engine.Config
	OutputPath string
	// Chords maps a name to pitches, lowest first.
	Chords map[string][]int
}

// Default returns a preset holding default engine settings and no chords.
func Default() *Preset {
	return &Preset{
		Config: engine.NewDefaultConfig(),
		Chords: make(map[string][]int),
	}
}

// LoadJSON loads a preset JSON file and applies it on top of defaults.
func LoadJSON(path string) (*Preset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}

	p := Default()
	if err := ApplyFile(p, &f); err != nil {
		return nil, err
	}

	if p.OutputPath != "" && !filepath.IsAbs(p.OutputPath) {
		base := filepath.Dir(path)
		p.OutputPath = filepath.Clean(filepath.Join(base, p.OutputPath))
	}
	return p, nil
}

// ApplyFile applies a parsed preset file onto an existing preset.
func ApplyFile(dst *Preset, f *File) error {
	if dst == nil || dst.Config == nil || dst.Config.Params == nil {
		return fmt.Errorf("nil destination preset")
	}
	if f == nil {
		return nil
	}
	cfg := dst.Config
	sp := cfg.Params

	if f.SampleRate != nil {
		if *f.SampleRate <= 0 {
			return fmt.Errorf("sample_rate must be > 0")
		}
		sp.SampleRate = *f.SampleRate
	}
	if f.MaxPolyphony != nil {
		if *f.MaxPolyphony < 1 {
			return fmt.Errorf("max_polyphony must be >= 1")
		}
		sp.MaxPolyphony = *f.MaxPolyphony
	}
	if f.DecayFactor != nil {
		if *f.DecayFactor <= 0 || *f.DecayFactor >= 1 {
			return fmt.Errorf("decay_factor must be in (0,1)")
		}
		sp.DecayFactor = *f.DecayFactor
	}
	if f.DecaySeconds != nil {
		if *f.DecaySeconds < 0 {
			return fmt.Errorf("decay_seconds must be >= 0")
		}
		sp.DecaySeconds = *f.DecaySeconds
	}
	if f.Cutoff != nil {
		if *f.Cutoff <= 0 || *f.Cutoff >= 1 {
			return fmt.Errorf("cutoff must be in (0,1)")
		}
		sp.Cutoff = *f.Cutoff
	}
	if f.MasterGain != nil {
		if *f.MasterGain <= 0 {
			return fmt.Errorf("master_gain must be > 0")
		}
		sp.MasterGain = *f.MasterGain
	}
	if f.ClipLevel != nil {
		if *f.ClipLevel <= 0 || *f.ClipLevel > 1 {
			return fmt.Errorf("clip_level must be in (0,1]")
		}
		sp.ClipLevel = *f.ClipLevel
	}
	if f.Harmonics != nil {
		if len(f.Harmonics) == 0 {
			return fmt.Errorf("harmonics must not be empty")
		}
		for i, w := range f.Harmonics {
			if w < 0 {
				return fmt.Errorf("harmonics[%d] must be >= 0", i)
			}
		}
		sp.Harmonics = append([]float64(nil), f.Harmonics...)
	}
	if f.BufferFrames != nil {
		if *f.BufferFrames < 1 {
			return fmt.Errorf("buffer_frames must be >= 1")
		}
		cfg.BufferFrames = *f.BufferFrames
	}
	if f.WriteRetries != nil {
		if *f.WriteRetries < 0 {
			return fmt.Errorf("write_retries must be >= 0")
		}
		cfg.WriteRetries = *f.WriteRetries
	}
	if f.RetryBackoffMS != nil {
		if *f.RetryBackoffMS < 0 {
			return fmt.Errorf("retry_backoff_ms must be >= 0")
		}
		cfg.RetryBackoff = time.Duration(*f.RetryBackoffMS) * time.Millisecond
	}
	if f.OutputWavPath != "" {
		dst.OutputPath = strings.TrimSpace(f.OutputWavPath)
	}

	if len(f.Chords) > 0 {
		if dst.Chords == nil {
			dst.Chords = make(map[string][]int)
		}
		names := make([]string, 0, len(f.Chords))
		for k := range f.Chords {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, name := range names {
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("chords: empty chord name")
			}
			notes, err := ParseNotes(f.Chords[name])
			if err != nil {
				return fmt.Errorf("chords[%q]: %w", name, err)
			}
			if len(notes) == 0 {
				return fmt.Errorf("chords[%q] must not be empty", name)
			}
			dst.Chords[name] = notes
		}
	}
	return cfg.Validate()
}

// ParseNotes parses note names or numbers ("C4", "Eb4", "67") into pitches,
// lowest first.
func ParseNotes(names []string) ([]int, error) {
	out := make([]int, 0, len(names))
	for _, n := range names {
		p, err := pitch.Parse(n)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sort.Ints(out)
	return out, nil
}
