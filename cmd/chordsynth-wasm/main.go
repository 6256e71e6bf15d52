//go:build js && wasm

package main

import (
	"syscall/js"
	"unsafe"

	"github.com/cwbudde/algo-chord/chord"
	"github.com/cwbudde/algo-chord/engine"
	"github.com/cwbudde/algo-chord/session"
)

const maxBlock = 128

var (
	globalEngine  *engine.Engine
	globalSession *session.Session
	outputBuffer  []int16
)

func main() {
	c := make(chan struct{})

	js.Global().Set("chordInit", js.FuncOf(chordInit))
	js.Global().Set("chordNoteOn", js.FuncOf(chordNoteOn))
	js.Global().Set("chordNoteOff", js.FuncOf(chordNoteOff))
	js.Global().Set("chordAllNotesOff", js.FuncOf(chordAllNotesOff))
	js.Global().Set("chordProcessBlock", js.FuncOf(chordProcessBlock))
	js.Global().Set("chordCurrent", js.FuncOf(chordCurrent))
	js.Global().Set("chordAnalyze", js.FuncOf(chordAnalyze))
	js.Global().Set("chordGetMemoryBuffer", js.FuncOf(chordGetMemoryBuffer))

	println("WASM chord synth loaded")
	<-c
}

// chordInit(sampleRate) builds the engine. The page pulls audio through
// chordProcessBlock, so the render loop is never started.
func chordInit(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	cfg := engine.NewDefaultConfig()
	cfg.Params.SampleRate = args[0].Int()
	cfg.BufferFrames = maxBlock

	e, err := engine.New(cfg, nil)
	if err != nil {
		println("chord synth init failed:", err.Error())
		return nil
	}
	globalEngine = e
	globalSession = session.New(e, session.Options{})
	outputBuffer = make([]int16, maxBlock)

	println("Chord synth initialized at", cfg.Params.SampleRate, "Hz")
	return nil
}

func chordNoteOn(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || globalSession == nil {
		return nil
	}
	globalSession.NoteOn(args[0].Int(), args[1].Int())
	return resultToJS(globalSession.Chord())
}

func chordNoteOff(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalSession == nil {
		return nil
	}
	globalSession.NoteOff(args[0].Int())
	return resultToJS(globalSession.Chord())
}

func chordAllNotesOff(this js.Value, args []js.Value) interface{} {
	if globalSession == nil {
		return nil
	}
	globalSession.AllNotesOff()
	return resultToJS(globalSession.Chord())
}

// chordProcessBlock(n) renders up to 128 frames and returns a pointer to the
// int16 samples in linear memory.
func chordProcessBlock(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalEngine == nil {
		return 0
	}
	numFrames := args[0].Int()
	if numFrames > maxBlock {
		numFrames = maxBlock
	}
	if numFrames < 1 {
		return 0
	}

	globalEngine.Render(outputBuffer[:numFrames])

	ptr := &outputBuffer[0]
	return js.ValueOf(uintptr(unsafe.Pointer(ptr)))
}

func chordCurrent(this js.Value, args []js.Value) interface{} {
	if globalSession == nil {
		return resultToJS(chord.Analyze(nil))
	}
	return resultToJS(globalSession.Chord())
}

// chordAnalyze(notes) names a chord without sounding it.
func chordAnalyze(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return resultToJS(chord.Analyze(nil))
	}
	arr := args[0]
	notes := make([]int, arr.Length())
	for i := range notes {
		notes[i] = arr.Index(i).Int()
	}
	return resultToJS(chord.Analyze(notes))
}

func chordGetMemoryBuffer(this js.Value, args []js.Value) interface{} {
	return js.Global().Get("Go").Get("_inst").Get("exports").Get("mem").Get("buffer")
}

func resultToJS(r chord.Result) interface{} {
	names := make([]interface{}, len(r.Names))
	for i, n := range r.Names {
		names[i] = n
	}
	return map[string]interface{}{
		"label": r.Label,
		"names": names,
	}
}
