// Package httpapi exposes a session over HTTP.
package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-chord/chord"
	"github.com/cwbudde/algo-chord/engine"
	"github.com/cwbudde/algo-chord/midi"
	"github.com/cwbudde/algo-chord/pitch"
	"github.com/cwbudde/algo-chord/preset"
	"github.com/cwbudde/algo-chord/session"
	"github.com/cwbudde/algo-chord/synth"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

const (
	defaultVelocity = 100
	maxBodyBytes    = 1 << 16
)

// StatusSource reports engine health. *engine.Engine satisfies it.
type StatusSource interface {
	Status() engine.Status
	Voices() []synth.VoiceInfo
}

// Server routes HTTP requests to a session.
type Server struct {
	session *session.Session
	status  StatusSource
	log     *slog.Logger
}

// ChordState is the response for every endpoint that changes or reads the
// held set.
type ChordState struct {
	Held  []int        `json:"held"`
	Chord chord.Result `json:"chord"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Engine engine.Status     `json:"engine"`
	Voices []synth.VoiceInfo `json:"voices"`
	Held   []int             `json:"held"`
}

// MIDIResponse is the body of POST /midi.
type MIDIResponse struct {
	Kind    string     `json:"kind"`
	Applied bool       `json:"applied"`
	State   ChordState `json:"state"`
}

type chordRequest struct {
	Notes    []string `json:"notes"`
	Velocity *int     `json:"velocity"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New creates a server. logger may be nil.
func New(s *session.Session, status StatusSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{session: s, status: status, log: logger}
}

// Router returns the route table without CORS handling.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter().StrictSlash(true)
	r.HandleFunc("/notes/off", s.handleAllNotesOff).Methods(http.MethodPost)
	r.HandleFunc("/notes/{pitch}/on", s.handleNoteOn).Methods(http.MethodPost)
	r.HandleFunc("/notes/{pitch}/off", s.handleNoteOff).Methods(http.MethodPost)
	r.HandleFunc("/chord", s.handlePlayChord).Methods(http.MethodPost)
	r.HandleFunc("/chord", s.handleGetChord).Methods(http.MethodGet)
	r.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/midi", s.handleMIDI).Methods(http.MethodPost)
	r.Use(s.logRequests)
	return r
}

// Handler wraps the router with CORS for the given origins ("*" for any).
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.Router())
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug("http: request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) state() ChordState {
	return ChordState{Held: s.session.Held(), Chord: s.session.Chord()}
}

func (s *Server) handleNoteOn(w http.ResponseWriter, r *http.Request) {
	p, err := pitch.Parse(mux.Vars(r)["pitch"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	velocity := defaultVelocity
	if v := r.URL.Query().Get("velocity"); v != "" {
		velocity, err = strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid velocity %q", v))
			return
		}
	}
	s.session.NoteOn(p, velocity)
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleNoteOff(w http.ResponseWriter, r *http.Request) {
	p, err := pitch.Parse(mux.Vars(r)["pitch"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.session.NoteOff(p)
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleAllNotesOff(w http.ResponseWriter, r *http.Request) {
	s.session.AllNotesOff()
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handlePlayChord(w http.ResponseWriter, r *http.Request) {
	var req chordRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	notes, err := preset.ParseNotes(req.Notes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(notes) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("notes must not be empty"))
		return
	}
	velocity := defaultVelocity
	if req.Velocity != nil {
		velocity = *req.Velocity
	}
	s.session.PlayChord(notes, velocity)
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleGetChord(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("notes")
	var names []string
	for _, n := range strings.Split(raw, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	notes, err := preset.ParseNotes(names)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, chord.Analyze(notes))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Held: s.session.Held(), Voices: []synth.VoiceInfo{}}
	if s.status != nil {
		resp.Engine = s.status.Status()
		resp.Voices = s.status.Voices()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMIDI(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	text := strings.ReplaceAll(strings.TrimSpace(string(body)), " ", "")
	raw, err := hex.DecodeString(text)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid hex: %w", err))
		return
	}
	ev, applied := midi.Handle(raw, s.session)
	if ev.Kind == 0 {
		writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("unsupported midi message % X", raw))
		return
	}
	writeJSON(w, http.StatusOK, MIDIResponse{Kind: ev.Kind.String(), Applied: applied, State: s.state()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}
