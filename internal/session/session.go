// Package session tracks per-browser workbench state: the active experiment,
// the assembly canvas, and the two chat transcripts.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chembench/server/internal/canvas"
	"github.com/chembench/server/internal/geo"
	"github.com/chembench/server/pkg/lab"
)

// Session holds the state of one connected workbench.
type Session struct {
	ID        string
	CreatedAt time.Time
	Canvas    *canvas.Store

	mu         sync.RWMutex
	language   lab.Language
	role       lab.Role
	experiment *lab.Experiment
	loadKey    string
	lastActive time.Time

	labChat     []lab.ChatMessage
	generalChat []lab.ChatMessage
}

func newSession(id string, lang lab.Language, role lab.Role, opts ...canvas.Option) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:         id,
		CreatedAt:  now,
		Canvas:     canvas.New(opts...),
		language:   lang,
		role:       role,
		lastActive: now,
	}
}

// Language returns the session language.
func (s *Session) Language() lab.Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.language
}

// Role returns the session role.
func (s *Session) Role() lab.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// SetLanguage updates the session language.
func (s *Session) SetLanguage(lang lab.Language) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = lang
}

// Touch marks the session as recently used.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now().UTC()
}

// LastActive returns the time of the last session use.
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

// SetExperiment installs a new experiment, seeds the canvas from its initial
// assembly and clears the experiment chat transcript. Each load gets a fresh
// seeding key so a repeated experiment still reseeds the canvas.
func (s *Session) SetExperiment(exp *lab.Experiment, size geo.CanvasSize) {
	s.mu.Lock()
	s.experiment = exp
	s.loadKey = uuid.NewString()
	key := s.loadKey
	s.labChat = nil
	s.mu.Unlock()

	s.Canvas.Initialize(key, exp.InitialAssembly, size)
}

// ReseedCanvas re-runs canvas seeding for the current experiment, typically
// after the client reports its measured canvas size. The seeding key is
// unchanged, so a canvas that already has items keeps them.
func (s *Session) ReseedCanvas(size geo.CanvasSize) {
	s.mu.RLock()
	exp, key := s.experiment, s.loadKey
	s.mu.RUnlock()

	if exp == nil {
		return
	}
	s.Canvas.Initialize(key, exp.InitialAssembly, size)
}

// ResetCanvas discards all placements and re-seeds the canvas from the
// current experiment's initial assembly. Without an experiment the canvas
// simply ends up empty.
func (s *Session) ResetCanvas(size geo.CanvasSize) {
	s.mu.RLock()
	exp := s.experiment
	s.mu.RUnlock()

	var seed []lab.SeedPlacement
	if exp != nil {
		seed = exp.InitialAssembly
	}
	s.Canvas.Reset(seed, size)
}

// Experiment returns the active experiment, or nil.
func (s *Session) Experiment() *lab.Experiment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.experiment
}

// ExperimentTitle returns the active experiment title, or the empty string.
func (s *Session) ExperimentTitle() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.experiment == nil {
		return ""
	}
	return s.experiment.Title
}

// ExperimentContext builds the compact experiment summary used to prime the
// lab assistant. Returns the empty string when no experiment is loaded.
func (s *Session) ExperimentContext() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.experiment == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Experiment: %s\n", s.experiment.Title)
	fmt.Fprintf(&b, "Objective: %s\n", s.experiment.Objective)
	if len(s.experiment.Equipment) > 0 {
		fmt.Fprintf(&b, "Equipment: %s\n", strings.Join(s.experiment.Equipment, ", "))
	}
	if len(s.experiment.Steps) > 0 {
		b.WriteString("Steps:\n")
		for i, step := range s.experiment.Steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
	}
	return b.String()
}

// AppendLabChat records one experiment-assistant exchange turn.
func (s *Session) AppendLabChat(msg lab.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labChat = append(s.labChat, msg)
}

// LabChat returns a snapshot of the experiment-assistant transcript.
func (s *Session) LabChat() []lab.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]lab.ChatMessage, len(s.labChat))
	copy(msgs, s.labChat)
	return msgs
}

// AppendGeneralChat records one general-tutor exchange turn.
func (s *Session) AppendGeneralChat(msg lab.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generalChat = append(s.generalChat, msg)
}

// GeneralChat returns a snapshot of the general-tutor transcript.
func (s *Session) GeneralChat() []lab.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]lab.ChatMessage, len(s.generalChat))
	copy(msgs, s.generalChat)
	return msgs
}
