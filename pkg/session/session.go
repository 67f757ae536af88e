package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dtnitsch/llm-report-pipeline/models"
	"github.com/google/uuid"
)

// State is the data a session carries between runs.
type State struct {
	ID        string    `json:"id" yaml:"id"`
	Created   time.Time `json:"created" yaml:"created"`
	Updated   time.Time `json:"updated" yaml:"updated"`
	RunCount  int       `json:"run_count" yaml:"run_count"`
	LastRunID string    `json:"last_run_id,omitempty" yaml:"last_run_id,omitempty"`
	LastKind  string    `json:"last_kind,omitempty" yaml:"last_kind,omitempty"`
	LastState string    `json:"last_state,omitempty" yaml:"last_state,omitempty"`
	LastError string    `json:"last_error,omitempty" yaml:"last_error,omitempty"`

	// Inputs are the most recent form fields, used to prefill the next run.
	Inputs      map[string]string         `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Scrape      *models.ScrapeResult      `json:"scrape,omitempty" yaml:"scrape,omitempty"`
	Analysis    *models.AnalysisBundle    `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	Generations []models.GenerationResult `json:"generations,omitempty" yaml:"generations,omitempty"`
	Artifacts   []string                  `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
}

// Session is the cross-run state of one user. It is passed by reference into
// the pipeline; nothing else survives between runs.
type Session struct {
	mu    sync.Mutex
	state State
}

// GenerateSessionID creates a timestamp-first session ID.
// Format: YYYY-MM-DDTHH-MM-{12 hex chars}
func GenerateSessionID(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s-%s", now.Format("2006-01-02T15-04"), id[:12])
}

func New() *Session {
	now := time.Now()
	return &Session{state: State{ID: GenerateSessionID(now), Created: now, Updated: now}}
}

// FromState restores a session loaded from a store.
func FromState(st State) *Session {
	return &Session{state: st}
}

func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ID
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state
	if s.state.Inputs != nil {
		st.Inputs = make(map[string]string, len(s.state.Inputs))
		for k, v := range s.state.Inputs {
			st.Inputs[k] = v
		}
	}
	st.Generations = append([]models.GenerationResult(nil), s.state.Generations...)
	st.Artifacts = append([]string(nil), s.state.Artifacts...)
	return st
}

// Inputs returns the fields of the last run.
func (s *Session) Inputs() map[string]string {
	return s.Snapshot().Inputs
}

// StartRun records the start of a run. Results of the previous run are
// cleared; inputs are replaced.
func (s *Session) StartRun(runID, kind string, inputs map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.RunCount++
	s.state.LastRunID = runID
	s.state.LastKind = kind
	s.state.LastState = ""
	s.state.LastError = ""
	s.state.Scrape = nil
	s.state.Analysis = nil
	s.state.Generations = nil
	s.state.Artifacts = nil
	s.state.Inputs = make(map[string]string, len(inputs))
	for k, v := range inputs {
		s.state.Inputs[k] = v
	}
	s.state.Updated = time.Now()
}

// Update applies fn to the state under the session lock.
func (s *Session) Update(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	s.state.Updated = time.Now()
}
