package lifecycle

import (
	"sync"

	"github.com/mern-testing/server/internal/ephemeral"
)

type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseConnecting   Phase = "connecting"
	PhaseConnected    Phase = "connected"
	PhaseListening    Phase = "listening"
	PhaseShuttingDown Phase = "shutting_down"
	PhaseFailing      Phase = "failing"
	PhaseStopped      Phase = "stopped"
)

var allPhases = []string{
	string(PhaseIdle),
	string(PhaseConnecting),
	string(PhaseConnected),
	string(PhaseListening),
	string(PhaseShuttingDown),
	string(PhaseFailing),
	string(PhaseStopped),
}

// State records the resources currently owned by the orchestrator.
//
// The take methods hand ownership to the caller and clear the field, so a resource is
// released at most once.
type State struct {
	mu        sync.Mutex
	phase     Phase
	database  Database
	ephemeral ephemeral.Instance
	listener  Listener
}

func newState() *State {
	return &State{phase: PhaseIdle}
}

func (s *State) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *State) setPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
}

func (s *State) Database() Database {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.database
}

func (s *State) HasEphemeral() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ephemeral != nil
}

func (s *State) Listener() Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener
}

func (s *State) setDatabase(db Database) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.database = db
}

func (s *State) setEphemeral(i ephemeral.Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ephemeral = i
}

func (s *State) setListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

func (s *State) takeDatabase() Database {
	s.mu.Lock()
	defer s.mu.Unlock()
	db := s.database
	s.database = nil
	return db
}

func (s *State) takeEphemeral() ephemeral.Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.ephemeral
	s.ephemeral = nil
	return i
}

func (s *State) takeListener() Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.listener
	s.listener = nil
	return l
}
