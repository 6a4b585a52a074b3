package jobs

import (
	"errors"
	"fmt"
	"sync"

	"transcriber-desk/internal/domain"
)

// ErrJobAlreadyRunning is returned when starting a second in-flight job.
var ErrJobAlreadyRunning = errors.New("job already running")

// ErrNotIdle is returned when starting from a terminal phase without a reset.
var ErrNotIdle = errors.New("workflow is not idle")

// ErrStaleJob is returned when a completion belongs to a superseded generation.
var ErrStaleJob = errors.New("stale job generation")

// Manager tracks the single allowed upload job and its phase transitions.
// Every Start and Reset bumps the generation so late completions can be
// told apart from the current job.
type Manager struct {
	mu         sync.RWMutex
	current    domain.Job
	generation uint64
}

// NewManager creates a manager in idle phase.
func NewManager() *Manager {
	return &Manager{
		current: domain.Job{Phase: domain.PhaseIdle},
	}
}

// Start creates a new job in submitting phase and returns its snapshot.
func (m *Manager) Start(jobID string, file domain.AudioFile, model string) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.current.Phase {
	case domain.PhaseIdle:
	case domain.PhaseSubmitting:
		return domain.Job{}, ErrJobAlreadyRunning
	default:
		return domain.Job{}, ErrNotIdle
	}

	m.generation++
	m.current = domain.Job{
		ID:         jobID,
		Phase:      domain.PhaseSubmitting,
		File:       file,
		Model:      model,
		Generation: m.generation,
	}
	return m.current, nil
}

// Finish moves the job stamped with generation to a terminal phase.
func (m *Manager) Finish(generation uint64, phase domain.Phase) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if generation != m.generation || m.current.Phase != domain.PhaseSubmitting {
		return ErrStaleJob
	}
	if !isTerminal(phase) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Phase, phase)
	}

	m.current.Phase = phase
	return nil
}

// Current returns a snapshot of the current job.
func (m *Manager) Current() domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// IsCurrent reports whether generation still identifies the current job.
func (m *Manager) IsCurrent(generation uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return generation == m.generation
}

// Reset abandons the current job, bumps the generation and returns to idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.current = domain.Job{Phase: domain.PhaseIdle, Generation: m.generation}
}

// IsRunning reports whether a request is in flight.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Phase == domain.PhaseSubmitting
}

// isTerminal reports whether a submitting job may finish in phase.
func isTerminal(phase domain.Phase) bool {
	return phase == domain.PhaseSucceeded || phase == domain.PhaseFailed
}
