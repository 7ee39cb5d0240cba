// Package resonance maintains the per-session emotional state: one pathway
// weight per configured emotion label, decaying over time.
package resonance

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrInvalidLabel is returned for labels outside the configured set.
	ErrInvalidLabel = errors.New("unknown emotion label")
	// ErrInvalidIntensity is returned for event intensities outside [-1,1].
	ErrInvalidIntensity = errors.New("event intensity outside [-1,1]")
	// ErrInvalidState is returned when a restored state does not match the
	// configured label set or carries weights outside [0,1].
	ErrInvalidState = errors.New("state does not match configured profile")
)

// Label configures one emotion pathway.
type Label struct {
	Name     string
	HalfLife time.Duration // 0 means use the profile default
}

// Profile is the immutable construction-time configuration of a store:
// the closed label set (in priority order), the neutral baseline weight,
// and the default decay half-life.
type Profile struct {
	Labels          []Label
	Baseline        float64
	DefaultHalfLife time.Duration
}

// State is an immutable snapshot of all pathway weights plus the timestamp
// of the last update.
type State struct {
	Weights   map[string]float64
	UpdatedAt time.Time
}

// Store holds and evolves the resonance state for one session.
// The internal mutex is the per-session exclusive lock; callers must still
// apply events and decay in chronological order.
type Store struct {
	order    []string // priority order for dominant-emotion tie-breaking
	halfLife map[string]time.Duration

	mu        sync.Mutex
	weights   map[string]float64
	updatedAt time.Time

	logger *zap.Logger
}

// NewStore creates a store with every weight at the profile baseline.
func NewStore(p Profile, logger *zap.Logger) (*Store, error) {
	if len(p.Labels) == 0 {
		return nil, fmt.Errorf("profile has no labels")
	}
	if p.Baseline < 0 || p.Baseline > 1 {
		return nil, fmt.Errorf("baseline %v outside [0,1]", p.Baseline)
	}
	if p.DefaultHalfLife <= 0 {
		return nil, fmt.Errorf("default half-life must be positive")
	}

	s := &Store{
		order:     make([]string, 0, len(p.Labels)),
		halfLife:  make(map[string]time.Duration, len(p.Labels)),
		weights:   make(map[string]float64, len(p.Labels)),
		updatedAt: time.Now(),
		logger:    logger,
	}
	for _, l := range p.Labels {
		if l.Name == "" {
			return nil, fmt.Errorf("label with empty name")
		}
		if _, dup := s.weights[l.Name]; dup {
			return nil, fmt.Errorf("duplicate label %q", l.Name)
		}
		hl := l.HalfLife
		if hl == 0 {
			hl = p.DefaultHalfLife
		}
		if hl < 0 {
			return nil, fmt.Errorf("label %q: negative half-life", l.Name)
		}
		s.order = append(s.order, l.Name)
		s.halfLife[l.Name] = hl
		s.weights[l.Name] = p.Baseline
	}
	return s, nil
}

// Labels returns the configured label set in priority order.
func (s *Store) Labels() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// ApplyEvent adds intensity to one pathway weight, clamped to [0,1],
// and moves the state timestamp to the event time.
func (s *Store) ApplyEvent(label string, intensity float64, at time.Time) error {
	if intensity < -1 || intensity > 1 || math.IsNaN(intensity) {
		return fmt.Errorf("%w: %v", ErrInvalidIntensity, intensity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.weights[label]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}

	s.weights[label] = clamp01(w + intensity)
	// Timestamp is monotonically non-decreasing even if the caller slips.
	if at.After(s.updatedAt) {
		s.updatedAt = at
	}
	s.logger.Debug("event applied",
		zap.String("label", label),
		zap.Float64("intensity", intensity),
		zap.Float64("weight", s.weights[label]))
	return nil
}

// Decay shrinks every weight by the factor exp(-elapsed/halfLife).
// Exponential decay never goes negative, Decay(0) leaves the state
// bit-identical, and Decay(a) followed by Decay(b) equals Decay(a+b).
func (s *Store) Decay(elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range s.order {
		hl := s.halfLife[name]
		s.weights[name] *= math.Exp(-elapsed.Seconds() / hl.Seconds())
	}
}

// Snapshot returns an immutable copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	weights := make(map[string]float64, len(s.weights))
	for k, v := range s.weights {
		weights[k] = v
	}
	return State{Weights: weights, UpdatedAt: s.updatedAt}
}

// Restore replaces the state with a previously snapshotted or decoded one.
// All-or-nothing: the incoming state must carry exactly the configured label
// set with every weight in [0,1], or the store is left untouched.
func (s *Store) Restore(st State) error {
	if len(st.Weights) != len(s.order) {
		return fmt.Errorf("%w: %d labels, want %d", ErrInvalidState, len(st.Weights), len(s.order))
	}
	for _, name := range s.order {
		w, ok := st.Weights[name]
		if !ok {
			return fmt.Errorf("%w: missing label %q", ErrInvalidState, name)
		}
		if w < 0 || w > 1 || math.IsNaN(w) {
			return fmt.Errorf("%w: label %q weight %v outside [0,1]", ErrInvalidState, name, w)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range s.order {
		s.weights[name] = st.Weights[name]
	}
	s.updatedAt = st.UpdatedAt
	return nil
}

// Dominant returns the label with the highest current weight. Ties go to
// the label that appears first in the profile's label order.
func (s *Store) Dominant() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	best := s.order[0]
	for _, name := range s.order[1:] {
		if s.weights[name] > s.weights[best] {
			best = name
		}
	}
	return best
}

// Weight returns the current weight of one label.
func (s *Store) Weight(label string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.weights[label]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	return w, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
