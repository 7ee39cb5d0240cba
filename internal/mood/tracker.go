// Package mood aggregates the resonance state into a single long-term mood
// score. Where pathway weights react to individual events, the mood score
// moves slowly and relaxes toward a neutral midpoint between interactions.
package mood

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/nidhogg/virem/internal/resonance"
	"go.uber.org/zap"
)

// Neutral is the resting mood score.
const Neutral = 0.5

// maxAdjust bounds how far a single interaction can move the score.
const maxAdjust = 0.1

// Band names a mood range: the band applies when the score is >= Min.
type Band struct {
	Name string
	Min  float64
}

// Options configures a tracker.
type Options struct {
	// HalfLife controls how fast the score relaxes toward Neutral.
	HalfLife time.Duration
	// Gain scales net emotional impact into score adjustment.
	Gain float64
	// Positive and Negative partition labels by valence; labels in neither
	// set do not move the mood.
	Positive []string
	Negative []string
	// Bands resolve a score to a name. Sorted internally by Min descending.
	Bands []Band
}

// Tracker holds the mood score for one session.
type Tracker struct {
	halfLife time.Duration
	gain     float64
	positive map[string]struct{}
	negative map[string]struct{}
	bands    []Band

	mu        sync.Mutex
	score     float64
	updatedAt time.Time

	logger *zap.Logger
}

// NewTracker creates a tracker at the neutral score.
func NewTracker(opts Options, logger *zap.Logger) *Tracker {
	t := &Tracker{
		halfLife:  opts.HalfLife,
		gain:      opts.Gain,
		positive:  make(map[string]struct{}, len(opts.Positive)),
		negative:  make(map[string]struct{}, len(opts.Negative)),
		bands:     append([]Band(nil), opts.Bands...),
		score:     Neutral,
		updatedAt: time.Now(),
		logger:    logger,
	}
	if t.halfLife <= 0 {
		t.halfLife = 10 * time.Minute
	}
	if t.gain == 0 {
		t.gain = 0.05
	}
	for _, l := range opts.Positive {
		t.positive[l] = struct{}{}
	}
	for _, l := range opts.Negative {
		t.negative[l] = struct{}{}
	}
	sort.Slice(t.bands, func(i, j int) bool { return t.bands[i].Min > t.bands[j].Min })
	return t
}

// Update relaxes the score toward neutral for the elapsed time, then applies
// the valence-weighted impact of the given resonance snapshot.
func (t *Tracker) Update(snap resonance.State, intensity float64, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if elapsed := now.Sub(t.updatedAt); elapsed > 0 {
		t.score += (Neutral - t.score) * (1 - math.Exp(-elapsed.Seconds()/t.halfLife.Seconds()))
	}
	if now.After(t.updatedAt) {
		t.updatedAt = now
	}

	var net float64
	for label, w := range snap.Weights {
		if _, ok := t.positive[label]; ok {
			net += w
		}
		if _, ok := t.negative[label]; ok {
			net -= w
		}
	}

	adjust := net * intensity * t.gain
	if adjust > maxAdjust {
		adjust = maxAdjust
	}
	if adjust < -maxAdjust {
		adjust = -maxAdjust
	}
	t.score = clamp01(t.score + adjust)

	t.logger.Debug("mood updated",
		zap.Float64("net", net),
		zap.Float64("score", t.score))
}

// Score returns the current raw mood score.
func (t *Tracker) Score() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.score
}

// Band resolves the current score to the highest band it clears.
func (t *Tracker) Band() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, b := range t.bands {
		if t.score >= b.Min {
			return b.Name
		}
	}
	return "neutral"
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
