// Package session runs one presence session: it feeds observed text through
// the lexicon into the resonance store, keeps the aggregate mood, journals
// every interaction, and moves sealed state through the configured sink.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nidhogg/virem/internal/config"
	"github.com/nidhogg/virem/internal/emotion"
	"github.com/nidhogg/virem/internal/journal"
	"github.com/nidhogg/virem/internal/mood"
	"github.com/nidhogg/virem/internal/resonance"
	"github.com/nidhogg/virem/internal/sink"
	"github.com/nidhogg/virem/internal/vault"
)

// Observation is the result of one observed input.
type Observation struct {
	Events   []emotion.Event
	Dominant string
	Weights  map[string]float64
	Mood     float64
	Band     string
}

// Session owns the per-session emotional state and its persistence.
type Session struct {
	id         string
	persistent bool

	store   *resonance.Store
	tracker *mood.Tracker
	lexicon *emotion.Lexicon
	codec   *vault.Codec
	sink    sink.Sink
	journal *journal.Journal
	key     []byte

	mu       sync.Mutex
	lastTick time.Time

	logger *zap.Logger
}

// New builds a session from config. The id names the sealed record in the
// sink; pass "" to get a fresh random id. In persistent mode an existing
// record for the id is loaded, and a missing record starts from baseline.
func New(ctx context.Context, cfg *config.Config, id string, snk sink.Sink, key []byte, logger *zap.Logger) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}

	labels := make([]resonance.Label, 0, len(cfg.Emotions.Labels))
	for _, l := range cfg.Emotions.Labels {
		labels = append(labels, resonance.Label{
			Name:     l.Name,
			HalfLife: time.Duration(l.HalfLifeSec * float64(time.Second)),
		})
	}
	store, err := resonance.NewStore(resonance.Profile{
		Labels:          labels,
		Baseline:        cfg.Emotions.Baseline,
		DefaultHalfLife: time.Duration(cfg.Emotions.DefaultHalfLifeSec * float64(time.Second)),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("resonance store: %w", err)
	}

	bands := make([]mood.Band, 0, len(cfg.Mood.Bands))
	for name, min := range cfg.Mood.Bands {
		bands = append(bands, mood.Band{Name: name, Min: min})
	}
	tracker := mood.NewTracker(mood.Options{
		HalfLife: time.Duration(cfg.Mood.HalfLifeSec * float64(time.Second)),
		Gain:     cfg.Mood.Gain,
		Positive: cfg.Mood.Positive,
		Negative: cfg.Mood.Negative,
		Bands:    bands,
	}, logger)

	rules := make([]emotion.Rule, 0, len(cfg.Lexicon))
	for _, r := range cfg.Lexicon {
		rules = append(rules, emotion.Rule{Keyword: r.Keyword, Label: r.Label, Intensity: r.Intensity})
	}
	lexicon, err := emotion.NewLexicon(rules)
	if err != nil {
		return nil, fmt.Errorf("lexicon: %w", err)
	}

	codec, err := vault.NewCodec(store.Labels())
	if err != nil {
		return nil, fmt.Errorf("vault codec: %w", err)
	}

	s := &Session{
		id:         id,
		persistent: cfg.Session.Mode == "persistent",
		store:      store,
		tracker:    tracker,
		lexicon:    lexicon,
		codec:      codec,
		sink:       snk,
		key:        key,
		lastTick:   time.Now(),
		logger:     logger,
	}

	if cfg.Session.JournalPath != "" {
		j, err := journal.Open(cfg.Session.JournalPath, logger)
		if err != nil {
			return nil, err
		}
		s.journal = j
	}

	if s.persistent {
		switch err := s.Load(ctx); {
		case err == nil:
			logger.Info("session state restored", zap.String("session", id))
		case errors.Is(err, sink.ErrNotFound):
			logger.Info("no stored state, starting from baseline", zap.String("session", id))
		default:
			if s.journal != nil {
				s.journal.Close()
			}
			return nil, err
		}
	}

	logger.Info("session started",
		zap.String("session", id),
		zap.Bool("persistent", s.persistent))
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Observe decays the state for the wall-clock time since the last tick,
// applies every lexicon match in the text, updates the mood, and journals
// the resulting snapshot.
func (s *Session) Observe(ctx context.Context, text string, now time.Time) (Observation, error) {
	s.tick(now)

	events := s.lexicon.Match(text)
	for _, e := range events {
		if err := s.store.ApplyEvent(e.Label, e.Intensity, now); err != nil {
			return Observation{}, fmt.Errorf("apply event: %w", err)
		}
	}

	snap := s.store.Snapshot()
	var peak float64
	for _, e := range events {
		if a := e.Intensity; a < 0 {
			a = -a
			if a > peak {
				peak = a
			}
		} else if a > peak {
			peak = a
		}
	}
	s.tracker.Update(snap, peak, now)

	obs := Observation{
		Events:   events,
		Dominant: s.store.Dominant(),
		Weights:  snap.Weights,
		Mood:     s.tracker.Score(),
		Band:     s.tracker.Band(),
	}

	if s.journal != nil {
		entry := journal.Entry{
			Timestamp: now,
			Session:   s.id,
			Weights:   snap.Weights,
			Mood:      obs.Mood,
			Band:      obs.Band,
		}
		if err := s.journal.Append(entry); err != nil {
			return Observation{}, err
		}
	}
	return obs, nil
}

// Pulse applies decay for the time since the last tick without any input.
func (s *Session) Pulse(now time.Time) {
	s.tick(now)
}

func (s *Session) tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elapsed := now.Sub(s.lastTick); elapsed > 0 {
		s.store.Decay(elapsed)
		s.lastTick = now
	}
}

// Snapshot returns the current resonance state.
func (s *Session) Snapshot() resonance.State {
	return s.store.Snapshot()
}

// Dominant returns the current dominant emotion label.
func (s *Session) Dominant() string {
	return s.store.Dominant()
}

// Mood returns the current mood score and band.
func (s *Session) Mood() (float64, string) {
	return s.tracker.Score(), s.tracker.Band()
}

// Save seals the current state and writes it to the sink under the session id.
func (s *Session) Save(ctx context.Context) error {
	plaintext, err := s.codec.Serialize(s.store.Snapshot())
	if err != nil {
		return fmt.Errorf("serialize state: %w", err)
	}
	record, err := vault.Encrypt(plaintext, s.key)
	if err != nil {
		return fmt.Errorf("seal state: %w", err)
	}
	if err := s.sink.WriteBytes(ctx, s.id, record); err != nil {
		return fmt.Errorf("store state: %w", err)
	}
	s.logger.Info("session state saved", zap.String("session", s.id))
	return nil
}

// Load reads the sealed record for the session id and restores it.
// All-or-nothing: on any failure the in-memory state is left untouched.
func (s *Session) Load(ctx context.Context) error {
	record, err := s.sink.ReadBytes(ctx, s.id)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	plaintext, err := vault.Decrypt(record, s.key)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	st, err := s.codec.Deserialize(plaintext)
	if err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	if err := s.store.Restore(st); err != nil {
		return fmt.Errorf("restore state: %w", err)
	}

	s.mu.Lock()
	s.lastTick = time.Now()
	s.mu.Unlock()
	return nil
}

// Close ends the session. Persistent sessions save their state first;
// scratch sessions discard it.
func (s *Session) Close(ctx context.Context) error {
	var saveErr error
	if s.persistent {
		saveErr = s.Save(ctx)
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil && saveErr == nil {
			saveErr = err
		}
	}
	s.logger.Info("session closed", zap.String("session", s.id))
	return saveErr
}
