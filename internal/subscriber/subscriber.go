// Package subscriber is the worker side of parameter broadcast: it follows
// the learner's published snapshots and keeps only the most recent one.
package subscriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"apex-learner/internal/codec"
)

type Stats struct {
	Received  uint64 `json:"received"`
	Malformed uint64 `json:"malformed"`
	// Missed counts publish steps skipped between consecutive snapshots of
	// the same run. Gaps are normal for a lossy broadcast.
	Missed   uint64 `json:"missed"`
	LastStep int64  `json:"last_step"`
}

type Subscriber struct {
	source   Source
	logger   *slog.Logger
	interval int64
	onUpdate func(codec.ParameterSnapshot)

	mu     sync.RWMutex
	latest *codec.ParameterSnapshot

	received  atomic.Uint64
	malformed atomic.Uint64
	missed    atomic.Uint64
}

// New wraps source. interval is the learner's publish interval, used only to
// count missed snapshots; zero disables that accounting.
func New(source Source, interval int64, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		source:   source,
		interval: interval,
		logger:   logger.With("component", "subscriber"),
	}
}

// OnUpdate registers fn to be called from Run with every accepted snapshot.
func (s *Subscriber) OnUpdate(fn func(codec.ParameterSnapshot)) *Subscriber {
	s.onUpdate = fn
	return s
}

// Run consumes snapshots until ctx is cancelled (returns nil) or the source
// fails. Undecodable messages are logged and skipped.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		data, err := s.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrSourceClosed) {
				return nil
			}
			return fmt.Errorf("next snapshot: %w", err)
		}
		s.handle(data)
	}
}

func (s *Subscriber) handle(data []byte) {
	snapshot, err := codec.DecodeSnapshot(data)
	if err != nil {
		s.malformed.Add(1)
		s.logger.Warn("dropping malformed snapshot", "bytes", len(data), "error", err)
		return
	}
	s.received.Add(1)

	s.mu.Lock()
	prev := s.latest
	if prev != nil && prev.RunID == snapshot.RunID && snapshot.Step <= prev.Step {
		s.mu.Unlock()
		s.logger.Debug("ignoring stale snapshot", "step", snapshot.Step, "latest", prev.Step)
		return
	}
	s.latest = &snapshot
	s.mu.Unlock()

	if prev != nil && prev.RunID == snapshot.RunID && s.interval > 0 {
		if gap := (snapshot.Step-prev.Step)/s.interval - 1; gap > 0 {
			s.missed.Add(uint64(gap))
			s.logger.Debug("missed snapshots", "count", gap, "step", snapshot.Step)
		}
	}

	if s.onUpdate != nil {
		s.onUpdate(snapshot.Clone())
	}
}

// Latest returns a copy of the newest snapshot, if any has arrived.
func (s *Subscriber) Latest() (codec.ParameterSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return codec.ParameterSnapshot{}, false
	}
	return s.latest.Clone(), true
}

func (s *Subscriber) Stats() Stats {
	st := Stats{
		Received:  s.received.Load(),
		Malformed: s.malformed.Load(),
		Missed:    s.missed.Load(),
	}
	s.mu.RLock()
	if s.latest != nil {
		st.LastStep = s.latest.Step
	}
	s.mu.RUnlock()
	return st
}

func (s *Subscriber) Close() error {
	return s.source.Close()
}
