// Package scheduler retrains the model periodically and trims old artifacts
// after every successful run.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultInterval  = 24 * time.Hour
	DefaultRetention = 3
)

// Trainer runs one training cycle.
type Trainer interface {
	Train(ctx context.Context) bool
}

// Cleaner trims persisted artifacts to the newest keep versions.
type Cleaner interface {
	Cleanup(ctx context.Context, keep int, protect ...string) (int, error)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the retraining period. 0 disables the periodic loop.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithRetention sets how many versions cleanup keeps.
func WithRetention(keep int) Option {
	return func(s *Scheduler) {
		if keep > 0 {
			s.keep = keep
		}
	}
}

// WithTriggerOnStart makes Run train once before the first tick.
func WithTriggerOnStart(on bool) Option {
	return func(s *Scheduler) { s.onStart = on }
}

// WithActiveVersion reports the version loaded in memory so cleanup never removes it.
func WithActiveVersion(fn func() string) Option {
	return func(s *Scheduler) { s.active = fn }
}

// WithClock sets the clock driving the ticker.
func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// Scheduler triggers training and retention cleanup.
type Scheduler struct {
	trainer  Trainer
	cleaner  Cleaner
	interval time.Duration
	keep     int
	onStart  bool
	active   func() string
	clock    clockwork.Clock
}

func New(trainer Trainer, cleaner Cleaner, opts ...Option) *Scheduler {
	s := &Scheduler{
		trainer:  trainer,
		cleaner:  cleaner,
		interval: DefaultInterval,
		keep:     DefaultRetention,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trigger trains once. On success old artifacts are cleaned up; on failure
// nothing on disk is touched. Returns the training outcome.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	if !s.trainer.Train(ctx) {
		slog.WarnContext(ctx, "scheduled retrain failed, keeping existing artifacts")
		return false
	}
	var protect []string
	if s.active != nil {
		if v := s.active(); v != "" {
			protect = append(protect, v)
		}
	}
	removed, err := s.cleaner.Cleanup(ctx, s.keep, protect...)
	if err != nil {
		slog.WarnContext(ctx, "artifact cleanup incomplete", "removed", removed, "error", err)
	} else {
		slog.InfoContext(ctx, "artifact cleanup", "removed", removed, "keep", s.keep)
	}
	return true
}

// Run triggers on every interval tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	if s.onStart {
		s.Trigger(ctx)
	}
	if s.interval <= 0 {
		slog.Info("retraining scheduler disabled")
		<-ctx.Done()
		return
	}

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	slog.Info("retraining scheduler started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("retraining scheduler stopped")
			return
		case <-ticker.Chan():
			s.Trigger(ctx)
		}
	}
}
