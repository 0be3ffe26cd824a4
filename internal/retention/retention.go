// Package retention removes observation and location rows older than a
// configured horizon on a cron schedule.
package retention

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/adpulse/adpulse/internal/metrics"
	"github.com/adpulse/adpulse/internal/store"
)

// ServiceConfig configures the retention sweeper.
type ServiceConfig struct {
	Store    *store.Store
	Schedule string        // cron expression, default "30 3 * * *"
	MaxAge   time.Duration // rows older than now-MaxAge are removed, default 90 days
}

// Service deletes expired rows on a schedule. Sweeps are serialized so an
// overrunning sweep never overlaps the next firing.
type Service struct {
	store   *store.Store
	maxAge  time.Duration
	cron    *cron.Cron
	sweepMu sync.Mutex

	lifeCtx    context.Context
	lifeCancel context.CancelFunc

	// now is replaceable in tests.
	now func() time.Time
}

// NewService creates a retention service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Schedule == "" {
		cfg.Schedule = "30 3 * * *"
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 90 * 24 * time.Hour
	}
	lifeCtx, lifeCancel := context.WithCancel(context.Background())
	s := &Service{
		store:      cfg.Store,
		maxAge:     cfg.MaxAge,
		cron:       cron.New(),
		lifeCtx:    lifeCtx,
		lifeCancel: lifeCancel,
		now:        time.Now,
	}

	if _, err := s.cron.AddFunc(cfg.Schedule, func() {
		if err := s.SweepNow(); err != nil {
			log.Printf("[retention] scheduled sweep failed: %v", err)
		}
	}); err != nil {
		log.Printf("[retention] invalid cron expression %q: %v", cfg.Schedule, err)
	}

	return s
}

// Start begins the cron scheduler.
func (s *Service) Start() {
	s.cron.Start()
}

// Stop cancels any in-flight sweep and stops the scheduler.
func (s *Service) Stop() {
	if s.lifeCancel != nil {
		s.lifeCancel()
	}
	s.cron.Stop()
}

// SweepNow deletes rows older than the retention horizon from both the
// observations and location_history tables. A failure on the first table
// does not skip the second.
func (s *Service) SweepNow() error {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	cutoffNs := s.now().Add(-s.maxAge).UnixNano()
	ctx := s.lifeCtx

	var firstErr error
	obsDeleted, err := s.store.DeleteObservationsBefore(ctx, cutoffNs)
	if err != nil {
		firstErr = err
		log.Printf("[retention] sweep observations: %v", err)
	} else if obsDeleted > 0 {
		metrics.RetentionDeletedRows.WithLabelValues("observations").Add(float64(obsDeleted))
	}

	locDeleted, err := s.store.DeleteLocationsBefore(ctx, cutoffNs)
	if err != nil {
		if firstErr == nil {
			firstErr = err
		}
		log.Printf("[retention] sweep locations: %v", err)
	} else if locDeleted > 0 {
		metrics.RetentionDeletedRows.WithLabelValues("location_history").Add(float64(locDeleted))
	}

	if firstErr == nil && obsDeleted+locDeleted > 0 {
		log.Printf("[retention] removed %d observation rows, %d location rows", obsDeleted, locDeleted)
	}
	return firstErr
}
