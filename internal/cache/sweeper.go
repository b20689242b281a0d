package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweeper periodically purges expired entries from a store
type Sweeper struct {
	store   Store
	cron    *cron.Cron
	timeout time.Duration
	log     *logrus.Logger
}

// NewSweeper schedules purges on a cron spec such as "@every 5m"
func NewSweeper(store Store, schedule string, log *logrus.Logger) (*Sweeper, error) {
	s := &Sweeper{store: store, cron: cron.New(), timeout: 30 * time.Second, log: log}
	if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
		return nil, fmt.Errorf("failed to schedule cache sweep %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine
func (s *Sweeper) Start() {
	s.log.Info("Starting score cache sweeper")
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("Score cache sweeper stopped")
}

// Sweep purges expired entries once
func (s *Sweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	removed, err := s.store.Purge(ctx)
	if err != nil {
		s.log.Errorf("Failed to purge score cache: %v", err)
		return
	}
	if removed > 0 {
		s.log.Infof("Purged %d expired score cache entries", removed)
	}
}
