// Package sweeper periodically repairs occupancy drift and, when enabled,
// closes bookings that ran past their requested end.
package sweeper

import (
	"context"
	"log"
	"time"

	"room-occupancy-backend/config"
)

// Maintainer is the part of the booking service the sweeper drives.
type Maintainer interface {
	Reconcile(ctx context.Context) (int, error)
	ForceEndOverdue(ctx context.Context, grace time.Duration) (int, error)
}

// Service runs sweep cycles on a timer.
type Service struct {
	cfg    config.SweeperConfig
	target Maintainer
}

func NewService(cfg config.SweeperConfig, target Maintainer) *Service {
	return &Service{cfg: cfg, target: target}
}

// Run sweeps once immediately and then every configured interval until ctx
// is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Println("Sweeper is disabled. Not starting.")
		return
	}
	log.Printf("Starting sweeper (every %s)...", s.cfg.Interval)

	s.SweepOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Sweeper shutting down.")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// SweepOnce ends overdue bookings first, so the following reconcile sees
// the released rooms.
func (s *Service) SweepOnce(ctx context.Context) {
	if s.cfg.AutoEndOverdue {
		ended, err := s.target.ForceEndOverdue(ctx, s.cfg.OverdueGrace)
		if err != nil {
			log.Printf("Error ending overdue bookings: %v", err)
		} else if ended > 0 {
			log.Printf("Ended %d overdue booking(s)", ended)
		}
	}

	repaired, err := s.target.Reconcile(ctx)
	if err != nil {
		log.Printf("Error reconciling occupancy: %v", err)
		return
	}
	if repaired > 0 {
		log.Printf("Sweep repaired %d occupancy row(s)", repaired)
	}
}
