// Package health tracks liveness of the service's dependencies.
package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Checker is implemented by component-level checkers (store, generation
// backend, image backend).
type Checker interface {
	Name() string
	IsHealthy() bool
	Start(ctx context.Context, interval time.Duration)
}

// PingChecker wraps a ping function into a Checker. The flag starts
// unhealthy and flips on the first successful probe.
type PingChecker struct {
	name    string
	ping    func(ctx context.Context) error
	healthy atomic.Int32
	log     zerolog.Logger
}

func NewPingChecker(name string, ping func(ctx context.Context) error, log zerolog.Logger) *PingChecker {
	return &PingChecker{name: name, ping: ping, log: log}
}

func (p *PingChecker) Name() string    { return p.name }
func (p *PingChecker) IsHealthy() bool { return p.healthy.Load() == 1 }

// Start probes on the given interval until ctx is cancelled.
func (p *PingChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	probe := func() {
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := p.ping(cctx); err != nil {
			if p.healthy.Swap(0) == 1 {
				p.log.Error().Err(err).Str("component", p.name).Msg("component health: DOWN")
			}
			return
		}
		if p.healthy.Swap(1) == 0 {
			p.log.Info().Str("component", p.name).Msg("component health: UP")
		}
	}

	probe()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}

// ServiceChecker aggregates component checkers into a single service flag.
type ServiceChecker struct {
	healthy atomic.Int32
	deps    []Checker
	log     zerolog.Logger
}

func NewServiceChecker(log zerolog.Logger, deps ...Checker) *ServiceChecker {
	s := &ServiceChecker{deps: deps, log: log}
	s.healthy.Store(0)
	return s
}

// IsHealthy returns cached service health.
func (s *ServiceChecker) IsHealthy() bool { return s.healthy.Load() == 1 }

// Start periodically evaluates dependency health and updates the service flag.
func (s *ServiceChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev := int32(0)
	eval := func() {
		all := true
		for _, c := range s.deps {
			if !c.IsHealthy() {
				all = false
			}
		}
		if all {
			s.healthy.Store(1)
		} else {
			s.healthy.Store(0)
		}
		cur := s.healthy.Load()
		if cur != prev {
			if cur == 1 {
				s.log.Info().Msg("service health: UP")
			} else {
				s.log.Error().Msg("service health: DOWN")
			}
			prev = cur
		}
	}

	eval()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eval()
		}
	}
}
