// Package scheduler fires the autonomous generation tick across all
// characters on a fixed period.
package scheduler

import (
	"context"
	"math/rand"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/reverie-ai/reverie/internal/model"
	"github.com/reverie-ai/reverie/internal/services"
	"github.com/reverie-ai/reverie/internal/store"
)

// Thresholds are the per-tick trigger probabilities. With one-minute ticks
// the defaults average two thoughts and two activity events per hour and one
// post per hour. Policy constants, not structure.
type Thresholds struct {
	Thought float64
	Event   float64
	Post    float64
}

// DefaultThresholds returns the tuned per-minute probabilities.
func DefaultThresholds() Thresholds {
	return Thresholds{Thought: 1.0 / 30, Event: 1.0 / 30, Post: 1.0 / 60}
}

// Service owns the periodic tick. It is constructed once at process start
// and torn down on shutdown; there is no ambient global state. Ticks do not
// coordinate: if a tick's work is still running when the next fires, the
// cycles run concurrently.
type Service struct {
	store      store.Store
	events     *services.EventService
	cron       *cron.Cron
	spec       string
	thresholds Thresholds
	rand       func() float64
	log        zerolog.Logger
}

func New(s store.Store, events *services.EventService, spec string, log zerolog.Logger) *Service {
	if spec == "" {
		spec = "@every 1m"
	}
	return &Service{
		store:      s,
		events:     events,
		cron:       cron.New(),
		spec:       spec,
		thresholds: DefaultThresholds(),
		rand:       rand.Float64,
		log:        log,
	}
}

// SetThresholds overrides the trigger probabilities.
func (s *Service) SetThresholds(t Thresholds) { s.thresholds = t }

// SetRand replaces the random source; tests force the draws.
func (s *Service) SetRand(f func() float64) { s.rand = f }

// Start registers the tick and starts the timer.
func (s *Service) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.Tick(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Str("spec", s.spec).Msg("scheduler started")
	return nil
}

// Stop halts the timer and waits for in-flight tick callbacks to return.
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}

// Tick rolls three independent uniform draws per character and runs the
// matching autonomous cycles concurrently. It returns once every cycle
// spawned by this tick has finished.
func (s *Service) Tick(ctx context.Context) {
	chars, err := s.store.Characters().List(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduler tick: list characters")
		return
	}

	var wg sync.WaitGroup
	for _, ch := range chars {
		if s.rand() < s.thresholds.Thought {
			s.spawn(ctx, &wg, ch.CharacterID, model.EventKindThought)
		}
		if s.rand() < s.thresholds.Event {
			s.spawn(ctx, &wg, ch.CharacterID, model.EventKindEvent)
		}
		if s.rand() < s.thresholds.Post {
			wg.Add(1)
			id := ch.CharacterID
			go func() {
				defer wg.Done()
				if _, err := s.events.GeneratePost(ctx, id); err != nil {
					s.log.Error().Err(err).Str("character_id", id).Msg("autonomous post failed")
				}
			}()
		}
	}
	wg.Wait()
}

func (s *Service) spawn(ctx context.Context, wg *sync.WaitGroup, characterID, kind string) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := s.events.GenerateEvent(ctx, characterID, kind); err != nil {
			s.log.Error().Err(err).Str("character_id", characterID).Str("kind", kind).Msg("autonomous event failed")
		}
	}()
}
