// Package session owns the view state of one user and commits every change
// to it synchronously.
package session

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"fridgechef/internal/coordinator"
	"fridgechef/internal/pantry"
)

// Options tune how a Session applies late responses.
type Options struct {
	// Sequenced drops a response when a newer request of the same kind has
	// already been applied. Off by default: the last response to arrive wins.
	Sequenced bool
}

// Session is the single writer of one pantry.State.
type Session struct {
	ID string

	mu    sync.Mutex
	state pantry.State

	uploads *coordinator.UploadCoordinator
	recipes *coordinator.RecipeCoordinator
	opts    Options
	log     logrus.FieldLogger

	detect tickets
	lookup tickets
}

// tickets orders requests of one kind. Guarded by Session.mu.
type tickets struct {
	issued  uint64
	applied uint64
}

// New creates a session with the empty state.
func New(id string, uploads *coordinator.UploadCoordinator, recipes *coordinator.RecipeCoordinator, opts Options, log logrus.FieldLogger) *Session {
	return &Session{
		ID:      id,
		state:   pantry.New(),
		uploads: uploads,
		recipes: recipes,
		opts:    opts,
		log:     log.WithField("session_id", id),
	}
}

// State returns the current state. The returned value is never modified by
// later updates.
func (s *Session) State() pantry.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) apply(update pantry.Update) pantry.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = update(s.state)
	return s.state
}

// SelectImage replaces the selected image.
func (s *Session) SelectImage(img pantry.Image) pantry.State {
	return s.apply(func(st pantry.State) pantry.State { return pantry.SelectImage(st, img) })
}

// SetManualInput replaces the manual input buffer.
func (s *Session) SetManualInput(text string) pantry.State {
	return s.apply(func(st pantry.State) pantry.State { return pantry.SetManualInput(st, text) })
}

// AddManual appends text to the ingredient list.
func (s *Session) AddManual(text string) pantry.State {
	return s.apply(func(st pantry.State) pantry.State { return pantry.AddManual(st, text) })
}

// CommitManualInput appends the manual input buffer to the ingredient list.
func (s *Session) CommitManualInput() pantry.State {
	return s.apply(pantry.CommitManualInput)
}

// DetectIngredients sends the selected image for detection and applies the
// result to the state current when the response arrives.
func (s *Session) DetectIngredients(ctx context.Context) (pantry.State, error) {
	return s.run(ctx, &s.detect, "detect", s.uploads.Detect)
}

// GetRecipes sends the ingredient list for recipe suggestions and applies the
// result to the state current when the response arrives.
func (s *Session) GetRecipes(ctx context.Context) (pantry.State, error) {
	return s.run(ctx, &s.lookup, "recipes", s.recipes.Recommend)
}

type step func(ctx context.Context, st pantry.State) (pantry.Update, error)

func (s *Session) run(ctx context.Context, t *tickets, kind string, fn step) (pantry.State, error) {
	s.mu.Lock()
	snapshot := s.state
	t.issued++
	ticket := t.issued
	s.mu.Unlock()

	// The lock is not held across the round trip.
	update, err := fn(ctx, snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		return s.state, err
	}
	if s.opts.Sequenced && ticket < t.applied {
		s.log.WithFields(logrus.Fields{
			"kind":    kind,
			"ticket":  ticket,
			"applied": t.applied,
		}).Warn("dropping stale response")
		return s.state, nil
	}
	t.applied = ticket
	s.state = update(s.state)
	return s.state, nil
}
