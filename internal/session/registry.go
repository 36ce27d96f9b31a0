package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"fridgechef/internal/coordinator"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Registry keeps live sessions. A session ends when End is called or when it
// has not been touched for the idle timeout.
type Registry struct {
	sessions *cache.Cache
	idle     time.Duration
	uploads  *coordinator.UploadCoordinator
	recipes  *coordinator.RecipeCoordinator
	opts     Options
	log      logrus.FieldLogger
}

// NewRegistry creates a registry. An idle timeout of zero keeps sessions
// until they are ended explicitly.
func NewRegistry(uploads *coordinator.UploadCoordinator, recipes *coordinator.RecipeCoordinator, idle time.Duration, opts Options, log logrus.FieldLogger) *Registry {
	expiry := cache.NoExpiration
	cleanup := time.Duration(0)
	if idle > 0 {
		expiry = idle
		cleanup = idle / 2
	}
	sessions := cache.New(expiry, cleanup)
	sessions.OnEvicted(func(id string, _ interface{}) {
		log.WithField("session_id", id).Debug("session ended")
	})
	return &Registry{
		sessions: sessions,
		idle:     expiry,
		uploads:  uploads,
		recipes:  recipes,
		opts:     opts,
		log:      log,
	}
}

// Create starts a new session.
func (r *Registry) Create() *Session {
	id := uuid.NewString()
	sess := New(id, r.uploads, r.recipes, r.opts, r.log)
	r.sessions.Set(id, sess, r.idle)
	r.log.WithField("session_id", id).Info("session started")
	return sess
}

// Get returns a live session and refreshes its idle timer.
func (r *Registry) Get(id string) (*Session, error) {
	v, ok := r.sessions.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	// Replace fails if End ran since the Get, so an ended session stays ended.
	if err := r.sessions.Replace(id, v, r.idle); err != nil {
		return nil, ErrNotFound
	}
	return v.(*Session), nil
}

// End discards a session.
func (r *Registry) End(id string) error {
	if _, ok := r.sessions.Get(id); !ok {
		return ErrNotFound
	}
	r.sessions.Delete(id)
	return nil
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	return r.sessions.ItemCount()
}
