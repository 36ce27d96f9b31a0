package session

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fridgechef/internal/coordinator"
)

func newRegistry(t *testing.T, idle time.Duration) *Registry {
	t.Helper()
	log, _ := test.NewNullLogger()
	return NewRegistry(
		coordinator.NewUploadCoordinator(&scriptedDetector{}, log),
		coordinator.NewRecipeCoordinator(&staticRecommender{}, log),
		idle, Options{}, log)
}

func TestRegistryLifecycle(t *testing.T) {
	reg := newRegistry(t, 0)

	sess := reg.Create()
	require.NotEmpty(t, sess.ID)
	assert.Equal(t, 1, reg.Count())

	got, err := reg.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)

	require.NoError(t, reg.End(sess.ID))
	_, err = reg.Get(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, reg.End(sess.ID), ErrNotFound)
}

func TestRegistry_SessionsAreIndependent(t *testing.T) {
	reg := newRegistry(t, 0)
	a := reg.Create()
	b := reg.Create()

	a.AddManual("egg")

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, []string{"egg"}, a.State().Ingredients)
	assert.Empty(t, b.State().Ingredients)
}

func TestRegistry_IdleExpiry(t *testing.T) {
	reg := newRegistry(t, 50*time.Millisecond)
	sess := reg.Create()

	time.Sleep(120 * time.Millisecond)

	_, err := reg.Get(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_EndedSessionStaysEnded(t *testing.T) {
	reg := newRegistry(t, time.Hour)

	for i := 0; i < 200; i++ {
		sess := reg.Create()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.Get(sess.ID)
		}()
		go func() {
			defer wg.Done()
			reg.End(sess.ID)
		}()
		wg.Wait()

		_, err := reg.Get(sess.ID)
		require.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, 0, reg.Count())
}
