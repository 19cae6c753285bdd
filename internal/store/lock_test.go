package store

import (
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/require"
)

// flockFor holds the store's file lock from a second handle, as another
// process would, and returns the release func.
func flockFor(t *testing.T, s *MeasurementStore) func() {
	t.Helper()
	other := flock.New(s.lock.Path())
	ok, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	return func() { _ = other.Unlock() }
}
