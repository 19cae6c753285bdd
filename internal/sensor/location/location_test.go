package location

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLocatorReadsFix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fix.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"latitude":52.2297,"longitude":21.0122,"accuracy":8.5,"time":"2026-05-01T10:00:00Z"}`), 0o644))

	fix, err := NewFileLocator(path).LastKnown(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 52.2297, fix.Latitude, 1e-9)
	assert.InDelta(t, 21.0122, fix.Longitude, 1e-9)
	assert.InDelta(t, 8.5, fix.Accuracy, 1e-9)
	assert.Equal(t, time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC), fix.Time.UTC())
}

func TestFileLocatorNoFix(t *testing.T) {
	dir := t.TempDir()

	_, err := NewFileLocator(filepath.Join(dir, "absent.json")).LastKnown(context.Background())
	assert.ErrorIs(t, err, ErrNoFix)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o644))
	_, err = NewFileLocator(empty).LastKnown(context.Background())
	assert.ErrorIs(t, err, ErrNoFix)
}

func TestFileLocatorRejectsBadFix(t *testing.T) {
	dir := t.TempDir()

	garbled := filepath.Join(dir, "garbled.json")
	require.NoError(t, os.WriteFile(garbled, []byte("lat=1"), 0o644))
	_, err := NewFileLocator(garbled).LastKnown(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoFix)

	outOfRange := filepath.Join(dir, "range.json")
	require.NoError(t, os.WriteFile(outOfRange, []byte(`{"latitude":123,"longitude":0}`), 0o644))
	_, err = NewFileLocator(outOfRange).LastKnown(context.Background())
	assert.Error(t, err)
}

func TestFileLocatorCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileLocator("unused").LastKnown(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStaticLocator(t *testing.T) {
	fix, err := NewStaticLocator(50.06, 19.94).LastKnown(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50.06, fix.Latitude)
	assert.Equal(t, 19.94, fix.Longitude)
}

func TestNoneLocator(t *testing.T) {
	_, err := NoneLocator{}.LastKnown(context.Background())
	assert.ErrorIs(t, err, ErrNoFix)
}
