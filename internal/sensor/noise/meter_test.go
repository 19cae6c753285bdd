package noise

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/envmon/internal/logging"
)

type fakeRecorder struct {
	amplitude int
	startErr  error
	started   bool
	stopped   bool
	released  bool
}

func (f *fakeRecorder) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeRecorder) MaxAmplitude() int { return f.amplitude }

func (f *fakeRecorder) Stop() error {
	f.stopped = true
	return errors.New("stop called in odd state")
}

func (f *fakeRecorder) Release() error {
	f.released = true
	return nil
}

func factoryFor(rec *fakeRecorder) RecorderFactory {
	return func() (Recorder, error) { return rec, nil }
}

func newTestMeter(factory RecorderFactory, opts ...Option) *Meter {
	return NewMeter(factory, time.Millisecond, logging.NewNop(), opts...)
}

func TestDecibels(t *testing.T) {
	assert.Equal(t, 0.0, Decibels(0))
	assert.Equal(t, 0.0, Decibels(-5))
	assert.Equal(t, 0.0, Decibels(1))
	assert.InDelta(t, 20.0, Decibels(10), 1e-9)
	assert.InDelta(t, 60.0, Decibels(1000), 1e-9)
	assert.InDelta(t, 90.309, Decibels(32767), 1e-3)
}

func TestMeasureConvertsPeakAmplitude(t *testing.T) {
	rec := &fakeRecorder{amplitude: 1000}
	reading, err := newTestMeter(factoryFor(rec)).Measure(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 60.0, reading.Level, 1e-9)
	assert.Equal(t, 1000, reading.Amplitude)
	assert.False(t, reading.Simulated)
	assert.True(t, rec.started)
	assert.True(t, rec.stopped, "stop errors are ignored but stop must be attempted")
	assert.True(t, rec.released)
}

func TestMeasureZeroAmplitudeIsSubstituted(t *testing.T) {
	for _, amp := range []int{0, 1} {
		for i := 0; i < 200; i++ {
			reading, err := newTestMeter(factoryFor(&fakeRecorder{amplitude: amp})).Measure(context.Background())
			require.NoError(t, err)
			assert.True(t, reading.Simulated)
			assert.Equal(t, ReasonNoAmplitude, reading.Reason)
			assert.NotZero(t, reading.Level)
			assert.GreaterOrEqual(t, reading.Level, float64(SilentMin))
			assert.LessOrEqual(t, reading.Level, float64(SilentMax))
			assert.Equal(t, math.Trunc(reading.Level), reading.Level)
		}
	}
}

func TestMeasureRecorderSetupFailureIsSubstituted(t *testing.T) {
	factories := map[string]RecorderFactory{
		"factory error": func() (Recorder, error) { return nil, ErrNoRecorder },
		"start error":   factoryFor(&fakeRecorder{startErr: errors.New("device busy")}),
		"nil factory":   nil,
	}
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 100; i++ {
				reading, err := newTestMeter(factory).Measure(context.Background())
				require.NoError(t, err)
				assert.True(t, reading.Simulated)
				assert.Equal(t, ReasonRecorderUnavailable, reading.Reason)
				assert.GreaterOrEqual(t, reading.Level, float64(UnavailableMin))
				assert.LessOrEqual(t, reading.Level, float64(UnavailableMax))
			}
		})
	}
}

func TestMeasureStartFailureReleasesRecorder(t *testing.T) {
	rec := &fakeRecorder{startErr: errors.New("no device")}
	_, err := newTestMeter(factoryFor(rec)).Measure(context.Background())
	require.NoError(t, err)
	assert.True(t, rec.released)
}

func TestMeasureUsesInjectedRandom(t *testing.T) {
	var gotLo, gotHi int
	meter := newTestMeter(factoryFor(&fakeRecorder{}), WithRandom(func(lo, hi int) int {
		gotLo, gotHi = lo, hi
		return 50
	}))

	reading, err := meter.Measure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50.0, reading.Level)
	assert.Equal(t, SilentMin, gotLo)
	assert.Equal(t, SilentMax, gotHi)
}

func TestMeasureCancelledDuringWindow(t *testing.T) {
	rec := &fakeRecorder{amplitude: 500}
	meter := NewMeter(factoryFor(rec), time.Hour, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := meter.Measure(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, rec.stopped)
	assert.True(t, rec.released)
}

func TestNewMeterDefaultsWindow(t *testing.T) {
	m := NewMeter(nil, 0, nil)
	assert.Equal(t, DefaultWindow, m.window)
}
