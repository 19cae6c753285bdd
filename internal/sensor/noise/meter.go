// Package noise samples microphone amplitude for a short window and converts
// the peak to decibels.
package noise

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/vbonduro/envmon/internal/domain"
	"github.com/vbonduro/envmon/internal/logging"
)

const (
	DefaultWindow = 600 * time.Millisecond

	// Substitute range used when the recorder cannot be set up at all.
	UnavailableMin = 40
	UnavailableMax = 80

	// Substitute range used when the recorder reports no amplitude, which is
	// what virtual and muted inputs do.
	SilentMin = 35
	SilentMax = 85

	ReasonRecorderUnavailable = "recorder unavailable"
	ReasonNoAmplitude         = "no amplitude"
)

// ErrNoRecorder is returned by a RecorderFactory when no input is configured.
var ErrNoRecorder = errors.New("no recorder configured")

// Recorder captures audio between Start and Stop and tracks the peak sample
// amplitude on a 0..32767 scale.
type Recorder interface {
	Start(ctx context.Context) error
	MaxAmplitude() int
	Stop() error
	Release() error
}

type RecorderFactory func() (Recorder, error)

type Meter struct {
	newRecorder RecorderFactory
	window      time.Duration
	randomInt   func(lo, hi int) int
	logger      *slog.Logger
}

type Option func(*Meter)

// WithRandom replaces the uniform integer source used for substitutes.
func WithRandom(fn func(lo, hi int) int) Option {
	return func(m *Meter) { m.randomInt = fn }
}

func NewMeter(factory RecorderFactory, window time.Duration, logger *slog.Logger, opts ...Option) *Meter {
	if window <= 0 {
		window = DefaultWindow
	}
	m := &Meter{
		newRecorder: factory,
		window:      window,
		randomInt:   uniformInt,
		logger:      logging.Component(logger, "noise"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Measure records for one window and returns the peak level in decibels.
// Recorder failures never surface as errors: they produce a substituted,
// Simulated reading. Only cancellation of ctx is reported.
func (m *Meter) Measure(ctx context.Context) (domain.NoiseReading, error) {
	rec, err := m.startRecorder(ctx)
	if err != nil {
		level := float64(m.randomInt(UnavailableMin, UnavailableMax))
		m.logger.Warn("recorder unavailable, using substitute level", "level", level, "error", err)
		return domain.NoiseReading{Level: level, Simulated: true, Reason: ReasonRecorderUnavailable}, nil
	}

	timer := time.NewTimer(m.window)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		m.shutdown(rec)
		return domain.NoiseReading{}, ctx.Err()
	case <-timer.C:
	}

	amplitude := rec.MaxAmplitude()
	m.shutdown(rec)

	reading := domain.NoiseReading{Level: Decibels(amplitude), Amplitude: amplitude}
	if reading.Level == 0 {
		reading.Level = float64(m.randomInt(SilentMin, SilentMax))
		reading.Simulated = true
		reading.Reason = ReasonNoAmplitude
		m.logger.Info("no amplitude recorded, using substitute level", "level", reading.Level)
		return reading, nil
	}

	m.logger.Debug("noise measured", "amplitude", amplitude, "level", reading.Level)
	return reading, nil
}

func (m *Meter) startRecorder(ctx context.Context) (Recorder, error) {
	if m.newRecorder == nil {
		return nil, ErrNoRecorder
	}
	rec, err := m.newRecorder()
	if err != nil {
		return nil, err
	}
	if err := rec.Start(ctx); err != nil {
		if rerr := rec.Release(); rerr != nil {
			m.logger.Debug("release after failed start", "error", rerr)
		}
		return nil, err
	}
	return rec, nil
}

func (m *Meter) shutdown(rec Recorder) {
	if err := rec.Stop(); err != nil {
		m.logger.Debug("recorder stop failed", "error", err)
	}
	if err := rec.Release(); err != nil {
		m.logger.Debug("recorder release failed", "error", err)
	}
}

// Decibels converts a peak amplitude to 20*log10(amplitude). Non-positive
// amplitudes map to 0.
func Decibels(amplitude int) float64 {
	if amplitude <= 0 {
		return 0
	}
	return 20 * math.Log10(float64(amplitude))
}

func uniformInt(lo, hi int) int {
	return lo + rand.IntN(hi-lo+1)
}
