// Package location provides last-known position fixes. No active fix is ever
// requested; a locator only reports what its source already has.
package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strings"

	"github.com/vbonduro/envmon/internal/domain"
)

// ErrNoFix reports that the source has no position to offer.
var ErrNoFix = errors.New("no last-known location")

type Locator interface {
	LastKnown(ctx context.Context) (*domain.Fix, error)
}

// FileLocator reads a fix that an external GPS agent keeps current in a JSON
// file, e.g. {"latitude":52.23,"longitude":21.01,"time":"2026-05-01T10:00:00Z"}.
type FileLocator struct {
	path string
}

func NewFileLocator(path string) *FileLocator {
	return &FileLocator{path: path}
}

func (l *FileLocator) Path() string {
	return l.path
}

func (l *FileLocator) LastKnown(ctx context.Context) (*domain.Fix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoFix
		}
		return nil, fmt.Errorf("failed to read fix file: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, ErrNoFix
	}

	var fix domain.Fix
	if err := json.Unmarshal(data, &fix); err != nil {
		return nil, fmt.Errorf("failed to parse fix file: %w", err)
	}
	if err := validate(fix); err != nil {
		return nil, err
	}
	return &fix, nil
}

// StaticLocator always reports the configured coordinates.
type StaticLocator struct {
	fix domain.Fix
}

func NewStaticLocator(lat, lon float64) *StaticLocator {
	return &StaticLocator{fix: domain.Fix{Latitude: lat, Longitude: lon}}
}

func (l *StaticLocator) LastKnown(ctx context.Context) (*domain.Fix, error) {
	if err := validate(l.fix); err != nil {
		return nil, err
	}
	fix := l.fix
	return &fix, nil
}

// NoneLocator is used when no location source is configured.
type NoneLocator struct{}

func (NoneLocator) LastKnown(context.Context) (*domain.Fix, error) {
	return nil, ErrNoFix
}

func validate(fix domain.Fix) error {
	if math.IsNaN(fix.Latitude) || math.IsNaN(fix.Longitude) {
		return fmt.Errorf("invalid fix: NaN coordinate")
	}
	if fix.Latitude < -90 || fix.Latitude > 90 {
		return fmt.Errorf("invalid fix: latitude %v out of range", fix.Latitude)
	}
	if fix.Longitude < -180 || fix.Longitude > 180 {
		return fmt.Errorf("invalid fix: longitude %v out of range", fix.Longitude)
	}
	return nil
}
