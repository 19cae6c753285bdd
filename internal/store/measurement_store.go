package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/vbonduro/envmon/internal/domain"
	"github.com/vbonduro/envmon/internal/logging"
)

var ErrNotFound = errors.New("measurement not found")

const lockRetryDelay = 25 * time.Millisecond

// MeasurementStore keeps the full measurement list in a single JSON file.
// Every mutation reads the whole list and rewrites the whole file.
type MeasurementStore struct {
	path   string
	lock   *flock.Flock
	mu     sync.Mutex
	logger *slog.Logger
}

func NewMeasurementStore(path string, logger *slog.Logger) (*MeasurementStore, error) {
	if path == "" {
		return nil, errors.New("measurement store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &MeasurementStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logging.Component(logger, "store"),
	}, nil
}

func (s *MeasurementStore) Path() string {
	return s.path
}

// Save prepends m to the stored list and rewrites the backing file.
func (s *MeasurementStore) Save(ctx context.Context, m domain.Measurement) error {
	return s.mutate(ctx, func(list []domain.Measurement) []domain.Measurement {
		out := make([]domain.Measurement, 0, len(list)+1)
		out = append(out, m)
		return append(out, list...)
	})
}

// Load returns the stored list, newest first. A missing, empty or
// undecodable file yields an empty list.
func (s *MeasurementStore) Load(ctx context.Context) []domain.Measurement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Delete removes every entry whose id matches and rewrites the backing file.
func (s *MeasurementStore) Delete(ctx context.Context, id int64) error {
	removed := 0
	err := s.mutate(ctx, func(list []domain.Measurement) []domain.Measurement {
		out := make([]domain.Measurement, 0, len(list))
		for _, m := range list {
			if m.ID == id {
				removed++
				continue
			}
			out = append(out, m)
		}
		return out
	})
	if err != nil {
		return err
	}
	s.logger.Debug("measurements deleted", "id", id, "removed", removed)
	return nil
}

// Get returns the first stored measurement with the given id.
func (s *MeasurementStore) Get(ctx context.Context, id int64) (domain.Measurement, error) {
	for _, m := range s.Load(ctx) {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Measurement{}, ErrNotFound
}

func (s *MeasurementStore) mutate(ctx context.Context, fn func([]domain.Measurement) []domain.Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock measurements file: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to lock measurements file: %s", s.lock.Path())
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Error("failed to unlock measurements file", "error", err)
		}
	}()

	return s.write(fn(s.read()))
}

func (s *MeasurementStore) read() []domain.Measurement {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to read measurements file, treating as empty", "path", s.path, "error", err)
		}
		return []domain.Measurement{}
	}
	if len(data) == 0 {
		return []domain.Measurement{}
	}

	var list []domain.Measurement
	if err := json.Unmarshal(data, &list); err != nil {
		s.logger.Warn("failed to decode measurements file, treating as empty", "path", s.path, "error", err)
		return []domain.Measurement{}
	}
	if list == nil {
		list = []domain.Measurement{}
	}
	return list
}

// write replaces the backing file via a temp file and rename.
func (s *MeasurementStore) write(list []domain.Measurement) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode measurements: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		if rerr := os.Remove(tmpPath); rerr != nil {
			s.logger.Error("failed to remove temp file after rename error", "error", rerr)
		}
		return fmt.Errorf("failed to replace measurements file: %w", err)
	}
	s.logger.Debug("measurements written", "path", s.path, "count", len(list))
	return nil
}
