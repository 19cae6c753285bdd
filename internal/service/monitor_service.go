package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vbonduro/envmon/internal/display"
	"github.com/vbonduro/envmon/internal/domain"
	"github.com/vbonduro/envmon/internal/imagepayload"
	"github.com/vbonduro/envmon/internal/photostore"
	"github.com/vbonduro/envmon/internal/preflight"
	"github.com/vbonduro/envmon/internal/sensor/camera"
	"github.com/vbonduro/envmon/internal/sensor/location"
)

var (
	ErrPermissionDenied      = errors.New("permission denied")
	ErrNothingToSave         = errors.New("no location or noise reading to save")
	ErrMeasurementInProgress = errors.New("noise measurement already in progress")
	ErrNoThumbnail           = errors.New("measurement has no decodable image")
)

// measurementRepository is the subset of store.MeasurementStore that
// MonitorService requires.
type measurementRepository interface {
	Save(ctx context.Context, m domain.Measurement) error
	Load(ctx context.Context) []domain.Measurement
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (domain.Measurement, error)
}

type noiseMeter interface {
	Measure(ctx context.Context) (domain.NoiseReading, error)
}

type permissionChecker interface {
	RunAll(ctx context.Context) []preflight.Result
	Check(ctx context.Context, name string) preflight.Result
}

// NoticeLevel distinguishes confirmations from problems.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a transient message shown once, like a toast.
type Notice struct {
	Level NoticeLevel
	Text  string
}

// HomeState is the ephemeral state of the home screen. It lives only in
// memory and starts over when the process restarts.
type HomeState struct {
	Entered      bool
	LocationText string
	NoiseText    string
	LastNoise    float64
	Simulated    bool
	Latitude     float64
	Longitude    float64
	PhotoKey     string
	Measuring    bool
}

func (s HomeState) HasPhoto() bool {
	return s.PhotoKey != ""
}

// HistoryEntry is a stored measurement with its display texts.
type HistoryEntry struct {
	domain.Measurement
	NoiseText string
	GPSText   string
	Age       string
}

type MonitorService struct {
	store    measurementRepository
	locator  location.Locator
	meter    noiseMeter
	camera   camera.Camera
	photoStg photostore.PhotoStore
	checks   permissionChecker
	printer  *display.Printer
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	state   HomeState
	notices []Notice
}

func NewMonitorService(
	store measurementRepository,
	locator location.Locator,
	meter noiseMeter,
	cam camera.Camera,
	photoStg photostore.PhotoStore,
	checks permissionChecker,
	printer *display.Printer,
	logger *slog.Logger,
) *MonitorService {
	return &MonitorService{
		store:    store,
		locator:  locator,
		meter:    meter,
		camera:   cam,
		photoStg: photoStg,
		checks:   checks,
		printer:  printer,
		logger:   logger,
		now:      time.Now,
		state: HomeState{
			LocationText: display.NoGPSData,
			NoiseText:    display.NoNoiseData,
		},
	}
}

// SetClock replaces the time source used for record ids and dates.
func (s *MonitorService) SetClock(now func() time.Time) {
	s.now = now
}

// State returns a snapshot of the home state.
func (s *MonitorService) State() HomeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TakeNotices returns and clears the pending notices.
func (s *MonitorService) TakeNotices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}

func (s *MonitorService) notify(level NoticeLevel, format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, Notice{Level: level, Text: fmt.Sprintf(format, args...)})
}

// EnterHome requests every sensor permission at once and reports the outcome
// as a single notice. Only the first call per process does anything.
func (s *MonitorService) EnterHome(ctx context.Context) []preflight.Result {
	s.mu.Lock()
	if s.state.Entered {
		s.mu.Unlock()
		return nil
	}
	s.state.Entered = true
	s.mu.Unlock()

	return s.requestPermissions(ctx)
}

func (s *MonitorService) requestPermissions(ctx context.Context) []preflight.Result {
	results := s.checks.RunAll(ctx)
	if preflight.AllPassed(results) {
		s.notify(NoticeInfo, "Permissions granted")
	} else {
		failed := preflight.Failed(results)
		s.logger.Warn("sensor permissions missing", "failed", failed)
		s.notify(NoticeError, "Missing permissions: %s", strings.Join(failed, ", "))
	}
	return results
}

// AcquireLocation reads the last-known fix. Without a fix the coordinates
// stay zero and the location text asks the user to enable the GPS source.
func (s *MonitorService) AcquireLocation(ctx context.Context) (*domain.Fix, error) {
	if res := s.checks.Check(ctx, preflight.NameLocation); !res.Passed {
		s.logger.Warn("location permission missing", "detail", res.Detail)
		s.requestPermissions(ctx)
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, res.Detail)
	}

	fix, err := s.locator.LastKnown(ctx)
	if err != nil {
		if !errors.Is(err, location.ErrNoFix) {
			s.logger.Error("failed to read location", "error", err)
		}
		s.mu.Lock()
		s.state.LocationText = display.EnableGPS
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	s.state.Latitude = fix.Latitude
	s.state.Longitude = fix.Longitude
	s.state.LocationText = s.printer.Location(fix.Latitude, fix.Longitude)
	s.mu.Unlock()

	s.logger.Info("location acquired", "latitude", fix.Latitude, "longitude", fix.Longitude)
	return fix, nil
}

// MeasureNoise starts one sampling window on a background goroutine and
// returns immediately. The reading is written into the home state and also
// delivered on the returned channel, which is closed afterwards. The
// goroutine is detached from ctx cancellation and runs to completion.
func (s *MonitorService) MeasureNoise(ctx context.Context) (<-chan domain.NoiseReading, error) {
	if res := s.checks.Check(ctx, preflight.NameMicrophone); !res.Passed {
		s.logger.Warn("microphone permission missing", "detail", res.Detail)
		s.notify(NoticeError, "No microphone access")
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, res.Detail)
	}

	s.mu.Lock()
	if s.state.Measuring {
		s.mu.Unlock()
		return nil, ErrMeasurementInProgress
	}
	s.state.Measuring = true
	s.mu.Unlock()

	out := make(chan domain.NoiseReading, 1)
	bg := context.WithoutCancel(ctx)
	go func() {
		defer close(out)
		reading, err := s.meter.Measure(bg)

		s.mu.Lock()
		s.state.Measuring = false
		if err == nil {
			s.state.LastNoise = reading.Level
			s.state.Simulated = reading.Simulated
			s.state.NoiseText = s.printer.Noise(reading.Level, reading.Simulated)
		}
		s.mu.Unlock()

		if err != nil {
			s.logger.Error("noise measurement failed", "error", err)
			return
		}
		s.logger.Info("noise measured", "level", reading.Level, "simulated", reading.Simulated, "reason", reading.Reason)
		out <- reading
	}()
	return out, nil
}

// CapturePhoto takes a picture and spools it as the pending photo, replacing
// any earlier one.
func (s *MonitorService) CapturePhoto(ctx context.Context) error {
	img, err := s.camera.Capture(ctx)
	if err != nil {
		s.logger.Warn("photo capture failed", "error", err)
		s.notify(NoticeError, "Camera unavailable")
		return fmt.Errorf("failed to capture photo: %w", err)
	}
	return s.spoolPhoto(ctx, img)
}

// AttachPhoto spools an image supplied by the client instead of the device
// camera, e.g. a phone browser's camera upload.
func (s *MonitorService) AttachPhoto(ctx context.Context, r io.Reader) error {
	img, _, err := image.Decode(r)
	if err != nil {
		s.notify(NoticeError, "Unsupported photo")
		return fmt.Errorf("failed to decode photo: %w", err)
	}
	return s.spoolPhoto(ctx, img)
}

func (s *MonitorService) spoolPhoto(ctx context.Context, img image.Image) error {
	data, err := imagepayload.EncodePNG(img)
	if err != nil {
		return err
	}
	key, err := s.photoStg.Save(ctx, "capture", "image/png", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to spool photo: %w", err)
	}

	s.mu.Lock()
	old := s.state.PhotoKey
	s.state.PhotoKey = key
	s.mu.Unlock()

	if old != "" {
		if err := s.photoStg.Delete(ctx, old); err != nil {
			s.logger.Error("failed to delete replaced photo", "storage_key", old, "error", err)
		}
	}
	b := img.Bounds()
	s.logger.Info("photo spooled", "storage_key", key, "width", b.Dx(), "height", b.Dy())
	return nil
}

// PendingPhoto opens the spooled photo for preview.
func (s *MonitorService) PendingPhoto(ctx context.Context) (io.ReadCloser, string, error) {
	key := s.State().PhotoKey
	if key == "" {
		return nil, "", photostore.ErrNotFound
	}
	return s.photoStg.Get(ctx, key)
}

// DiscardPhoto drops the pending photo from the spool.
func (s *MonitorService) DiscardPhoto(ctx context.Context) error {
	s.mu.Lock()
	key := s.state.PhotoKey
	s.state.PhotoKey = ""
	s.mu.Unlock()

	if key == "" {
		return nil
	}
	if err := s.photoStg.Delete(ctx, key); err != nil && !errors.Is(err, photostore.ErrNotFound) {
		return fmt.Errorf("failed to discard photo: %w", err)
	}
	return nil
}

// Save builds a measurement from the home state and persists it. At least
// one of latitude, longitude or the last noise value must be non-zero.
func (s *MonitorService) Save(ctx context.Context) (domain.Measurement, error) {
	st := s.State()
	if st.Latitude == 0 && st.Longitude == 0 && st.LastNoise == 0 {
		s.notify(NoticeError, "Take a location or noise reading first")
		return domain.Measurement{}, ErrNothingToSave
	}

	now := s.now()
	m := domain.Measurement{
		ID:         now.UnixMilli(),
		Date:       now.Format(domain.DateLayout),
		NoiseLevel: st.LastNoise,
		Latitude:   st.Latitude,
		Longitude:  st.Longitude,
		Simulated:  st.Simulated,
	}

	if st.PhotoKey != "" {
		payload, err := s.encodePending(ctx, st.PhotoKey)
		if err != nil {
			s.logger.Warn("saving without photo", "storage_key", st.PhotoKey, "error", err)
		} else {
			m.ImageBase64 = payload
		}
	}

	if err := s.store.Save(ctx, m); err != nil {
		s.notify(NoticeError, "Could not save measurement")
		return domain.Measurement{}, fmt.Errorf("failed to save measurement: %w", err)
	}

	s.logger.Info("measurement saved", "id", m.ID, "noise", m.NoiseLevel, "has_image", m.HasImage())
	s.notify(NoticeInfo, "Measurement saved")
	return m, nil
}

func (s *MonitorService) encodePending(ctx context.Context, key string) (string, error) {
	rc, _, err := s.photoStg.Get(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	img, _, err := image.Decode(rc)
	if err != nil {
		return "", fmt.Errorf("failed to decode pending photo: %w", err)
	}
	return imagepayload.Encode(img)
}

// History reloads the full list from the store.
func (s *MonitorService) History(ctx context.Context) []HistoryEntry {
	list := s.store.Load(ctx)
	now := s.now()
	entries := make([]HistoryEntry, 0, len(list))
	for _, m := range list {
		entries = append(entries, HistoryEntry{
			Measurement: m,
			NoiseText:   s.printer.Noise(m.NoiseLevel, m.Simulated),
			GPSText:     s.printer.Coordinates(m.Latitude, m.Longitude),
			Age:         s.printer.Age(m.CreatedAt(), now),
		})
	}
	return entries
}

// Thumbnail returns a PNG thumbnail of the measurement's photo. Payloads that
// do not decode yield ErrNoThumbnail so callers can omit the image.
func (s *MonitorService) Thumbnail(ctx context.Context, id int64, maxSide int) ([]byte, error) {
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.HasImage() {
		return nil, ErrNoThumbnail
	}
	img, err := imagepayload.Decode(m.ImageBase64)
	if err != nil {
		s.logger.Debug("image payload not decodable", "id", id, "error", err)
		return nil, ErrNoThumbnail
	}
	return imagepayload.EncodePNG(imagepayload.Thumbnail(img, maxSide))
}

// Delete removes every stored entry with the given id.
func (s *MonitorService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		s.notify(NoticeError, "Could not delete entry")
		return fmt.Errorf("failed to delete measurement: %w", err)
	}
	s.logger.Info("measurement deleted", "id", id)
	s.notify(NoticeInfo, "Entry deleted")
	return nil
}
