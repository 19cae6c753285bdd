// Package camera captures a single still image into memory.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/vbonduro/envmon/internal/logging"
)

// OutputPlaceholder in a capture command is replaced with the file path the
// program must write its image to.
const OutputPlaceholder = "{output}"

var ErrNoCamera = errors.New("no camera configured")

type Camera interface {
	Capture(ctx context.Context) (image.Image, error)
}

// CommandCamera runs an external capture program (fswebcam, libcamera-still,
// termux-camera-photo) and decodes the file it writes.
type CommandCamera struct {
	name    string
	args    []string
	tempDir string
	logger  *slog.Logger
}

func NewCommandCamera(command []string, tempDir string, logger *slog.Logger) (*CommandCamera, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, ErrNoCamera
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &CommandCamera{
		name:    command[0],
		args:    command[1:],
		tempDir: tempDir,
		logger:  logging.Component(logger, "camera"),
	}, nil
}

func (c *CommandCamera) Capture(ctx context.Context) (image.Image, error) {
	output := filepath.Join(c.tempDir, "capture_"+uuid.NewString()+".img")
	defer func() {
		if err := os.Remove(output); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Error("failed to remove capture file", "path", output, "error", err)
		}
	}()

	args := make([]string, len(c.args))
	for i, a := range c.args {
		args[i] = strings.ReplaceAll(a, OutputPlaceholder, output)
	}

	cmd := exec.CommandContext(ctx, c.name, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("capture command %q failed: %w (%s)", c.name, err, strings.TrimSpace(string(out)))
	}

	img, err := decodeFile(output)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("photo captured", "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return img, nil
}

// FileCamera returns the image stored at a fixed path on every capture.
type FileCamera struct {
	path string
}

func NewFileCamera(path string) *FileCamera {
	return &FileCamera{path: path}
}

func (c *FileCamera) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return decodeFile(c.path)
}

// NoneCamera is used when no camera is configured.
type NoneCamera struct{}

func (NoneCamera) Capture(context.Context) (image.Image, error) {
	return nil, ErrNoCamera
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode capture: %w", err)
	}
	return img, nil
}
