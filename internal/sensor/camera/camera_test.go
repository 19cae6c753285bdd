package camera

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/envmon/internal/logging"
)

func writePNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})

	path := filepath.Join(dir, "shot.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestFileCamera(t *testing.T) {
	path := writePNG(t, t.TempDir(), 32, 24)

	img, err := NewFileCamera(path).Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 24), img.Bounds())
}

func TestFileCameraErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := NewFileCamera(filepath.Join(dir, "absent.png")).Capture(context.Background())
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))
	_, err = NewFileCamera(bad).Capture(context.Background())
	assert.Error(t, err)
}

func TestCommandCameraReplacesOutputPlaceholder(t *testing.T) {
	cpPath, err := exec.LookPath("cp")
	if err != nil {
		t.Skip("cp not available")
	}
	src := writePNG(t, t.TempDir(), 16, 8)
	spool := t.TempDir()

	cam, err := NewCommandCamera([]string{cpPath, src, OutputPlaceholder}, spool, logging.NewNop())
	require.NoError(t, err)

	img, err := cam.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())

	entries, err := os.ReadDir(spool)
	require.NoError(t, err)
	assert.Empty(t, entries, "capture file must be removed")
}

func TestCommandCameraFailures(t *testing.T) {
	_, err := NewCommandCamera(nil, "", logging.NewNop())
	assert.ErrorIs(t, err, ErrNoCamera)

	cam, err := NewCommandCamera([]string{"envmon-no-such-camera", OutputPlaceholder}, t.TempDir(), logging.NewNop())
	require.NoError(t, err)
	_, err = cam.Capture(context.Background())
	assert.Error(t, err)
}

func TestNoneCamera(t *testing.T) {
	_, err := NoneCamera{}.Capture(context.Background())
	assert.ErrorIs(t, err, ErrNoCamera)
}
