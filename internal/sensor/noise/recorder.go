package noise

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mjibson/go-dsp/wav"
	"gonum.org/v1/gonum/floats"

	"github.com/vbonduro/envmon/internal/logging"
)

const (
	maxAmplitude  = math.MaxInt16
	chunkSamples  = 256
	stopGrace     = 2 * time.Second
	headerTimeout = 3 * time.Second

	formatPCM   = 1
	formatFloat = 3
)

var errNotStarted = errors.New("recorder not started")

// peakMonitor decodes a WAV stream and keeps the running peak amplitude.
// ready receives the outcome of header parsing exactly once.
type peakMonitor struct {
	peak  atomic.Int64
	ready chan error
	done  chan struct{}
	err   error
}

func newPeakMonitor() *peakMonitor {
	return &peakMonitor{ready: make(chan error, 1), done: make(chan struct{})}
}

func (p *peakMonitor) run(r io.Reader) {
	defer close(p.done)
	w, err := wav.New(r)
	if err != nil {
		p.err = fmt.Errorf("failed to read wav header: %w", err)
		p.ready <- p.err
		return
	}
	width := sampleWidth(w.Header)
	if width == 0 {
		p.err = fmt.Errorf("unsupported wav encoding: format %d, %d bits", w.AudioFormat, w.BitsPerSample)
		p.ready <- p.err
		return
	}
	p.ready <- nil

	data := r
	if w.Samples > 0 {
		data = io.LimitReader(r, int64(w.Samples)*int64(width))
	}
	p.err = p.consume(w.Header, data)
}

// consume reads the data chunk in frame-aligned pieces so that a short
// final read still contributes its whole samples.
func (p *peakMonitor) consume(h wav.Header, r io.Reader) error {
	width := sampleWidth(h)
	buf := make([]byte, chunkSamples*width)
	carry := 0
	for {
		n, err := io.ReadAtLeast(r, buf[carry:], width-carry)
		total := carry + n
		whole := total - total%width
		if whole > 0 {
			if amps := amplitudes(decodeSamples(h, buf[:whole])); len(amps) > 0 {
				p.observe(peakOf(amps))
			}
		}
		carry = copy(buf, buf[whole:total])
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return fmt.Errorf("failed to read samples: %w", err)
		}
	}
}

func (p *peakMonitor) observe(v float64) {
	next := int64(math.Min(math.Round(v), maxAmplitude))
	for {
		cur := p.peak.Load()
		if next <= cur || p.peak.CompareAndSwap(cur, next) {
			return
		}
	}
}

func (p *peakMonitor) value() int {
	return int(p.peak.Load())
}

// awaitHeader blocks until the stream header was parsed, the stream ended,
// ctx was cancelled or headerTimeout passed.
func (p *peakMonitor) awaitHeader(ctx context.Context) error {
	timer := time.NewTimer(headerTimeout)
	defer timer.Stop()
	select {
	case err := <-p.ready:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.New("no audio header received")
	}
}

// sampleWidth is the byte size of one sample, or 0 for encodings the
// monitor cannot decode.
func sampleWidth(h wav.Header) int {
	switch {
	case h.AudioFormat == formatPCM && h.BitsPerSample == 8:
		return 1
	case h.AudioFormat == formatPCM && h.BitsPerSample == 16:
		return 2
	case h.AudioFormat == formatFloat && h.BitsPerSample == 32:
		return 4
	default:
		return 0
	}
}

// decodeSamples turns little-endian sample bytes into []uint8, []int16 or
// []float32. len(data) must be a multiple of the sample width.
func decodeSamples(h wav.Header, data []byte) any {
	switch sampleWidth(h) {
	case 1:
		return append([]uint8(nil), data...)
	case 2:
		out := make([]int16, len(data)/2)
		for i := range out {
			out[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
		}
		return out
	case 4:
		out := make([]float32, len(data)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
		}
		return out
	default:
		return nil
	}
}

// amplitudes maps decoded samples onto the 0..32767 amplitude scale, keeping
// the sign so that peakOf can take the larger excursion.
func amplitudes(samples any) []float64 {
	switch s := samples.(type) {
	case []int16:
		out := make([]float64, len(s))
		for i, v := range s {
			out[i] = float64(v)
		}
		return out
	case []uint8:
		out := make([]float64, len(s))
		for i, v := range s {
			out[i] = (float64(v) - 128) * 256
		}
		return out
	case []float32:
		out := make([]float64, len(s))
		for i, v := range s {
			out[i] = float64(v) * maxAmplitude
		}
		return out
	default:
		return nil
	}
}

func peakOf(amps []float64) float64 {
	return math.Max(floats.Max(amps), -floats.Min(amps))
}

// CommandRecorder runs an external capture program that writes a WAV stream
// to stdout, e.g. arecord -q -f S16_LE -c 1 -r 8000 -t wav.
type CommandRecorder struct {
	name   string
	args   []string
	logger *slog.Logger

	cmd     *exec.Cmd
	cancel  context.CancelFunc
	monitor *peakMonitor
	stderr  bytes.Buffer
}

func NewCommandRecorder(command []string, logger *slog.Logger) (*CommandRecorder, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, ErrNoRecorder
	}
	return &CommandRecorder{
		name:   command[0],
		args:   command[1:],
		logger: logging.Component(logger, "recorder"),
	}, nil
}

// Start launches the capture program and returns once its WAV header has
// arrived. A program that exits or stays silent before that counts as a
// setup failure.
func (r *CommandRecorder) Start(ctx context.Context) error {
	if r.cmd != nil {
		return errors.New("recorder already started")
	}
	cctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(cctx, r.name, r.args...)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = stopGrace
	cmd.Stderr = &r.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to open recorder output: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start recorder %q: %w", r.name, err)
	}

	r.cmd = cmd
	r.cancel = cancel
	r.monitor = newPeakMonitor()
	go r.monitor.run(stdout)

	if err := r.monitor.awaitHeader(ctx); err != nil {
		_ = r.Stop()
		if msg := strings.TrimSpace(r.stderr.String()); msg != "" {
			return fmt.Errorf("recorder %q failed: %w (%s)", r.name, err, msg)
		}
		return fmt.Errorf("recorder %q failed: %w", r.name, err)
	}
	r.logger.Debug("recorder started", "command", r.name, "pid", cmd.Process.Pid)
	return nil
}

func (r *CommandRecorder) MaxAmplitude() int {
	if r.monitor == nil {
		return 0
	}
	return r.monitor.value()
}

// Stop interrupts the capture program, lets the monitor drain the output
// pipe to EOF and then reaps the process. A program that ignores the
// interrupt is killed after stopGrace.
func (r *CommandRecorder) Stop() error {
	if r.cmd == nil {
		return errNotStarted
	}
	r.cancel()

	timer := time.NewTimer(stopGrace)
	defer timer.Stop()
	select {
	case <-r.monitor.done:
	case <-timer.C:
		r.logger.Warn("recorder ignored interrupt, killing", "command", r.name)
		if err := r.cmd.Process.Kill(); err != nil {
			r.logger.Debug("kill recorder failed", "error", err)
		}
	}

	waitErr := r.cmd.Wait()
	<-r.monitor.done
	r.cmd = nil
	if r.monitor.err != nil {
		return r.monitor.err
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return fmt.Errorf("recorder exited: %w", waitErr)
	}
	return nil
}

func (r *CommandRecorder) Release() error {
	if r.cmd != nil {
		return r.Stop()
	}
	return nil
}

// FileRecorder replays a WAV file through the same peak tracking, for
// re-analysing clips recorded elsewhere.
type FileRecorder struct {
	path    string
	file    *os.File
	monitor *peakMonitor
}

func NewFileRecorder(path string) *FileRecorder {
	return &FileRecorder{path: path}
}

func (r *FileRecorder) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("failed to open recording: %w", err)
	}
	r.file = f
	r.monitor = newPeakMonitor()
	go r.monitor.run(f)
	return r.monitor.awaitHeader(ctx)
}

func (r *FileRecorder) MaxAmplitude() int {
	if r.monitor == nil {
		return 0
	}
	<-r.monitor.done
	return r.monitor.value()
}

func (r *FileRecorder) Stop() error {
	if r.monitor == nil {
		return errNotStarted
	}
	<-r.monitor.done
	return r.monitor.err
}

func (r *FileRecorder) Release() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
