// Package preflight checks that the sensors and storage envmon depends on are
// reachable and accessible. It plays the role of runtime permission requests:
// failures are reported, never fatal.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/vbonduro/envmon/internal/config"
)

const (
	NameLocation   = "Location"
	NameMicrophone = "Microphone"
	NameCamera     = "Camera"
	NameData       = "Data directory"
)

// Result reports the outcome of a single check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Checker runs checks against a fixed configuration.
type Checker struct {
	cfg *config.Config
}

func NewChecker(cfg *config.Config) *Checker {
	return &Checker{cfg: cfg}
}

// RunAll executes every check, in a stable order.
func (c *Checker) RunAll(ctx context.Context) []Result {
	return []Result{
		c.Check(ctx, NameLocation),
		c.Check(ctx, NameCamera),
		c.Check(ctx, NameMicrophone),
		c.Check(ctx, NameData),
	}
}

// Check runs the single check called name.
func (c *Checker) Check(ctx context.Context, name string) Result {
	switch name {
	case NameLocation:
		return CheckLocation(c.cfg.Location)
	case NameMicrophone:
		if c.cfg.Noise.Source == config.SourceNone {
			// No input device is not a denial: the meter substitutes readings.
			return Result{Name: NameMicrophone, Passed: true, Detail: "not configured (readings are simulated)"}
		}
		return checkSource(NameMicrophone, c.cfg.Noise.Source, c.cfg.Noise.Command, c.cfg.Noise.File)
	case NameCamera:
		return checkSource(NameCamera, c.cfg.Camera.Source, c.cfg.Camera.Command, c.cfg.Camera.File)
	case NameData:
		return CheckDirectoryAccess(NameData, c.cfg.DataDir)
	default:
		return Result{Name: name, Detail: "unknown check"}
	}
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// Failed returns the names of the failed results.
func Failed(results []Result) []string {
	var names []string
	for _, r := range results {
		if !r.Passed {
			names = append(names, r.Name)
		}
	}
	return names
}

// CheckLocation passes for a static source and for a fix file that either
// exists and is readable or does not exist yet (no fix is not a denial).
func CheckLocation(loc config.Location) Result {
	switch loc.Source {
	case config.SourceStatic:
		return Result{Name: NameLocation, Passed: true, Detail: fmt.Sprintf("static %.5f, %.5f", loc.Latitude, loc.Longitude)}
	case config.SourceFile:
		if err := unix.Access(loc.FixPath, unix.R_OK); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Result{Name: NameLocation, Passed: true, Detail: fmt.Sprintf("%s (no fix yet)", loc.FixPath)}
			}
			return Result{Name: NameLocation, Detail: fmt.Sprintf("%s (error: %v)", loc.FixPath, err)}
		}
		return Result{Name: NameLocation, Passed: true, Detail: fmt.Sprintf("%s (readable)", loc.FixPath)}
	default:
		return Result{Name: NameLocation, Detail: "not configured"}
	}
}

// CheckCommand verifies that the program of command is on PATH.
func CheckCommand(name string, command []string) Result {
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		return Result{Name: name, Detail: "no command configured"}
	}
	path, err := exec.LookPath(command[0])
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not found)", command[0])}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckReadableFile verifies that path exists and can be read.
func CheckReadableFile(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (readable)", path)}
}

// CheckDirectoryAccess verifies that path is a directory envmon can use.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func checkSource(name, source string, command []string, file string) Result {
	switch source {
	case config.SourceCommand:
		return CheckCommand(name, command)
	case config.SourceFile:
		return CheckReadableFile(name, file)
	default:
		return Result{Name: name, Detail: "not configured"}
	}
}
