package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	SourceNone    = "none"
	SourceFile    = "file"
	SourceStatic  = "static"
	SourceCommand = "command"
)

// Location selects where the last-known fix comes from.
type Location struct {
	Source    string  `toml:"source"`
	FixPath   string  `toml:"fix_path"`
	Latitude  float64 `toml:"latitude"`
	Longitude float64 `toml:"longitude"`
}

// Noise configures the microphone sampling window and recorder.
type Noise struct {
	Source       string   `toml:"source"`
	Command      []string `toml:"command"`
	File         string   `toml:"file"`
	WindowMillis int      `toml:"window_ms"`
}

// Camera configures photo capture. A "{output}" argument in Command is
// replaced with the path the capture must be written to.
type Camera struct {
	Source  string   `toml:"source"`
	Command []string `toml:"command"`
	File    string   `toml:"file"`
}

type Config struct {
	ListenAddr string   `toml:"listen_addr"`
	DataDir    string   `toml:"data_dir"`
	SpoolDir   string   `toml:"spool_dir"`
	Locale     string   `toml:"locale"`
	LogLevel   string   `toml:"log_level"`
	LogFormat  string   `toml:"log_format"`
	LogFile    string   `toml:"log_file"`
	Location   Location `toml:"location"`
	Noise      Noise    `toml:"noise"`
	Camera     Camera   `toml:"camera"`
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		ListenAddr: "127.0.0.1:8080",
		DataDir:    "~/.local/share/envmon",
		SpoolDir:   "~/.cache/envmon/spool",
		Locale:     "en",
		LogLevel:   "info",
		LogFormat:  "json",
		Location: Location{
			Source:  SourceFile,
			FixPath: "~/.local/share/envmon/last_fix.json",
		},
		Noise: Noise{
			Source:       SourceCommand,
			Command:      []string{"arecord", "-q", "-f", "S16_LE", "-c", "1", "-r", "8000", "-t", "wav"},
			WindowMillis: 600,
		},
		Camera: Camera{
			Source:  SourceCommand,
			Command: []string{"fswebcam", "-q", "--no-banner", "--png", "0", "{output}"},
		},
	}
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/envmon/config.toml.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(dir, "envmon", "config.toml"), nil
}

// Load reads the TOML file at path (or the default location when path is
// empty), applies environment overrides and validates the result. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	resolved, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(resolved)
	switch {
	case err == nil:
		defer file.Close()
		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("open config: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.ListenAddr = getEnv("LISTEN_ADDR", c.ListenAddr)
	c.DataDir = getEnv("ENVMON_DATA_DIR", c.DataDir)
	c.SpoolDir = getEnv("ENVMON_SPOOL_DIR", c.SpoolDir)
	c.Locale = getEnv("ENVMON_LOCALE", c.Locale)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
}

func (c *Config) normalize() error {
	var err error
	if c.DataDir, err = ExpandPath(c.DataDir); err != nil {
		return err
	}
	if c.SpoolDir, err = ExpandPath(c.SpoolDir); err != nil {
		return err
	}
	if c.Location.FixPath, err = ExpandPath(c.Location.FixPath); err != nil {
		return err
	}
	if c.Noise.File, err = ExpandPath(c.Noise.File); err != nil {
		return err
	}
	if c.Camera.File, err = ExpandPath(c.Camera.File); err != nil {
		return err
	}
	c.Location.Source = strings.ToLower(strings.TrimSpace(c.Location.Source))
	c.Noise.Source = strings.ToLower(strings.TrimSpace(c.Noise.Source))
	c.Camera.Source = strings.ToLower(strings.TrimSpace(c.Camera.Source))
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir must be set")
	}
	switch c.Location.Source {
	case SourceFile:
		if c.Location.FixPath == "" {
			return errors.New("location.fix_path is required when location.source is \"file\"")
		}
	case SourceStatic, SourceNone:
	default:
		return fmt.Errorf("unknown location.source %q", c.Location.Source)
	}
	switch c.Noise.Source {
	case SourceCommand:
		if len(c.Noise.Command) == 0 {
			return errors.New("noise.command is required when noise.source is \"command\"")
		}
	case SourceFile:
		if c.Noise.File == "" {
			return errors.New("noise.file is required when noise.source is \"file\"")
		}
	case SourceNone:
	default:
		return fmt.Errorf("unknown noise.source %q", c.Noise.Source)
	}
	if c.Noise.WindowMillis <= 0 {
		return fmt.Errorf("noise.window_ms must be positive, got %d", c.Noise.WindowMillis)
	}
	switch c.Camera.Source {
	case SourceCommand:
		if len(c.Camera.Command) == 0 {
			return errors.New("camera.command is required when camera.source is \"command\"")
		}
	case SourceFile:
		if c.Camera.File == "" {
			return errors.New("camera.file is required when camera.source is \"file\"")
		}
	case SourceNone:
	default:
		return fmt.Errorf("unknown camera.source %q", c.Camera.Source)
	}
	return nil
}

// MeasurementsPath is the backing file holding every saved measurement.
func (c *Config) MeasurementsPath() string {
	return filepath.Join(c.DataDir, "measurements.json")
}

// EnsureDirectories creates the data and spool directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.DataDir, c.SpoolDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ExpandPath resolves a leading "~" and returns an absolute, cleaned path.
// Empty input stays empty.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}
