// Package display renders measurement values for people.
package display

import (
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	NoGPSData    = "No GPS data"
	NoNoiseData  = "0 dB"
	EnableGPS    = "No last-known location. Start the GPS agent or check location.fix_path, then try again."
	NoEntries    = "No saved measurements."
	simulatedTag = " (simulated)"
)

type Printer struct {
	tag language.Tag
	p   *message.Printer
}

// New returns a Printer for locale (a BCP 47 tag such as "en" or "pl").
// Unparseable locales fall back to English.
func New(locale string) *Printer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Printer{tag: tag, p: message.NewPrinter(tag)}
}

func (p *Printer) Locale() string {
	return p.tag.String()
}

// Noise formats a level with one decimal, e.g. "42.0 dB".
func (p *Printer) Noise(level float64, simulated bool) string {
	s := p.p.Sprintf("%.1f dB", level)
	if simulated {
		s += simulatedTag
	}
	return s
}

// Location formats coordinates the way the home screen shows a fresh fix.
func (p *Printer) Location(lat, lon float64) string {
	return "Lat: " + coord(lat) + ", Lon: " + coord(lon)
}

// Coordinates formats a stored position as "lat, lon".
func (p *Printer) Coordinates(lat, lon float64) string {
	return coord(lat) + ", " + coord(lon)
}

// Age describes t relative to now, e.g. "3 minutes ago".
func (p *Printer) Age(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

// Size formats a byte count, e.g. "12 kB".
func (p *Printer) Size(n int) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
