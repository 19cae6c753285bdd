package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vbonduro/envmon/internal/display"
	"github.com/vbonduro/envmon/internal/domain"
	"github.com/vbonduro/envmon/internal/preflight"
	"github.com/vbonduro/envmon/internal/service"
)

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"only"}}, []columnAlignment{alignRight})
	assert.Contains(t, out, "only")
	assert.Equal(t, 5, strings.Count(out, "\n")+1)
}

func TestRenderTableWithoutHeaders(t *testing.T) {
	assert.Empty(t, renderTable(nil, [][]string{{"x"}}, nil))
}

func TestRenderHistory(t *testing.T) {
	entries := []service.HistoryEntry{
		{
			Measurement: domain.Measurement{ID: 2, Date: "14-03-2026 09:26:53", NoiseLevel: 61, Simulated: true, ImageBase64: strings.Repeat("A", 4000)},
			NoiseText:   "61.0 dB (simulated)",
			GPSText:     "1.5, 2.5",
			Age:         "2 minutes ago",
		},
		{
			Measurement: domain.Measurement{ID: 1, Date: "14-03-2026 09:20:00", NoiseLevel: 40},
			NoiseText:   "40.0 dB",
			GPSText:     "0, 0",
			Age:         "8 minutes ago",
		},
	}

	out := renderHistory(entries, display.New("en"), false)
	assert.Contains(t, out, "61.0 dB (simulated)")
	assert.Contains(t, out, "14-03-2026 09:26:53")
	assert.Contains(t, out, "3.0 kB")
	assert.NotContains(t, out, "\x1b[")
	assert.Less(t, strings.Index(out, "09:26:53"), strings.Index(out, "09:20:00"))
}

func TestRenderPreflight(t *testing.T) {
	out := renderPreflight([]preflight.Result{
		{Name: preflight.NameLocation, Passed: true, Detail: "static"},
		{Name: preflight.NameCamera, Passed: false, Detail: "not configured"},
	}, false)
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "missing")
	assert.Contains(t, out, "not configured")
}
