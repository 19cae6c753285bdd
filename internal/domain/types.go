package domain

import "time"

// DateLayout is the format of Measurement.Date (dd-MM-yyyy HH:mm:ss).
const DateLayout = "02-01-2006 15:04:05"

// Measurement is one persisted observation. ID is the creation time in Unix
// milliseconds and is the only identity used for deletes; two measurements
// created in the same millisecond share an ID.
type Measurement struct {
	ID          int64   `json:"id"`
	Date        string  `json:"date"`
	NoiseLevel  float64 `json:"noiseLevel"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	ImageBase64 string  `json:"imageBase64,omitempty"`
	Simulated   bool    `json:"simulated,omitempty"`
}

// CreatedAt derives the creation time from the ID.
func (m Measurement) CreatedAt() time.Time {
	return time.UnixMilli(m.ID)
}

func (m Measurement) HasImage() bool {
	return m.ImageBase64 != ""
}

// Fix is a last-known position reported by a location source.
type Fix struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Time      time.Time `json:"time,omitempty"`
}

// NoiseReading is the outcome of one sampling window. Simulated is set when
// Level was substituted because the recorder could not be used or reported
// no amplitude.
type NoiseReading struct {
	Level     float64
	Amplitude int
	Simulated bool
	Reason    string
}
