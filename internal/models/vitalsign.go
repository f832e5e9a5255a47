package models

import "time"

// Physiological validity bounds. Readings outside these ranges are rejected
// at the boundary, never clamped.
const (
	MinTemperature = 35.0
	MaxTemperature = 42.0
	MinOxygen      = 0
	MaxOxygen      = 100
	MinHeartRate   = 30
	MaxHeartRate   = 220
)

// VitalSign represents a single physiological reading delivered by the
// monitoring device.
type VitalSign struct {
	Timestamp        time.Time `json:"timestamp"`
	Temperature      float64   `json:"temperature"`
	OxygenSaturation int       `json:"oxygenSaturation"`
	HeartRate        int       `json:"heartRate"`
	ECGSignal        []float64 `json:"ecgSignal"`
}

// IsValid reports whether the reading falls within physiological bounds.
func (v VitalSign) IsValid() bool {
	return v.Temperature >= MinTemperature && v.Temperature <= MaxTemperature &&
		v.OxygenSaturation >= MinOxygen && v.OxygenSaturation <= MaxOxygen &&
		v.HeartRate >= MinHeartRate && v.HeartRate <= MaxHeartRate
}
