package models

import "time"

// AlarmType identifies the condition that raised an alarm. The numeric
// values are part of the wire format and must not be reordered.
type AlarmType int

const (
	AlarmLowOxygen AlarmType = iota
	AlarmHighHeartRate
	AlarmLowHeartRate
	AlarmAbnormalTemperature
	AlarmECGAbnormal
)

// String returns a human-readable name for the alarm type.
func (t AlarmType) String() string {
	switch t {
	case AlarmLowOxygen:
		return "low_oxygen"
	case AlarmHighHeartRate:
		return "high_heart_rate"
	case AlarmLowHeartRate:
		return "low_heart_rate"
	case AlarmAbnormalTemperature:
		return "abnormal_temperature"
	case AlarmECGAbnormal:
		return "ecg_abnormal"
	default:
		return "unknown"
	}
}

// Alarm represents an alarm event raised by the monitoring device. Alarms
// are independent of the vital-sign validity predicate: an alarm may well
// describe an out-of-range reading.
type Alarm struct {
	Timestamp time.Time `json:"timestamp"`
	Type      AlarmType `json:"type"`
	Message   string    `json:"message"`
	Severity  int       `json:"severity"` // 1-5, 5 is most severe
}
