package window

import (
	"time"

	"github.com/vitalio/vitalsync-agent/internal/models"
)

// TrendSet groups the three scalar trend channels that share one time axis.
// An append writes all channels atomically with the same timestamp, so the
// displayed axis range stays consistent across channels; a partial append
// cannot happen.
type TrendSet struct {
	temperature *SampleWindow
	heartRate   *SampleWindow
	oxygen      *SampleWindow
}

// NewTrendSet creates three co-located trend windows of equal capacity.
func NewTrendSet(capacity int) *TrendSet {
	return &TrendSet{
		temperature: New(capacity, true),
		heartRate:   New(capacity, true),
		oxygen:      New(capacity, true),
	}
}

// Append records one reading across all channels. The monotonicity check
// runs once, before any channel is touched, so a rejection leaves every
// channel unchanged.
func (t *TrendSet) Append(v models.VitalSign) error {
	x := float64(v.Timestamp.UnixMilli())
	if _, last, err := t.temperature.Range(); err == nil && x < last {
		return ErrNonMonotonic
	}
	_ = t.temperature.Append(x, v.Temperature)
	_ = t.heartRate.Append(x, float64(v.HeartRate))
	_ = t.oxygen.Append(x, float64(v.OxygenSaturation))
	return nil
}

// Range returns the shared time axis as wall-clock instants.
func (t *TrendSet) Range() (start, end time.Time, err error) {
	minX, maxX, err := t.temperature.Range()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return time.UnixMilli(int64(minX)), time.UnixMilli(int64(maxX)), nil
}

// Temperature returns the temperature channel.
func (t *TrendSet) Temperature() *SampleWindow { return t.temperature }

// HeartRate returns the heart-rate channel.
func (t *TrendSet) HeartRate() *SampleWindow { return t.heartRate }

// Oxygen returns the oxygen-saturation channel.
func (t *TrendSet) Oxygen() *SampleWindow { return t.oxygen }

// Size returns the shared channel length.
func (t *TrendSet) Size() int { return t.temperature.Size() }

// Clear empties every channel.
func (t *TrendSet) Clear() {
	t.temperature.Clear()
	t.heartRate.Clear()
	t.oxygen.Clear()
}

// Load replaces the current contents with a history query result, applied
// in timestamp order.
func (t *TrendSet) Load(records []models.VitalSign) {
	t.Clear()
	for _, r := range records {
		// Out-of-order history rows are skipped rather than aborting the load.
		_ = t.Append(r)
	}
}
