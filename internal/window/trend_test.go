package window_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vitalio/vitalsync-agent/internal/models"
	"github.com/vitalio/vitalsync-agent/internal/window"
)

func reading(ts time.Time) models.VitalSign {
	return models.VitalSign{
		Timestamp:        ts,
		Temperature:      36.8,
		OxygenSaturation: 98,
		HeartRate:        72,
	}
}

// TestTrendSet_ChannelsStayAligned tests that every append leaves all
// channels the same length, including across evictions.
func TestTrendSet_ChannelsStayAligned(t *testing.T) {
	ts := window.NewTrendSet(5)
	base := time.Now()

	for i := 0; i < 12; i++ {
		err := ts.Append(reading(base.Add(time.Duration(i) * time.Second)))
		assert.NoError(t, err)

		assert.Equal(t, ts.Temperature().Size(), ts.HeartRate().Size())
		assert.Equal(t, ts.Temperature().Size(), ts.Oxygen().Size())
	}

	assert.Equal(t, 5, ts.Size())
}

// TestTrendSet_RejectionLeavesAllChannelsUntouched tests that a rejected
// append is atomic across channels.
func TestTrendSet_RejectionLeavesAllChannelsUntouched(t *testing.T) {
	ts := window.NewTrendSet(5)
	base := time.Now()

	assert.NoError(t, ts.Append(reading(base)))
	err := ts.Append(reading(base.Add(-time.Minute)))
	assert.ErrorIs(t, err, window.ErrNonMonotonic)

	assert.Equal(t, 1, ts.Temperature().Size())
	assert.Equal(t, 1, ts.HeartRate().Size())
	assert.Equal(t, 1, ts.Oxygen().Size())
}

// TestTrendSet_SharedTimeAxis tests the shared range across channels.
func TestTrendSet_SharedTimeAxis(t *testing.T) {
	ts := window.NewTrendSet(100)
	base := time.Unix(1700000000, 0)

	for i := 0; i < 3; i++ {
		assert.NoError(t, ts.Append(reading(base.Add(time.Duration(i)*time.Minute))))
	}

	start, end, err := ts.Range()
	assert.NoError(t, err)
	assert.Equal(t, base.UnixMilli(), start.UnixMilli())
	assert.Equal(t, base.Add(2*time.Minute).UnixMilli(), end.UnixMilli())
}

// TestTrendSet_LoadReplacesContents tests history loading.
func TestTrendSet_LoadReplacesContents(t *testing.T) {
	ts := window.NewTrendSet(100)
	base := time.Now()

	assert.NoError(t, ts.Append(reading(base)))

	history := []models.VitalSign{
		reading(base.Add(-2 * time.Hour)),
		reading(base.Add(-1 * time.Hour)),
	}
	ts.Load(history)

	assert.Equal(t, 2, ts.Size())
}

// TestECGRing_BoundedAppend tests O(1) bounded appends and snapshot order.
func TestECGRing_BoundedAppend(t *testing.T) {
	r := window.NewECGRing(4)

	r.AppendAll([]float64{1, 2, 3, 4, 5, 6})

	assert.Equal(t, 4, r.Len())
	assert.Equal(t, 4, r.Cap())
	assert.Equal(t, []float64{3, 4, 5, 6}, r.Snapshot())
}

// TestECGRing_Clear tests resetting the ring.
func TestECGRing_Clear(t *testing.T) {
	r := window.NewECGRing(4)
	r.AppendAll([]float64{1, 2, 3})
	r.Clear()

	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Snapshot())

	r.Append(9)
	assert.Equal(t, []float64{9}, r.Snapshot())
}
