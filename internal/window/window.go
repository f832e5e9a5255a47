// Package window provides the bounded, auto-evicting sample buffers backing
// the real-time display channels. Windows are not safe for concurrent
// writers; they are owned by the monitor's single consumer loop.
package window

import "errors"

// DefaultCapacity is the number of points a window retains before evicting.
const DefaultCapacity = 1000

var (
	// ErrEmptyWindow is returned by Range on a window with no points.
	// Callers must not treat an empty range as (0, 0).
	ErrEmptyWindow = errors.New("window is empty")

	// ErrNonMonotonic is returned when an append would move the time axis
	// backwards on a monotonic window.
	ErrNonMonotonic = errors.New("x must not decrease on a monotonic window")
)

// Point is a single (x, y) sample.
type Point struct {
	X float64
	Y float64
}

// SampleWindow is a fixed-capacity, insertion-ordered buffer of samples.
// Appending beyond capacity evicts exactly the oldest point, giving a
// sliding window rather than a resetting one.
type SampleWindow struct {
	points    []Point
	capacity  int
	monotonic bool
}

// New creates a window with the given capacity. Monotonic windows reject
// appends whose x is smaller than the last appended x (time axes).
func New(capacity int, monotonic bool) *SampleWindow {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &SampleWindow{
		points:    make([]Point, 0, capacity),
		capacity:  capacity,
		monotonic: monotonic,
	}
}

// Append inserts a point, evicting the oldest one first when the window is
// at capacity.
func (w *SampleWindow) Append(x, y float64) error {
	if w.monotonic && len(w.points) > 0 && x < w.points[len(w.points)-1].X {
		return ErrNonMonotonic
	}
	if len(w.points) >= w.capacity {
		w.evict(len(w.points) - w.capacity + 1)
	}
	w.points = append(w.points, Point{X: x, Y: y})
	return nil
}

// evict drops n points from the front, shifting in place so the backing
// array never grows past capacity.
func (w *SampleWindow) evict(n int) {
	if n >= len(w.points) {
		w.points = w.points[:0]
		return
	}
	copy(w.points, w.points[n:])
	w.points = w.points[:len(w.points)-n]
}

// Range returns the x of the oldest and newest retained points. It is
// maintained by eviction, not by scanning.
func (w *SampleWindow) Range() (minX, maxX float64, err error) {
	if len(w.points) == 0 {
		return 0, 0, ErrEmptyWindow
	}
	return w.points[0].X, w.points[len(w.points)-1].X, nil
}

// Size returns the number of retained points.
func (w *SampleWindow) Size() int {
	return len(w.points)
}

// Capacity returns the maximum number of retained points.
func (w *SampleWindow) Capacity() int {
	return w.capacity
}

// SetCapacity changes the capacity, evicting from the front until the
// window fits.
func (w *SampleWindow) SetCapacity(n int) {
	if n <= 0 {
		return
	}
	if len(w.points) > n {
		w.evict(len(w.points) - n)
	}
	w.capacity = n
}

// Clear resets the window to empty with no residual range.
func (w *SampleWindow) Clear() {
	w.points = w.points[:0]
}

// Points returns the retained points in insertion order. The returned slice
// aliases the window's storage and is only valid until the next Append.
func (w *SampleWindow) Points() []Point {
	return w.points
}
