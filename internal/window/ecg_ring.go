package window

// ECGRingSize holds several seconds of waveform at expected sampling rates.
const ECGRingSize = 5000

// ECGRing is a fixed-size ring buffer for the raw, sample-indexed ECG
// waveform. Appends are O(1) and the buffer never grows regardless of how
// long the input stream runs.
type ECGRing struct {
	buf   []float64
	head  int
	count int
}

// NewECGRing creates a ring of the given size, or ECGRingSize when size is
// not positive.
func NewECGRing(size int) *ECGRing {
	if size <= 0 {
		size = ECGRingSize
	}
	return &ECGRing{buf: make([]float64, size)}
}

// Append stores one waveform sample, overwriting the oldest when full.
func (r *ECGRing) Append(v float64) {
	r.buf[(r.head+r.count)%len(r.buf)] = v
	if r.count < len(r.buf) {
		r.count++
	} else {
		r.head = (r.head + 1) % len(r.buf)
	}
}

// AppendAll stores a burst of samples, as delivered inside one reading.
func (r *ECGRing) AppendAll(vs []float64) {
	for _, v := range vs {
		r.Append(v)
	}
}

// Snapshot copies the retained samples out in arrival order.
func (r *ECGRing) Snapshot() []float64 {
	out := make([]float64, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Len returns the number of retained samples.
func (r *ECGRing) Len() int { return r.count }

// Cap returns the ring size.
func (r *ECGRing) Cap() int { return len(r.buf) }

// Clear resets the ring to empty.
func (r *ECGRing) Clear() {
	r.head = 0
	r.count = 0
}
