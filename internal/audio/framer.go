package audio

import "fmt"

// Framer accumulates quantized samples and emits fixed-size frames suitable
// for transport. Frame size is constant for the lifetime of one capture
// session; the tail shorter than a frame is only released by Flush.
type Framer struct {
	frameSamples int
	pending      []int16
}

// NewFramer creates a framer emitting frames of frameSamples samples each.
func NewFramer(frameSamples int) (*Framer, error) {
	if frameSamples <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", frameSamples)
	}
	return &Framer{
		frameSamples: frameSamples,
		pending:      make([]int16, 0, frameSamples),
	}, nil
}

// Push adds samples and returns zero or more complete frames as raw
// little-endian PCM bytes.
func (f *Framer) Push(samples []int16) [][]byte {
	f.pending = append(f.pending, samples...)

	var frames [][]byte
	for len(f.pending) >= f.frameSamples {
		frames = append(frames, SamplesToBytes(f.pending[:f.frameSamples]))
		f.pending = f.pending[f.frameSamples:]
	}
	return frames
}

// Flush releases any buffered tail as a final short frame. Returns nil when
// nothing is pending.
func (f *Framer) Flush() []byte {
	if len(f.pending) == 0 {
		return nil
	}
	frame := SamplesToBytes(f.pending)
	f.pending = f.pending[:0]
	return frame
}

// Pending returns the number of buffered samples not yet emitted.
func (f *Framer) Pending() int {
	return len(f.pending)
}
