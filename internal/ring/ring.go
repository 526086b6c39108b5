// Package ring implements the time-indexed circular byte buffer windows
// are assembled from. It generalizes a fixed-capacity circular buffer
// pattern (a pre-roll ring keyed by write position and size) to address
// the buffer by stream-clock time rather than by raw byte offset.
package ring

import "sync"

const bytesPerSample = 2 // 16-bit mono PCM

// Buffer is a lossless, single-writer circular buffer of PCM bytes,
// addressed by the stream clock rather than by write position.
type Buffer struct {
	mu sync.Mutex

	data     []byte
	cap      int
	writePos int // next physical write index
	filled   int // bytes currently valid, <= cap

	ringStartT float64 // start of the buffered range, in stream-clock seconds
	ringEndT   float64 // end of the buffered range, in stream-clock seconds
	sampleRate int
}

// New returns a Buffer sized for capSeconds of 16 kHz mono 16-bit PCM.
func New(sampleRate int, capSeconds float64) *Buffer {
	bytesPerSec := sampleRate * bytesPerSample
	capacity := int(capSeconds * float64(bytesPerSec))
	if capacity < bytesPerSec {
		capacity = bytesPerSec
	}
	// Round down to a whole number of samples so offsets stay sample-aligned.
	capacity -= capacity % bytesPerSample
	return &Buffer{
		data:       make([]byte, capacity),
		cap:        capacity,
		sampleRate: sampleRate,
	}
}

// Write appends bytes ending at stream-clock time tEnd, advancing the
// start of the buffered range if the write overflows capacity.
func (b *Buffer) Write(data []byte, tEnd float64) {
	if len(data) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(data)
	if n >= b.cap {
		copy(b.data, data[n-b.cap:])
		b.writePos = 0
		b.filled = b.cap
	} else {
		spaceToEnd := b.cap - b.writePos
		if n <= spaceToEnd {
			copy(b.data[b.writePos:], data)
			b.writePos += n
			if b.writePos == b.cap {
				b.writePos = 0
			}
		} else {
			copy(b.data[b.writePos:], data[:spaceToEnd])
			copy(b.data[0:], data[spaceToEnd:])
			b.writePos = n - spaceToEnd
		}
		b.filled += n
		if b.filled > b.cap {
			b.filled = b.cap
		}
	}

	b.ringEndT = tEnd
	bytesPerSec := float64(b.sampleRate * bytesPerSample)
	b.ringStartT = b.ringEndT - float64(b.filled)/bytesPerSec
}

// Range returns the currently buffered [start, end] in stream-clock seconds.
func (b *Buffer) Range() (start, end float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ringStartT, b.ringEndT
}

// LogicalOffset returns the byte offset of time t within the buffered
// range, or ok=false if t is outside it. The right-boundary equality
// t == end returns the full byte count buffered.
func (b *Buffer) LogicalOffset(t float64) (offset int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logicalOffsetLocked(t)
}

func (b *Buffer) logicalOffsetLocked(t float64) (int, bool) {
	if t < b.ringStartT {
		return 0, false
	}
	if t > b.ringEndT {
		return 0, false
	}
	if t == b.ringEndT {
		return b.filled, true
	}
	bytesPerSec := float64(b.sampleRate * bytesPerSample)
	offset := int((t - b.ringStartT) * bytesPerSec)
	offset -= offset % bytesPerSample
	if offset < 0 {
		offset = 0
	}
	if offset > b.filled {
		offset = b.filled
	}
	return offset, true
}

// CopyRange returns a new slice holding the audio for [tFrom, tTo],
// truncated to an even byte count. tTo is clamped to the buffer's end; if
// tFrom is out of range it returns nil rather than silently shifting
// into older data.
func (b *Buffer) CopyRange(tFrom, tTo float64) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if tTo > b.ringEndT {
		tTo = b.ringEndT
	}
	fromOff, ok := b.logicalOffsetLocked(tFrom)
	if !ok {
		return nil
	}
	toOff, ok := b.logicalOffsetLocked(tTo)
	if !ok || toOff <= fromOff {
		return nil
	}

	n := toOff - fromOff
	n -= n % bytesPerSample
	if n <= 0 {
		return nil
	}

	out := make([]byte, n)
	// physical index for logical offset 0 is (writePos - filled) mod cap
	// when full, else 0.
	base := b.physicalBaseLocked()
	for i := 0; i < n; i++ {
		out[i] = b.data[(base+fromOff+i)%b.cap]
	}
	return out
}

func (b *Buffer) physicalBaseLocked() int {
	if b.filled < b.cap {
		return 0
	}
	return ((b.writePos - b.filled) % b.cap + b.cap) % b.cap
}

// Filled reports how many bytes are currently valid.
func (b *Buffer) Filled() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filled
}

// Capacity returns the buffer's byte capacity.
func (b *Buffer) Capacity() int { return b.cap }
