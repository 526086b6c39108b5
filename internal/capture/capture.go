// Package capture is the platform audio capture collaborator: it
// delivers raw PCM frames with a monotonic stream clock. It is
// deliberately external to the core pipeline, but this package provides
// concrete adapters (Context/Device interfaces backed by PulseAudio on
// Linux and malgo elsewhere) behind the same frame-callback contract
// the core consumes.
package capture

import "sync"

const (
	SampleRate = 16000
	Channels   = 1
)

// DeviceInfo names a capture device.
type DeviceInfo struct {
	ID   string
	Name string
}

// FrameCallback delivers a PCM frame and the stream-clock time (seconds
// since capture start) at the end of that frame.
type FrameCallback func(data []byte, streamTimeSec float64)

// Config carries the sample rate and channel count a capture device
// should open with.
type Config struct {
	SampleRate uint32
	Channels   uint32
}

// Context enumerates devices and opens capture streams.
type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, cfg Config) (Device, error)
	Close()
}

// Device is an open capture stream.
type Device interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb FrameCallback)
	ClearCallback()
	DeviceName() string
}

// clock turns a stream of raw byte frames into the monotonic
// stream-clock time the core requires, tracking cumulative sample count
// rather than wall time so it stays exact under scheduling jitter.
type clock struct {
	mu           sync.Mutex
	sampleRate   int
	totalSamples int64
}

func newClock(sampleRate int) *clock {
	return &clock{sampleRate: sampleRate}
}

// advance records n new samples and returns the stream time at their end.
func (c *clock) advance(n int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalSamples += int64(n)
	return float64(c.totalSamples) / float64(c.sampleRate)
}

func (c *clock) reset() {
	c.mu.Lock()
	c.totalSamples = 0
	c.mu.Unlock()
}
