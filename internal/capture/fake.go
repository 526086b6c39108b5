package capture

import (
	"sync"
	"time"

	"github.com/sumerc/voxpipe/internal/wav"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2
)

// FakeContext replays a WAV file as if it were a live capture device,
// used by the headless -test mode.
type FakeContext struct {
	pcm      []byte
	realtime bool
}

// NewFakeContext loads pcm from a WAV file at wavPath, stripping the
// 44-byte header.
func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	pcm, err := wav.ReadPCM(wavPath)
	if err != nil {
		return nil, err
	}
	return &FakeContext{pcm: pcm, realtime: realtime}, nil
}

// NewFakeContextFromPCM builds a fake context directly from raw PCM,
// useful for synthetic-tone tests that never touch a file.
func NewFakeContextFromPCM(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) { return nil, nil }
func (f *FakeContext) Close()                          {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, cfg Config) (Device, error) {
	return &FakeCapture{pcm: f.pcm, realtime: f.realtime, clock: newClock(int(cfg.SampleRate)), audioDone: make(chan struct{})}, nil
}

// FakeCapture feeds pre-loaded PCM through the same FrameCallback
// contract a real device uses, optionally paced to real time.
type FakeCapture struct {
	pcm      []byte
	realtime bool
	clock    *clock

	audioDone chan struct{}

	mu       sync.Mutex
	cb       FrameCallback
	stopCh   chan struct{}
	feedDone chan struct{}
}

// AudioDone signals when the buffered PCM has been fully delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeCapture) SetCallback(cb FrameCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) feedChunk(cb FrameCallback, pos, chunkBytes int) int {
	end := pos + chunkBytes
	if end > len(f.pcm) {
		end = len(f.pcm)
	}
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	t := f.clock.advance(len(chunk) / fakeBytesPerFrame)
	cb(chunk, t)
	return end
}

func (f *FakeCapture) Start() error {
	f.clock.reset()
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})

	chunkBytes := fakeFrameSize * fakeBytesPerFrame
	chunkDur := time.Duration(fakeFrameSize) * time.Second / time.Duration(SampleRate)

	go func() {
		defer close(f.feedDone)
		pos := 0
		ticker := time.NewTicker(chunkDur)
		defer ticker.Stop()
		for pos < len(f.pcm) {
			select {
			case <-f.stopCh:
				return
			default:
			}
			f.mu.Lock()
			cb := f.cb
			f.mu.Unlock()
			if cb != nil {
				pos = f.feedChunk(cb, pos, chunkBytes)
			} else {
				pos += chunkBytes
			}
			if f.realtime {
				select {
				case <-ticker.C:
				case <-f.stopCh:
					return
				}
			}
		}
		close(f.audioDone)
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh != nil {
		select {
		case <-f.stopCh:
		default:
			close(f.stopCh)
		}
		<-f.feedDone
	}
}

func (f *FakeCapture) Close() { f.Stop() }
