// Package window turns a continuous PCM stream into variable-length,
// speech-bounded WAV windows that chain seamlessly during continuous
// speech and never lose or duplicate audio. It is driven by VAD edges
// and pause-controller state and reads its audio exclusively from the
// ring buffer, which is the sole source for assembling windows.
package window

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/sumerc/voxpipe/internal/logging"
	"github.com/sumerc/voxpipe/internal/pause"
	"github.com/sumerc/voxpipe/internal/ring"
	"github.com/sumerc/voxpipe/internal/vad"
	"github.com/sumerc/voxpipe/internal/wav"
)

const bytesPerSample = 2

// Config carries the tunables that shape window assembly.
type Config struct {
	WindowSizeSec  float64 // W
	PreRollSec     float64 // P
	MaxExtension   float64 // E clamped by ratio, i.e. min(E, W*R)
	WordPauseSec   float64 // Pp
	ThresholdRMS   float64 // matches VAD's theta
	SampleRate     int
}

func (c Config) nominalBytes() int {
	n := int(c.WindowSizeSec * float64(c.SampleRate) * bytesPerSample)
	return n - n%bytesPerSample
}

func (c Config) totalCapBytes() int {
	n := int((c.WindowSizeSec + c.MaxExtension) * float64(c.SampleRate) * bytesPerSample)
	return n - n%bytesPerSample
}

func (c Config) bytesPerSec() float64 {
	return float64(c.SampleRate * bytesPerSample)
}

type windowState int

const (
	stateIdle windowState = iota
	stateCollecting
)

// OnWindowReady is invoked with the buffer's lock held whenever a window
// has been written to wavPath, from whichever goroutine triggered the
// emission (the capture callback via OnFrame, Tick, or
// OnSilenceDetected). wavPath's ownership transfers to the caller, which
// becomes responsible for eventually deleting it.
type OnWindowReady func(wavPath string, startAbsSec float64)

// Buffer assembles windows from a ring buffer, gated by a pause
// controller and driven by VAD edges. All mutation happens under a
// single lock; the capture thread is the only writer.
type Buffer struct {
	cfg    Config
	ring   *ring.Buffer
	pauser *pause.Controller
	wavDir string
	ready  OnWindowReady

	mu          sync.Mutex
	st          windowState
	extending   bool
	buf         []byte
	wStart      float64
	hasSpeech   bool
	lastSpeechT float64
	tNow        float64
}

// New returns an idle Buffer. wavDir is where emitted WAVs are written,
// each under a unique generated name; an empty wavDir uses os.TempDir.
// The buffer subscribes to pauser so an in-flight window is discarded
// the moment a pause begins, rather than resuming into stale audio.
func New(cfg Config, r *ring.Buffer, pauser *pause.Controller, wavDir string, ready OnWindowReady) *Buffer {
	b := &Buffer{cfg: cfg, ring: r, pauser: pauser, wavDir: wavDir, ready: ready, st: stateIdle}
	pauser.Subscribe(func(s pause.State) {
		if s != pause.None {
			b.discardOnPause()
		}
	})
	return b
}

// discardOnPause drops any in-flight window without publishing it, so
// that resuming starts a clean window instead of splicing post-resume
// audio onto stale pre-pause audio with the paused span missing.
func (b *Buffer) discardOnPause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.st = stateIdle
	b.buf = nil
	b.hasSpeech = false
	b.extending = false
}

// OnFrame is the capture callback's entry point. The ring buffer is
// always written to, even while paused, as long as the capture driver
// keeps delivering frames; window assembly itself is skipped while
// paused, dropping incoming frames and rejecting window saves.
func (b *Buffer) OnFrame(data []byte, tEnd float64) {
	b.ring.Write(data, tEnd)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.tNow = tEnd

	if b.pauser.Paused() {
		return
	}
	if b.st != stateCollecting {
		return
	}
	b.ingestLocked(data, tEnd)
}

// OnSpeechDetected starts a new window from Idle with pre-roll lookback.
// No-op while paused or already collecting (a chained window is already
// in flight).
func (b *Buffer) OnSpeechDetected(tSpeech float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pauser.Paused() || b.st == stateCollecting {
		return
	}

	ringStart, _ := b.ring.Range()
	wStart := tSpeech - b.cfg.PreRollSec
	if wStart < ringStart {
		wStart = ringStart
	}
	if wStart < 0 {
		wStart = 0
	}

	b.wStart = wStart
	b.buf = b.ring.CopyRange(wStart, tSpeech)
	b.hasSpeech = true
	b.extending = false
	b.lastSpeechT = tSpeech
	b.st = stateCollecting
}

// OnSilenceDetected implements early silence termination: a long
// silence after active speech ends the window immediately rather than
// waiting for a word-boundary cut, and does not chain.
func (b *Buffer) OnSilenceDetected(t float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pauser.Paused() || b.st != stateCollecting || !b.hasSpeech {
		return
	}
	duration := float64(len(b.buf)) / b.cfg.bytesPerSec()
	if duration < 0.5 || t-b.lastSpeechT < 1.0 {
		return
	}
	b.publishLocked(len(b.buf))
	b.st = stateIdle
	b.buf = nil
}

func (b *Buffer) ingestLocked(data []byte, tEnd float64) {
	if vad.RMS(data) > b.cfg.ThresholdRMS {
		b.lastSpeechT = tEnd
	}

	capBytes := b.cfg.totalCapBytes()
	spaceLeft := capBytes - len(b.buf)
	if spaceLeft <= 0 {
		return
	}
	chunk := data
	if len(chunk) > spaceLeft {
		chunk = chunk[:spaceLeft-spaceLeft%bytesPerSample]
	}
	b.buf = append(b.buf, chunk...)

	nominal := b.cfg.nominalBytes()
	if !b.extending && len(b.buf) >= nominal {
		b.extending = true
	}
	if !b.extending {
		return
	}

	if offset, found := wordBoundaryOffset(b.buf, b.cfg.SampleRate, b.cfg.ThresholdRMS, b.cfg.WordPauseSec); found {
		b.emitLocked(offset)
		return
	}
	if len(b.buf) >= capBytes {
		b.emitLocked(len(b.buf))
	}
}

// Tick is the coarse heartbeat: it force-emits a window that reached
// full size while speech is ongoing, as a backstop independent of
// per-frame extension checks. It never starts a window and is a no-op
// under pause.
func (b *Buffer) Tick() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pauser.Paused() || b.st != stateCollecting {
		return
	}
	if len(b.buf) >= b.cfg.nominalBytes() {
		b.emitLocked(len(b.buf))
	}
}

// emitLocked truncates the buffer to cutOffset (rounded down to an even
// byte count), writes the WAV, publishes it, and chains into the next
// window.
func (b *Buffer) emitLocked(cutOffset int) {
	wEnd := b.publishLocked(cutOffset)
	b.chainLocked(wEnd)
}

// publishLocked truncates, writes, and publishes the window without
// deciding what happens next; callers choose whether to chain (normal
// emission) or go Idle (early silence termination).
func (b *Buffer) publishLocked(cutOffset int) (wEnd float64) {
	if cutOffset > len(b.buf) {
		cutOffset = len(b.buf)
	}
	cutOffset -= cutOffset % bytesPerSample
	pcm := b.buf[:cutOffset]
	wStart := b.wStart
	wEnd = wStart + float64(len(pcm))/b.cfg.bytesPerSec()

	path := b.tempPath()
	if err := wav.WriteFile(path, pcm); err != nil {
		logging.PipelineError(logging.WavWriteFailed, -1, -1, err)
	} else if b.ready != nil {
		b.ready(path, wStart)
	}
	return wEnd
}

func (b *Buffer) chainLocked(wEnd float64) {
	if _, ok := b.ring.LogicalOffset(wEnd); ok {
		b.wStart = wEnd
		b.buf = b.ring.CopyRange(wEnd, b.tNow)
	} else {
		b.wStart = b.tNow
		b.buf = nil
	}
	b.hasSpeech = false
	b.extending = false
	b.st = stateCollecting
}

func (b *Buffer) tempPath() string {
	dir := b.wavDir
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, fmt.Sprintf("voxpipe-window-%s.wav", uuid.NewString()))
}

// wordBoundaryOffset scans the trailing min(0.3s, duration) of buf in
// 10ms chunks for a contiguous run of at least pauseSec below threshold,
// returning the byte offset of the start of that run.
func wordBoundaryOffset(buf []byte, sampleRate int, threshold, pauseSec float64) (int, bool) {
	bytesPerSec := sampleRate * bytesPerSample
	chunkBytes := int(0.01*float64(sampleRate)) * bytesPerSample
	if chunkBytes <= 0 {
		return 0, false
	}

	trailingSec := 0.3
	duration := float64(len(buf)) / float64(bytesPerSec)
	if duration < trailingSec {
		trailingSec = duration
	}
	trailingBytes := int(trailingSec * float64(bytesPerSec))
	trailingBytes -= trailingBytes % chunkBytes
	if trailingBytes <= 0 {
		return 0, false
	}
	regionStart := len(buf) - trailingBytes

	requiredChunks := int(pauseSec/0.01 + 0.5)
	if requiredChunks < 1 {
		requiredChunks = 1
	}

	runStart := -1
	runLen := 0
	for off := regionStart; off+chunkBytes <= len(buf); off += chunkBytes {
		chunk := buf[off : off+chunkBytes]
		if vad.RMS(chunk) < threshold {
			if runLen == 0 {
				runStart = off
			}
			runLen++
			if runLen >= requiredChunks && runStart > 0 {
				return runStart, true
			}
		} else {
			runLen = 0
			runStart = -1
		}
	}
	return 0, false
}
