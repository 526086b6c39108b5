package window

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sumerc/voxpipe/internal/pause"
	"github.com/sumerc/voxpipe/internal/ring"
	"github.com/sumerc/voxpipe/internal/wav"
	"github.com/sumerc/voxpipe/internal/wavtest"
)

const testSampleRate = 16000

func testConfig() Config {
	return Config{
		WindowSizeSec: 0.1,
		PreRollSec:    0.02,
		MaxExtension:  0.3,
		WordPauseSec:  0.01,
		ThresholdRMS:  0.05,
		SampleRate:    testSampleRate,
	}
}

type readyEvent struct {
	wavPath string
	start   float64
}

func newTestBuffer(t *testing.T, cfg Config) (*Buffer, *ring.Buffer, *pause.Controller, *[]readyEvent) {
	t.Helper()
	r := ring.New(testSampleRate, 3.0)
	pc := pause.New()
	dir := t.TempDir()

	var mu sync.Mutex
	var events []readyEvent
	b := New(cfg, r, pc, dir, func(wavPath string, start float64) {
		mu.Lock()
		events = append(events, readyEvent{wavPath, start})
		mu.Unlock()
	})
	return b, r, pc, &events
}

// feedFrames delivers frameBytes-sized chunks of pcm to OnFrame,
// advancing the stream clock by one frame duration each time, starting
// at tStart, and returns the final stream time.
func feedFrames(b *Buffer, pcm []byte, frameBytes int, tStart float64, sampleRate int) float64 {
	t := tStart
	frameDur := float64(frameBytes) / float64(sampleRate*bytesPerSample)
	for off := 0; off < len(pcm); off += frameBytes {
		end := off + frameBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		t += frameDur
		b.OnFrame(pcm[off:end], t)
	}
	return t
}

func TestSinglePhraseEmitsOnWordBoundary(t *testing.T) {
	cfg := testConfig()
	b, _, _, events := newTestBuffer(t, cfg)

	const frameBytes = 320 // 10ms at 16kHz/16-bit mono, matches the word-boundary scan chunk
	tone := wavtest.Tone(testSampleRate, 440, 0.15, 0.5)

	tEnd := feedFrames(b, tone, frameBytes, 0, testSampleRate)
	b.OnSpeechDetected(0.01)
	tEnd = feedFrames(b, tone, frameBytes, tEnd, testSampleRate)

	silence := wavtest.Silence(testSampleRate, 0.05)
	feedFrames(b, silence, frameBytes, tEnd, testSampleRate)

	if len(*events) == 0 {
		t.Fatal("expected at least one emitted window")
	}
	ev := (*events)[0]
	pcm, err := wav.ReadPCM(ev.wavPath)
	if err != nil {
		t.Fatalf("ReadPCM: %v", err)
	}
	if len(pcm)%2 != 0 {
		t.Fatalf("pcm length %d is not even", len(pcm))
	}
	if len(pcm) == 0 {
		t.Fatal("expected non-empty pcm for a speech window")
	}
}

func TestChainedWindowsAreContiguous(t *testing.T) {
	cfg := testConfig()
	b, _, _, events := newTestBuffer(t, cfg)

	const frameBytes = 320
	tone := wavtest.Tone(testSampleRate, 440, 0.15, 0.5)
	silence := wavtest.Silence(testSampleRate, 0.05)

	tEnd := feedFrames(b, tone, frameBytes, 0, testSampleRate)
	b.OnSpeechDetected(0.01)

	// Two speech-then-pause cycles, forcing two chained emissions.
	for i := 0; i < 2; i++ {
		tEnd = feedFrames(b, tone, frameBytes, tEnd, testSampleRate)
		tEnd = feedFrames(b, silence, frameBytes, tEnd, testSampleRate)
		b.OnSpeechDetected(tEnd)
	}

	if len(*events) < 2 {
		t.Fatalf("expected at least 2 chained windows, got %d", len(*events))
	}
	for _, ev := range *events {
		if _, err := os.Stat(ev.wavPath); err != nil {
			t.Fatalf("emitted wav missing: %v", err)
		}
	}
}

func TestNoWindowEmittedWhilePaused(t *testing.T) {
	cfg := testConfig()
	b, _, pc, events := newTestBuffer(t, cfg)

	pc.SetManual(true)
	const frameBytes = 320
	tone := wavtest.Tone(testSampleRate, 440, 0.3, 0.5)
	feedFrames(b, tone, frameBytes, 0, testSampleRate)
	b.OnSpeechDetected(0.1)
	feedFrames(b, tone, frameBytes, 0.1, testSampleRate)

	if len(*events) != 0 {
		t.Fatalf("expected no windows emitted while paused, got %d", len(*events))
	}
}

func TestTempPathUsesConfiguredDir(t *testing.T) {
	cfg := testConfig()
	dir := t.TempDir()
	r := ring.New(testSampleRate, 1.0)
	pc := pause.New()
	b := New(cfg, r, pc, dir, nil)

	path := b.tempPath()
	if filepath.Dir(path) != dir {
		t.Fatalf("tempPath dir = %q, want %q", filepath.Dir(path), dir)
	}
}
