package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/sumerc/voxpipe/internal/config"
	"github.com/sumerc/voxpipe/internal/history"
	"github.com/sumerc/voxpipe/internal/wavtest"
	"github.com/sumerc/voxpipe/internal/worker"
)

const testSampleRate = 16000

func testConfig() config.Config {
	c := config.Default()
	c.WindowSizeSec = 0.1
	c.PreRollSec = 0.02
	c.MaxExtensionSec = 0.3
	c.MaxExtensionRatio = 10
	c.WordPauseSec = 0.01
	c.SilenceThresholdRMS = 0.05
	c.SilenceHoldSec = 5.0 // keep auto-pause out of the way of these tests
	c.IntakeCapacity = 10
	c.WorkerCount = 1
	c.WarmupTimeout = time.Second
	c.TranscribeTimeout = time.Second
	return c
}

func openHistory(t *testing.T) *history.Store {
	t.Helper()
	h, err := history.Open("", 0.01)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

// feedFrames drives OnFrame with frameBytes chunks of pcm, advancing the
// stream clock by one frame duration per call, and returns the final
// stream time.
func feedFrames(p *Pipeline, pcm []byte, frameBytes int, tStart float64) float64 {
	t := tStart
	frameDur := float64(frameBytes) / float64(testSampleRate*2)
	for off := 0; off < len(pcm); off += frameBytes {
		end := off + frameBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		t += frameDur
		p.OnFrame(pcm[off:end], t)
	}
	return t
}

func waitForCount(t *testing.T, h *history.Store, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.Count() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d history segments, got %d", n, h.Count())
}

func TestSinglePhraseCommitsToHistory(t *testing.T) {
	cfg := testConfig()
	hist := openHistory(t)
	p := New(cfg, Deps{Workers: []worker.Worker{worker.NewFake("hello world")}, History: hist})
	p.Start()
	defer p.Stop()

	const frameBytes = 320
	tone := wavtest.Tone(testSampleRate, 440, 0.15, 0.5)
	silence := wavtest.Silence(testSampleRate, 0.05)

	tEnd := feedFrames(p, tone, frameBytes, 0)
	feedFrames(p, silence, frameBytes, tEnd)

	waitForCount(t, hist, 1)

	segs, err := hist.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(segs) != 1 || segs[0].Text != "hello world" {
		t.Fatalf("segs = %+v, want one segment with text %q", segs, "hello world")
	}
}

func TestManualPauseSuppressesWindows(t *testing.T) {
	cfg := testConfig()
	hist := openHistory(t)
	p := New(cfg, Deps{Workers: []worker.Worker{worker.NewFake("should not appear")}, History: hist})
	p.Start()
	defer p.Stop()

	p.Pauser().SetManual(true)

	const frameBytes = 320
	tone := wavtest.Tone(testSampleRate, 440, 0.15, 0.5)
	silence := wavtest.Silence(testSampleRate, 0.05)
	tEnd := feedFrames(p, tone, frameBytes, 0)
	feedFrames(p, silence, frameBytes, tEnd)

	time.Sleep(50 * time.Millisecond)
	if hist.Count() != 0 {
		t.Fatalf("Count() = %d while paused, want 0", hist.Count())
	}

	p.Pauser().SetManual(false)
	tEnd = feedFrames(p, tone, frameBytes, tEnd)
	feedFrames(p, silence, frameBytes, tEnd)
	waitForCount(t, hist, 1)
}

func TestChainedPhrasesAppendInOrder(t *testing.T) {
	cfg := testConfig()
	hist := openHistory(t)

	var mu sync.Mutex
	var n int
	fake := &worker.Fake{TextFor: func(string) string {
		mu.Lock()
		defer mu.Unlock()
		n++
		if n == 1 {
			return "first"
		}
		return "second"
	}}
	p := New(cfg, Deps{Workers: []worker.Worker{fake}, History: hist})
	p.Start()
	defer p.Stop()

	const frameBytes = 320
	tone := wavtest.Tone(testSampleRate, 440, 0.15, 0.5)
	silence := wavtest.Silence(testSampleRate, 0.05)

	tEnd := feedFrames(p, tone, frameBytes, 0)
	tEnd = feedFrames(p, silence, frameBytes, tEnd)
	tEnd = feedFrames(p, tone, frameBytes, tEnd)
	feedFrames(p, silence, frameBytes, tEnd)

	waitForCount(t, hist, 2)

	segs, err := hist.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	if segs[0].Text != "first" || segs[1].Text != "second" {
		t.Fatalf("segs = %+v, want [first second] in order", segs)
	}
	if segs[0].StartAbs >= segs[1].StartAbs {
		t.Fatalf("segments not in ascending start order: %+v", segs)
	}
}

func TestWorkerTimeoutStillAdvancesHistory(t *testing.T) {
	cfg := testConfig()
	cfg.TranscribeTimeout = 20 * time.Millisecond
	cfg.WorkerCount = 2
	hist := openHistory(t)

	workers := []worker.Worker{worker.Hanging{}, worker.NewFake("ok")}
	p := New(cfg, Deps{Workers: workers, History: hist})
	p.Start()
	defer p.Stop()

	const frameBytes = 320
	tone := wavtest.Tone(testSampleRate, 440, 0.15, 0.5)
	silence := wavtest.Silence(testSampleRate, 0.05)

	// Enough chained phrases that both runners get exercised; at least
	// one window should land on the fake worker and commit to history
	// even though the hanging worker's window resolves to empty text.
	tEnd := feedFrames(p, tone, frameBytes, 0)
	for i := 0; i < 4; i++ {
		tEnd = feedFrames(p, silence, frameBytes, tEnd)
		tEnd = feedFrames(p, tone, frameBytes, tEnd)
	}
	feedFrames(p, silence, frameBytes, tEnd)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && hist.Count() == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if hist.Count() == 0 {
		t.Fatal("expected at least one committed segment despite a hanging worker")
	}
}
