package vad

import (
	"testing"
	"time"

	"github.com/sumerc/voxpipe/internal/wavtest"
)

func TestRMSSilenceIsZero(t *testing.T) {
	frame := wavtest.Silence(16000, 0.02)
	if got := RMS(frame); got != 0 {
		t.Fatalf("RMS(silence) = %v, want 0", got)
	}
}

func TestRMSFullScaleToneNearInvSqrtTwo(t *testing.T) {
	frame := wavtest.Tone(16000, 440, 0.05, 1.0)
	got := RMS(frame)
	if got < 0.6 || got > 0.72 {
		t.Fatalf("RMS(full-scale tone) = %v, want close to 1/sqrt(2)", got)
	}
}

func TestProcessStartsInSilence(t *testing.T) {
	p := New(Config{ThresholdRMS: 0.01, SilenceHoldSec: 0.05})
	if !p.InSilence() {
		t.Fatal("expected InSilence() true initially")
	}
}

func TestProcessEmitsSpeechDetectedOnce(t *testing.T) {
	p := New(Config{ThresholdRMS: 0.01, SilenceHoldSec: 0.05})
	loud := wavtest.Tone(16000, 440, 0.02, 0.5)

	if edge := p.Process(loud); edge != SpeechDetected {
		t.Fatalf("first loud frame edge = %v, want SpeechDetected", edge)
	}
	if edge := p.Process(loud); edge != NoEdge {
		t.Fatalf("second loud frame edge = %v, want NoEdge", edge)
	}
	if p.InSilence() {
		t.Fatal("expected InSilence() false after speech")
	}
}

func TestSilenceTimeoutFiresAfterHold(t *testing.T) {
	p := New(Config{ThresholdRMS: 0.01, SilenceHoldSec: 0.02})
	fired := make(chan struct{}, 1)
	p.OnSilenceTimeout(func() { fired <- struct{}{} })

	loud := wavtest.Tone(16000, 440, 0.02, 0.5)
	quiet := wavtest.Silence(16000, 0.02)

	p.Process(loud)
	p.Process(quiet)

	select {
	case <-fired:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected silence timeout to fire")
	}
}

func TestSilenceTimeoutCancelledBySpeech(t *testing.T) {
	p := New(Config{ThresholdRMS: 0.01, SilenceHoldSec: 0.05})
	fired := make(chan struct{}, 1)
	p.OnSilenceTimeout(func() { fired <- struct{}{} })

	loud := wavtest.Tone(16000, 440, 0.02, 0.5)
	quiet := wavtest.Silence(16000, 0.02)

	p.Process(loud)
	p.Process(quiet)
	p.Process(loud) // speech resumes before the 50ms hold expires

	select {
	case <-fired:
		t.Fatal("silence timeout must not fire once speech resumed")
	case <-time.After(120 * time.Millisecond):
	}
}

func TestResetReturnsToInitialSilence(t *testing.T) {
	p := New(Config{ThresholdRMS: 0.01, SilenceHoldSec: 0.05})
	p.Process(wavtest.Tone(16000, 440, 0.02, 0.5))
	p.Reset()
	if !p.InSilence() {
		t.Fatal("expected InSilence() true after Reset")
	}
	if p.LastRMS() != 0 {
		t.Fatalf("LastRMS() = %v after Reset, want 0", p.LastRMS())
	}
}
