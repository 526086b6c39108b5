// Package worker defines the transcription worker capability set:
// WarmUp and Transcribe implemented by concrete variants rather than a
// base class, dispatched dynamically over whichever engines the caller
// wires in.
package worker

import "context"

// Fragment is one transcribed span in window-local time.
type Fragment struct {
	StartSec float64
	EndSec   float64
	Text     string
}

// Worker is the externalized transcription engine interface. The core
// requires only these two operations; concrete engines (subprocess
// bridge, in-process recognizer) live outside the core.
type Worker interface {
	// WarmUp signals readiness or returns an error on timeout/failure.
	WarmUp(ctx context.Context) error
	// Transcribe returns fragments for the given WAV path in
	// window-local time. Failures return (nil, err); the dispatcher
	// treats that identically to an empty fragment list.
	Transcribe(ctx context.Context, wavPath string) ([]Fragment, error)
}

// Fake is a deterministic in-process Worker for tests and the headless
// smoke-test mode.
type Fake struct {
	// TextFor, if set, computes the text returned for a given wav path;
	// otherwise Text is used unconditionally.
	TextFor func(wavPath string) string
	Text    string
	// Delay simulates transcription latency, e.g. to exercise the
	// reorder buffer's out-of-order handling.
	Delay func(wavPath string)
	Err   error
}

// NewFake returns a Fake worker that always returns text for any wav.
func NewFake(text string) *Fake {
	return &Fake{Text: text}
}

func (f *Fake) WarmUp(ctx context.Context) error { return nil }

func (f *Fake) Transcribe(ctx context.Context, wavPath string) ([]Fragment, error) {
	if f.Delay != nil {
		f.Delay(wavPath)
	}
	if f.Err != nil {
		return nil, f.Err
	}
	text := f.Text
	if f.TextFor != nil {
		text = f.TextFor(wavPath)
	}
	if text == "" {
		return nil, nil
	}
	return []Fragment{{StartSec: 0, EndSec: 0, Text: text}}, nil
}

// Hanging is a Worker whose Transcribe blocks until ctx is done, used to
// exercise the transcribe timeout.
type Hanging struct{}

func (Hanging) WarmUp(ctx context.Context) error { return nil }

func (Hanging) Transcribe(ctx context.Context, wavPath string) ([]Fragment, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
