// Package diarize provides a speaker diarization interface plus a
// default no-op implementation. It follows the shape of an ECAPA +
// clustering pipeline that emits {start, end, label} turns in
// window-local time from a mono 16 kHz WAV, translated to Go and merged
// with transcript fragments by maximum time overlap.
package diarize

import "github.com/sumerc/voxpipe/internal/worker"

// Turn is one speaker-labeled span in window-local time, the Go
// equivalent of the Python script's speakerSegments entries.
type Turn struct {
	StartSec  float64
	EndSec    float64
	SpeakerID int
}

// Diarizer labels a window's audio with speaker turns. Real
// implementations (an ECAPA-embedding subprocess bridge, a streaming
// in-process model) live outside the core.
type Diarizer interface {
	Label(windowStartAbsSec float64, pcm []byte) ([]Turn, error)
}

// Noop is the default Diarizer: it returns no turns, so Merge tags every
// fragment speaker 1.
type Noop struct{}

func (Noop) Label(windowStartAbsSec float64, pcm []byte) ([]Turn, error) {
	return nil, nil
}

// HistorySegment is a transcript fragment tagged with a speaker id,
// ready for the transcript sink.
type HistorySegment struct {
	StartAbs  float64
	EndAbs    float64
	Text      string
	SpeakerID int
}

// Merge joins transcript fragments (window-local time) to diarization
// turns (also window-local) by maximum time overlap. If turns is empty
// every fragment is tagged speaker 1, matching the no-diarization
// default.
func Merge(windowStartAbs float64, fragments []worker.Fragment, turns []Turn) []HistorySegment {
	out := make([]HistorySegment, 0, len(fragments))
	for _, f := range fragments {
		speaker := 1
		if len(turns) > 0 {
			speaker = bestOverlapSpeaker(f.StartSec, f.EndSec, turns)
		}
		out = append(out, HistorySegment{
			StartAbs:  windowStartAbs + f.StartSec,
			EndAbs:    windowStartAbs + f.EndSec,
			Text:      f.Text,
			SpeakerID: speaker,
		})
	}
	return out
}

func bestOverlapSpeaker(start, end float64, turns []Turn) int {
	best := 1
	bestOverlap := -1.0
	for _, t := range turns {
		lo := max(start, t.StartSec)
		hi := min(end, t.EndSec)
		overlap := hi - lo
		if overlap > bestOverlap {
			bestOverlap = overlap
			best = t.SpeakerID
		}
	}
	return best
}
