package diarize

import (
	"testing"

	"github.com/sumerc/voxpipe/internal/worker"
)

func TestMergeWithoutTurnsTagsSpeakerOne(t *testing.T) {
	fragments := []worker.Fragment{{StartSec: 0, EndSec: 1, Text: "hi"}}
	got := Merge(10.0, fragments, nil)
	if len(got) != 1 {
		t.Fatalf("got %d segments, want 1", len(got))
	}
	if got[0].SpeakerID != 1 {
		t.Fatalf("SpeakerID = %d, want 1", got[0].SpeakerID)
	}
	if got[0].StartAbs != 10.0 || got[0].EndAbs != 11.0 {
		t.Fatalf("absolute times = [%v,%v], want [10,11]", got[0].StartAbs, got[0].EndAbs)
	}
}

func TestMergePicksMaxOverlapSpeaker(t *testing.T) {
	fragments := []worker.Fragment{{StartSec: 0, EndSec: 2, Text: "hello there"}}
	turns := []Turn{
		{StartSec: 0, EndSec: 0.5, SpeakerID: 2},
		{StartSec: 0.5, EndSec: 2, SpeakerID: 3},
	}
	got := Merge(0, fragments, turns)
	if got[0].SpeakerID != 3 {
		t.Fatalf("SpeakerID = %d, want 3 (larger overlap)", got[0].SpeakerID)
	}
}

func TestNoopLabelReturnsNoTurns(t *testing.T) {
	turns, err := (Noop{}).Label(0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if turns != nil {
		t.Fatalf("turns = %v, want nil", turns)
	}
}
