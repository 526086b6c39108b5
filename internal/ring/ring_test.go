package ring

import "testing"

func writeSamples(b *Buffer, sampleRate int, n int, tStart float64) float64 {
	data := make([]byte, n*bytesPerSample)
	t := tStart + float64(n)/float64(sampleRate)
	b.Write(data, t)
	return t
}

func TestNewRoundsCapacityToSampleBoundary(t *testing.T) {
	b := New(16000, 1.0)
	if b.Capacity()%bytesPerSample != 0 {
		t.Fatalf("capacity %d not sample-aligned", b.Capacity())
	}
}

func TestWriteAdvancesRangeWithoutOverflow(t *testing.T) {
	b := New(16000, 1.0)
	writeSamples(b, 16000, 8000, 0)
	start, end := b.Range()
	if start != 0 {
		t.Fatalf("start = %v, want 0", start)
	}
	if end != 0.5 {
		t.Fatalf("end = %v, want 0.5", end)
	}
	if b.Filled() != 8000*bytesPerSample {
		t.Fatalf("filled = %d, want %d", b.Filled(), 8000*bytesPerSample)
	}
}

func TestWriteOverflowAdvancesStart(t *testing.T) {
	b := New(16000, 1.0) // capacity = 16000 samples = 1s
	writeSamples(b, 16000, 12000, 0)
	writeSamples(b, 16000, 12000, 0.75)
	start, end := b.Range()
	if end != 1.5 {
		t.Fatalf("end = %v, want 1.5", end)
	}
	wantStart := end - float64(b.Filled())/float64(16000*bytesPerSample)
	if start != wantStart {
		t.Fatalf("start = %v, want %v", start, wantStart)
	}
	if b.Filled() != b.Capacity() {
		t.Fatalf("filled = %d, want full capacity %d", b.Filled(), b.Capacity())
	}
}

func TestLogicalOffsetRightBoundaryEquality(t *testing.T) {
	b := New(16000, 1.0)
	writeSamples(b, 16000, 8000, 0)
	_, end := b.Range()
	off, ok := b.LogicalOffset(end)
	if !ok {
		t.Fatal("expected right-boundary offset to be valid")
	}
	if off != b.Filled() {
		t.Fatalf("offset = %d, want filled_bytes %d", off, b.Filled())
	}
}

func TestLogicalOffsetOutOfRange(t *testing.T) {
	b := New(16000, 1.0)
	writeSamples(b, 16000, 8000, 0)
	if _, ok := b.LogicalOffset(-1); ok {
		t.Fatal("expected out-of-range t before ring_start_t to be invalid")
	}
	if _, ok := b.LogicalOffset(10); ok {
		t.Fatal("expected out-of-range t after ring_end_t to be invalid")
	}
}

func TestCopyRangeZeroOnOutOfRangeFrom(t *testing.T) {
	b := New(16000, 1.0)
	writeSamples(b, 16000, 8000, 0)
	if got := b.CopyRange(-1, 0.4); got != nil {
		t.Fatalf("expected nil copy for out-of-range tFrom, got %d bytes", len(got))
	}
}

func TestCopyRangeClampsToEnd(t *testing.T) {
	b := New(16000, 1.0)
	writeSamples(b, 16000, 8000, 0)
	got := b.CopyRange(0, 100)
	if len(got) != b.Filled() {
		t.Fatalf("copy len = %d, want %d (clamped to ring_end_t)", len(got), b.Filled())
	}
}

func TestCopyRangeContentMatchesWrittenPattern(t *testing.T) {
	b := New(16000, 1.0)
	data := make([]byte, 2000)
	for i := range data {
		data[i] = byte(i)
	}
	b.Write(data, 0.0625)
	got := b.CopyRange(0, 0.0625)
	if len(got) != len(data) {
		t.Fatalf("copy len = %d, want %d", len(got), len(data))
	}
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], data[i])
		}
	}
}
