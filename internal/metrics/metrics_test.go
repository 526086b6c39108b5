package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	m := New()
	m.WindowsEmitted.Inc()
	m.SegmentsCommitted.Add(3)
	m.RunnerQueueDepth.WithLabelValues("0").Set(2)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"voxpipe_windows_emitted_total 1", "voxpipe_segments_committed_total 3"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
}

func TestTwoInstancesDoNotCollide(t *testing.T) {
	// Each Metrics owns a private registry; building several must not
	// panic on duplicate collector registration.
	for i := 0; i < 3; i++ {
		New()
	}
}
