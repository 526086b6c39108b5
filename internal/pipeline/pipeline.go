// Package pipeline is the orchestrator: it wires the pause controller,
// VAD, ring buffer, window buffer, runner pool, reorder buffer,
// diarization, and history sink into the single stream the capture
// callback drives.
package pipeline

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sumerc/voxpipe/internal/capture"
	"github.com/sumerc/voxpipe/internal/config"
	"github.com/sumerc/voxpipe/internal/diarize"
	"github.com/sumerc/voxpipe/internal/dispatch"
	"github.com/sumerc/voxpipe/internal/history"
	"github.com/sumerc/voxpipe/internal/logging"
	"github.com/sumerc/voxpipe/internal/metrics"
	"github.com/sumerc/voxpipe/internal/pause"
	"github.com/sumerc/voxpipe/internal/reorder"
	"github.com/sumerc/voxpipe/internal/ring"
	"github.com/sumerc/voxpipe/internal/vad"
	"github.com/sumerc/voxpipe/internal/wav"
	"github.com/sumerc/voxpipe/internal/window"
	"github.com/sumerc/voxpipe/internal/worker"
)

// Pipeline owns every core collaborator and is the single entry point
// capture frames are fed through.
type Pipeline struct {
	cfg       config.Config
	pauser    *pause.Controller
	vadProc   *vad.Processor
	ring      *ring.Buffer
	win       *window.Buffer
	pool      *dispatch.Pool
	reorder   *reorder.Buffer
	hist      *history.Store
	diarizer  diarize.Diarizer
	onSegment func(history.Segment)
	metrics   *metrics.Metrics

	seq int64

	tMu   sync.Mutex
	tLast float64

	startMu sync.Mutex
	pending map[int64]pendingWindow
}

type pendingWindow struct {
	startAbs  float64
	submitted time.Time
}

// Deps bundles the pipeline's external collaborators. Workers and the
// diarizer are supplied by the caller so transcription and speaker
// engines stay outside the core; Diarizer defaults to diarize.Noop when
// nil.
type Deps struct {
	Workers  []worker.Worker
	History  *history.Store
	Diarizer diarize.Diarizer
	OnStats  func(dispatch.QueueStats)
	// OnSegment, if set, is called after each committed history segment,
	// letting an observability surface push transcript updates.
	OnSegment func(history.Segment)
}

// New builds a Pipeline in the Idle state, ready for capture frames.
func New(cfg config.Config, deps Deps) *Pipeline {
	if deps.Diarizer == nil {
		deps.Diarizer = diarize.Noop{}
	}

	p := &Pipeline{
		cfg:       cfg,
		pauser:    pause.New(),
		vadProc:   vad.New(vad.Config{ThresholdRMS: cfg.SilenceThresholdRMS, SilenceHoldSec: cfg.SilenceHoldSec}),
		ring:      ring.New(capture.SampleRate, cfg.RingCapacitySec()),
		hist:      deps.History,
		diarizer:  deps.Diarizer,
		onSegment: deps.OnSegment,
		metrics:   metrics.New(),
		pending:   make(map[int64]pendingWindow),
	}

	p.pauser.Subscribe(func(s pause.State) { p.metrics.PauseState.Set(float64(s)) })

	p.win = window.New(window.Config{
		WindowSizeSec: cfg.WindowSizeSec,
		PreRollSec:    cfg.PreRollSec,
		MaxExtension:  cfg.MaxExtension(),
		WordPauseSec:  cfg.WordPauseSec,
		ThresholdRMS:  cfg.SilenceThresholdRMS,
		SampleRate:    capture.SampleRate,
	}, p.ring, p.pauser, cfg.WavDir, p.onWindowReady)

	p.reorder = reorder.New(p.onOrderedResult)

	p.pool = dispatch.NewPool(deps.Workers, dispatch.Config{
		IntakeCapacity:    cfg.IntakeCapacity,
		WarmupTimeout:     cfg.WarmupTimeout,
		TranscribeTimeout: cfg.TranscribeTimeout,
		OnResult:          p.onWorkerResult,
		OnReorderCount:    p.reorder.PendingCount,
		OnOverflow: func(seq int64) {
			p.metrics.IntakeOverflows.Inc()
			p.startMu.Lock()
			delete(p.pending, seq)
			p.startMu.Unlock()
			// A dropped window still registers an empty result so the
			// reorder buffer can advance past its sequence number.
			p.reorder.Insert(seq, nil)
		},
		OnStatsChanged: func(qs dispatch.QueueStats) {
			p.recordStats(qs)
			if deps.OnStats != nil {
				deps.OnStats(qs)
			}
		},
	})

	p.vadProc.OnSilenceTimeout(func() {
		t := p.currentTime()
		p.pauser.ApplyAutoSilence()
		p.win.OnSilenceDetected(t)
	})

	return p
}

// Start warms up the runner pool and begins accepting frames.
func (p *Pipeline) Start() {
	logging.SessionStart(len(p.pool.Stats().PerRunner), p.cfg.WindowSizeSec)
	p.pool.Start()
}

// Stop shuts down the runner pool (see dispatch.Pool.Stop; queued work
// is not drained) and logs the session end.
func (p *Pipeline) Stop() {
	p.pool.Stop()
	if p.hist != nil {
		logging.SessionEnd(p.hist.Count())
	}
}

// Pauser exposes the pause controller for the CLI's manual pause command.
func (p *Pipeline) Pauser() *pause.Controller { return p.pauser }

// Stats returns the observability surface snapshot.
func (p *Pipeline) Stats() dispatch.QueueStats { return p.pool.Stats() }

// Metrics returns the Prometheus metrics registered for this pipeline,
// mirroring runner-pool stats as counters and gauges for scraping.
func (p *Pipeline) Metrics() *metrics.Metrics { return p.metrics }

func (p *Pipeline) recordStats(qs dispatch.QueueStats) {
	p.metrics.IntakeDepth.Set(float64(qs.IntakeCount))
	p.metrics.ReorderPending.Set(float64(qs.ReorderCount))
	for i, rs := range qs.PerRunner {
		p.metrics.RunnerQueueDepth.WithLabelValues(strconv.Itoa(i)).Set(float64(rs.QueueCount))
	}
}

// OnFrame is the capture callback's entry point: it drives the ring,
// VAD, and window buffer for one frame. VAD runs on every frame
// regardless of pause state, since AutoSilence can only be left by the
// VAD recrossing the speech threshold; ApplySpeechResume is a no-op
// while Manual, so running VAD during a manual pause is harmless. Only
// window ingestion is gated on pause, and it gates itself.
func (p *Pipeline) OnFrame(data []byte, streamTimeSec float64) {
	p.tMu.Lock()
	p.tLast = streamTimeSec
	p.tMu.Unlock()

	p.win.OnFrame(data, streamTimeSec)

	switch p.vadProc.Process(data) {
	case vad.SpeechDetected:
		p.pauser.ApplySpeechResume()
		p.win.OnSpeechDetected(streamTimeSec)
	}
}

// Tick drives the window buffer's heartbeat backstop.
func (p *Pipeline) Tick() { p.win.Tick() }

func (p *Pipeline) currentTime() float64 {
	p.tMu.Lock()
	defer p.tMu.Unlock()
	return p.tLast
}

// onWindowReady assigns the next sequence number and enqueues the task.
// It runs under the window buffer's lock (whichever goroutine triggered
// the emission), the single point sequence assignment must happen under
// to stay monotonic.
func (p *Pipeline) onWindowReady(wavPath string, startAbsSec float64) {
	seq := atomic.AddInt64(&p.seq, 1) - 1
	p.metrics.WindowsEmitted.Inc()

	p.startMu.Lock()
	p.pending[seq] = pendingWindow{startAbs: startAbsSec, submitted: time.Now()}
	p.startMu.Unlock()

	p.pool.Enqueue(dispatch.Task{WavPath: wavPath, StartAbsSec: startAbsSec, Seq: seq})
}

// onWorkerResult diarizes the window's audio (if a real Diarizer is
// configured) before the WAV is deleted, then feeds the reorder buffer.
func (p *Pipeline) onWorkerResult(seq int64, wavPath string, fragments []worker.Fragment) {
	p.startMu.Lock()
	pw := p.pending[seq]
	delete(p.pending, seq)
	p.startMu.Unlock()
	startAbs := pw.startAbs

	if !pw.submitted.IsZero() {
		p.metrics.WindowLatency.Observe(time.Since(pw.submitted).Seconds())
	}
	if fragments == nil {
		p.metrics.WorkerErrors.WithLabelValues("empty_result").Inc()
	}

	var turns []diarize.Turn
	if _, isNoop := p.diarizer.(diarize.Noop); !isNoop {
		if pcm, err := wav.ReadPCM(wavPath); err == nil {
			turns, _ = p.diarizer.Label(startAbs, pcm)
		}
	}
	os.Remove(wavPath)

	segs := diarize.Merge(startAbs, fragments, turns)
	boxed := make([]reorder.Segment, len(segs))
	for i, s := range segs {
		boxed[i] = s
	}
	p.reorder.Insert(seq, boxed)
}

// onOrderedResult is the reorder buffer's sink: it observes windows in
// strictly ascending sequence order and appends them to history.
func (p *Pipeline) onOrderedResult(seq int64, segments []reorder.Segment) {
	if p.hist == nil || len(segments) == 0 {
		return
	}
	segs := make([]diarize.HistorySegment, 0, len(segments))
	for _, s := range segments {
		if hs, ok := s.(diarize.HistorySegment); ok {
			segs = append(segs, hs)
		}
	}
	if len(segs) == 0 {
		return
	}
	ts := segs[0].StartAbs
	inserted, err := p.hist.Append(ts, segs)
	if err != nil {
		logging.PipelineError(logging.WorkerMalformedResponse, seq, -1, fmt.Errorf("history append: %w", err))
		return
	}
	p.metrics.SegmentsCommitted.Add(float64(len(inserted)))
	p.metrics.SegmentsDeduped.Add(float64(len(segs) - len(inserted)))
	if p.onSegment != nil {
		for _, seg := range inserted {
			p.onSegment(seg)
		}
	}
}
