// Package dispatch implements a runner pool and dispatcher: a bounded,
// oldest-drop intake queue feeding N per-worker FIFO queues, with
// idle-round-robin-else-shortest-queue selection and a single-flight
// worker goroutine per runner (one serial goroutine per external
// resource, woken by a channel).
package dispatch

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sumerc/voxpipe/internal/logging"
	"github.com/sumerc/voxpipe/internal/worker"
)

// Task is a window ready for transcription.
type Task struct {
	WavPath     string
	StartAbsSec float64
	Seq         int64
}

// ResultHandler receives a worker's fragments for a task's sequence
// number. wavPath's ownership transfers to the handler, which is
// responsible for removing it once diarization (if any) has read it.
// It must not block; the reorder buffer's Insert is cheap.
type ResultHandler func(seq int64, wavPath string, fragments []worker.Fragment)

// RunnerStats is one entry of the observability surface.
type RunnerStats struct {
	QueueCount   int
	IsProcessing bool
}

// QueueStats is the full observability surface snapshot.
type QueueStats struct {
	IntakeCount  int
	IntakeCap    int
	PerRunner    []RunnerStats
	ReorderCount int
}

type runner struct {
	idx int
	w   worker.Worker

	mu           sync.Mutex
	queue        []Task
	processing   bool
	needsWarmup  bool
	wake         chan struct{}
}

func (r *runner) queueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

func (r *runner) isIdle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.processing && len(r.queue) == 0
}

func (r *runner) push(t Task) {
	r.mu.Lock()
	r.queue = append(r.queue, t)
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *runner) pop() (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return Task{}, false
	}
	t := r.queue[0]
	r.queue = r.queue[1:]
	return t, true
}

// Pool is the runner pool and its dispatcher.
type Pool struct {
	runners []*runner

	warmupTimeout     time.Duration
	transcribeTimeout time.Duration
	onResult          ResultHandler
	onReorderCount    func() int
	onOverflow        func(seq int64)

	intakeMu     sync.Mutex
	intake       []Task
	intakeCap    int
	lastSelected int
	dispatchWake chan struct{}

	statsMu sync.Mutex
	onStats func(QueueStats)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config bundles the tunables NewPool needs.
type Config struct {
	IntakeCapacity    int
	WarmupTimeout     time.Duration
	TranscribeTimeout time.Duration
	OnResult          ResultHandler
	// OnReorderCount reports the reorder buffer's pending-entry count for
	// QueueStats; may be nil.
	OnReorderCount func() int
	OnStatsChanged func(QueueStats)
	// OnOverflow, if set, is called with the dropped task's sequence
	// number whenever Enqueue drops the oldest entry.
	OnOverflow func(seq int64)
}

// NewPool builds a pool over the given workers.
func NewPool(workers []worker.Worker, cfg Config) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		warmupTimeout:     cfg.WarmupTimeout,
		transcribeTimeout: cfg.TranscribeTimeout,
		onResult:          cfg.OnResult,
		onReorderCount:    cfg.OnReorderCount,
		onOverflow:        cfg.OnOverflow,
		onStats:           cfg.OnStatsChanged,
		intakeCap:         cfg.IntakeCapacity,
		lastSelected:      -1,
		dispatchWake:      make(chan struct{}, 1),
		ctx:               ctx,
		cancel:            cancel,
	}
	for i, w := range workers {
		p.runners = append(p.runners, &runner{idx: i, w: w, wake: make(chan struct{}, 1), needsWarmup: true})
	}
	return p
}

// Start warms up every worker and launches the dispatcher and per-runner
// worker goroutines. Warm-up failures are logged and do not stop the
// pool. A worker whose warm-up failed is not excluded from selection: it
// still receives tasks and retries warm-up before processing its next one.
func (p *Pool) Start() {
	for _, r := range p.runners {
		p.warmUp(r)
	}

	p.wg.Add(1)
	go p.dispatchLoop()

	for _, r := range p.runners {
		p.wg.Add(1)
		go p.runnerLoop(r)
	}
}

func (p *Pool) warmUp(r *runner) {
	ctx, cancel := context.WithTimeout(p.ctx, p.warmupTimeout)
	defer cancel()
	if err := r.w.WarmUp(ctx); err != nil {
		logging.PipelineError(logging.WorkerWarmupTimeout, -1, r.idx, err)
		return
	}
	r.mu.Lock()
	r.needsWarmup = false
	r.mu.Unlock()
}

// Stop cancels in-flight worker calls' context and waits for goroutines
// to exit. It does not drain: tasks still in the intake queue are never
// dispatched, and a runner exits once it has emptied its current queue
// (those calls see the cancelled context).
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}

// Enqueue adds a task to the bounded intake queue, dropping the oldest
// entry (and unlinking its WAV file) on overflow.
func (p *Pool) Enqueue(t Task) {
	p.intakeMu.Lock()
	p.intake = append(p.intake, t)
	var dropped Task
	overflowed := false
	if len(p.intake) > p.intakeCap {
		dropped = p.intake[0]
		p.intake = p.intake[1:]
		overflowed = true
	}
	p.intakeMu.Unlock()

	if overflowed {
		if err := os.Remove(dropped.WavPath); err != nil && !os.IsNotExist(err) {
			logging.PipelineError(logging.IntakeOverflow, dropped.Seq, -1, err)
		} else {
			logging.PipelineError(logging.IntakeOverflow, dropped.Seq, -1, nil)
		}
		if p.onOverflow != nil {
			p.onOverflow(dropped.Seq)
		}
	}

	select {
	case p.dispatchWake <- struct{}{}:
	default:
	}
	p.publishStats()
}

func (p *Pool) dispatchLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.dispatchWake:
			p.drainIntake()
		}
	}
}

func (p *Pool) drainIntake() {
	for {
		p.intakeMu.Lock()
		if len(p.intake) == 0 {
			p.intakeMu.Unlock()
			return
		}
		t := p.intake[0]
		p.intake = p.intake[1:]
		p.intakeMu.Unlock()

		r := p.selectRunner()
		r.push(t)
		p.publishStats()
	}
}

// selectRunner implements a two-phase policy: round-robin scan for an
// idle worker, else the shortest queue with ties broken by smallest
// index.
func (p *Pool) selectRunner() *runner {
	p.intakeMu.Lock()
	start := (p.lastSelected + 1) % len(p.runners)
	p.intakeMu.Unlock()

	for i := 0; i < len(p.runners); i++ {
		idx := (start + i) % len(p.runners)
		if p.runners[idx].isIdle() {
			p.setLastSelected(idx)
			return p.runners[idx]
		}
	}

	best := p.runners[0]
	bestLen := best.queueLen()
	for _, r := range p.runners[1:] {
		l := r.queueLen()
		if l < bestLen {
			best, bestLen = r, l
		}
	}
	p.setLastSelected(best.idx)
	return best
}

func (p *Pool) setLastSelected(idx int) {
	p.intakeMu.Lock()
	p.lastSelected = idx
	p.intakeMu.Unlock()
}

func (p *Pool) runnerLoop(r *runner) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-r.wake:
		}
		for {
			t, ok := r.pop()
			if !ok {
				break
			}
			p.process(r, t)
		}
	}
}

func (p *Pool) process(r *runner, t Task) {
	r.mu.Lock()
	if r.needsWarmup {
		r.mu.Unlock()
		p.warmUp(r)
	} else {
		r.mu.Unlock()
	}

	r.mu.Lock()
	r.processing = true
	r.mu.Unlock()
	p.publishStats()

	ctx, cancel := context.WithTimeout(p.ctx, p.transcribeTimeout)
	fragments, err := r.w.Transcribe(ctx, t.WavPath)
	timedOut := ctx.Err() == context.DeadlineExceeded
	cancel()

	r.mu.Lock()
	r.processing = false
	if timedOut {
		r.needsWarmup = true
	}
	r.mu.Unlock()

	if err != nil {
		if timedOut {
			logging.PipelineError(logging.WorkerTranscribeTimeout, t.Seq, r.idx, err)
		} else {
			logging.PipelineError(logging.WorkerMalformedResponse, t.Seq, r.idx, err)
		}
		fragments = nil
	}

	if p.onResult != nil {
		p.onResult(t.Seq, t.WavPath, fragments)
	} else {
		os.Remove(t.WavPath)
	}
	p.publishStats()
}

func (p *Pool) publishStats() {
	if p.onStats == nil {
		return
	}
	p.onStats(p.Stats())
}

// Stats returns a snapshot of the observability surface.
func (p *Pool) Stats() QueueStats {
	p.intakeMu.Lock()
	intakeCount := len(p.intake)
	p.intakeMu.Unlock()

	perRunner := make([]RunnerStats, len(p.runners))
	for i, r := range p.runners {
		r.mu.Lock()
		perRunner[i] = RunnerStats{QueueCount: len(r.queue), IsProcessing: r.processing}
		r.mu.Unlock()
	}

	reorderCount := 0
	if p.onReorderCount != nil {
		reorderCount = p.onReorderCount()
	}

	return QueueStats{
		IntakeCount:  intakeCount,
		IntakeCap:    p.intakeCap,
		PerRunner:    perRunner,
		ReorderCount: reorderCount,
	}
}
