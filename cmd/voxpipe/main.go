// Command voxpipe runs the audio-to-ordered-transcript pipeline as a
// standalone process. It wires config, logging, capture, the pipeline
// core, and the observability surface: flag parsing and log directory
// resolution happen up front, followed by a headless -test mode option
// and a signal-driven graceful shutdown.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sumerc/voxpipe/internal/capture"
	"github.com/sumerc/voxpipe/internal/config"
	"github.com/sumerc/voxpipe/internal/history"
	"github.com/sumerc/voxpipe/internal/logging"
	"github.com/sumerc/voxpipe/internal/observe"
	"github.com/sumerc/voxpipe/internal/pipeline"
	"github.com/sumerc/voxpipe/internal/worker"
)

var version = "dev"

func main() {
	cfg := config.Default()
	cfg.RegisterFlags(flag.CommandLine)
	versionFlag := flag.Bool("version", false, "print version and exit")
	testFlag := flag.Bool("test", false, "test mode (headless, stdin-driven, replays a WAV file)")
	realtimeFlag := flag.Bool("test-realtime", true, "pace -test WAV replay to real time")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("voxpipe %s\n", version)
		return
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logPath, err := logging.ResolveDir(cfg.LogDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	logging.SetDir(logPath)
	if err := logging.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer logging.Close()

	hist, err := history.Open(cfg.HistoryDBPath, cfg.DedupEpsilonSec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open history store: %v\n", err)
		os.Exit(1)
	}
	defer hist.Close()

	workers := make([]worker.Worker, cfg.WorkerCount)
	for i := range workers {
		workers[i] = worker.NewFake(fmt.Sprintf("[worker %d transcript]", i))
	}

	var hub *observe.Hub
	if cfg.ObserveAddr != "" {
		hub = observe.NewHub()
	}

	deps := pipeline.Deps{Workers: workers, History: hist}
	if hub != nil {
		deps.OnStats = hub.PublishStats
		deps.OnSegment = hub.PublishSegment
	}
	pl := pipeline.New(cfg, deps)

	if hub != nil {
		mux := http.NewServeMux()
		mux.Handle("/ws", hub)
		mux.Handle("/metrics", pl.Metrics().Handler())
		srv := &http.Server{Addr: cfg.ObserveAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.PipelineError(logging.CaptureFormatMismatch, -1, -1, fmt.Errorf("observe server: %w", err))
			}
		}()
		defer srv.Close()
	}

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: voxpipe -test <wav-file>")
			os.Exit(1)
		}
		runTestMode(pl, args[0], *realtimeFlag)
		return
	}

	captureCtx, err := capture.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer captureCtx.Close()

	dev, err := captureCtx.NewCapture(nil, capture.Config{SampleRate: capture.SampleRate, Channels: capture.Channels})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing capture device: %v\n", err)
		os.Exit(1)
	}
	defer dev.Close()

	dev.SetCallback(pl.OnFrame)
	pl.Start()
	if err := dev.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting capture: %v\n", err)
		os.Exit(1)
	}

	go tickLoop(pl, cfg.Step())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	dev.Stop()
	pl.Stop()
}

func tickLoop(pl *pipeline.Pipeline, stepSec float64) {
	ticker := time.NewTicker(time.Duration(stepSec * float64(time.Second)))
	defer ticker.Stop()
	for range ticker.C {
		pl.Tick()
	}
}
