package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sumerc/voxpipe/internal/capture"
	"github.com/sumerc/voxpipe/internal/pipeline"
)

// runTestMode replays wavPath through the pipeline as if it were a live
// capture device, driven by stdin commands.
func runTestMode(pl *pipeline.Pipeline, wavPath string, realtime bool) {
	fakeCtx, err := capture.NewFakeContext(wavPath, realtime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		os.Exit(1)
	}

	dev, err := fakeCtx.NewCapture(nil, capture.Config{SampleRate: capture.SampleRate, Channels: capture.Channels})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating capture: %v\n", err)
		os.Exit(1)
	}
	fakeCapture := dev.(*capture.FakeCapture)

	dev.SetCallback(pl.OnFrame)
	pl.Start()
	if err := dev.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting capture: %v\n", err)
		os.Exit(1)
	}
	defer dev.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch {
		case cmd == "PAUSE":
			pl.Pauser().SetManual(true)
		case cmd == "RESUME":
			pl.Pauser().SetManual(false)
		case cmd == "WAIT_AUDIO_DONE":
			<-fakeCapture.AudioDone()
		case cmd == "QUIT":
			dev.Stop()
			pl.Stop()
			os.Exit(0)
		case strings.HasPrefix(cmd, "SLEEP "):
			if ms, err := strconv.Atoi(cmd[len("SLEEP "):]); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		}
	}

	dev.Stop()
	pl.Stop()
}
