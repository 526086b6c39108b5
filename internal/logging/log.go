// Package logging is a small zerolog wrapper: a package-level logger, a
// resolved log directory, and a handful of session/event helpers rather
// than a general-purpose facade.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu       sync.Mutex
	logger   zerolog.Logger
	logFile  *os.File
	dir      string
	ready    bool
)

// ResolveDir applies a fixed priority order: explicit path, then
// VOXPIPE_LOG_PATH, then an OS temp-dir default.
func ResolveDir(flagPath string) (string, error) {
	if flagPath != "" {
		return absOrJoinCwd(flagPath)
	}
	if env := os.Getenv("VOXPIPE_LOG_PATH"); env != "" {
		return absOrJoinCwd(env)
	}
	return filepath.Join(os.TempDir(), "voxpipe", "logs"), nil
}

func absOrJoinCwd(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

// SetDir sets the log directory without creating it.
func SetDir(d string) { dir = d }

// Dir returns the currently configured log directory.
func Dir() string { return dir }

// EnsureDir creates the log directory if needed.
func EnsureDir() error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	return nil
}

// Init opens the pipeline's structured log file and installs a
// console+file multi-writer.
func Init() error {
	mu.Lock()
	defer mu.Unlock()
	if ready {
		return nil
	}

	var writers []io.Writer
	writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if dir != "" {
		if err := EnsureDir(); err != nil {
			return err
		}
		f, err := os.OpenFile(filepath.Join(dir, "voxpipe.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logFile = f
		writers = append(writers, f)
	}

	logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	ready = true
	return nil
}

// L returns the package logger, initializing a stderr-only fallback if
// Init was never called (useful in tests).
func L() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if !ready {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		ready = true
	}
	return &logger
}

// Close flushes and closes the log file, if any.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	ready = false
}

// SessionStart logs the pipeline configuration at session boundary.
func SessionStart(workerCount int, windowSizeSec float64) {
	L().Info().
		Int("worker_count", workerCount).
		Float64("window_size_sec", windowSizeSec).
		Msg("session_start")
}

// SessionEnd logs how many history segments a session produced.
func SessionEnd(segments int) {
	L().Info().Int("segments", segments).Msg("session_end")
}

// PauseTransition logs a pause controller state change.
func PauseTransition(from, to string) {
	L().Info().Str("from", from).Str("to", to).Msg("pause_transition")
}

// ErrorKind names the taxonomy used for structured error logging.
type ErrorKind string

const (
	CaptureFormatMismatch   ErrorKind = "capture_format_mismatch"
	RingOutOfRange          ErrorKind = "ring_out_of_range"
	WavWriteFailed          ErrorKind = "wav_write_failed"
	WorkerWarmupTimeout     ErrorKind = "worker_warmup_timeout"
	WorkerTranscribeTimeout ErrorKind = "worker_transcribe_timeout"
	WorkerMalformedResponse ErrorKind = "worker_malformed_response"
	IntakeOverflow          ErrorKind = "intake_overflow"
)

// PipelineError logs one of the error kinds above with context.
func PipelineError(kind ErrorKind, seq int64, workerIdx int, err error) {
	ev := L().Warn().Str("kind", string(kind))
	if seq >= 0 {
		ev = ev.Int64("seq", seq)
	}
	if workerIdx >= 0 {
		ev = ev.Int("worker", workerIdx)
	}
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("pipeline_error")
}
