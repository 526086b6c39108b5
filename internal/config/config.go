// Package config holds the tunables recognized by the pipeline plus the
// ambient settings needed to run it as a standalone process.
package config

import (
	"flag"
	"fmt"
	"time"
)

// Config holds every tunable the pipeline reads at startup. Units are
// seconds unless noted.
type Config struct {
	WindowSizeSec       float64 // W
	StepSec             float64 // heartbeat period; 0 => use W
	SilenceThresholdRMS float64 // VAD theta
	SilenceHoldSec      float64 // Ts
	PreRollSec          float64 // P
	MaxExtensionSec     float64 // E
	MaxExtensionRatio   float64 // R
	WordPauseSec        float64 // Pp
	IntakeCapacity      int     // Qi
	WorkerCount         int     // N

	// Ambient settings needed to run the process, not tunables of the pipeline itself.
	LogDir             string
	WavDir             string
	WarmupTimeout      time.Duration
	TranscribeTimeout  time.Duration
	ObserveAddr        string
	HistoryDBPath      string
	DedupEpsilonSec    float64
}

// Default returns the baseline configuration new pipelines start from.
func Default() Config {
	return Config{
		WindowSizeSec:       3.0,
		StepSec:             0.0,
		SilenceThresholdRMS: 0.007,
		SilenceHoldSec:      1.0,
		PreRollSec:          0.4,
		MaxExtensionSec:     0.5,
		MaxExtensionRatio:   1.5,
		WordPauseSec:        0.05,
		IntakeCapacity:      10,
		WorkerCount:         2,

		LogDir:            "",
		WavDir:            "",
		WarmupTimeout:     45 * time.Second,
		TranscribeTimeout: 30 * time.Second,
		ObserveAddr:       "",
		HistoryDBPath:     "",
		DedupEpsilonSec:   0.05,
	}
}

// RegisterFlags binds the config's fields to command-line flags,
// defaulting each one to its current value.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.Float64Var(&c.WindowSizeSec, "window-size-sec", c.WindowSizeSec, "nominal window length W")
	fs.Float64Var(&c.StepSec, "step-sec", c.StepSec, "heartbeat period; 0 uses window-size-sec")
	fs.Float64Var(&c.SilenceThresholdRMS, "silence-threshold-rms", c.SilenceThresholdRMS, "VAD RMS threshold")
	fs.Float64Var(&c.SilenceHoldSec, "silence-hold-sec", c.SilenceHoldSec, "silence hold before auto-pause/window cut")
	fs.Float64Var(&c.PreRollSec, "pre-roll-sec", c.PreRollSec, "pre-roll lookback before speech onset")
	fs.Float64Var(&c.MaxExtensionSec, "max-extension-sec", c.MaxExtensionSec, "max extension seconds while seeking a word boundary")
	fs.Float64Var(&c.MaxExtensionRatio, "max-extension-ratio", c.MaxExtensionRatio, "max extension as a ratio of window size")
	fs.Float64Var(&c.WordPauseSec, "word-pause-sec", c.WordPauseSec, "required silence run to call a word boundary")
	fs.IntVar(&c.IntakeCapacity, "intake-capacity", c.IntakeCapacity, "bounded intake queue capacity")
	fs.IntVar(&c.WorkerCount, "worker-count", c.WorkerCount, "number of parallel transcription workers")

	fs.StringVar(&c.LogDir, "log-dir", c.LogDir, "log directory (default: OS-specific)")
	fs.StringVar(&c.WavDir, "wav-dir", c.WavDir, "directory for temporary window WAV files (default: os.TempDir)")
	fs.DurationVar(&c.WarmupTimeout, "warmup-timeout", c.WarmupTimeout, "worker warm_up timeout")
	fs.DurationVar(&c.TranscribeTimeout, "transcribe-timeout", c.TranscribeTimeout, "worker transcribe timeout")
	fs.StringVar(&c.ObserveAddr, "observe-addr", c.ObserveAddr, "address to serve the /ws observability surface on (empty disables it)")
	fs.StringVar(&c.HistoryDBPath, "history-db", c.HistoryDBPath, "sqlite path for the transcript history sink (default: in-memory)")
	fs.Float64Var(&c.DedupEpsilonSec, "dedup-epsilon-sec", c.DedupEpsilonSec, "history de-dup epsilon in seconds")
}

// Validate rejects configuration combinations the pipeline cannot run with.
func (c Config) Validate() error {
	switch {
	case c.WindowSizeSec <= 0:
		return fmt.Errorf("window-size-sec must be positive, got %v", c.WindowSizeSec)
	case c.SilenceHoldSec <= 0:
		return fmt.Errorf("silence-hold-sec must be positive, got %v", c.SilenceHoldSec)
	case c.PreRollSec < 0:
		return fmt.Errorf("pre-roll-sec must be non-negative, got %v", c.PreRollSec)
	case c.MaxExtensionSec < 0:
		return fmt.Errorf("max-extension-sec must be non-negative, got %v", c.MaxExtensionSec)
	case c.MaxExtensionRatio < 0:
		return fmt.Errorf("max-extension-ratio must be non-negative, got %v", c.MaxExtensionRatio)
	case c.WordPauseSec <= 0:
		return fmt.Errorf("word-pause-sec must be positive, got %v", c.WordPauseSec)
	case c.IntakeCapacity < 1:
		return fmt.Errorf("intake-capacity must be at least 1, got %d", c.IntakeCapacity)
	case c.WorkerCount < 1:
		return fmt.Errorf("worker-count must be at least 1, got %d", c.WorkerCount)
	}
	return nil
}

// MaxExtension returns E clamped by the ratio limit min(E, W*R).
func (c Config) MaxExtension() float64 {
	limit := c.WindowSizeSec * c.MaxExtensionRatio
	if c.MaxExtensionSec < limit {
		return c.MaxExtensionSec
	}
	return limit
}

// Step returns the heartbeat period, defaulting to W when unset.
func (c Config) Step() float64 {
	if c.StepSec <= 0 {
		return c.WindowSizeSec
	}
	return c.StepSec
}

// RingCapacitySec returns the ring buffer capacity floor: 3*W + E.
func (c Config) RingCapacitySec() float64 {
	return 3*c.WindowSizeSec + c.MaxExtension()
}
