// Package wavtest synthesizes PCM fixtures for tests across the module:
// silence generation plus a tone generator so VAD/window tests can
// produce audio that crosses the RMS threshold.
package wavtest

import (
	"math"
)

const bytesPerSample = 2

// Silence returns durationSec of zeroed 16-bit mono PCM at sampleRate.
func Silence(sampleRate int, durationSec float64) []byte {
	n := int(float64(sampleRate) * durationSec)
	return make([]byte, n*bytesPerSample)
}

// Tone returns durationSec of a sine wave at freqHz, scaled by amplitude
// (0..1) of full scale, as 16-bit mono PCM.
func Tone(sampleRate int, freqHz, durationSec, amplitude float64) []byte {
	n := int(float64(sampleRate) * durationSec)
	buf := make([]byte, n*bytesPerSample)
	for i := 0; i < n; i++ {
		v := amplitude * math.Sin(2*math.Pi*freqHz*float64(i)/float64(sampleRate))
		s := int16(v * 32767)
		buf[2*i] = byte(uint16(s))
		buf[2*i+1] = byte(uint16(s) >> 8)
	}
	return buf
}

// Concat joins PCM buffers in order.
func Concat(bufs ...[]byte) []byte {
	total := 0
	for _, b := range bufs {
		total += len(b)
	}
	out := make([]byte, 0, total)
	for _, b := range bufs {
		out = append(out, b...)
	}
	return out
}

// Chunks splits pcm into frames of frameBytes bytes, the shape a
// capture callback delivers; the final short frame (if any) is kept.
func Chunks(pcm []byte, frameBytes int) [][]byte {
	var out [][]byte
	for off := 0; off < len(pcm); off += frameBytes {
		end := off + frameBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		out = append(out, pcm[off:end])
	}
	return out
}
