// Package wav writes the fixed 44-byte RIFF/WAVE header used for every
// window file the pipeline saves to disk.
package wav

import (
	"encoding/binary"
	"fmt"
	"os"
)

// HeaderSize is the fixed PCM WAV header length this package writes.
const HeaderSize = 44

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
)

// Header builds the 44-byte RIFF/WAVE header for dataSize bytes of
// 16 kHz/mono/16-bit PCM. dataSize must be even.
func Header(dataSize int) []byte {
	buf := make([]byte, HeaderSize)
	blockAlign := Channels * BitsPerSample / 8
	byteRate := SampleRate * blockAlign

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(HeaderSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], Channels)
	binary.LittleEndian.PutUint32(buf[24:28], SampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], BitsPerSample)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	return buf
}

// WriteFile writes header+pcm to path. pcm must have an even byte
// length; every saved WAV carries an even byte count.
func WriteFile(path string, pcm []byte) error {
	if len(pcm)%2 != 0 {
		return fmt.Errorf("wav: odd pcm byte length %d", len(pcm))
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wav: create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(Header(len(pcm))); err != nil {
		return fmt.Errorf("wav: write header: %w", err)
	}
	if _, err := f.Write(pcm); err != nil {
		return fmt.Errorf("wav: write data: %w", err)
	}
	return nil
}

// ReadPCM strips the 44-byte header and returns the raw samples.
func ReadPCM(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("wav: %s shorter than header", path)
	}
	return data[HeaderSize:], nil
}
