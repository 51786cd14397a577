// Package audio loads and paces raw 16-bit PCM for the capture side.
package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"time"
)

const (
	// CaptureSampleRate is the rate the translation service expects.
	CaptureSampleRate = 16000
	// PlaybackSampleRate is the rate of the model's audio output.
	PlaybackSampleRate = 24000
	// ChunkSize is 100ms of 16 kHz mono 16-bit PCM.
	ChunkSize     = 3200
	ChunkInterval = 100 * time.Millisecond

	wavHeaderSize = 44
)

// LoadFile reads raw PCM, or a WAV file whose canonical header is skipped.
func LoadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return StripWAVHeader(data)
}

// StripWAVHeader returns the sample data of a canonical WAV file, or data
// unchanged when it has no RIFF header. WAV input must be 16 kHz mono 16-bit.
func StripWAVHeader(data []byte) ([]byte, error) {
	if len(data) <= wavHeaderSize || !bytes.Equal(data[0:4], []byte("RIFF")) {
		return data, nil
	}
	channels := binary.LittleEndian.Uint16(data[22:24])
	rate := binary.LittleEndian.Uint32(data[24:28])
	bits := binary.LittleEndian.Uint16(data[34:36])
	if channels != 1 || rate != CaptureSampleRate || bits != 16 {
		return nil, fmt.Errorf("unsupported wav format: %d ch, %d Hz, %d bit", channels, rate, bits)
	}
	return data[wavHeaderSize:], nil
}

// Stream calls send with consecutive chunks of data, one per interval,
// the way a live microphone would deliver them.
func Stream(ctx context.Context, data []byte, chunkSize int, interval time.Duration, send func([]byte) error) error {
	if chunkSize <= 0 {
		chunkSize = ChunkSize
	}
	var ticker *time.Ticker
	if interval > 0 {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
	}

	for i := 0; i < len(data); i += chunkSize {
		end := i + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := send(data[i:end]); err != nil {
			return err
		}
		if ticker == nil {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
