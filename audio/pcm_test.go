package audio

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wavHeader(channels uint16, rate uint32, bits uint16) []byte {
	h := make([]byte, wavHeaderSize)
	copy(h[0:4], "RIFF")
	copy(h[8:12], "WAVE")
	binary.LittleEndian.PutUint16(h[22:24], channels)
	binary.LittleEndian.PutUint32(h[24:28], rate)
	binary.LittleEndian.PutUint16(h[34:36], bits)
	return h
}

func TestStripWAVHeader(t *testing.T) {
	samples := []byte{1, 2, 3, 4}

	out, err := StripWAVHeader(append(wavHeader(1, 16000, 16), samples...))
	require.NoError(t, err)
	assert.Equal(t, samples, out)

	out, err = StripWAVHeader(samples)
	require.NoError(t, err)
	assert.Equal(t, samples, out)

	_, err = StripWAVHeader(append(wavHeader(2, 44100, 16), samples...))
	assert.ErrorContains(t, err, "unsupported wav format")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.pcm")
	require.NoError(t, os.WriteFile(path, []byte{9, 9}, 0o600))
	data, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9}, data)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.pcm"))
	assert.Error(t, err)
}

func TestStreamChunks(t *testing.T) {
	var sizes []int
	err := Stream(context.Background(), make([]byte, 7000), ChunkSize, 0, func(b []byte) error {
		sizes = append(sizes, len(b))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3200, 3200, 600}, sizes)
}

func TestStreamStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sent := 0
	err := Stream(ctx, make([]byte, 10*ChunkSize), ChunkSize, ChunkInterval, func([]byte) error {
		sent++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sent)
}
