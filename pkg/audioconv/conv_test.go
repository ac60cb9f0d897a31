package audioconv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWAV(t *testing.T, path string, rate, channels int, data []int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

func TestDecodeWAV(t *testing.T) {
	dir := t.TempDir()

	mono := filepath.Join(dir, "mono.wav")
	writeWAV(t, mono, 16000, 1, []int{0, 16384, -16384, 32767})
	pcm, err := DecodeFile(mono, 0)
	require.NoError(t, err)
	require.Len(t, pcm, 4)
	assert.InDelta(t, 0.5, pcm[1], 1e-4)
	assert.InDelta(t, -0.5, pcm[2], 1e-4)

	stereo := filepath.Join(dir, "stereo.raw")
	data := make([]int, 32000*2)
	for i := range data {
		data[i] = 8192
	}
	writeWAV(t, stereo, 32000, 2, data)
	pcm, err = DecodeFile(stereo, 0)
	require.NoError(t, err)
	assert.Len(t, pcm, 16000)
	assert.InDelta(t, 0.25, pcm[100], 1e-4)

	pcm, err = DecodeFile(stereo, 10)
	require.NoError(t, err)
	assert.Len(t, pcm, 10)
}

func TestDecodeFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := DecodeFile(filepath.Join(dir, "missing.wav"), 0)
	assert.Error(t, err)

	junk := filepath.Join(dir, "junk.bin")
	require.NoError(t, os.WriteFile(junk, []byte("not audio at all"), 0o644))
	_, err = DecodeFile(junk, 0)
	assert.ErrorIs(t, err, ErrUnsupported)

	fake := filepath.Join(dir, "fake.wav")
	require.NoError(t, os.WriteFile(fake, []byte("RIFF"), 0o644))
	_, err = DecodeFile(fake, 0)
	assert.Error(t, err)
}

func TestSniff(t *testing.T) {
	tests := []struct {
		magic []byte
		want  Format
	}{
		{[]byte("RIFF"), FormatWAV},
		{[]byte("OggS"), FormatOgg},
		{[]byte("ID3\x04"), FormatMP3},
		{[]byte{0xFF, 0xFB, 0x90, 0x00}, FormatMP3},
	}
	for _, tt := range tests {
		got, err := Sniff(tt.magic)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := Sniff([]byte("MZ"))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestDownmixAndResample(t *testing.T) {
	assert.Equal(t, []float32{0.5, -0.5}, Downmix([]float32{1, 0, 0, -1}, 2))

	in := []float32{0, 1, 0, -1}
	assert.Equal(t, in, Resample(in, 16000, 16000))

	up := Resample([]float32{0, 1}, 8000, 16000)
	assert.Equal(t, []float32{0, 0.5, 1, 1}, up)

	down := Resample([]float32{0, 0.25, 0.5, 0.75, 1, 1}, 48000, 16000)
	assert.Equal(t, []float32{0, 0.75}, down)
}

func TestRMS(t *testing.T) {
	assert.Zero(t, RMS(nil))
	assert.InDelta(t, 0.5, RMS([]float32{0.5, -0.5, 0.5, -0.5}), 1e-9)
}
