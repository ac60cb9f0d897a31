// Package audioconv decodes recorded clips into the mono 16 kHz float32 PCM
// the recognizer consumes.
package audioconv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

// SampleRate is the rate every decoder resamples to.
const SampleRate = 16000

type Format string

const (
	FormatWAV Format = "wav"
	FormatMP3 Format = "mp3"
	FormatOgg Format = "ogg"
)

var ErrUnsupported = errors.New("unsupported audio format")

// Extensions lists the file extensions DecodeFile accepts.
var Extensions = []string{".wav", ".mp3", ".ogg", ".oga", ".opus"}

func DecodeFile(path string, maxSamples int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	format, err := detect(f, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	pcm, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if maxSamples > 0 && len(pcm) > maxSamples {
		pcm = pcm[:maxSamples]
	}
	return pcm, nil
}

// detect trusts the extension first and falls back to the magic bytes.
func detect(r io.ReadSeeker, ext string) (Format, error) {
	switch strings.ToLower(ext) {
	case ".wav":
		return FormatWAV, nil
	case ".mp3":
		return FormatMP3, nil
	case ".ogg", ".oga", ".opus":
		return FormatOgg, nil
	}

	magic := make([]byte, 4)
	n, _ := io.ReadFull(r, magic)
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return Sniff(magic[:n])
}

func Sniff(magic []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(magic, []byte("RIFF")):
		return FormatWAV, nil
	case bytes.HasPrefix(magic, []byte("OggS")):
		return FormatOgg, nil
	case bytes.HasPrefix(magic, []byte("ID3")), len(magic) >= 2 && magic[0] == 0xFF && magic[1]&0xE0 == 0xE0:
		return FormatMP3, nil
	}
	return "", ErrUnsupported
}

func Decode(r io.ReadSeeker, format Format) ([]float32, error) {
	switch format {
	case FormatWAV:
		return decodeWAV(r)
	case FormatMP3:
		return decodeMP3(r)
	case FormatOgg:
		pcm, err := decodeVorbis(r)
		if err == nil {
			return pcm, nil
		}
		if _, serr := r.Seek(0, io.SeekStart); serr != nil {
			return nil, serr
		}
		pcm, oerr := decodeOpus(r)
		if oerr != nil {
			return nil, fmt.Errorf("ogg is neither vorbis (%v) nor opus: %w", err, oerr)
		}
		return pcm, nil
	}
	return nil, ErrUnsupported
}

func decodeWAV(r io.ReadSeeker) ([]float32, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read wav: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, errors.New("empty wav")
	}

	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = 16
	}
	channels, rate := 1, 44100
	if buf.Format != nil {
		channels = max(buf.Format.NumChannels, 1)
		if buf.Format.SampleRate > 0 {
			rate = buf.Format.SampleRate
		}
	}

	return ToMono16k(IntsToFloat32(buf.Data, depth), channels, rate), nil
}

func decodeMP3(r io.Reader) ([]float32, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("open mp3: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("read mp3: %w", err)
	}
	samples := make([]int16, len(raw)/2)
	if err := binary.Read(bytes.NewReader(raw[:len(samples)*2]), binary.LittleEndian, samples); err != nil {
		return nil, err
	}

	rate := dec.SampleRate()
	if rate <= 0 {
		rate = 44100
	}
	// go-mp3 always yields interleaved stereo.
	return ToMono16k(Int16ToFloat32(samples), 2, rate), nil
}

func decodeVorbis(r io.Reader) ([]float32, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, errors.New("invalid vorbis stream")
	}
	return ToMono16k(pcm, format.Channels, format.SampleRate), nil
}

func decodeOpus(r io.ReadSeeker) ([]float32, error) {
	dec, err := popus.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	defer dec.Destroy()

	channels := max(dec.ChannelCount(), 1)

	var (
		pcm []float32
		buf = make([]int16, 48000*channels/2)
	)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			pcm = append(pcm, Int16ToFloat32(buf[:n*channels])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	// opus always decodes at 48 kHz
	return ToMono16k(pcm, channels, 48000), nil
}
