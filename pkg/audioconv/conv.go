// Package audioconv inspects synthesized speech blobs: container format,
// sample rate and playback length.
package audioconv

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/faiface/beep/mp3"
	"github.com/go-audio/wav"
)

const (
	FormatMP3 = "mp3"
	FormatWAV = "wav"
)

var ErrUnknownFormat = errors.New("unknown audio format")

type Info struct {
	Format     string
	SampleRate int
	Channels   int
	Duration   time.Duration
}

// Sniff guesses the container from the first bytes.
func Sniff(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV
	case len(data) >= 3 && string(data[:3]) == "ID3":
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	}
	return ""
}

// Probe decodes data just far enough to report its length. An empty format
// is sniffed.
func Probe(data []byte, format string) (Info, error) {
	if format == "" {
		format = Sniff(data)
	}
	switch format {
	case FormatWAV:
		return probeWAV(data)
	case FormatMP3:
		return probeMP3(data)
	}
	return Info{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func probeWAV(data []byte) (Info, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return Info{}, errors.New("invalid wav")
	}
	d, err := dec.Duration()
	if err != nil {
		return Info{}, fmt.Errorf("wav duration: %w", err)
	}
	return Info{
		Format:     FormatWAV,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		Duration:   d,
	}, nil
}

func probeMP3(data []byte) (Info, error) {
	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return Info{}, fmt.Errorf("mp3 decode: %w", err)
	}
	defer streamer.Close()

	return Info{
		Format:     FormatMP3,
		SampleRate: int(format.SampleRate),
		Channels:   format.NumChannels,
		Duration:   format.SampleRate.D(streamer.Len()),
	}, nil
}

// ContentType is the MIME type to serve format with.
func ContentType(format string) string {
	switch format {
	case FormatWAV:
		return "audio/wav"
	case FormatMP3:
		return "audio/mpeg"
	}
	return "application/octet-stream"
}
