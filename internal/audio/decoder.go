package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"songlens/internal/config"
	"songlens/internal/services"
)

// Decoder converts an encoded audio stream into PCM.
type Decoder interface {
	Decode(ctx context.Context, src io.Reader) (PCM, error)
}

// FFmpegDecoder decodes through an ffmpeg subprocess reading from stdin.
type FFmpegDecoder struct {
	Binary     string
	SampleRate int
	Channels   int
	Timeout    time.Duration
}

// NewFFmpegDecoder builds a decoder from the [decoder] configuration section.
func NewFFmpegDecoder(cfg *config.Config) *FFmpegDecoder {
	return &FFmpegDecoder{
		Binary:     cfg.Decoder.FFmpegBinary,
		SampleRate: cfg.Decoder.SampleRate,
		Channels:   cfg.Decoder.Channels,
		Timeout:    cfg.DecodeTimeout(),
	}
}

// Decode pipes src through ffmpeg and returns interleaved f32le samples.
func (d *FFmpegDecoder) Decode(ctx context.Context, src io.Reader) (PCM, error) {
	if src == nil {
		return PCM{}, services.Wrap(services.ErrDecode, "decode", "open source", "No audio source", nil)
	}
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	bin := strings.TrimSpace(d.Binary)
	if bin == "" {
		bin = "ffmpeg"
	}
	args := []string{
		"-hide_banner", "-v", "error",
		"-i", "pipe:0",
		"-ac", strconv.Itoa(d.Channels),
		"-ar", strconv.Itoa(d.SampleRate),
		"-f", "f32le",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = src
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return PCM{}, services.Wrap(services.ErrTimeout, "decode", "ffmpeg", "Decoding took too long", err)
		}
		if errors.Is(err, exec.ErrNotFound) {
			return PCM{}, services.Wrap(services.ErrConfiguration, "decode", "ffmpeg", "ffmpeg binary not found", err)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		return PCM{}, services.Wrap(services.ErrDecode, "decode", "ffmpeg", "Unsupported or corrupt audio", err)
	}

	samples, err := parseFloat32LE(out.Bytes())
	if err != nil {
		return PCM{}, services.Wrap(services.ErrDecode, "decode", "read samples", "Decoder produced malformed output", err)
	}
	if len(samples) == 0 {
		return PCM{}, services.Wrap(services.ErrDecode, "decode", "read samples", "File contains no audio", nil)
	}
	return PCM{Samples: samples, SampleRate: d.SampleRate, Channels: d.Channels}, nil
}

func parseFloat32LE(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("unexpected byte length %d", len(raw))
	}
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return samples, nil
}
