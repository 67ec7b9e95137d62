package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// Transcoder re-encodes a blob of any supported format into a WAV container.
type Transcoder interface {
	Transcode(ctx context.Context, blob Blob) ([]byte, error)
}

// NativeTranscoder decodes Ogg Vorbis and MP3 in-process and writes the
// result through a staging WAV file. Decoding stops at the first chunk
// boundary after ctx is done or Timeout elapses.
type NativeTranscoder struct {
	StagingDir string
	Timeout    time.Duration
}

// Transcode implements Transcoder.
func (t *NativeTranscoder) Transcode(ctx context.Context, blob Blob) ([]byte, error) {
	var decode func(context.Context, io.Reader) (*interleaved, error)
	switch blob.Format {
	case "ogg", "oga":
		decode = decodeVorbis
	case "mp3":
		decode = decodeMP3
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, blob.Format)
	}

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	raw, err := decode(ctx, bytes.NewReader(blob.Data))
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(t.StagingDir, "emotion-native-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if err := EncodeWAV(f, raw.samples, raw.sampleRate, raw.channels); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind staging file: %w", err)
	}
	return io.ReadAll(f)
}

func decodeVorbis(ctx context.Context, r io.Reader) (*interleaved, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open ogg stream: %w", err)
	}

	var samples []float32
	buf := make([]float32, 16384)
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("decode ogg stream: %w", err)
		}
		n, err := dec.Read(buf)
		samples = append(samples, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read ogg stream: %w", err)
		}
	}
	if len(samples) == 0 {
		return nil, errors.New("ogg stream has no samples")
	}

	return &interleaved{samples: samples, channels: dec.Channels(), sampleRate: dec.SampleRate()}, nil
}

func decodeMP3(ctx context.Context, r io.Reader) (*interleaved, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("open mp3 stream: %w", err)
	}

	// go-mp3 always yields 16-bit little-endian stereo.
	var pcm []byte
	buf := make([]byte, 64<<10)
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("decode mp3 stream: %w", err)
		}
		n, err := dec.Read(buf)
		pcm = append(pcm, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read mp3 stream: %w", err)
		}
	}
	if len(pcm) < 4 {
		return nil, errors.New("mp3 stream has no samples")
	}

	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		v := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		samples[i] = float32(v) / 32768
	}
	return &interleaved{samples: samples, channels: 2, sampleRate: dec.SampleRate()}, nil
}

// FFmpegTranscoder shells out to ffmpeg for everything the native decoders
// do not cover (webm, mp4, m4a, flac, aac, opus, ...).
type FFmpegTranscoder struct {
	Path       string
	Timeout    time.Duration
	StagingDir string
}

// Transcode implements Transcoder.
func (t *FFmpegTranscoder) Transcode(ctx context.Context, blob Blob) ([]byte, error) {
	path := t.Path
	if path == "" {
		path = "ffmpeg"
	}
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	in, err := os.CreateTemp(t.StagingDir, "emotion-in-*"+stagingSuffix(blob.Format))
	if err != nil {
		return nil, fmt.Errorf("create staging input: %w", err)
	}
	defer os.Remove(in.Name())
	if _, err := in.Write(blob.Data); err != nil {
		in.Close()
		return nil, fmt.Errorf("write staging input: %w", err)
	}
	if err := in.Close(); err != nil {
		return nil, fmt.Errorf("close staging input: %w", err)
	}

	out, err := os.CreateTemp(t.StagingDir, "emotion-out-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create staging output: %w", err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", in.Name(),
		"-vn",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", CanonicalSampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		outPath,
	}

	cmd := exec.CommandContext(ctx, path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("ffmpeg: %w", ctxErr)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}

	return os.ReadFile(outPath)
}

// stagingSuffix keeps the extension on staged input so ffmpeg can use it as
// a probing hint. Anything not plainly alphanumeric is dropped.
func stagingSuffix(format string) string {
	if format == "" || len(format) > 8 {
		return ""
	}
	for _, r := range format {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return "." + format
}

// ChainTranscoder tries each transcoder in order and returns the first success.
type ChainTranscoder []Transcoder

// Transcode implements Transcoder.
func (c ChainTranscoder) Transcode(ctx context.Context, blob Blob) ([]byte, error) {
	if len(c) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, blob.Format)
	}
	var errs []error
	for _, t := range c {
		out, err := t.Transcode(ctx, blob)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

// NewDefaultTranscoder returns the native decoders backed by ffmpeg.
func NewDefaultTranscoder(ffmpegPath string, timeout time.Duration, stagingDir string) Transcoder {
	return ChainTranscoder{
		&NativeTranscoder{StagingDir: stagingDir, Timeout: timeout},
		&FFmpegTranscoder{Path: ffmpegPath, Timeout: timeout, StagingDir: stagingDir},
	}
}
