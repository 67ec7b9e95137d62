package audio

import (
	"path/filepath"
	"strings"
	"time"
)

// CanonicalSampleRate is the rate every normalized stream is delivered at.
const CanonicalSampleRate = 22050

// DefaultFormat is assumed when an upload carries no usable extension.
const DefaultFormat = "wav"

// Blob is an uploaded audio payload together with its format hint.
// It lives for a single request and is never persisted.
type Blob struct {
	Data   []byte
	Format string
}

// FormatFromFilename returns the lower-cased extension of name without the dot,
// or DefaultFormat when name has none.
func FormatFromFilename(name string) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return DefaultFormat
	}
	return strings.ToLower(ext)
}

// PCM is a mono stream of samples in [-1, 1].
type PCM struct {
	Samples    []float32
	SampleRate int
}

// Duration reports the playback length of the stream.
func (p *PCM) Duration() time.Duration {
	if p == nil || p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(p.Samples)) / float64(p.SampleRate) * float64(time.Second))
}

func isCanonicalFormat(format string) bool {
	switch format {
	case "wav", "wave":
		return true
	}
	return false
}
