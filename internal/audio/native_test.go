package audio

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testdata/clip.ogg: 1 s mono Vorbis at 44.1 kHz.
// testdata/speech.mp3: 400 MPEG-2 Layer III frames of mono speech at 22.05 kHz.
const speechMP3Seconds = 400 * 576 / 22050.0

func readTestdata(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func rms(s []float32) float64 {
	var sum float64
	for _, v := range s {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(s)))
}

func TestNormalize_NativeOgg(t *testing.T) {
	n := newTestNormalizer(&NativeTranscoder{StagingDir: t.TempDir()})

	pcm, err := n.Normalize(context.Background(), Blob{Data: readTestdata(t, "clip.ogg"), Format: "ogg"})
	require.NoError(t, err)

	assert.Equal(t, CanonicalSampleRate, pcm.SampleRate)
	assert.Len(t, pcm.Samples, CanonicalSampleRate)
	assert.Greater(t, rms(pcm.Samples), 0.0)
}

func TestNormalize_NativeMP3(t *testing.T) {
	n := newTestNormalizer(&NativeTranscoder{StagingDir: t.TempDir()})

	pcm, err := n.Normalize(context.Background(), Blob{Data: readTestdata(t, "speech.mp3"), Format: "mp3"})
	require.NoError(t, err)

	assert.Equal(t, CanonicalSampleRate, pcm.SampleRate)
	assert.InDelta(t, speechMP3Seconds, pcm.Duration().Seconds(), 0.1)
	assert.Greater(t, rms(pcm.Samples), 0.0)
}

func TestNormalize_DefaultTranscoderUsesNativeDecoders(t *testing.T) {
	// No ffmpeg binary: ogg and mp3 must still decode.
	tr := NewDefaultTranscoder(filepath.Join(t.TempDir(), "no-ffmpeg"), time.Minute, t.TempDir())
	n := newTestNormalizer(tr)

	for _, tc := range []struct{ file, format string }{{"clip.ogg", "ogg"}, {"speech.mp3", "mp3"}} {
		pcm, err := n.Normalize(context.Background(), Blob{Data: readTestdata(t, tc.file), Format: tc.format})
		require.NoError(t, err, tc.format)
		assert.Equal(t, CanonicalSampleRate, pcm.SampleRate, tc.format)
	}
}

func TestNativeTranscoder_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, tc := range []struct{ file, format string }{{"clip.ogg", "ogg"}, {"speech.mp3", "mp3"}} {
		_, err := (&NativeTranscoder{StagingDir: t.TempDir()}).Transcode(ctx, Blob{Data: readTestdata(t, tc.file), Format: tc.format})
		assert.ErrorIs(t, err, context.Canceled, tc.format)
	}
}

func TestNativeTranscoder_Timeout(t *testing.T) {
	tr := &NativeTranscoder{StagingDir: t.TempDir(), Timeout: time.Nanosecond}

	_, err := tr.Transcode(context.Background(), Blob{Data: readTestdata(t, "speech.mp3"), Format: "mp3"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNormalize_WAVRoundTrip(t *testing.T) {
	n := newTestNormalizer(nil)
	src := encodeTestWAV(t, tone(1.5, 44100, 2), 44100, 2)

	first, err := n.Normalize(context.Background(), Blob{Data: src, Format: "wav"})
	require.NoError(t, err)
	require.Equal(t, resampledLength(int(1.5*44100), 44100, CanonicalSampleRate), len(first.Samples))

	again, err := n.Normalize(context.Background(), Blob{Data: encodeTestWAV(t, first.Samples, CanonicalSampleRate, 1), Format: "wav"})
	require.NoError(t, err)

	// Canonical input passes through untouched apart from 16-bit quantization.
	require.Len(t, again.Samples, len(first.Samples))
	for i := range first.Samples {
		require.InDelta(t, first.Samples[i], again.Samples[i], 1e-4, "sample %d", i)
	}
	assert.InDelta(t, 1.5, again.Duration().Seconds(), 0.001)
}
