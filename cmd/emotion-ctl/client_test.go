package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emotion-speech-go/emotion-speech-go/internal/schema"
)

func TestUploadAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze_realtime", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		file, header, err := r.FormFile("audio")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "clip.ogg", header.Filename)
		assert.Equal(t, []byte("ogg bytes"), data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"emotion":"calm","confidence":71.4}`))
	}))
	defer srv.Close()

	apiKey = "k"
	defer func() { apiKey = "" }()

	resp, err := uploadAudio(context.Background(), srv.URL+"/analyze_realtime", "clip.ogg", []byte("ogg bytes"))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "calm", resp.Emotion)
	require.NotNil(t, resp.Confidence)
	assert.Equal(t, 71.4, *resp.Confidence)
}

func replyWith(status int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestUploadAudio_BusyAndUnauthorized(t *testing.T) {
	busy := replyWith(http.StatusServiceUnavailable, `{"success":false,"error":"Server busy, try again later"}`)
	defer busy.Close()

	resp, err := uploadAudio(context.Background(), busy.URL, "clip.wav", []byte("x"))
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Server busy, try again later", resp.Error)

	denied := replyWith(http.StatusUnauthorized, `{"detail":"Invalid token"}`)
	defer denied.Close()

	_, err = uploadAudio(context.Background(), denied.URL, "clip.wav", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestMakeRequest_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := makeRequest(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestWriteAnalysis(t *testing.T) {
	c := 87.3
	tests := []struct {
		name   string
		format string
		resp   schema.AnalysisResponse
		want   string
	}{
		{"text success", "text", schema.AnalysisResponse{Success: true, Emotion: "happy", Confidence: &c}, "✓ Emotion: happy (confidence: 87.3%)\n"},
		{"text failure", "text", schema.NewAnalysisFailure("Empty audio file"), "✗ Failed: Empty audio file\n"},
		{"json", "json", schema.AnalysisResponse{Success: true, Emotion: "happy", Confidence: &c}, "{\"success\":true,\"emotion\":\"happy\",\"confidence\":87.3}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output = tt.format
			defer func() { output = "text" }()

			var buf bytes.Buffer
			require.NoError(t, writeAnalysis(&buf, tt.resp))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestPrintHealth(t *testing.T) {
	latency := 1.5
	var buf bytes.Buffer
	printHealth(&buf, schema.HealthResponse{
		Status: "ok",
		Model: &schema.ModelHealth{
			Status:    "ok",
			Name:      "ser",
			Backend:   "dense",
			Labels:    []string{"angry", "happy"},
			LatencyMs: &latency,
		},
	})

	assert.Equal(t, "Status: ok\nModel: ok (ser, dense backend) latency: 1.5ms\nLabels: [angry happy]\n", buf.String())
}
