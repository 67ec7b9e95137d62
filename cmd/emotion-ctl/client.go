package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/emotion-speech-go/emotion-speech-go/internal/schema"
)

const requestTimeout = 2 * time.Minute

func makeRequest(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	body, status, err := do(req)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("server error (status %d): %s", status, string(body))
	}
	return body, nil
}

// uploadAudio posts a clip as the multipart "audio" field. Failed analyses
// are returned as responses, not errors; only transport problems and
// non-analysis bodies are errors.
func uploadAudio(ctx context.Context, url, filename string, data []byte) (schema.AnalysisResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		return schema.AnalysisResponse{}, err
	}
	if _, err := part.Write(data); err != nil {
		return schema.AnalysisResponse{}, err
	}
	if err := mw.Close(); err != nil {
		return schema.AnalysisResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return schema.AnalysisResponse{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	body, status, err := do(req)
	if err != nil {
		return schema.AnalysisResponse{}, err
	}

	var resp schema.AnalysisResponse
	if err := json.Unmarshal(body, &resp); err != nil || (!resp.Success && resp.Error == "") {
		return schema.AnalysisResponse{}, fmt.Errorf("server error (status %d): %s", status, string(body))
	}
	return resp, nil
}

func do(req *http.Request) ([]byte, int, error) {
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	client := &http.Client{Timeout: requestTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
