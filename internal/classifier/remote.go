package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/emotion-speech-go/emotion-speech-go/internal/schema"
)

// BackendRemote is the HTTP inference server backend.
const BackendRemote = "remote"

// RemoteModel calls an inference server that hosts the emotion model.
type RemoteModel struct {
	httpClient *http.Client
	endpoint   string
	timeout    time.Duration
	info       Info
}

var _ Model = (*RemoteModel)(nil)

// NewRemoteModel creates a client with connection pooling and fetches the
// model description from GET /v1/model.
func NewRemoteModel(ctx context.Context, endpoint string, timeout time.Duration) (*RemoteModel, error) {
	if endpoint == "" {
		return nil, errors.New("remote model URL is empty")
	}
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true,
	}

	m := &RemoteModel{
		httpClient: &http.Client{Transport: transport, Timeout: timeout},
		endpoint:   strings.TrimRight(endpoint, "/"),
		timeout:    timeout,
	}

	var desc schema.ModelInfoResponse
	if err := m.get(ctx, "/v1/model", &desc); err != nil {
		return nil, fmt.Errorf("describe remote model: %w", err)
	}
	if desc.InputDim <= 0 {
		return nil, fmt.Errorf("remote model reports input dimension %d", desc.InputDim)
	}

	name := desc.Name
	if name == "" {
		name = m.endpoint
	}
	m.info = Info{
		Name:      name,
		Backend:   BackendRemote,
		InputDim:  desc.InputDim,
		OutputDim: desc.OutputDim,
		Labels:    toLabels(desc.Labels),
	}
	return m, nil
}

// Health checks if the inference server is reachable.
func (m *RemoteModel) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoint+"/v1/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("remote model unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// Predict implements Model.
func (m *RemoteModel) Predict(ctx context.Context, batch [][]float64) ([][]float64, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	body, err := msgpack.Marshal(&schema.PredictRequest{Inputs: batch})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint+"/v1/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/msgpack")
	httpReq.Header.Set("Accept", "application/msgpack")

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrRemoteTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	var result schema.PredictResponse
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return result.Outputs, nil
}

// Info implements Model.
func (m *RemoteModel) Info() Info {
	return m.info
}

// Reentrant implements Reentrant; each call is an independent HTTP request.
func (m *RemoteModel) Reentrant() bool {
	return true
}

func (m *RemoteModel) get(ctx context.Context, path string, v interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoint+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/msgpack")

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, v)
}

// decodeResponse decodes a msgpack or JSON body, or returns a *RemoteError
// for non-200 statuses.
func decodeResponse(resp *http.Response, v interface{}) error {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &RemoteError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		if err := json.Unmarshal(respBody, v); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
	if err := msgpack.Unmarshal(respBody, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
