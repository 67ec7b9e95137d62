package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile(t *testing.T) {
	values := []time.Duration{4, 1, 3, 2, 5}

	assert.Equal(t, time.Duration(1), percentile(values, 0))
	assert.Equal(t, time.Duration(3), percentile(values, 0.5))
	assert.Equal(t, time.Duration(5), percentile(values, 1))
	assert.Equal(t, time.Duration(0), percentile(nil, 0.5))
	assert.Equal(t, time.Duration(3), average(values))
}

func TestRun(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if _, _, err := r.FormFile("audio"); err != nil {
			http.Error(w, "missing audio", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch n % 3 {
		case 0:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"success":false,"error":"Server busy, try again later"}`))
		case 1:
			_, _ = w.Write([]byte(`{"success":true,"emotion":"happy","confidence":90.1}`))
		default:
			_, _ = w.Write([]byte(`{"success":false,"error":"Empty audio file"}`))
		}
	}))
	defer srv.Close()

	client := newBenchmarkClient(srv.URL+"/", []clip{{name: "a.wav", data: []byte("a")}, {name: "b.mp3", data: []byte("b")}})
	var stderr bytes.Buffer
	sum := run(context.Background(), client, 6, 1, false, &stderr)

	require.Equal(t, 6, sum.total)
	assert.Equal(t, 2, sum.success)
	assert.Equal(t, 2, sum.rejected)
	assert.Equal(t, map[string]int{"happy": 2}, sum.emotions)
	assert.Contains(t, stderr.String(), "Empty audio file")

	var out bytes.Buffer
	sum.print(&out)
	assert.Contains(t, out.String(), "Success: 2, Rejected (busy): 2, Failed: 2")
	assert.Contains(t, out.String(), "  happy: 2")
}
