package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptrace"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/emotion-speech-go/emotion-speech-go/internal/schema"
)

type clip struct {
	name string
	data []byte
}

type BenchmarkClient struct {
	baseURL   string
	clips     []clip
	clipIndex uint64
	client    *http.Client
}

type runResult struct {
	duration   time.Duration
	firstByte  time.Duration
	success    bool
	rejected   bool
	statusCode int
	emotion    string
	err        error
}

func newBenchmarkClient(baseURL string, clips []clip) *BenchmarkClient {
	return &BenchmarkClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		clips:   clips,
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

func (c *BenchmarkClient) nextClip() clip {
	idx := atomic.AddUint64(&c.clipIndex, 1)
	return c.clips[(idx-1)%uint64(len(c.clips))]
}

func (c *BenchmarkClient) Do(ctx context.Context) runResult {
	start := time.Now()
	cl := c.nextClip()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("audio", cl.name)
	if err == nil {
		_, err = part.Write(cl.data)
	}
	if err == nil {
		err = mw.Close()
	}
	if err != nil {
		return runResult{err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze_realtime", &body)
	if err != nil {
		return runResult{err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("User-Agent", "emotion-bench/0.1")

	var firstByte time.Duration
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() {
			firstByte = time.Since(start)
		},
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	resp, err := c.client.Do(req)
	if err != nil {
		return runResult{duration: time.Since(start), err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	if err != nil {
		return runResult{duration: duration, statusCode: resp.StatusCode, err: err}
	}

	var analysis schema.AnalysisResponse
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return runResult{duration: duration, statusCode: resp.StatusCode, err: fmt.Errorf("decode response: %w", err)}
	}

	res := runResult{
		duration:   duration,
		firstByte:  firstByte,
		success:    resp.StatusCode == http.StatusOK && analysis.Success,
		rejected:   resp.StatusCode == http.StatusServiceUnavailable,
		statusCode: resp.StatusCode,
		emotion:    analysis.Emotion,
	}
	if !analysis.Success && !res.rejected {
		res.err = fmt.Errorf("%s: %s", cl.name, analysis.Error)
	}
	return res
}

type summary struct {
	durations  []time.Duration
	firstBytes []time.Duration
	emotions   map[string]int
	total      int
	success    int
	rejected   int
}

func (s *summary) add(result runResult) {
	s.total++
	if result.rejected {
		s.rejected++
	}
	if result.success {
		s.success++
		s.durations = append(s.durations, result.duration)
		if result.firstByte > 0 {
			s.firstBytes = append(s.firstBytes, result.firstByte)
		}
		if s.emotions == nil {
			s.emotions = make(map[string]int)
		}
		s.emotions[result.emotion]++
	}
}

func percentile(values []time.Duration, p float64) time.Duration {
	if len(values) == 0 {
		return 0
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	rank := p * float64(len(values)-1)
	lower := int(rank)
	upper := lower + 1
	if upper >= len(values) {
		return values[lower]
	}
	weight := rank - float64(lower)
	return time.Duration(float64(values[lower])*(1-weight) + float64(values[upper])*weight)
}

func average(values []time.Duration) time.Duration {
	if len(values) == 0 {
		return 0
	}
	var total time.Duration
	for _, v := range values {
		total += v
	}
	return total / time.Duration(len(values))
}

func loadClips(paths []string) ([]clip, error) {
	clips := make([]clip, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		clips = append(clips, clip{name: filepath.Base(p), data: data})
	}
	return clips, nil
}

func (s *summary) print(w io.Writer) {
	fmt.Fprintf(w, "Total requests: %d\n", s.total)
	fmt.Fprintf(w, "Success: %d, Rejected (busy): %d, Failed: %d\n", s.success, s.rejected, s.total-s.success-s.rejected)

	if len(s.durations) > 0 {
		fmt.Fprintf(w, "Average duration: %s\n", average(s.durations))
		fmt.Fprintf(w, "P50: %s\n", percentile(s.durations, 0.50))
		fmt.Fprintf(w, "P75: %s\n", percentile(s.durations, 0.75))
		fmt.Fprintf(w, "P90: %s\n", percentile(s.durations, 0.90))
		fmt.Fprintf(w, "P95: %s\n", percentile(s.durations, 0.95))
	}
	if len(s.firstBytes) > 0 {
		fmt.Fprintf(w, "P50 time to first byte: %s\n", percentile(s.firstBytes, 0.50))
	}

	if len(s.emotions) > 0 {
		labels := make([]string, 0, len(s.emotions))
		for label := range s.emotions {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		fmt.Fprintln(w, "Emotions:")
		for _, label := range labels {
			fmt.Fprintf(w, "  %s: %d\n", label, s.emotions[label])
		}
	}
}

func run(ctx context.Context, client *BenchmarkClient, count, concurrency int, loop bool, stderr io.Writer) *summary {
	if concurrency < 1 {
		concurrency = 1
	}

	jobs := make(chan struct{}, concurrency)
	results := make(chan runResult, concurrency)
	var workers sync.WaitGroup

	for i := 0; i < concurrency; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				results <- client.Do(ctx)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; loop || i < count; i++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- struct{}{}:
			}
		}
	}()

	go func() {
		workers.Wait()
		close(results)
	}()

	var sum summary
	for res := range results {
		sum.add(res)
		if res.err != nil {
			fmt.Fprintf(stderr, "request error: %v\n", res.err)
		}
	}
	return &sum
}

func main() {
	var (
		baseURL     string
		count       int
		concurrency int
		loop        bool
	)

	cmd := &cobra.Command{
		Use:          "emotion-bench [audio-file...]",
		Short:        "Load test /analyze_realtime with a set of clips",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			clips, err := loadClips(args)
			if err != nil {
				return fmt.Errorf("failed to load clips: %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			sum := run(ctx, newBenchmarkClient(baseURL, clips), count, concurrency, loop, cmd.ErrOrStderr())
			sum.print(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "http://127.0.0.1:5001", "Benchmark target base URL")
	cmd.Flags().IntVar(&count, "count", 1, "Number of requests to send")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "Number of concurrent workers")
	cmd.Flags().BoolVar(&loop, "loop", false, "Send requests continuously until interrupted")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
