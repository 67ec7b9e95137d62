package api

import (
	"context"
	_ "embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/emotion-speech-go/emotion-speech-go/internal/audio"
	"github.com/emotion-speech-go/emotion-speech-go/internal/classifier"
	"github.com/emotion-speech-go/emotion-speech-go/internal/config"
	"github.com/emotion-speech-go/emotion-speech-go/internal/metrics"
	"github.com/emotion-speech-go/emotion-speech-go/internal/pipeline"
	"github.com/emotion-speech-go/emotion-speech-go/internal/queue"
	"github.com/emotion-speech-go/emotion-speech-go/internal/schema"
)

const (
	msgNoAudioProvided = "No audio file provided"
	msgNoAudioUploaded = "No audio file uploaded."
	msgBusy            = "Server busy, try again later"
	msgShuttingDown    = "Server shutting down"
)

//go:embed templates/index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

type indexPage struct {
	Prediction string
	Filename   string
	Error      string
}

// Analyzer runs the analysis pipeline on one clip.
type Analyzer interface {
	Analyze(ctx context.Context, blob audio.Blob) (*pipeline.Result, error)
}

// Dependencies are the collaborators the handlers need. Pool and Metrics may
// be nil.
type Dependencies struct {
	Analyzer Analyzer
	Model    *classifier.Handle
	Pool     *queue.Manager
	Metrics  *metrics.Metrics
}

// Handler serves the HTTP API.
type Handler struct {
	analyzer Analyzer
	model    *classifier.Handle
	pool     *queue.Manager
	metrics  *metrics.Metrics
	cfg      *config.Config
	logger   zerolog.Logger
}

// NewHandler builds a Handler from its dependencies.
func NewHandler(deps Dependencies, cfg *config.Config, logger zerolog.Logger) *Handler {
	return &Handler{
		analyzer: deps.Analyzer,
		model:    deps.Model,
		pool:     deps.Pool,
		metrics:  deps.Metrics,
		cfg:      cfg,
		logger:   logger,
	}
}

// HandleTest is a liveness probe. It does not depend on the model.
func (h *Handler) HandleTest(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, schema.LivenessResponse{Status: "ok", Message: "Server is running"})
}

// HandleHealthGet reports service and model health.
func (h *Handler) HandleHealthGet(w http.ResponseWriter, r *http.Request) {
	h.writeHealth(w, r)
}

// HandleHealthPost is the POST variant of HandleHealthGet.
func (h *Handler) HandleHealthPost(w http.ResponseWriter, r *http.Request) {
	h.writeHealth(w, r)
}

func (h *Handler) writeHealth(w http.ResponseWriter, r *http.Request) {
	resp := schema.HealthResponse{Status: "ok"}
	if !h.model.Available() {
		resp.Status = "degraded"
	}

	if r.URL.Query().Get("detailed") == "true" {
		resp.Model = h.modelHealth(r.Context())
		if resp.Model.Status != "ok" {
			resp.Status = "degraded"
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) modelHealth(ctx context.Context) *schema.ModelHealth {
	if !h.model.Available() {
		return &schema.ModelHealth{Status: "unavailable", Error: h.model.Err().Error()}
	}

	info := h.model.Info()
	mh := &schema.ModelHealth{
		Status:   "ok",
		Name:     info.Name,
		Backend:  info.Backend,
		InputDim: info.InputDim,
		Labels:   classifier.Strings(info.Labels),
	}

	start := time.Now()
	err := h.model.Health(ctx)
	latency := float64(time.Since(start).Microseconds()) / 1000
	mh.LatencyMs = &latency
	if err != nil {
		mh.Status = "unhealthy"
		mh.Error = err.Error()
	}
	return mh
}

// MetricsHandler exposes the Prometheus registry.
func (h *Handler) MetricsHandler() http.Handler {
	if h.metrics == nil {
		return http.NotFoundHandler()
	}
	return h.metrics.Handler()
}

// HandleAnalyzeRealtime classifies an uploaded clip and always answers with
// an AnalysisResponse body.
func (h *Handler) HandleAnalyzeRealtime(w http.ResponseWriter, r *http.Request) {
	blob, err := ParseAudioUpload(w, r, h.cfg.Server.MaxUploadBytes)
	if err != nil {
		if httpErr, ok := IsHTTPError(err); ok {
			h.metrics.IncRejected("too_large")
			WriteAnalysis(w, r, httpErr.Status, schema.NewAnalysisFailure(httpErr.Message))
			return
		}
		WriteAnalysis(w, r, http.StatusOK, schema.NewAnalysisFailure(msgNoAudioProvided))
		return
	}

	res, err := h.analyze(r.Context(), blob)
	if err != nil {
		status, message := h.failureResponse(err)
		WriteAnalysis(w, r, status, schema.NewAnalysisFailure(message))
		return
	}

	WriteAnalysis(w, r, http.StatusOK, schema.NewAnalysisSuccess(string(res.Label), res.Confidence))
}

// HandleIndex renders the upload form and, on POST, the predicted label.
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.renderIndex(w, r, http.StatusOK, indexPage{})
		return
	}

	blob, err := ParseAudioUpload(w, r, h.cfg.Server.MaxUploadBytes)
	if err != nil {
		if httpErr, ok := IsHTTPError(err); ok {
			h.metrics.IncRejected("too_large")
			h.renderIndex(w, r, httpErr.Status, indexPage{Error: httpErr.Message})
			return
		}
		h.renderIndex(w, r, http.StatusOK, indexPage{Error: msgNoAudioUploaded})
		return
	}

	page := indexPage{Filename: uploadedFilename(r)}
	res, err := h.analyze(r.Context(), blob)
	if err != nil {
		status, message := h.failureResponse(err)
		page.Error = message
		h.renderIndex(w, r, status, page)
		return
	}

	page.Prediction = string(res.Label)
	h.renderIndex(w, r, http.StatusOK, page)
}

func (h *Handler) renderIndex(w http.ResponseWriter, r *http.Request, status int, page indexPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := indexTemplate.Execute(w, page); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("render index")
	}
}

func uploadedFilename(r *http.Request) string {
	if r.MultipartForm == nil {
		return ""
	}
	if files := r.MultipartForm.File[AudioField]; len(files) > 0 {
		return files[0].Filename
	}
	return ""
}

// analyze runs the pipeline on a pool worker when a pool is configured.
func (h *Handler) analyze(ctx context.Context, blob audio.Blob) (*pipeline.Result, error) {
	if h.pool == nil {
		return h.analyzer.Analyze(ctx, blob)
	}

	var res *pipeline.Result
	err := h.pool.Submit(ctx, func(ctx context.Context) error {
		var err error
		res, err = h.analyzer.Analyze(ctx, blob)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// failureResponse maps an analysis error to a status code and client message.
// Internal details never reach the client.
func (h *Handler) failureResponse(err error) (int, string) {
	var f *pipeline.Failure
	switch {
	case errors.As(err, &f):
		return http.StatusOK, f.Message
	case errors.Is(err, queue.ErrQueueFull):
		h.metrics.IncRejected("queue_full")
		return http.StatusServiceUnavailable, msgBusy
	case errors.Is(err, queue.ErrShutdown):
		h.metrics.IncRejected("shutdown")
		return http.StatusServiceUnavailable, msgShuttingDown
	}
	h.logger.Error().Err(err).Msg("analysis aborted")
	return http.StatusOK, pipeline.MsgInternalError
}
