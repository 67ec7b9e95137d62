package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/emotion-speech-go/emotion-speech-go/internal/audio"
	"github.com/emotion-speech-go/emotion-speech-go/internal/schema"
)

const msgInvalidFormatFrame = "Invalid format message"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleAnalyzeStream classifies clips sent over a WebSocket. A text frame
// {"format":"webm"} sets the format of the binary frames that follow; each
// binary frame is one clip and gets one AnalysisResponse reply.
func (h *Handler) HandleAnalyzeStream(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	if limit := h.cfg.Server.MaxUploadBytes; limit > 0 {
		conn.SetReadLimit(limit)
	}

	h.metrics.IncActiveStreams()
	defer h.metrics.DecActiveStreams()

	ctx := r.Context()
	format := audio.DefaultFormat
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("websocket closed")
			}
			return
		}

		var resp schema.AnalysisResponse
		switch msgType {
		case websocket.TextMessage:
			var hint schema.StreamFormat
			if err := json.Unmarshal(data, &hint); err != nil || hint.Format == "" {
				resp = schema.NewAnalysisFailure(msgInvalidFormatFrame)
				break
			}
			format = strings.ToLower(strings.TrimPrefix(hint.Format, "."))
			continue
		case websocket.BinaryMessage:
			res, err := h.analyze(ctx, audio.Blob{Data: data, Format: format})
			if err != nil {
				_, message := h.failureResponse(err)
				resp = schema.NewAnalysisFailure(message)
			} else {
				resp = schema.NewAnalysisSuccess(string(res.Label), res.Confidence)
			}
		default:
			continue
		}

		if err := conn.WriteJSON(resp); err != nil {
			logger.Warn().Err(err).Msg("websocket write failed")
			return
		}
	}
}
