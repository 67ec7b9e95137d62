package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/emotion-speech-go/emotion-speech-go/internal/schema"
)

// WriteError writes an error response using the {"detail": ...} format.
func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(schema.ErrorResponse{Detail: message})
}

// WriteJSON writes the data structure as JSON.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteMsgpack writes the data structure as MessagePack.
func WriteMsgpack(w http.ResponseWriter, status int, data interface{}) {
	body, err := msgpack.Marshal(data)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.Header().Set("Content-Type", "application/msgpack")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// WriteAnalysis writes an analysis response in the encoding the client accepts.
func WriteAnalysis(w http.ResponseWriter, r *http.Request, status int, resp schema.AnalysisResponse) {
	if wantsMsgpack(r) {
		WriteMsgpack(w, status, resp)
		return
	}
	WriteJSON(w, status, resp)
}

func wantsMsgpack(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Accept")), "application/msgpack")
}
