package schema

import "math"

// AnalysisResponse is the body of every /analyze_realtime reply.
type AnalysisResponse struct {
	Success    bool     `json:"success" msgpack:"success"`
	Emotion    string   `json:"emotion,omitempty" msgpack:"emotion,omitempty"`
	Confidence *float64 `json:"confidence,omitempty" msgpack:"confidence,omitempty"`
	Error      string   `json:"error,omitempty" msgpack:"error,omitempty"`
}

// NewAnalysisSuccess builds a successful response. confidence is a
// percentage and is rounded to one decimal place.
func NewAnalysisSuccess(emotion string, confidence float64) AnalysisResponse {
	c := RoundConfidence(confidence)
	return AnalysisResponse{Success: true, Emotion: emotion, Confidence: &c}
}

// NewAnalysisFailure builds a failed response carrying message.
func NewAnalysisFailure(message string) AnalysisResponse {
	return AnalysisResponse{Success: false, Error: message}
}

// RoundConfidence rounds a percentage to one decimal place.
func RoundConfidence(c float64) float64 {
	return math.Round(c*10) / 10
}

// StreamFormat is the text frame a WebSocket client sends to set the format
// hint for the binary frames that follow.
type StreamFormat struct {
	Format string `json:"format" msgpack:"format"`
}
