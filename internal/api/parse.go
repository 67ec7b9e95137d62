package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/emotion-speech-go/emotion-speech-go/internal/audio"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temp files.
const multipartMemory = 8 << 20

// AudioField is the multipart field carrying the clip.
const AudioField = "audio"

// errNoAudio indicates the request has no usable audio field.
var errNoAudio = errors.New("no audio file in request")

// HTTPError represents an error with an associated HTTP status code.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// ParseAudioUpload reads the audio field of a multipart request. The format
// hint comes from the uploaded filename and defaults to wav. Temp files
// created while parsing are removed before it returns.
func ParseAudioUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (audio.Blob, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			return audio.Blob{}, &HTTPError{Status: http.StatusRequestEntityTooLarge, Message: "Audio file too large"}
		}
		return audio.Blob{}, errNoAudio
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(AudioField)
	if err != nil {
		return audio.Blob{}, errNoAudio
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return audio.Blob{}, &HTTPError{Status: http.StatusBadRequest, Message: "Invalid file upload"}
	}

	// Parts without a filename are form values, so FormFile never returns
	// an empty name here.
	return audio.Blob{Data: data, Format: audio.FormatFromFilename(header.Filename)}, nil
}

// isTooLarge reports whether err came from the MaxBytesReader limit. The
// multipart reader does not always wrap it, so the message is checked too.
func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large")
}

// IsHTTPError checks whether an error is an *HTTPError.
func IsHTTPError(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}
