package service

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"convertmcp/internal/convertguru"
	"convertmcp/internal/frame"
	"convertmcp/internal/localfile"
	"convertmcp/internal/model"
)

// commentPattern matches HTML comments the detection endpoint may embed in
// its plain text answer.
var commentPattern = regexp.MustCompile(`<!--.+-->`)

func (s *Service) detect(ctx context.Context, log zerolog.Logger, filePath string) (model.DetectPayload, error) {
	if filePath == "" {
		return model.DetectPayload{}, model.InputError("file_path parameter is required")
	}
	f, err := localfile.Open(filePath)
	if err != nil {
		return model.DetectPayload{}, err
	}

	prefix, err := f.ReadPrefix(frame.SampleSize)
	if err != nil {
		return model.DetectPayload{}, model.ProcessingError(err)
	}
	mimeGuess := f.GuessMIME()
	payload := frame.Encode(f.Descriptor, mimeGuess, prefix)
	log.Debug().
		Str("mime_guess", mimeGuess).
		Int64("size_bytes", f.Descriptor.SizeBytes).
		Int("frame_bytes", len(payload)).
		Msg("sending detection frame")

	status, text, err := s.transport.PostBinary(ctx, convertguru.PathDetectFileType, payload)
	if err != nil {
		return model.DetectPayload{}, err
	}
	if status != http.StatusOK {
		return model.DetectPayload{}, model.RemoteStatusError(status, fmt.Sprintf("API request failed with status %d: %s", status, text))
	}
	return model.DetectPayload{FileTypeDescription: CleanDescription(text)}, nil
}

// CleanDescription strips HTML comments and surrounding whitespace from a
// detection response.
func CleanDescription(text string) string {
	return strings.TrimSpace(commentPattern.ReplaceAllString(text, ""))
}
