// Package service implements the detect_file_type and convert_file tools on
// top of the Convert.Guru transport.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"convertmcp/internal/localfile"
	"convertmcp/internal/model"
)

// Transport is the subset of convertguru.Client the tools need.
type Transport interface {
	PostBinary(ctx context.Context, path string, body []byte) (int, string, error)
	PostMultipart(ctx context.Context, path, field string, data []byte, filename string) (int, string, error)
	PostJSON(ctx context.Context, path string, v any) (int, string, error)
	GetStream(ctx context.Context, rawURL string, sink io.Writer) (int, string, error)
	ResolveURL(location string) string
}

// Recorder persists invocation outcomes. Failures never affect a tool result.
type Recorder interface {
	Record(ctx context.Context, inv model.Invocation) error
}

type Options struct {
	Transport      Transport
	MaxUploadBytes int64
	Logger         zerolog.Logger
	Recorder       Recorder
}

// Service runs tool invocations. It keeps no per-call state and is safe for
// concurrent use.
type Service struct {
	transport      Transport
	maxUploadBytes int64
	logger         zerolog.Logger
	recorder       Recorder
	now            func() time.Time
}

func New(opts Options) (*Service, error) {
	if opts.Transport == nil {
		return nil, errors.New("service: transport is required")
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = localfile.DefaultMaxUploadBytes
	}
	return &Service{
		transport:      opts.Transport,
		maxUploadBytes: maxUpload,
		logger:         opts.Logger,
		recorder:       opts.Recorder,
		now:            time.Now,
	}, nil
}

// DetectFileType returns {result: {file_type_description}} or {error}.
func (s *Service) DetectFileType(ctx context.Context, filePath string) model.ToolResult {
	return s.run(ctx, model.Invocation{Tool: model.ToolDetectFileType, FilePath: filePath}, func(log zerolog.Logger) (any, string, error) {
		payload, err := s.detect(ctx, log, filePath)
		return payload, payload.FileTypeDescription, err
	})
}

// ConvertFile returns {result: {converted_file_path}} or {error}.
func (s *Service) ConvertFile(ctx context.Context, filePath, extOut string) model.ToolResult {
	return s.run(ctx, model.Invocation{Tool: model.ToolConvertFile, FilePath: filePath, ExtOut: extOut}, func(log zerolog.Logger) (any, string, error) {
		payload, err := s.convert(ctx, log, filePath, extOut)
		return payload, payload.ConvertedFilePath, err
	})
}

type toolFunc func(log zerolog.Logger) (payload any, summary string, err error)

// run executes fn and folds its outcome, including a panic, into exactly one
// ToolResult shape.
func (s *Service) run(ctx context.Context, inv model.Invocation, fn toolFunc) (result model.ToolResult) {
	inv.ID = uuid.NewString()
	inv.StartedAt = s.now()
	log := s.logger.With().
		Str("invocation_id", inv.ID).
		Str("tool", inv.Tool).
		Str("file_path", inv.FilePath).
		Logger()

	var (
		payload any
		summary string
		err     error
	)
	defer func() {
		if r := recover(); r != nil {
			err = model.ProcessingError(fmt.Errorf("panic: %v", r))
			payload = nil
		}
		result = toToolResult(payload, err)

		inv.Duration = s.now().Sub(inv.StartedAt)
		if result.Failed() {
			inv.Outcome = model.OutcomeError
			inv.ErrorKind = model.KindOf(err)
			inv.Message = result.Error
			log.Warn().Str("kind", string(inv.ErrorKind)).Dur("duration", inv.Duration).Msg(result.Error)
		} else {
			inv.Outcome = model.OutcomeOK
			inv.Message = summary
			log.Info().Dur("duration", inv.Duration).Msg("tool call succeeded")
		}
		s.record(ctx, log, inv)
	}()

	payload, summary, err = fn(log)
	return result
}

func (s *Service) record(ctx context.Context, log zerolog.Logger, inv model.Invocation) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(context.WithoutCancel(ctx), inv); err != nil {
		log.Error().Err(err).Msg("failed to record invocation")
	}
}
