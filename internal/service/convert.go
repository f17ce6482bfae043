package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"convertmcp/internal/convertguru"
	"convertmcp/internal/localfile"
	"convertmcp/internal/model"
)

// Conversion stages, logged as the orchestrator moves through them.
const (
	stageUploading   = "uploading"
	stageConverting  = "converting"
	stageDownloading = "downloading"
	stageDone        = "done"
)

const (
	convertedMarker = ".converted."

	applicationErrorPrefix = "File conversion failed"
	convertStatusPrefix    = "Convert request failed"
	uploadNotJSONMessage   = "API upload request failed - response text is not JSON"
	uploadNoFilename       = "API upload request failed - response has no Filename"
	convertNotJSONMessage  = "API convert request failed - response text is not JSON"
	missingURLMessage      = "File URL information not found in the API response."
	invalidExtOutMessage   = "Invalid ext_out in the API response"
)

func (s *Service) convert(ctx context.Context, log zerolog.Logger, filePath, extOut string) (model.ConvertPayload, error) {
	if filePath == "" {
		return model.ConvertPayload{}, model.InputError("file_path parameter is required")
	}
	if extOut == "" {
		return model.ConvertPayload{}, model.InputError("ext_out parameter is required")
	}
	f, err := localfile.Open(filePath)
	if err != nil {
		return model.ConvertPayload{}, err
	}

	log.Debug().Str("stage", stageUploading).Msg("conversion stage")
	remoteName, err := s.upload(ctx, log, f)
	if err != nil {
		return model.ConvertPayload{}, err
	}

	log.Debug().Str("stage", stageConverting).Str("remote_filename", remoteName).Msg("conversion stage")
	converted, err := s.requestConversion(ctx, remoteName, extOut)
	if err != nil {
		return model.ConvertPayload{}, err
	}

	downloadURL := s.transport.ResolveURL(converted.URLs[0])
	savePath := filePath + convertedMarker + converted.ExtOut
	log.Debug().Str("stage", stageDownloading).Str("url", downloadURL).Str("save_path", savePath).Msg("conversion stage")
	if err := s.download(ctx, downloadURL, savePath); err != nil {
		return model.ConvertPayload{}, err
	}

	log.Debug().Str("stage", stageDone).Msg("conversion stage")
	return model.ConvertPayload{ConvertedFilePath: savePath}, nil
}

func (s *Service) upload(ctx context.Context, log zerolog.Logger, f *localfile.File) (string, error) {
	data, err := f.ReadBounded(s.maxUploadBytes)
	if err != nil {
		return "", model.ProcessingError(err)
	}
	if f.Truncated(s.maxUploadBytes) {
		log.Warn().
			Str("size", humanize.IBytes(uint64(f.Descriptor.SizeBytes))).
			Str("limit", humanize.IBytes(uint64(s.maxUploadBytes))).
			Msg("file exceeds upload limit; converting truncated content")
	}

	status, text, err := s.transport.PostMultipart(ctx, convertguru.PathUpload, convertguru.UploadField, data, f.Descriptor.Basename)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", model.RemoteStatusError(status, fmt.Sprintf("API request failed with status %d: %s", status, text))
	}

	return decodeUpload(text)
}

// decodeUpload extracts the remote filename from an upload response. Only a
// body that does not parse is a decode error; a parsed body without a string
// Filename is a shape error.
func decodeUpload(text string) (string, error) {
	fields, isObject, err := parseObject(text)
	if err != nil {
		return "", model.DecodeError(uploadNotJSONMessage, text, err)
	}
	var uploaded model.UploadResult
	if !isObject || json.Unmarshal(fields["Filename"], &uploaded.Filename) != nil || uploaded.Filename == "" {
		return "", model.ShapeError(uploadNoFilename, text)
	}
	return uploaded.Filename, nil
}

// requestConversion runs the convert step. The status policy is applied
// before decoding so the decode path is the same for real and synthesized
// bodies; only the error prefix tells them apart.
func (s *Service) requestConversion(ctx context.Context, remoteName, extOut string) (model.ConvertedFile, error) {
	req := model.ConversionRequest{Filename: remoteName, ExtOut: strings.ToLower(extOut)}
	status, text, err := s.transport.PostJSON(ctx, convertguru.PathConvert, req)
	if err != nil {
		return model.ConvertedFile{}, err
	}
	body, synthesized := convertguru.NormalizeConvertBody(status, text)

	fields, isObject, err := parseObject(body)
	if err != nil {
		return model.ConvertedFile{}, model.DecodeError(convertNotJSONMessage, body, err)
	}
	if !isObject {
		return model.ConvertedFile{}, model.ShapeError(missingURLMessage, body)
	}
	if message := errorText(fields["error"]); message != "" {
		if synthesized {
			return model.ConvertedFile{}, model.RemoteStatusError(status, convertStatusPrefix+": "+message)
		}
		return model.ConvertedFile{}, model.ApplicationError(applicationErrorPrefix, message)
	}
	file, ok := decodeConvertedFile(fields["file"])
	if !ok {
		return model.ConvertedFile{}, model.ShapeError(missingURLMessage, body)
	}
	// ext_out becomes part of a local path.
	if file.ExtOut == "" || strings.ContainsAny(file.ExtOut, `/\`) {
		return model.ConvertedFile{}, model.ShapeError(invalidExtOutMessage, body)
	}
	return file, nil
}

// parseObject parses body as a JSON object. err is set only when body is not
// JSON at all; valid JSON of another type yields isObject false.
func parseObject(body string) (map[string]json.RawMessage, bool, error) {
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, false, err
	}
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil || fields == nil {
		return nil, false, nil
	}
	return fields, true, nil
}

// decodeConvertedFile reads the file object of a convert response. It
// reports false when the object, ext_out or a string urls[0] is missing or
// has another type.
func decodeConvertedFile(raw json.RawMessage) (model.ConvertedFile, bool) {
	var file struct {
		ExtOut *string           `json:"ext_out"`
		URLs   []json.RawMessage `json:"urls"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &file) != nil || file.ExtOut == nil || len(file.URLs) == 0 {
		return model.ConvertedFile{}, false
	}
	urls := make([]string, 0, len(file.URLs))
	for _, u := range file.URLs {
		var s string
		if json.Unmarshal(u, &s) != nil {
			break
		}
		urls = append(urls, s)
	}
	if len(urls) == 0 || urls[0] == "" {
		return model.ConvertedFile{}, false
	}
	return model.ConvertedFile{ExtOut: *file.ExtOut, URLs: urls}, true
}

// errorText renders an application error value. Empty and falsy values mean
// no error.
func errorText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return string(raw)
	}
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if !v {
			return ""
		}
	case float64:
		if v == 0 {
			return ""
		}
	case []any:
		if len(v) == 0 {
			return ""
		}
	case map[string]any:
		if len(v) == 0 {
			return ""
		}
	}
	return string(raw)
}

// download streams url into a temporary file next to savePath and renames it
// into place once the transfer has completed. Any failure removes the
// temporary file, so savePath is either untouched or complete. An existing
// file at savePath is replaced.
func (s *Service) download(ctx context.Context, url, savePath string) error {
	tmp, err := os.CreateTemp(filepath.Dir(savePath), "."+filepath.Base(savePath)+".*.part")
	if err != nil {
		return model.ProcessingError(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	status, text, err := s.transport.GetStream(ctx, url, tmp)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return model.RemoteStatusError(status, fmt.Sprintf("File download from %s failed with status %d: %s", url, status, text))
	}
	if err := tmp.Close(); err != nil {
		return model.ProcessingError(err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return model.ProcessingError(err)
	}
	if err := os.Rename(tmp.Name(), savePath); err != nil {
		return model.ProcessingError(err)
	}
	committed = true
	return nil
}
