package model

import "time"

// FileDescriptor is derived once per invocation from the filesystem.
type FileDescriptor struct {
	AbsolutePath string
	Basename     string
	// Extension has no leading dot and may be empty.
	Extension string
	SizeBytes int64
}

// UploadResult is the body of a successful /api/v1/upload call.
type UploadResult struct {
	Filename string `json:"Filename"`
}

// ConversionRequest is the body of /api/v1/convert.
type ConversionRequest struct {
	Filename string `json:"filename"`
	ExtOut   string `json:"ext_out"`
}

// ConvertedFile is the file object of a convert response. Only URLs[0] is
// ever used.
type ConvertedFile struct {
	ExtOut string   `json:"ext_out"`
	URLs   []string `json:"urls"`
}

// DetectPayload is the result payload of detect_file_type.
type DetectPayload struct {
	FileTypeDescription string `json:"file_type_description"`
}

// ConvertPayload is the result payload of convert_file.
type ConvertPayload struct {
	ConvertedFilePath string `json:"converted_file_path"`
}

// ToolResult is the uniform tool output: exactly one of Result or Error is
// set.
type ToolResult struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Failed reports whether r carries an error.
func (r ToolResult) Failed() bool {
	return r.Error != ""
}

// Tool names exposed to callers.
const (
	ToolDetectFileType = "detect_file_type"
	ToolConvertFile    = "convert_file"
)

// Outcome values of an Invocation.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Invocation is the journal record of one tool call. Message holds the error
// message, or the description or converted path on success.
type Invocation struct {
	ID        string
	Tool      string
	FilePath  string
	ExtOut    string
	Outcome   string
	ErrorKind ErrorKind
	Message   string
	StartedAt time.Time
	Duration  time.Duration
}
