package service

import (
	"errors"

	"convertmcp/internal/model"
)

// toToolResult converts a stage outcome into the uniform result shape. Errors
// that are not *model.ToolError become PROCESSING errors.
func toToolResult(payload any, err error) model.ToolResult {
	if err == nil {
		return model.ToolResult{Result: payload}
	}
	var toolErr *model.ToolError
	if !errors.As(err, &toolErr) {
		toolErr = model.ProcessingError(err)
	}
	message := toolErr.Message
	if message == "" {
		message = model.ProcessingError(err).Message
	}
	return model.ToolResult{Error: message}
}
