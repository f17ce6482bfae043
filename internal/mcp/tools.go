package mcp

import (
	"context"
	"encoding/json"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"convertmcp/internal/model"
)

const (
	descDetectFileType = "Detect file type by sending the first 200 bytes of the file to Convert.Guru API."
	descConvertFile    = "Convert a file to other format via Convert.Guru API. Pass the file path and output extension."
)

// ToolService runs the tools. *service.Service implements it.
type ToolService interface {
	DetectFileType(ctx context.Context, filePath string) model.ToolResult
	ConvertFile(ctx context.Context, filePath, extOut string) model.ToolResult
}

// Arguments are optional in the schema so a missing value reaches the
// service and yields its "parameter is required" message.
type detectArgs struct {
	FilePath string `json:"file_path,omitempty" jsonschema:"absolute path of the local file to inspect"`
}

type convertArgs struct {
	FilePath string `json:"file_path,omitempty" jsonschema:"absolute path of the local file to convert"`
	ExtOut   string `json:"ext_out,omitempty" jsonschema:"extension of the output format, for example pdf or png"`
}

// ToolInfo is one entry of the GET /tools listing.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Async       bool   `json:"async"`
}

var toolOrder = []ToolInfo{
	{Name: model.ToolDetectFileType, Description: descDetectFileType, Async: true},
	{Name: model.ToolConvertFile, Description: descConvertFile, Async: true},
}

// Tools lists the registered tools in registration order.
func Tools() []ToolInfo {
	return append([]ToolInfo(nil), toolOrder...)
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        model.ToolDetectFileType,
		Description: descDetectFileType,
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, args detectArgs) (*mcpsdk.CallToolResult, model.ToolResult, error) {
		res := s.tools.DetectFileType(ctx, args.FilePath)
		return toCallToolResult(res), res, nil
	})

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        model.ToolConvertFile,
		Description: descConvertFile,
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, args convertArgs) (*mcpsdk.CallToolResult, model.ToolResult, error) {
		res := s.tools.ConvertFile(ctx, args.FilePath, args.ExtOut)
		return toCallToolResult(res), res, nil
	})
}

// toCallToolResult renders res as both text and structured content. An
// {error} result sets isError.
func toCallToolResult(res model.ToolResult) *mcpsdk.CallToolResult {
	raw, err := json.Marshal(res)
	if err != nil {
		raw = []byte(`{"error":"Error processing file: unencodable result"}`)
	}
	return &mcpsdk.CallToolResult{
		Content:           []mcpsdk.Content{&mcpsdk.TextContent{Text: string(raw)}},
		StructuredContent: res,
		IsError:           res.Failed(),
	}
}
