package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"convertmcp/internal/model"
)

var detectCmd = &cobra.Command{
	Use:   "detect <file>",
	Short: "Detect the type of a local file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDetect,
}

func runDetect(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	path := absArgs(cmd, args)[0]
	res := rt.svc.DetectFileType(cmd.Context(), path)
	if !writeDetect(cmd.OutOrStdout(), cmd.ErrOrStderr(), res, globalFlags.JSON) {
		return withExit(ExitToolFailed, "")
	}
	return nil
}

// writeDetect prints res and reports whether the tool succeeded.
func writeDetect(stdout, stderr io.Writer, res model.ToolResult, jsonMode bool) bool {
	if jsonMode {
		_ = json.NewEncoder(stdout).Encode(res)
		return !res.Failed()
	}
	if res.Failed() {
		st := newStyles(stderr, false)
		fmt.Fprintln(stderr, st.errPrefix(), res.Error)
		return false
	}
	if payload, ok := res.Result.(model.DetectPayload); ok {
		fmt.Fprintln(stdout, payload.FileTypeDescription)
	}
	return true
}
