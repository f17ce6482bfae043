package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"convertmcp/internal/mcp"
	"convertmcp/internal/model"
)

var convertCmd = &cobra.Command{
	Use:   "convert --to <ext> <file>...",
	Short: "Convert local files to another format",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runConvert,
}

var (
	convertTo       string
	convertParallel int
)

const defaultConvertParallel = 2

func init() {
	convertCmd.Flags().StringVar(&convertTo, "to", "", "output extension, for example pdf")
	convertCmd.Flags().IntVar(&convertParallel, "parallel", defaultConvertParallel, "number of files converted concurrently")
	_ = convertCmd.MarkFlagRequired("to")
}

// convertOutcome is the result for one input file, kept in argument order.
type convertOutcome struct {
	Path     string
	Result   model.ToolResult
	Duration time.Duration
}

// convertLine is one NDJSON line of "convert --json".
type convertLine struct {
	File       string `json:"file"`
	DurationMS int64  `json:"duration_ms"`
	model.ToolResult
}

func runConvert(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	outcomes := convertFiles(cmd.Context(), rt.svc, absArgs(cmd, args), convertTo, convertParallel)
	if failed := writeConvertOutcomes(cmd.OutOrStdout(), cmd.ErrOrStderr(), outcomes, globalFlags.JSON); failed > 0 {
		return withExit(ExitToolFailed, "")
	}
	return nil
}

// convertFiles converts every path with at most parallel conversions in
// flight. A failed file never stops the others.
func convertFiles(ctx context.Context, tools mcp.ToolService, paths []string, extOut string, parallel int) []convertOutcome {
	if ctx == nil {
		ctx = context.Background()
	}
	if parallel <= 0 {
		parallel = 1
	}
	outcomes := make([]convertOutcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, path := range paths {
		g.Go(func() error {
			start := time.Now()
			res := tools.ConvertFile(gctx, path, extOut)
			outcomes[i] = convertOutcome{Path: path, Result: res, Duration: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// writeConvertOutcomes prints one line per file and returns the number of
// failures.
func writeConvertOutcomes(stdout, stderr io.Writer, outcomes []convertOutcome, jsonMode bool) int {
	failed := 0
	st := newStyles(stdout, jsonMode)
	errSt := newStyles(stderr, jsonMode)
	enc := json.NewEncoder(stdout)
	for _, o := range outcomes {
		if o.Result.Failed() {
			failed++
		}
		if jsonMode {
			_ = enc.Encode(convertLine{File: o.Path, DurationMS: o.Duration.Milliseconds(), ToolResult: o.Result})
			continue
		}
		if o.Result.Failed() {
			fmt.Fprintln(stderr, errSt.errPrefix(), o.Path+":", o.Result.Error)
			continue
		}
		payload, _ := o.Result.Result.(model.ConvertPayload)
		fmt.Fprintf(stdout, "%s %s %s %s\n",
			o.Path,
			st.dim("->"),
			st.success(payload.ConvertedFilePath),
			st.dim(describeOutput(payload.ConvertedFilePath, o.Duration)),
		)
	}
	return failed
}

func describeOutput(path string, took time.Duration) string {
	parts := make([]string, 0, 2)
	if info, err := os.Stat(path); err == nil {
		parts = append(parts, humanize.IBytes(uint64(info.Size())))
	}
	parts = append(parts, took.Round(time.Millisecond).String())
	return "(" + strings.Join(parts, ", ") + ")"
}
