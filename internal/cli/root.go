package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

const (
	ExitSuccess       = 0
	ExitGenericError  = 1
	ExitConfigInvalid = 2
	ExitBindFailure   = 4
	ExitToolFailed    = 5
)

// GlobalFlags holds flags shared across all commands.
type GlobalFlags struct {
	Dir        string
	ConfigPath string
	JSON       bool
	Quiet      bool
	LogLevel   string
	LogFormat  string
	Journal    string
}

var globalFlags GlobalFlags

var rootCmd = &cobra.Command{
	Use:   "convertmcp",
	Short: "MCP server for file type detection and conversion via Convert.Guru",
	Long: "convertmcp exposes detect_file_type and convert_file as MCP tools over stdio or streamable HTTP.\n" +
		"Without a subcommand it runs the server, like \"convertmcp serve\".",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.Dir, "dir", "", "directory holding convertmcp.toml and .env files (default: working directory)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "", "config file path (default: convertmcp.toml)")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "emit NDJSON events for automation/logging")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.Quiet, "quiet", false, "reduce output")
	rootCmd.PersistentFlags().StringVar(&globalFlags.LogLevel, "log-level", "", "log level: trace|debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&globalFlags.LogFormat, "log-format", "", "log format: auto|console|json")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Journal, "journal", "", "SQLite invocation journal path")

	bindServeFlags(rootCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command. Map a returned error to the process exit
// code with ExitCode.
func Execute() error {
	return rootCmd.Execute()
}

// exitError carries the exit code of a failed command out of RunE, so
// deferred cleanup runs before the process exits. An empty message means the
// failure was already reported.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

func withExit(code int, msg string) error {
	return &exitError{code: code, msg: msg}
}

// ExitCode returns the process exit code for an error returned by Execute.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return ExitGenericError
}
