package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"convertmcp/internal/config"
	"convertmcp/internal/convertguru"
	"convertmcp/internal/service"
	"convertmcp/internal/store"
)

// runtime bundles what every command needs: effective config, the stderr
// logger, the tool service and the optional journal.
type runtime struct {
	cfg     *config.Config
	logger  zerolog.Logger
	svc     *service.Service
	journal *store.SQLiteStore
}

// loadConfig resolves configuration with global flags layered on top of
// extra. Invalid configuration maps to ExitConfigInvalid.
func loadConfig(extra *config.Overrides, skipValidate bool) (*config.Config, error) {
	overrides := extra
	if overrides == nil {
		overrides = &config.Overrides{}
	}
	if globalFlags.LogLevel != "" {
		overrides.LogLevel = &globalFlags.LogLevel
	}
	if globalFlags.LogFormat != "" {
		overrides.LogFormat = &globalFlags.LogFormat
	}
	if globalFlags.Journal != "" {
		overrides.JournalPath = &globalFlags.Journal
	}

	cfg, err := config.Load(config.Options{
		ConfigPath:   globalFlags.ConfigPath,
		Dir:          globalFlags.Dir,
		SkipValidate: skipValidate,
		Overrides:    overrides,
	})
	if err != nil {
		return nil, withExit(ExitConfigInvalid, "ERROR: "+err.Error())
	}
	return cfg, nil
}

func newRuntime(extra *config.Overrides) (*runtime, error) {
	cfg, err := loadConfig(extra, false)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, withExit(ExitConfigInvalid, "ERROR: "+err.Error())
	}
	st := newStyles(os.Stderr, globalFlags.JSON)
	for _, w := range cfg.Warnings {
		fmt.Fprintln(os.Stderr, st.warnPrefix(), w)
	}

	client := convertguru.NewClient(cfg.BaseURL, cfg.APIKey, cfg.RequestTimeout)
	client.Logger = logger.With().Str("component", "convertguru").Logger()

	rt := &runtime{cfg: cfg, logger: logger}
	opts := service.Options{
		Transport:      client,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger,
	}
	if cfg.JournalPath != "" {
		rt.journal = store.NewSQLiteStore(cfg.JournalPath)
		if err := rt.journal.Init(context.Background()); err != nil {
			logger.Error().Err(err).Str("path", cfg.JournalPath).Msg("journal disabled")
			rt.journal = nil
		} else {
			opts.Recorder = rt.journal
		}
	}

	svc, err := service.New(opts)
	if err != nil {
		rt.Close()
		return nil, withExit(ExitGenericError, "ERROR: "+err.Error())
	}
	rt.svc = svc
	return rt, nil
}

func (r *runtime) Close() {
	if r.journal != nil {
		_ = r.journal.Close()
	}
}

// newLogger builds the process logger. Output always goes to w, which is
// stderr outside tests; stdout carries the stdio MCP stream.
func newLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if level == "" {
		lvl = zerolog.InfoLevel
	}

	out := w
	switch format {
	case config.LogFormatConsole:
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: !isTerminal(w)}
	case config.LogFormatJSON:
	default:
		if isTerminal(w) {
			out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
		}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

// absArgs resolves command arguments to absolute paths; the tools require
// them.
func absArgs(cmd *cobra.Command, args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		abs, err := absPath(a)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "ERROR:", err)
			abs = a
		}
		out = append(out, abs)
	}
	return out
}

func absPath(p string) (string, error) {
	if p == "" || filepath.IsAbs(p) {
		return p, nil
	}
	return filepath.Abs(p)
}
