package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"convertmcp/internal/config"
	"convertmcp/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio or streamable HTTP",
	RunE:  runServe,
}

var (
	serveTransport string
	serveHost      string
	servePort      int
)

func init() {
	bindServeFlags(serveCmd)
}

// bindServeFlags registers the server flags on cmd. The root command shares
// them because it runs the server by default.
func bindServeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&serveTransport, "transport", "", "transport: stdio|http (default: TRANSPORT env or stdio)")
	cmd.Flags().StringVar(&serveHost, "host", "", "host to listen on in http mode (default 0.0.0.0)")
	cmd.Flags().IntVar(&servePort, "port", 0, "port to listen on in http mode (default: PORT env or 8000)")
}

func serveOverrides(cmd *cobra.Command) *config.Overrides {
	o := &config.Overrides{}
	if cmd.Flags().Changed("transport") {
		o.Transport = &serveTransport
	}
	if cmd.Flags().Changed("host") {
		o.Host = &serveHost
	}
	if cmd.Flags().Changed("port") {
		o.Port = &servePort
	}
	return o
}

func runServe(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime(serveOverrides(cmd))
	if err != nil {
		return err
	}
	defer rt.Close()

	server, err := mcp.NewServer(mcp.ServerOptions{
		Config:  rt.cfg,
		Tools:   rt.svc,
		Logger:  rt.logger,
		Version: version,
	})
	if err != nil {
		return withExit(ExitGenericError, "ERROR: MCP server init: "+err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if rt.cfg.Transport != config.TransportHTTP {
		return server.RunStdio(ctx)
	}

	addr := net.JoinHostPort(rt.cfg.Host, strconv.Itoa(rt.cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return withExit(ExitBindFailure, "ERROR: server bind failure: "+err.Error())
	}
	mcpURL := "http://" + listener.Addr().String() + rt.cfg.MCPPath

	if globalFlags.JSON {
		emitNDJSON("server_started", map[string]interface{}{
			"transport": "mcp_streamable_http",
			"url":       mcpURL,
		})
	} else if !globalFlags.Quiet {
		st := newStyles(os.Stderr, false)
		fmt.Fprintln(os.Stderr, st.banner(), st.dim(version))
		fmt.Fprintln(os.Stderr, st.kv("MCP endpoint", st.url(mcpURL)))
		fmt.Fprintln(os.Stderr, st.kv("Health", st.url("http://"+listener.Addr().String()+"/health")))
		fmt.Fprintln(os.Stderr, st.kv("Journal", journalLabel(rt.cfg.JournalPath)))
	}

	return server.Serve(ctx, listener)
}

func journalLabel(path string) string {
	if path == "" {
		return "off"
	}
	return path
}

func emitNDJSON(event string, data map[string]interface{}) {
	// NDJSON: one JSON object per line
	out := map[string]interface{}{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": "info",
		"event": event,
		"data":  data,
	}
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(out)
}
