// Package config resolves convertmcp settings from defaults, a TOML file,
// dotenv files, the environment and command line flags.
package config

import (
	"time"
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"

	LogFormatAuto    = "auto"
	LogFormatConsole = "console"
	LogFormatJSON    = "json"

	DefaultConfigFile     = "convertmcp.toml"
	DefaultBaseURL        = "https://convert.guru"
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 8000
	DefaultMCPPath        = "/mcp"
	DefaultMaxUploadBytes = 40 << 20
	DefaultRequestTimeout = 5 * time.Minute
	DefaultRateLimitRPS   = 10
	DefaultRateLimitBurst = 20
	DefaultLogLevel       = "info"
)

// Environment variables read by Load.
const (
	EnvAPIKey    = "CONVERT_GURU_API_KEY"
	EnvTransport = "TRANSPORT"
	EnvPort      = "PORT"
	EnvBaseURL   = "CONVERTMCP_BASE_URL"
	EnvLogLevel  = "CONVERTMCP_LOG_LEVEL"
	EnvJournal   = "CONVERTMCP_JOURNAL"
)

// Source names where a value came from.
type Source string

const (
	SourceDefault     Source = "default"
	SourceConfigFile  Source = "config file"
	SourceDotEnv      Source = ".env"
	SourceDotEnvLocal Source = ".env.local"
	SourceEnv         Source = "env"
	SourceFlag        Source = "flag"
)

type Config struct {
	APIKey         string        `toml:"api_key"`
	BaseURL        string        `toml:"base_url"`
	Transport      string        `toml:"transport"`
	Host           string        `toml:"host"`
	Port           int           `toml:"port"`
	MCPPath        string        `toml:"mcp_path"`
	MaxUploadBytes int64         `toml:"max_upload_bytes"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	RateLimitRPS   int           `toml:"rate_limit_rps"`
	RateLimitBurst int           `toml:"rate_limit_burst"`
	JournalPath    string        `toml:"journal_path"`
	LogLevel       string        `toml:"log_level"`
	LogFormat      string        `toml:"log_format"`

	// Warnings collects non-fatal problems found while loading, such as a
	// PORT that is not a number.
	Warnings []string `toml:"-"`
	// Sources maps a TOML key to where its effective value came from.
	Sources map[string]Source `toml:"-"`
}

func Default() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		Transport:      TransportStdio,
		Host:           DefaultHost,
		Port:           DefaultPort,
		MCPPath:        DefaultMCPPath,
		MaxUploadBytes: DefaultMaxUploadBytes,
		RequestTimeout: DefaultRequestTimeout,
		RateLimitRPS:   DefaultRateLimitRPS,
		RateLimitBurst: DefaultRateLimitBurst,
		LogLevel:       DefaultLogLevel,
		LogFormat:      LogFormatAuto,
	}
}

// SourceOf reports where key's value came from.
func (c *Config) SourceOf(key string) Source {
	if c == nil || c.Sources == nil {
		return SourceDefault
	}
	if src, ok := c.Sources[key]; ok {
		return src
	}
	return SourceDefault
}

func (c *Config) setSource(key string, src Source) {
	if c.Sources == nil {
		c.Sources = make(map[string]Source)
	}
	c.Sources[key] = src
}

// DefaultTOML is the template written by "convertmcp config init".
const DefaultTOML = `# convertmcp configuration. Environment variables and flags override these.

# api_key is normally supplied through CONVERT_GURU_API_KEY.
# api_key = ""
base_url = "https://convert.guru"

# stdio or http
transport = "stdio"
host = "0.0.0.0"
port = 8000
mcp_path = "/mcp"

max_upload_bytes = 41943040
request_timeout = "5m"

# Per client IP, http transport only. Loopback clients are exempt.
rate_limit_rps = 10
rate_limit_burst = 20

# Set to keep a SQLite journal of tool invocations.
# journal_path = "convertmcp.sqlite"

# trace, debug, info, warn, error
log_level = "info"
# auto, console or json
log_format = "auto"
`
