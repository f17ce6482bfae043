package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Options for loading config. ConfigPath is relative to Dir if not absolute.
type Options struct {
	ConfigPath string
	// Dir is where the config file and dotenv files are looked up. Empty
	// means the working directory.
	Dir          string
	SkipValidate bool
	// Overrides apply last (flags > env > dotenv > file > defaults). Nil
	// means no CLI overrides.
	Overrides *Overrides
}

// Overrides holds CLI flag values. Only non-nil fields are applied.
type Overrides struct {
	Transport   *string
	Host        *string
	Port        *int
	BaseURL     *string
	JournalPath *string
	LogLevel    *string
	LogFormat   *string
}

// Load builds config with precedence: defaults -> convertmcp.toml -> .env,
// .env.local -> env vars -> Overrides. Errors are prefixed CONFIG_INVALID.
func Load(opts Options) (*Config, error) {
	cfg := Default()

	configPath := opts.ConfigPath
	explicit := configPath != ""
	if !explicit {
		configPath = DefaultConfigFile
	}
	if !filepath.IsAbs(configPath) && opts.Dir != "" {
		configPath = filepath.Join(opts.Dir, configPath)
	}
	if err := mergeFile(&cfg, configPath, explicit); err != nil {
		return nil, err
	}

	dotenv, err := readDotEnv(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("CONFIG_INVALID: failed loading dotenv files: %w", err)
	}
	mergeEnv(&cfg, dotenv)

	if opts.Overrides != nil {
		applyOverrides(&cfg, opts.Overrides)
	}

	if !opts.SkipValidate {
		if err := Validate(&cfg); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func mergeFile(cfg *Config, path string, explicit bool) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("CONFIG_INVALID: cannot read config file %s: %w", path, err)
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("CONFIG_INVALID: malformed TOML in %s: %w", path, err)
	}
	for _, key := range md.Keys() {
		cfg.setSource(key.String(), SourceConfigFile)
	}
	for _, key := range md.Undecoded() {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("unknown config key %q in %s", key.String(), path))
	}
	return nil
}

// dotenvValue is a value read from a dotenv file together with its file.
type dotenvValue struct {
	value  string
	source Source
}

// readDotEnv reads .env then .env.local; later files win.
func readDotEnv(dir string) (map[string]dotenvValue, error) {
	out := make(map[string]dotenvValue)
	for _, f := range []struct {
		name   string
		source Source
	}{
		{name: ".env", source: SourceDotEnv},
		{name: ".env.local", source: SourceDotEnvLocal},
	} {
		path := f.name
		if dir != "" {
			path = filepath.Join(dir, f.name)
		}
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for k, v := range values {
			out[k] = dotenvValue{value: v, source: f.source}
		}
	}
	return out, nil
}

// lookup returns a non-empty value from the process environment, falling
// back to dotenv files.
func lookup(key string, dotenv map[string]dotenvValue) (string, Source, bool) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), SourceEnv, true
	}
	if v, ok := dotenv[key]; ok && strings.TrimSpace(v.value) != "" {
		return strings.TrimSpace(v.value), v.source, true
	}
	return "", "", false
}

func mergeEnv(cfg *Config, dotenv map[string]dotenvValue) {
	if v, src, ok := lookup(EnvAPIKey, dotenv); ok {
		cfg.APIKey = v
		cfg.setSource("api_key", src)
	}
	if v, src, ok := lookup(EnvBaseURL, dotenv); ok {
		cfg.BaseURL = v
		cfg.setSource("base_url", src)
	}
	if v, src, ok := lookup(EnvLogLevel, dotenv); ok {
		cfg.LogLevel = strings.ToLower(v)
		cfg.setSource("log_level", src)
	}
	if v, src, ok := lookup(EnvJournal, dotenv); ok {
		cfg.JournalPath = v
		cfg.setSource("journal_path", src)
	}

	transport, transportSrc, fromEnv := lookup(EnvTransport, dotenv)
	if fromEnv {
		cfg.Transport = TransportStdio
		if strings.EqualFold(transport, TransportHTTP) {
			cfg.Transport = TransportHTTP
		}
		cfg.setSource("transport", transportSrc)
	}

	// PORT applies however http mode is selected (env, file or flag).
	rawPort, portSrc, ok := lookup(EnvPort, dotenv)
	if !ok {
		return
	}
	port, err := strconv.Atoi(rawPort)
	if err != nil {
		if fromEnv && cfg.Transport == TransportHTTP {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("Invalid PORT value: %s. Using default stdio transport.", rawPort))
			cfg.Transport = TransportStdio
			return
		}
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("Invalid PORT value: %s. Using port %d.", rawPort, cfg.Port))
		return
	}
	cfg.Port = port
	cfg.setSource("port", portSrc)
}

func applyOverrides(cfg *Config, o *Overrides) {
	if o.Transport != nil {
		cfg.Transport = strings.ToLower(strings.TrimSpace(*o.Transport))
		cfg.setSource("transport", SourceFlag)
	}
	if o.Host != nil {
		cfg.Host = *o.Host
		cfg.setSource("host", SourceFlag)
	}
	if o.Port != nil {
		cfg.Port = *o.Port
		cfg.setSource("port", SourceFlag)
	}
	if o.BaseURL != nil {
		cfg.BaseURL = *o.BaseURL
		cfg.setSource("base_url", SourceFlag)
	}
	if o.JournalPath != nil {
		cfg.JournalPath = *o.JournalPath
		cfg.setSource("journal_path", SourceFlag)
	}
	if o.LogLevel != nil {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(*o.LogLevel))
		cfg.setSource("log_level", SourceFlag)
	}
	if o.LogFormat != nil {
		cfg.LogFormat = strings.ToLower(strings.TrimSpace(*o.LogFormat))
		cfg.setSource("log_format", SourceFlag)
	}
}

// Field is one line of "convertmcp config print".
type Field struct {
	Key       string
	Value     string
	Source    Source
	Sensitive bool
}

// Fields lists the effective configuration in key order with secrets masked.
func (c *Config) Fields() []Field {
	values := map[string]string{
		"api_key":          MaskSecret(c.APIKey),
		"base_url":         c.BaseURL,
		"transport":        c.Transport,
		"host":             c.Host,
		"port":             strconv.Itoa(c.Port),
		"mcp_path":         c.MCPPath,
		"max_upload_bytes": strconv.FormatInt(c.MaxUploadBytes, 10),
		"request_timeout":  c.RequestTimeout.String(),
		"rate_limit_rps":   strconv.Itoa(c.RateLimitRPS),
		"rate_limit_burst": strconv.Itoa(c.RateLimitBurst),
		"journal_path":     c.JournalPath,
		"log_level":        c.LogLevel,
		"log_format":       c.LogFormat,
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, Field{Key: k, Value: values[k], Source: c.SourceOf(k), Sensitive: k == "api_key"})
	}
	return out
}

// MaskSecret keeps the last four characters of long secrets.
func MaskSecret(value string) string {
	switch {
	case value == "":
		return ""
	case len(value) <= 8:
		return "****"
	default:
		return "****" + value[len(value)-4:]
	}
}
