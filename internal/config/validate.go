package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

var (
	Transports = []string{TransportStdio, TransportHTTP}
	LogFormats = []string{LogFormatAuto, LogFormatConsole, LogFormatJSON}
)

// Validate checks ranges and enum constraints. A missing API key is not an
// error: the remote service answers and the tools report its status.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("CONFIG_INVALID: nil config")
	}
	if !stringIn(cfg.Transport, Transports) {
		return fmt.Errorf("CONFIG_INVALID: transport=%q; allowed: %s", cfg.Transport, strings.Join(Transports, ", "))
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("CONFIG_INVALID: port=%d; must be between 0 and 65535", cfg.Port)
	}
	if !strings.HasPrefix(cfg.MCPPath, "/") {
		return fmt.Errorf("CONFIG_INVALID: mcp_path=%q; must start with /", cfg.MCPPath)
	}
	if err := validateBaseURL(cfg.BaseURL); err != nil {
		return err
	}
	if cfg.MaxUploadBytes <= 0 {
		return fmt.Errorf("CONFIG_INVALID: max_upload_bytes=%d; must be positive", cfg.MaxUploadBytes)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("CONFIG_INVALID: request_timeout=%s; must be positive", cfg.RequestTimeout)
	}
	if cfg.RateLimitRPS < 0 || cfg.RateLimitBurst < 0 {
		return fmt.Errorf("CONFIG_INVALID: rate_limit_rps=%d rate_limit_burst=%d; must not be negative", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil || cfg.LogLevel == "" {
		return fmt.Errorf("CONFIG_INVALID: log_level=%q; allowed: trace, debug, info, warn, error", cfg.LogLevel)
	}
	if !stringIn(cfg.LogFormat, LogFormats) {
		return fmt.Errorf("CONFIG_INVALID: log_format=%q; allowed: %s", cfg.LogFormat, strings.Join(LogFormats, ", "))
	}
	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("CONFIG_INVALID: base_url=%q; must be an absolute http(s) URL", raw)
	}
	return nil
}

func stringIn(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
