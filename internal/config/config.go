// Package config loads the registry's file configuration: one backend
// endpoint and cache TTL per source, the category table location, the
// local tool store path, and probe timing.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jin-never/logicworld-sub001/internal/domain"
)

const (
	DefaultTTLSeconds           = 60
	DefaultProbeTimeoutSeconds  = 5
	DefaultReloadDebounceMillis = 200
)

// SourceConfig describes one discovery backend.
type SourceConfig struct {
	BaseURL  string
	TTL      time.Duration
	Disabled bool
}

type Config struct {
	Sources           map[domain.SourceType]SourceConfig
	LocalStorePath    string
	CategoryTablePath string
	ProbeTimeout      time.Duration
	ReloadDebounce    time.Duration
}

type rawConfig struct {
	Sources              rawSources `mapstructure:"sources"`
	LocalStorePath       string     `mapstructure:"localStorePath"`
	CategoryTablePath    string     `mapstructure:"categoryTablePath"`
	ProbeTimeoutSeconds  int        `mapstructure:"probeTimeoutSeconds"`
	ReloadDebounceMillis int        `mapstructure:"reloadDebounceMillis"`
}

type rawSources struct {
	System rawSource `mapstructure:"system"`
	AI     rawSource `mapstructure:"ai"`
	MCP    rawSource `mapstructure:"mcp"`
	API    rawSource `mapstructure:"api"`
	User   rawSource `mapstructure:"user"`
}

type rawSource struct {
	BaseURL    string `mapstructure:"baseURL"`
	TTLSeconds *int   `mapstructure:"ttlSeconds"`
	Disabled   bool   `mapstructure:"disabled"`
}

func newConfigViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setConfigDefaults(v)
	return v
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("probeTimeoutSeconds", DefaultProbeTimeoutSeconds)
	v.SetDefault("reloadDebounceMillis", DefaultReloadDebounceMillis)
}

// Load reads and validates a config file.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates config bytes.
func Parse(data []byte) (Config, error) {
	v := newConfigViper()
	if err := v.ReadConfig(bytes.NewBuffer(data)); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg, errs := normalizeConfig(raw)
	if len(errs) > 0 {
		return Config{}, errors.New(strings.Join(errs, "; "))
	}
	return cfg, nil
}

func normalizeConfig(raw rawConfig) (Config, []string) {
	var errs []string

	sources := make(map[domain.SourceType]SourceConfig, len(domain.SourceOrder))
	for _, src := range domain.SourceOrder {
		sourceCfg, sourceErrs := normalizeSource(src, rawSourceFor(raw.Sources, src))
		errs = append(errs, sourceErrs...)
		sources[src] = sourceCfg
	}

	probeTimeout := raw.ProbeTimeoutSeconds
	if probeTimeout <= 0 {
		errs = append(errs, "probeTimeoutSeconds must be > 0")
	}
	debounce := raw.ReloadDebounceMillis
	if debounce <= 0 {
		errs = append(errs, "reloadDebounceMillis must be > 0")
	}

	return Config{
		Sources:           sources,
		LocalStorePath:    strings.TrimSpace(raw.LocalStorePath),
		CategoryTablePath: strings.TrimSpace(raw.CategoryTablePath),
		ProbeTimeout:      time.Duration(probeTimeout) * time.Second,
		ReloadDebounce:    time.Duration(debounce) * time.Millisecond,
	}, errs
}

func rawSourceFor(sources rawSources, src domain.SourceType) rawSource {
	switch src {
	case domain.SourceSystem:
		return sources.System
	case domain.SourceAI:
		return sources.AI
	case domain.SourceMCP:
		return sources.MCP
	case domain.SourceAPI:
		return sources.API
	default:
		return sources.User
	}
}

func normalizeSource(src domain.SourceType, raw rawSource) (SourceConfig, []string) {
	var errs []string

	baseURL := strings.TrimSpace(raw.BaseURL)
	if baseURL != "" {
		if parsed, err := url.ParseRequestURI(baseURL); err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			errs = append(errs, fmt.Sprintf("sources.%s.baseURL must be a valid http(s) URL", src))
		}
	}

	ttlSeconds := DefaultTTLSeconds
	if raw.TTLSeconds != nil {
		ttlSeconds = *raw.TTLSeconds
		if ttlSeconds < 0 {
			errs = append(errs, fmt.Sprintf("sources.%s.ttlSeconds must be >= 0", src))
		}
	}

	return SourceConfig{
		BaseURL:  baseURL,
		TTL:      time.Duration(ttlSeconds) * time.Second,
		Disabled: raw.Disabled,
	}, errs
}
