package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"taskpilot/internal/common/fsutil"
)

// Config holds runtime parameters for the assistant and its CLI.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	BaseURL              string   `json:"base_url" yaml:"base_url" toml:"base_url"`
	CLIPath              string   `json:"cli_path" yaml:"cli_path" toml:"cli_path"`
	ProbeAttempts        int      `json:"probe_attempts" yaml:"probe_attempts" toml:"probe_attempts"`
	ProbeDelayMS         int      `json:"probe_delay_ms" yaml:"probe_delay_ms" toml:"probe_delay_ms"`
	ProbeTimeoutSeconds  int      `json:"probe_timeout_seconds" yaml:"probe_timeout_seconds" toml:"probe_timeout_seconds"`
	VerifyTimeoutSeconds int      `json:"verify_timeout_seconds" yaml:"verify_timeout_seconds" toml:"verify_timeout_seconds"`
	StreamTimeoutSeconds int      `json:"stream_timeout_seconds" yaml:"stream_timeout_seconds" toml:"stream_timeout_seconds"`
	SessionFile          string   `json:"session_file" yaml:"session_file" toml:"session_file"`
	TasksFile            string   `json:"tasks_file" yaml:"tasks_file" toml:"tasks_file"`
	LogLevel             string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFile              string   `json:"log_file" yaml:"log_file" toml:"log_file"`
	Addr                 string   `json:"addr" yaml:"addr" toml:"addr"`
	CORSOrigins          []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Defaults.
const (
	DefaultBaseURL       = "http://localhost:11434"
	DefaultCLIPath       = "ollama"
	DefaultProbeAttempts = 3
	DefaultProbeDelayMS  = 2000
	DefaultProbeTimeout  = 5
	DefaultVerifyTimeout = 10
	DefaultSessionFile   = "llm_session.json"
	DefaultTasksFile     = "tasks.json"
	DefaultLogLevel      = "info"
	DefaultAddr          = "127.0.0.1:8088"

	defaultHost = "127.0.0.1"
	defaultPort = "11434"
)

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Resolve builds the effective configuration: the optional file at path,
// then environment overrides, then defaults for anything still unset.
func Resolve(path string) (Config, error) {
	var cfg Config
	if path != "" {
		c, err := Load(path)
		if err != nil {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = c
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	cfg.ApplyDefaults()
	if err := cfg.expandPaths(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none)
// into the process environment without overriding variables already set.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("dotenv %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from TASKPILOT_* variables. OLLAMA_HOST is honored
// for the base URL when TASKPILOT_BASE_URL is unset.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	if v, ok := lookup("OLLAMA_HOST"); ok && strings.TrimSpace(v) != "" {
		c.BaseURL = normalizeHost(strings.TrimSpace(v))
	}
	str("TASKPILOT_BASE_URL", &c.BaseURL)
	str("TASKPILOT_CLI_PATH", &c.CLIPath)
	str("TASKPILOT_SESSION_FILE", &c.SessionFile)
	str("TASKPILOT_TASKS_FILE", &c.TasksFile)
	str("TASKPILOT_LOG_LEVEL", &c.LogLevel)
	str("TASKPILOT_LOG_FILE", &c.LogFile)
	str("TASKPILOT_ADDR", &c.Addr)
	if v, ok := lookup("TASKPILOT_CORS_ORIGINS"); ok {
		c.CORSOrigins = SplitCSV(v)
	}
	for key, dst := range map[string]*int{
		"TASKPILOT_PROBE_ATTEMPTS":         &c.ProbeAttempts,
		"TASKPILOT_PROBE_DELAY_MS":         &c.ProbeDelayMS,
		"TASKPILOT_PROBE_TIMEOUT_SECONDS":  &c.ProbeTimeoutSeconds,
		"TASKPILOT_VERIFY_TIMEOUT_SECONDS": &c.VerifyTimeoutSeconds,
		"TASKPILOT_STREAM_TIMEOUT_SECONDS": &c.StreamTimeoutSeconds,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// ApplyDefaults fills unset fields. StreamTimeoutSeconds stays zero (no limit).
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.CLIPath == "" {
		c.CLIPath = DefaultCLIPath
	}
	if c.ProbeAttempts <= 0 {
		c.ProbeAttempts = DefaultProbeAttempts
	}
	if c.ProbeDelayMS <= 0 {
		c.ProbeDelayMS = DefaultProbeDelayMS
	}
	if c.ProbeTimeoutSeconds <= 0 {
		c.ProbeTimeoutSeconds = DefaultProbeTimeout
	}
	if c.VerifyTimeoutSeconds <= 0 {
		c.VerifyTimeoutSeconds = DefaultVerifyTimeout
	}
	if c.StreamTimeoutSeconds < 0 {
		c.StreamTimeoutSeconds = 0
	}
	if c.SessionFile == "" {
		c.SessionFile = DefaultSessionFile
	}
	if c.TasksFile == "" {
		c.TasksFile = DefaultTasksFile
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.SessionFile, &c.TasksFile, &c.LogFile} {
		v, err := fsutil.ExpandHome(*p)
		if err != nil {
			return err
		}
		*p = v
	}
	return nil
}

func (c Config) ProbeDelay() time.Duration { return time.Duration(c.ProbeDelayMS) * time.Millisecond }

func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSeconds) * time.Second
}

func (c Config) VerifyTimeout() time.Duration {
	return time.Duration(c.VerifyTimeoutSeconds) * time.Second
}

func (c Config) StreamTimeout() time.Duration {
	return time.Duration(c.StreamTimeoutSeconds) * time.Second
}

// SplitCSV splits a comma-separated list, trimming blanks.
func SplitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeHost turns an OLLAMA_HOST value into a base URL the way the daemon
// reads it. Without a scheme the port defaults to 11434, and an empty host
// means this machine: "0.0.0.0" gives "http://0.0.0.0:11434" and ":11434"
// gives "http://127.0.0.1:11434".
func normalizeHost(v string) string {
	scheme, rest := "http", v
	explicit := false
	if i := strings.Index(v, "://"); i >= 0 {
		scheme, rest, explicit = v[:i], v[i+3:], true
	}
	path := ""
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest, path = rest[:i], strings.TrimRight(rest[i:], "/")
	}
	host, port, err := net.SplitHostPort(rest)
	if err != nil {
		host, port = strings.Trim(rest, "[]"), ""
	}
	if host == "" {
		host = defaultHost
	}
	if port == "" && !explicit {
		port = defaultPort
	}
	hostport := host
	switch {
	case port != "":
		hostport = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		hostport = "[" + host + "]"
	}
	return scheme + "://" + hostport + path
}
