// Package daemon talks to a local Ollama-compatible LLM daemon over HTTP: it
// probes connectivity, discovers installed models, verifies a model answers,
// and consumes streamed chat output.
package daemon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the daemon's default loopback address.
const DefaultBaseURL = "http://localhost:11434"

// DefaultCLI is the command-line tool used as the catalog fallback.
const DefaultCLI = "ollama"

// maxErrorBody caps how much of a failed response body is kept for error messages.
const maxErrorBody = 4096

// CommandRunner executes an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Options configures a Client. Zero values select defaults.
type Options struct {
	BaseURL string
	CLIPath string
	// RequestTimeout bounds catalog calls.
	RequestTimeout time.Duration
	// ProbeTimeout bounds each individual connectivity attempt.
	ProbeTimeout time.Duration
	// StreamTimeout bounds a whole streamed exchange. Zero disables it.
	StreamTimeout  time.Duration
	ConnectTimeout time.Duration
	HTTPClient     *http.Client
	Runner         CommandRunner
	// Progress receives human-readable progress lines (e.g. probe retries).
	Progress func(string)
	Logger   *zerolog.Logger
}

// Message is one role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the single owned handle to the daemon. It is created once per host
// session and passed to every component that needs the daemon.
type Client struct {
	baseURL        string
	cliPath        string
	requestTimeout time.Duration
	probeTimeout   time.Duration
	streamTimeout  time.Duration
	http           *http.Client
	run            CommandRunner
	progress       func(string)
	log            zerolog.Logger

	mu    sync.Mutex
	state ConnectionState
}

// New builds a Client. The underlying http.Client carries no global timeout;
// every call applies its own deadline via context.
func New(opts Options) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		cliPath:        opts.CLIPath,
		requestTimeout: opts.RequestTimeout,
		probeTimeout:   opts.ProbeTimeout,
		streamTimeout:  opts.StreamTimeout,
		http:           opts.HTTPClient,
		run:            opts.Runner,
		progress:       opts.Progress,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.cliPath == "" {
		c.cliPath = DefaultCLI
	}
	if c.requestTimeout <= 0 {
		c.requestTimeout = 10 * time.Second
	}
	if c.probeTimeout <= 0 {
		c.probeTimeout = 5 * time.Second
	}
	if c.http == nil {
		connect := opts.ConnectTimeout
		if connect <= 0 {
			connect = 3 * time.Second
		}
		tr := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   connect,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          16,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		c.http = &http.Client{Transport: tr, Timeout: 0}
	}
	if c.run == nil {
		c.run = execRunner
	}
	if c.progress == nil {
		c.progress = func(string) {}
	}
	if opts.Logger != nil {
		c.log = opts.Logger.With().Str("component", "daemon").Logger()
	} else {
		c.log = zerolog.Nop()
	}
	return c
}

// BaseURL returns the daemon address this client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// State reports the result of the most recent probe.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s ConnectionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Version returns the daemon's reported version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	body, err := c.getJSON(ctx, "/api/version")
	if err != nil {
		return "", err
	}
	r, err := ParseReply(body)
	if err != nil {
		return "", err
	}
	v, ok := r.String("version")
	if !ok {
		return "", errors.New("version reply missing version field")
	}
	return v, nil
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// Chat performs a non-streaming chat exchange and returns the decoded reply
// without assuming its shape.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (Reply, error) {
	req.Stream = false
	return c.postReply(ctx, "/api/chat", req)
}

// Generate performs a non-streaming generation and returns the decoded reply
// without assuming its shape.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (Reply, error) {
	req.Stream = false
	return c.postReply(ctx, "/api/generate", req)
}

func (c *Client) postReply(ctx context.Context, path string, payload any) (Reply, error) {
	resp, err := c.post(ctx, path, payload)
	if err != nil {
		return Reply{}, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return Reply{}, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, err
	}
	return ParseReply(body)
}

// post issues a raw JSON POST. Callers own the response body.
func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

// checkStatus converts a non-2xx response into a StatusError.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(b))}
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return nil, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
			}
		}
		return nil, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}
