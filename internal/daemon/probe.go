package daemon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ConnectionState is the transient outcome of the latest probe.
type ConnectionState int

const (
	StateUnknown ConnectionState = iota
	StateReachable
	StateUnreachable
)

func (s ConnectionState) String() string {
	switch s {
	case StateReachable:
		return "reachable"
	case StateUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// Probe checks GET /api/version up to maxAttempts times, sleeping a fixed
// retryDelay between attempts. It returns true on the first HTTP 200 and false
// once attempts are exhausted or ctx ends. It never returns an error.
func (c *Client) Probe(ctx context.Context, maxAttempts int, retryDelay time.Duration) bool {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Transport: c.http.Transport, Timeout: c.probeTimeout}
	rc.Logger = nil
	rc.RetryMax = maxAttempts - 1
	rc.RetryWaitMin = retryDelay
	rc.RetryWaitMax = retryDelay
	rc.Backoff = func(_, _ time.Duration, _ int, _ *http.Response) time.Duration { return retryDelay }
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	// announced here, before the backoff sleep, so the delay is still ahead
	attempt := 0
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		attempt++
		retry, cerr := probeRetryPolicy(ctx, resp, err)
		if retry && attempt < maxAttempts {
			msg := fmt.Sprintf("Daemon at %s not reachable yet, retrying in %s (attempt %d/%d)", c.baseURL, retryDelay, attempt+1, maxAttempts)
			c.log.Debug().Int("attempt", attempt+1).Int("max_attempts", maxAttempts).Msg("probe retry")
			c.progress(msg)
		}
		return retry, cerr
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/version", nil)
	if err != nil {
		c.log.Error().Err(err).Msg("probe request")
		c.setState(StateUnreachable)
		return false
	}
	resp, err := rc.Do(req)
	if resp != nil {
		resp.Body.Close()
	}
	if err != nil || resp == nil || resp.StatusCode != http.StatusOK {
		ev := c.log.Warn().Int("max_attempts", maxAttempts)
		if err != nil {
			ev = ev.Err(err)
		} else if resp != nil {
			ev = ev.Int("status", resp.StatusCode)
		}
		ev.Msg("daemon unreachable")
		c.setState(StateUnreachable)
		return false
	}
	c.log.Debug().Str("base_url", c.baseURL).Msg("daemon reachable")
	c.setState(StateReachable)
	return true
}

// probeRetryPolicy retries transport failures and any non-200 status, but
// gives up as soon as the caller's context ends.
func probeRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		probeAttemptsTotal.WithLabelValues("canceled").Inc()
		return false, ctx.Err()
	}
	if err != nil {
		probeAttemptsTotal.WithLabelValues("transport_error").Inc()
		return true, nil
	}
	if resp.StatusCode != http.StatusOK {
		probeAttemptsTotal.WithLabelValues("bad_status").Inc()
		return true, nil
	}
	probeAttemptsTotal.WithLabelValues("ok").Inc()
	return false, nil
}
