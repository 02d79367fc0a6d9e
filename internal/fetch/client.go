// Package fetch calls the enrichment service across an ordered list of
// candidate base URLs. Attempts are sequential and the first base that
// produces a usable response wins; when every base fails the caller gets
// an Exhausted result and is expected to compute locally.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fdg312/nutriplan/internal/config"
	"github.com/fdg312/nutriplan/internal/logging"
	"github.com/fdg312/nutriplan/internal/telemetry"
)

const (
	DefaultLocalTimeout    = 15 * time.Second
	DefaultRemoteTimeout   = 30 * time.Second
	DefaultProviderPattern = "railway.app"

	maxBodyBytes = 8 << 20
)

// ErrExhausted is returned by Result.Err when no base produced a response.
var ErrExhausted = errors.New("all remote bases exhausted")

// loopback and private network markers, matched as substrings of the host
var localHostMarkers = []string{"localhost", "127.", "192.168.", "10.", "0.0.0.0"}

type Outcome string

const (
	Success    Outcome = "success"
	SkipToNext Outcome = "skip"
	Exhausted  Outcome = "exhausted"
)

// Request is a call relative to every base.
type Request struct {
	Method string
	Path   string
	Body   []byte
	Header http.Header
}

// JSONRequest builds a POST request with a JSON encoded body.
func JSONRequest(path string, payload any) (Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Request{}, fmt.Errorf("encode %s: %w", path, err)
	}
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return Request{Method: http.MethodPost, Path: path, Body: body, Header: h}, nil
}

// Response is a fully read response. The body is buffered so the attempt's
// context can be cancelled as soon as the attempt returns.
type Response struct {
	Base       string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response from %s: %w", r.Base, err)
	}
	return nil
}

// Attempt records what happened against one base.
type Attempt struct {
	Base       string
	Outcome    Outcome
	Reason     string
	StatusCode int
	Duration   time.Duration
}

// Result is either Success with a Response or Exhausted with the attempts
// that led there.
type Result struct {
	Outcome  Outcome
	Response *Response
	Attempts []Attempt
}

// Err returns ErrExhausted for an exhausted result and nil otherwise.
func (r Result) Err() error {
	if r.Outcome == Exhausted {
		return ErrExhausted
	}
	return nil
}

type Client struct {
	bases           []string
	providerPattern string
	localTimeout    time.Duration
	remoteTimeout   time.Duration
	maxBody         int64
	httpClient      *http.Client
	logger          zerolog.Logger
}

// New builds a client from the remote configuration. A nil httpClient uses
// a client without its own timeout; per-base deadlines come from contexts.
func New(cfg config.RemoteConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	c := &Client{
		bases:           dedupe(cfg.Bases()),
		providerPattern: cfg.ProviderPattern,
		localTimeout:    cfg.LocalTimeout,
		remoteTimeout:   cfg.RemoteTimeout,
		maxBody:         maxBodyBytes,
		httpClient:      httpClient,
		logger:          logging.WithComponent("fetch"),
	}
	if c.providerPattern == "" {
		c.providerPattern = DefaultProviderPattern
	}
	if c.localTimeout <= 0 {
		c.localTimeout = DefaultLocalTimeout
	}
	if c.remoteTimeout <= 0 {
		c.remoteTimeout = DefaultRemoteTimeout
	}
	return c
}

// Bases returns the deduplicated candidates in try order.
func (c *Client) Bases() []string {
	return append([]string(nil), c.bases...)
}

func dedupe(bases []string) []string {
	seen := make(map[string]bool, len(bases))
	out := make([]string, 0, len(bases))
	for _, b := range bases {
		b = strings.TrimRight(strings.TrimSpace(b), "/")
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	return out
}

// TimeoutFor classifies a base by substring match on its host.
func (c *Client) TimeoutFor(base string) time.Duration {
	host := base
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		host = u.Host
	}
	for _, m := range localHostMarkers {
		if strings.Contains(host, m) {
			return c.localTimeout
		}
	}
	return c.remoteTimeout
}

// Do tries every base in order and stops at the first Success.
func (c *Client) Do(ctx context.Context, req Request) Result {
	var res Result
	for _, base := range c.bases {
		if ctx.Err() != nil {
			break
		}
		resp, attempt := c.try(ctx, base, req)
		res.Attempts = append(res.Attempts, attempt)
		if attempt.Outcome == Success {
			res.Outcome = Success
			res.Response = resp
			return res
		}
		c.logger.Debug().
			Str("base", base).
			Str("path", req.Path).
			Str("reason", attempt.Reason).
			Msg("skipping to next base")
	}

	res.Outcome = Exhausted
	telemetry.FetchExhausted.Inc()
	c.logger.Warn().
		Str("path", req.Path).
		Int("attempts", len(res.Attempts)).
		Msg("all remote bases exhausted")
	return res
}

func (c *Client) try(ctx context.Context, base string, req Request) (*Response, Attempt) {
	timer := telemetry.NewTimer()
	attempt := Attempt{Base: base}
	finish := func(o Outcome, reason string) {
		attempt.Outcome = o
		attempt.Reason = reason
		attempt.Duration = timer.Duration()
		telemetry.FetchAttempts.WithLabelValues(string(o)).Inc()
		timer.ObserveDuration(telemetry.FetchAttemptDuration.WithLabelValues(string(o)))
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.TimeoutFor(base))
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, method, joinURL(base, req.Path), body)
	if err != nil {
		finish(SkipToNext, "build request: "+err.Error())
		return nil, attempt
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		finish(SkipToNext, "transport: "+err.Error())
		return nil, attempt
	}
	defer httpResp.Body.Close()

	attempt.StatusCode = httpResp.StatusCode
	data, err := io.ReadAll(io.LimitReader(httpResp.Body, c.maxBody+1))
	if err != nil {
		finish(SkipToNext, "read body: "+err.Error())
		return nil, attempt
	}
	// Oversized bodies are never handed out truncated.
	if int64(len(data)) > c.maxBody {
		finish(SkipToNext, fmt.Sprintf("read body: larger than %d bytes", c.maxBody))
		return nil, attempt
	}

	if httpResp.StatusCode == http.StatusNotFound && c.routeMissing(base, data) {
		finish(SkipToNext, "route missing")
		return nil, attempt
	}

	finish(Success, "")
	return &Response{
		Base:       base,
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       data,
	}, attempt
}

// routeMissing recognizes the hosting provider's 404 for an endpoint that
// is not deployed on that base.
func (c *Client) routeMissing(base string, body []byte) bool {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.Contains(base, c.providerPattern)
	}
	msg, _ := payload["message"].(string)
	errText, _ := payload["error"].(string)
	return strings.Contains(msg, "does not exist on the Railway server") ||
		errText == "Route not found" ||
		msg == "Route not found"
}

func joinURL(base, path string) string {
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
