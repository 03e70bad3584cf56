// Package agent is the HTTP client for the bealink agent that runs on each
// controlled machine.
//
// Every call returns the response body on a 2xx status and a *RequestError
// otherwise. Nothing is retried here.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/bealink/internal/logger"
)

// DefaultPort is the agent's fixed HTTP port.
const DefaultPort = 8088

// Agent endpoints.
const (
	PathPing     = "/ping"
	PathSleep    = "/sleep"
	PathShutdown = "/shutdown"
	PathMonitor  = "/monitor"
	PathClip     = "/clip"
	PathGetClip  = "/getclip"
)

const maxBodyBytes = 1 << 20

// ClipPayload is the body of POST /clip.
type ClipPayload struct {
	Content string `json:"content"`
}

// Client talks to agents. Ping uses the health profile; everything else
// uses the command profile.
type Client struct {
	port    int
	health  *http.Client
	command *http.Client
	log     logger.Logger
}

// NewClient creates a client for agents listening on port (0 means DefaultPort).
func NewClient(port int, health, command Profile, log logger.Logger) *Client {
	if port <= 0 {
		port = DefaultPort
	}
	if log == nil {
		log = logger.Noop()
	}
	return &Client{
		port:    port,
		health:  newHTTPClient(health),
		command: newHTTPClient(command),
		log:     log,
	}
}

// URL builds the endpoint URL for ip and path.
func (c *Client) URL(ip, path string) (string, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return "", fmt.Errorf("empty address")
	}
	if !strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("path %q must start with /", path)
	}
	raw := "http://" + net.JoinHostPort(ip, strconv.Itoa(c.port)) + path
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("no host in %q", raw)
	}
	return u.String(), nil
}

// Get issues GET ip:port/path under the command profile.
func (c *Client) Get(ctx context.Context, ip, path string) (string, error) {
	return c.do(ctx, c.command, http.MethodGet, ip, path, nil)
}

// PostJSON issues a POST with body encoded as JSON under the command profile.
func (c *Client) PostJSON(ctx context.Context, ip, path string, body any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", &RequestError{Kind: KindValidation, URL: path, Cause: err}
	}
	return c.do(ctx, c.command, http.MethodPost, ip, path, payload)
}

// Ping probes /ping under the health profile. The latency is measured from
// just before the request is issued.
func (c *Client) Ping(ctx context.Context, ip string) (time.Duration, error) {
	start := time.Now()
	if _, err := c.do(ctx, c.health, http.MethodGet, ip, PathPing, nil); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Sleep asks the agent to suspend its machine.
func (c *Client) Sleep(ctx context.Context, ip string) (string, error) {
	return c.Get(ctx, ip, PathSleep)
}

// Shutdown asks the agent to power its machine off.
func (c *Client) Shutdown(ctx context.Context, ip string) (string, error) {
	return c.Get(ctx, ip, PathShutdown)
}

// ToggleMonitor asks the agent to toggle the display.
func (c *Client) ToggleMonitor(ctx context.Context, ip string) (string, error) {
	return c.Get(ctx, ip, PathMonitor)
}

// PushClipboard sets the agent machine's clipboard.
func (c *Client) PushClipboard(ctx context.Context, ip, content string) (string, error) {
	return c.PostJSON(ctx, ip, PathClip, ClipPayload{Content: content})
}

// PullClipboard returns the agent machine's clipboard text.
func (c *Client) PullClipboard(ctx context.Context, ip string) (string, error) {
	return c.Get(ctx, ip, PathGetClip)
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, ip, path string, body []byte) (string, error) {
	target, err := c.URL(ip, path)
	if err != nil {
		return "", &RequestError{Kind: KindValidation, URL: ip + path, Cause: err}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return "", &RequestError{Kind: KindValidation, URL: target, Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		reqErr := categorize(target, err)
		c.log.Debug("agent: %s %s: %s", method, target, reqErr.Reason)
		return "", reqErr
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", categorize(target, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debug("agent: %s %s: HTTP %d", method, target, resp.StatusCode)
		return "", &RequestError{
			Kind:       KindProtocol,
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	return string(data), nil
}
