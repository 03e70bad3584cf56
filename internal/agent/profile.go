package agent

import (
	"context"
	"net"
	"net/http"
	"time"
)

// Profile bounds each phase of a request. Zero disables that bound.
type Profile struct {
	Connect time.Duration `mapstructure:"connect" yaml:"connect"`
	Read    time.Duration `mapstructure:"read" yaml:"read"`
	Write   time.Duration `mapstructure:"write" yaml:"write"`
	Total   time.Duration `mapstructure:"total" yaml:"total"`
}

// HealthProfile is aggressive so a stalled device cannot hold up a probe cycle.
func HealthProfile() Profile {
	return Profile{
		Connect: 500 * time.Millisecond,
		Read:    2 * time.Second,
		Write:   500 * time.Millisecond,
		Total:   2800 * time.Millisecond,
	}
}

// CommandProfile is for user-initiated actions.
func CommandProfile() Profile {
	return Profile{
		Connect: 3 * time.Second,
		Read:    5 * time.Second,
		Write:   5 * time.Second,
	}
}

// newHTTPClient builds a client enforcing p. Keep-alives are off: every
// call is a fresh, short-lived exchange.
func newHTTPClient(p Profile) *http.Client {
	dialer := &net.Dialer{Timeout: p.Connect}
	transport := &http.Transport{
		Proxy: nil,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &deadlineConn{Conn: conn, read: p.Read, write: p.Write}, nil
		},
		DisableKeepAlives:     true,
		ResponseHeaderTimeout: p.Read,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   p.Total,
		// A redirect is a non-2xx answer from the agent, not a hop to follow.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// deadlineConn re-arms a deadline before every read and write, so the
// bounds apply per operation rather than per connection.
type deadlineConn struct {
	net.Conn
	read  time.Duration
	write time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if c.read > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.read)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if c.write > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.write)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}
