package tor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout bounds the SOCKS5 greeting in Check.
const checkProxyTimeout = 2 * time.Second

// SOCKS5 greeting constants.
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthPassword = 0x02
	socks5AuthNoAccept = 0xFF
)

// Proxy is a SOCKS5 endpoint used by fetch sessions.
type Proxy struct {
	// address is the proxy in "host:port" form.
	address string

	// auth holds optional username/password credentials.
	auth *proxy.Auth

	// dialer is the SOCKS5 dialer, created once and shared by sessions.
	dialer proxy.Dialer
}

// ParseProxy parses raw as "host:port" or "socks5://[user:pass@]host:port"
// (the socks5h scheme is accepted as an alias). It validates the address but
// does not contact the proxy; call Check for that.
func ParseProxy(raw string) (*Proxy, error) {
	address := raw
	var auth *proxy.Auth

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProxyAddress, err)
		}
		if u.Scheme != "socks5" && u.Scheme != "socks5h" {
			return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidProxyAddress, u.Scheme)
		}
		address = u.Host
		if u.User != nil {
			password, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: password}
		}
	}

	if !isValidProxyAddress(address) {
		return nil, ErrInvalidProxyAddress
	}

	dialer, err := proxy.SOCKS5("tcp", address, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	return &Proxy{
		address: address,
		auth:    auth,
		dialer:  dialer,
	}, nil
}

// isValidProxyAddress reports whether address is host:port with a non-empty
// host and a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// Address returns the proxy in "host:port" form.
func (p *Proxy) Address() string {
	return p.address
}

// String returns the proxy URL without credentials, safe for logs.
func (p *Proxy) String() string {
	return "socks5://" + p.address
}

// Dialer returns the underlying SOCKS5 dialer.
func (p *Proxy) Dialer() proxy.Dialer {
	return p.dialer
}

// DialContext dials address through the proxy.
func (p *Proxy) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := p.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := p.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Check performs the SOCKS5 method negotiation against the proxy and
// reports whether it is usable with the configured credentials.
func (p *Proxy) Check(ctx context.Context) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.address)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return ProxyStatusCannotConnect
	}

	greeting := []byte{socks5Version, 0x01, socks5AuthNone}
	if p.auth != nil {
		greeting = []byte{socks5Version, 0x02, socks5AuthNone, socks5AuthPassword}
	}
	if _, err := conn.Write(greeting); err != nil {
		return ProxyStatusCannotConnect
	}

	reply := make([]byte, 2)
	if _, err := io.ReadFull(conn, reply); err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if reply[0] != socks5Version {
		return ProxyStatusWrongType
	}

	switch reply[1] {
	case socks5AuthNone:
		return ProxyStatusOK
	case socks5AuthPassword:
		if p.auth != nil {
			return ProxyStatusOK
		}
		return ProxyStatusWrongType
	default:
		return ProxyStatusWrongType
	}
}
