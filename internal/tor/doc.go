// Package tor provides SOCKS5 connectivity for fetch sessions.
//
// A Proxy wraps a SOCKS5 endpoint (a local Tor daemon, or any SOCKS5 server)
// and hands out a context-aware dialer that the HTTP fetch client installs
// in its transport. Daemon starts an embedded Tor process through tornago
// for runs that have no proxy of their own.
//
// Design decision: The proxy is optional. A crawl against a reachable API
// runs without it; routing through Tor spreads requests across exit relays
// when the source rate-limits by address.
package tor
