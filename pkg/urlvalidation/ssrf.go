// Package urlvalidation rejects outbound URLs that point into private
// networks.
package urlvalidation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// ErrForbiddenURL is wrapped by every rejection.
var ErrForbiddenURL = errors.New("forbidden url")

// Option configures a check.
type Option func(*options)

type options struct {
	allowPrivate bool
	resolver     *net.Resolver
}

// AllowPrivateIPs disables the address check. Tests use it with httptest.
func AllowPrivateIPs() Option {
	return func(o *options) { o.allowPrivate = true }
}

// WithResolver replaces net.DefaultResolver.
func WithResolver(r *net.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

var reserved = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("224.0.0.0/4"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("ff00::/8"),
}

// IsReserved reports whether addr is loopback, private, link-local,
// multicast or otherwise not publicly routable.
func IsReserved(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsUnspecified() {
		return true
	}
	for _, p := range reserved {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Check verifies that rawURL is an http(s) URL whose host resolves only to
// public addresses.
func Check(ctx context.Context, rawURL string, opts ...Option) error {
	o := options{resolver: net.DefaultResolver}
	for _, opt := range opts {
		opt(&o)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrForbiddenURL, err)
	}
	if s := strings.ToLower(u.Scheme); s != "http" && s != "https" {
		return fmt.Errorf("%w: scheme %q", ErrForbiddenURL, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrForbiddenURL)
	}
	if o.allowPrivate {
		return nil
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("%w: localhost", ErrForbiddenURL)
	}

	var addrs []netip.Addr
	if addr, err := netip.ParseAddr(host); err == nil {
		addrs = []netip.Addr{addr}
	} else {
		addrs, err = o.resolver.LookupNetIP(ctx, "ip", host)
		if err != nil {
			return fmt.Errorf("%w: resolve %q: %v", ErrForbiddenURL, host, err)
		}
	}
	for _, addr := range addrs {
		if IsReserved(addr) {
			return fmt.Errorf("%w: %s resolves to reserved address %s", ErrForbiddenURL, host, addr)
		}
	}
	return nil
}
