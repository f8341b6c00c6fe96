package fetch

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// ValidateURL checks that rawURL is an absolute http(s) URL whose host is
// not a loopback, private, link-local or unspecified address.
func ValidateURL(rawURL string, allowPrivate bool) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBlockedURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: only http and https are supported, got %q", ErrBlockedURL, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrBlockedURL)
	}
	if allowPrivate {
		return u, nil
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return nil, fmt.Errorf("%w: localhost is not allowed", ErrBlockedURL)
	}
	if ip := net.ParseIP(host); ip != nil && blockedIP(ip) {
		return nil, fmt.Errorf("%w: private address %s is not allowed", ErrBlockedURL, host)
	}
	return u, nil
}

func blockedIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}

// guardedDialer refuses connections to blocked addresses after DNS
// resolution, so a public name that resolves to a private address is
// still rejected.
func guardedDialer(allowPrivate bool) *net.Dialer {
	d := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	if allowPrivate {
		return d
	}
	d.Control = func(network, address string, _ syscall.RawConn) error {
		host, _, err := net.SplitHostPort(address)
		if err != nil {
			return err
		}
		if ip := net.ParseIP(host); ip != nil && blockedIP(ip) {
			return fmt.Errorf("%w: refusing to connect to %s", ErrBlockedURL, host)
		}
		return nil
	}
	return d
}
