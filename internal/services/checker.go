package services

import (
	"context"
	"fmt"
	"net"
	"strings"

	"golang.org/x/net/publicsuffix"

	"domain-monitor/internal/models"
	"domain-monitor/internal/monitoring"
)

// Checker runs one kind of check against a domain. Failures are reported
// through CheckResult.Err, never as a panic.
type Checker interface {
	Kind() monitoring.CheckKind
	Check(ctx context.Context, domain models.DomainRecord) monitoring.CheckResult
}

// NormalizeDomain lower-cases name, strips a URL scheme, path, port and
// trailing dot, and checks it has a registrable suffix
func NormalizeDomain(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, p := range []string{"https://", "http://"} {
		n = strings.TrimPrefix(n, p)
	}
	if i := strings.IndexAny(n, "/?#"); i >= 0 {
		n = n[:i]
	}
	if h, _, err := net.SplitHostPort(n); err == nil {
		n = h
	}
	n = strings.TrimSuffix(n, ".")
	if n == "" || !strings.Contains(n, ".") || strings.ContainsAny(n, " _*") {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, name)
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(n); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, name)
	}
	return n, nil
}

// rootDomain returns the registrable part of name, or name itself when it
// has none (an IP or a bare suffix)
func rootDomain(name string) string {
	host := name
	if h, _, err := net.SplitHostPort(name); err == nil {
		host = h
	}
	if root, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return root
	}
	return host
}
