package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"domain-monitor/internal/models"
	"domain-monitor/internal/monitoring"
)

// SSLChecker reads the leaf certificate a domain serves. A name without a
// port is dialled on 443.
type SSLChecker struct {
	Timeout time.Duration
}

func NewSSLChecker(timeout time.Duration) *SSLChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SSLChecker{Timeout: timeout}
}

func (c *SSLChecker) Kind() monitoring.CheckKind { return monitoring.KindSSL }

func (c *SSLChecker) Check(ctx context.Context, d models.DomainRecord) monitoring.CheckResult {
	res := monitoring.CheckResult{Kind: monitoring.KindSSL}
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	host, address := d.Name, net.JoinHostPort(d.Name, "443")
	if h, _, err := net.SplitHostPort(d.Name); err == nil {
		host, address = h, d.Name
	}

	dialer := &net.Dialer{KeepAlive: -1}
	rawConn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		res.Err = err
		return res
	}
	defer rawConn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = rawConn.SetDeadline(deadline)
	}

	// Expired or mismatched certificates still have an expiry worth reporting
	conn := tls.Client(rawConn, &tls.Config{
		InsecureSkipVerify: true,
		ServerName:         host,
	})
	if err := conn.HandshakeContext(ctx); err != nil {
		res.Err = fmt.Errorf("tls handshake with %s: %w", address, err)
		return res
	}

	state := conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		res.Err = fmt.Errorf("%s presented no certificate", address)
		return res
	}
	cert := state.PeerCertificates[0]
	notAfter := cert.NotAfter
	res.Expiry = &notAfter
	res.Issuer = cert.Issuer.CommonName
	if res.Issuer == "" && len(cert.Issuer.Organization) > 0 {
		res.Issuer = cert.Issuer.Organization[0]
	}
	if err := cert.VerifyHostname(host); err != nil {
		res.Detail = "hostname mismatch"
	}
	return res
}
