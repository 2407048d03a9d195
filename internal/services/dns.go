package services

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"

	"domain-monitor/internal/models"
	"domain-monitor/internal/monitoring"
)

// DNSChecker resolves a domain's delegation (NS) and address (A) records
// against one resolver
type DNSChecker struct {
	Resolver string // host:port
	Timeout  time.Duration
}

func NewDNSChecker(resolver string, timeout time.Duration) *DNSChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DNSChecker{Resolver: resolver, Timeout: timeout}
}

func (c *DNSChecker) Kind() monitoring.CheckKind { return monitoring.KindDNS }

func (c *DNSChecker) Check(ctx context.Context, d models.DomainRecord) monitoring.CheckResult {
	res := monitoring.CheckResult{Kind: monitoring.KindDNS}
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	host := d.Name
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	ns, err := c.lookup(ctx, rootDomain(host), dns.TypeNS)
	if err != nil {
		res.Err = err
		return res
	}
	for _, rr := range ns {
		if r, ok := rr.(*dns.NS); ok {
			res.NameServers = append(res.NameServers, strings.ToLower(strings.TrimSuffix(r.Ns, ".")))
		}
	}
	sort.Strings(res.NameServers)

	a, err := c.lookup(ctx, host, dns.TypeA)
	if err != nil {
		res.Err = err
		return res
	}
	var addrs []string
	for _, rr := range a {
		if r, ok := rr.(*dns.A); ok {
			addrs = append(addrs, r.A.String())
		}
	}
	res.Detail = strings.Join(addrs, ",")
	return res
}

func (c *DNSChecker) lookup(ctx context.Context, name string, qtype uint16) ([]dns.RR, error) {
	client := &dns.Client{Timeout: c.Timeout}
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)

	in, _, err := client.ExchangeContext(ctx, msg, c.Resolver)
	if err != nil {
		return nil, fmt.Errorf("%s lookup for %s: %w", dns.TypeToString[qtype], name, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%s lookup for %s: %s", dns.TypeToString[qtype], name, dns.RcodeToString[in.Rcode])
	}
	return in.Answer, nil
}
