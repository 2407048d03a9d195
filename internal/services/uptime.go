package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"domain-monitor/internal/models"
	"domain-monitor/internal/monitoring"
)

// UptimeChecker requests the domain's front page. Any response below 500
// counts as online; a refused or reset connection is offline. Running out
// of time is a failed check, not an offline verdict.
type UptimeChecker struct {
	Scheme  string
	Timeout time.Duration
	client  *http.Client
}

func NewUptimeChecker(timeout time.Duration) *UptimeChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &UptimeChecker{
		Scheme:  "https",
		Timeout: timeout,
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

func (c *UptimeChecker) Kind() monitoring.CheckKind { return monitoring.KindUptime }

func (c *UptimeChecker) Check(ctx context.Context, d models.DomainRecord) monitoring.CheckResult {
	res := monitoring.CheckResult{Kind: monitoring.KindUptime}
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	url := fmt.Sprintf("%s://%s/", c.Scheme, d.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		res.Err = err
		return res
	}
	req.Header.Set("User-Agent", "domain-monitor/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			res.Err = err
			return res
		}
		res.Status = models.StatusOffline
		res.Detail = err.Error()
		return res
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	res.Detail = resp.Status
	if resp.StatusCode < http.StatusInternalServerError {
		res.Status = models.StatusOnline
	} else {
		res.Status = models.StatusOffline
	}
	return res
}
