package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
	"github.com/sirupsen/logrus"

	"domain-monitor/internal/config"
	"domain-monitor/internal/models"
	"domain-monitor/internal/monitoring"
)

// DomainInfo represents WHOIS query result
type DomainInfo struct {
	Domain      string    `json:"domain"`
	Registrar   string    `json:"registrar"`
	ExpiryDate  time.Time `json:"expiry_date"`
	CreatedDate time.Time `json:"created_date"`
	UpdatedDate time.Time `json:"updated_date"`
	Status      string    `json:"status"`
	NameServers []string  `json:"name_servers"`
}

// WhoisService handles WHOIS queries, either against a JSON lookup API or
// directly against the registry's WHOIS servers
type WhoisService struct {
	Provider string
	APIURL   string
	Timeout  time.Duration

	httpClient *http.Client
	direct     *whois.Client
}

// NewWhoisService creates a new WHOIS service
func NewWhoisService(cfg *config.WhoisConfig) *WhoisService {
	timeout := config.Duration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WhoisService{
		Provider:   cfg.Provider,
		APIURL:     cfg.APIURL,
		Timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		direct:     whois.NewClient().SetTimeout(timeout),
	}
}

func (s *WhoisService) Kind() monitoring.CheckKind { return monitoring.KindWhois }

// Check looks up d and reports its registration expiry
func (s *WhoisService) Check(ctx context.Context, d models.DomainRecord) monitoring.CheckResult {
	res := monitoring.CheckResult{Kind: monitoring.KindWhois}
	info, err := s.QueryDomain(ctx, d.Name)
	if err != nil {
		res.Err = err
		return res
	}
	if !info.ExpiryDate.IsZero() {
		exp := info.ExpiryDate
		res.Expiry = &exp
	}
	res.Registrar = info.Registrar
	res.NameServers = info.NameServers
	res.Detail = info.Status
	return res
}

// QueryDomain queries WHOIS information for the registrable part of domain
func (s *WhoisService) QueryDomain(ctx context.Context, domain string) (*DomainInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	root := rootDomain(domain)
	if s.Provider == "api" {
		return s.queryAPI(ctx, root)
	}
	return s.queryDirect(ctx, root)
}

func (s *WhoisService) queryAPI(ctx context.Context, domain string) (*DomainInfo, error) {
	// Build API URL with parameters
	apiURL, err := url.Parse(s.APIURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := apiURL.Query()
	params.Set("domain", domain)
	apiURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query WHOIS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("WHOIS API returned status %d", resp.StatusCode)
	}

	// API returns {code, msg, data}
	var apiResponse struct {
		Code int                    `json:"code"`
		Msg  string                 `json:"msg"`
		Data map[string]interface{} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("failed to parse WHOIS response: %w", err)
	}
	if apiResponse.Code != 0 {
		return nil, fmt.Errorf("WHOIS API error: %s", apiResponse.Msg)
	}

	result := apiResponse.Data
	if result == nil {
		return nil, fmt.Errorf("no data in WHOIS response")
	}

	domainInfo := &DomainInfo{Domain: domain}

	if registrar, ok := result["registrar"].(string); ok {
		domainInfo.Registrar = registrar
	}

	// "status" is a list of {text} objects; keep the first
	if statusList, ok := result["status"].([]interface{}); ok && len(statusList) > 0 {
		if statusObj, ok := statusList[0].(map[string]interface{}); ok {
			if statusText, ok := statusObj["text"].(string); ok {
				domainInfo.Status = statusText
			}
		}
	}

	if expiryStr, ok := result["expirationDate"].(string); ok {
		if t, err := parseDate(expiryStr); err == nil {
			domainInfo.ExpiryDate = t
		}
	}
	if createdStr, ok := result["creationDate"].(string); ok {
		if t, err := parseDate(createdStr); err == nil {
			domainInfo.CreatedDate = t
		}
	}
	if updatedStr, ok := result["updatedDate"].(string); ok {
		if t, err := parseDate(updatedStr); err == nil {
			domainInfo.UpdatedDate = t
		}
	}

	if nameServers, ok := result["nameServers"].([]interface{}); ok {
		for _, ns := range nameServers {
			if nsStr, ok := ns.(string); ok {
				domainInfo.NameServers = append(domainInfo.NameServers, strings.ToLower(nsStr))
			}
		}
	}

	if domainInfo.ExpiryDate.IsZero() {
		return nil, fmt.Errorf("%s: %w", domain, ErrNoExpiry)
	}
	return domainInfo, nil
}

func (s *WhoisService) queryDirect(ctx context.Context, domain string) (*DomainInfo, error) {
	type answer struct {
		raw string
		err error
	}
	ch := make(chan answer, 1)
	go func() {
		raw, err := s.direct.Whois(domain)
		ch <- answer{raw, err}
	}()

	var raw string
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("whois %s: %w", domain, ctx.Err())
	case a := <-ch:
		if a.err != nil {
			return nil, fmt.Errorf("whois %s: %w", domain, a.err)
		}
		raw = a.raw
	}

	info, err := parseWhois(domain, raw)
	if err != nil {
		logrus.WithField("domain", domain).Debugf("WHOIS parse failed: %v", err)
		return nil, err
	}
	return info, nil
}

// parseWhois extracts DomainInfo from a raw WHOIS response
func parseWhois(domain, raw string) (*DomainInfo, error) {
	result, err := whoisparser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse whois %s: %w", domain, err)
	}
	if result.Domain == nil || result.Domain.ExpirationDate == "" {
		return nil, fmt.Errorf("%s: %w", domain, ErrNoExpiry)
	}

	expiry, err := parseDate(result.Domain.ExpirationDate)
	if err != nil {
		return nil, err
	}

	info := &DomainInfo{Domain: domain, ExpiryDate: expiry}
	if t, err := parseDate(result.Domain.CreatedDate); err == nil {
		info.CreatedDate = t
	}
	if t, err := parseDate(result.Domain.UpdatedDate); err == nil {
		info.UpdatedDate = t
	}
	if len(result.Domain.Status) > 0 {
		info.Status = result.Domain.Status[0]
	}
	for _, ns := range result.Domain.NameServers {
		info.NameServers = append(info.NameServers, strings.ToLower(ns))
	}
	if result.Registrar != nil {
		info.Registrar = result.Registrar.Name
	}
	return info, nil
}

// parseDate tries to parse various date formats
func parseDate(dateStr string) (time.Time, error) {
	// Some registries append the zone in parentheses, e.g. "2026-06-17 13:11:45 (UTC+8)"
	if idx := strings.Index(dateStr, " ("); idx != -1 {
		dateStr = dateStr[:idx]
	}
	dateStr = strings.TrimSpace(dateStr)

	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"02-Jan-2006",
		"2006.01.02",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}
