package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"domain-monitor/internal/config"
	"domain-monitor/internal/models"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2026, 6, 17, 0, 0, 0, 0, time.UTC)
	cases := []string{
		"2026-06-17T00:00:00Z",
		"2026-06-17T00:00:00.000Z",
		"2026-06-17 00:00:00",
		"2026-06-17",
		"17-Jun-2026",
		"2026.06.17",
		"2026-06-17 00:00:00 (UTC+8)",
		" 2026-06-17 ",
	}
	for _, in := range cases {
		got, err := parseDate(in)
		if err != nil {
			t.Errorf("parseDate(%q): %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("parseDate(%q) = %v; want %v", in, got, want)
		}
	}

	if _, err := parseDate("next tuesday"); err == nil {
		t.Error("expected error for unparseable date")
	}
}

const sampleWhois = `Domain Name: EXAMPLE.COM
Registry Domain ID: 2336799_DOMAIN_COM-VRSN
Registrar WHOIS Server: whois.example-registrar.com
Registrar URL: http://www.example-registrar.com
Updated Date: 2024-08-14T07:01:34Z
Creation Date: 1995-08-14T04:00:00Z
Registry Expiry Date: 2026-08-13T04:00:00Z
Registrar: Example Registrar, Inc.
Registrar IANA ID: 376
Domain Status: clientDeleteProhibited https://icann.org/epp#clientDeleteProhibited
Name Server: A.IANA-SERVERS.NET
Name Server: B.IANA-SERVERS.NET
DNSSEC: signedDelegation
>>> Last update of whois database: 2025-12-01T00:00:00Z <<<
`

func TestParseWhois(t *testing.T) {
	info, err := parseWhois("example.com", sampleWhois)
	if err != nil {
		t.Fatalf("parseWhois: %v", err)
	}
	want := time.Date(2026, 8, 13, 4, 0, 0, 0, time.UTC)
	if !info.ExpiryDate.Equal(want) {
		t.Fatalf("expiry = %v; want %v", info.ExpiryDate, want)
	}
	if info.Registrar != "Example Registrar, Inc." {
		t.Fatalf("registrar = %q", info.Registrar)
	}
	if len(info.NameServers) != 2 || info.NameServers[0] != "a.iana-servers.net" {
		t.Fatalf("name servers = %v", info.NameServers)
	}
}

func TestParseWhois_Garbage(t *testing.T) {
	if _, err := parseWhois("example.com", "nothing useful here"); err == nil {
		t.Fatal("expected error")
	}
}

func TestWhoisService_API(t *testing.T) {
	var gotDomain string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDomain = r.URL.Query().Get("domain")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":0,"msg":"ok","data":{
			"registrar":"Example Registrar",
			"expirationDate":"2026-01-15T00:00:00Z",
			"creationDate":"2001-01-15",
			"status":[{"text":"clientTransferProhibited"}],
			"nameServers":["NS1.EXAMPLE.NET","ns2.example.net"]}}`))
	}))
	defer srv.Close()

	svc := NewWhoisService(&config.WhoisConfig{Provider: "api", APIURL: srv.URL + "/whois", Timeout: "5s"})
	res := svc.Check(context.Background(), models.DomainRecord{Name: "www.example.com"})
	if res.Failed() {
		t.Fatalf("check failed: %v", res.Err)
	}
	if gotDomain != "example.com" {
		t.Fatalf("queried %q; want the registrable domain", gotDomain)
	}
	if res.Expiry == nil || !res.Expiry.Equal(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expiry = %v", res.Expiry)
	}
	if res.Registrar != "Example Registrar" || res.Detail != "clientTransferProhibited" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.NameServers) != 2 || res.NameServers[0] != "ns1.example.net" {
		t.Fatalf("name servers = %v", res.NameServers)
	}
}

func TestWhoisService_APIErrors(t *testing.T) {
	cases := map[string]string{
		"api error": `{"code":1,"msg":"rate limited"}`,
		"no data":   `{"code":0,"msg":"ok"}`,
		"no expiry": `{"code":0,"msg":"ok","data":{"registrar":"X"}}`,
		"not json":  `<html>`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer srv.Close()

			svc := NewWhoisService(&config.WhoisConfig{Provider: "api", APIURL: srv.URL, Timeout: "5s"})
			res := svc.Check(context.Background(), models.DomainRecord{Name: "example.com"})
			if !res.Failed() {
				t.Fatalf("expected failure, got %+v", res)
			}
			if name == "no expiry" && !errors.Is(res.Err, ErrNoExpiry) {
				t.Fatalf("err = %v; want ErrNoExpiry", res.Err)
			}
		})
	}
}

func TestWhoisService_APITimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	svc := NewWhoisService(&config.WhoisConfig{Provider: "api", APIURL: srv.URL, Timeout: "50ms"})
	res := svc.Check(context.Background(), models.DomainRecord{Name: "example.com"})
	if !res.Failed() {
		t.Fatal("timeout must be reported as a failed check")
	}
}
