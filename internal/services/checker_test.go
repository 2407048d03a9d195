package services

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNormalizeDomain(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Example.COM", "example.com"},
		{"  example.com  ", "example.com"},
		{"https://www.example.com/path?q=1", "www.example.com"},
		{"http://example.co.uk:8443/", "example.co.uk"},
		{"example.com.", "example.com"},
	}
	for _, c := range cases {
		got, err := NormalizeDomain(c.in)
		if err != nil {
			t.Fatalf("NormalizeDomain(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("NormalizeDomain(%q) = %q; want %q", c.in, got, c.want)
		}
	}

	for _, bad := range []string{"", "localhost", "exa mple.com", "*.example.com", "https://"} {
		if _, err := NormalizeDomain(bad); !errors.Is(err, ErrInvalidDomain) {
			t.Errorf("NormalizeDomain(%q) err = %v; want ErrInvalidDomain", bad, err)
		}
	}
}

func TestRootDomain(t *testing.T) {
	cases := map[string]string{
		"www.example.com":     "example.com",
		"a.b.example.co.uk":   "example.co.uk",
		"example.com:443":     "example.com",
		"shop.example.com.au": "example.com.au",
	}
	for in, want := range cases {
		if got := rootDomain(in); got != want {
			t.Errorf("rootDomain(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := newKeyedMutex()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("a")
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("%d holders at once; want 1", maxSeen)
	}
	if len(k.locks) != 0 {
		t.Fatalf("%d keys left after release", len(k.locks))
	}
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		k.Lock("b")()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked by a")
	}
}
