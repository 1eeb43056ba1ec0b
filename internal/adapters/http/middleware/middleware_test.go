package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func rejectHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
}

// TestRateLimiter_AllowsBurstThenBlocks verifies the bucket empties.
func TestRateLimiter_AllowsBurstThenBlocks(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("4th request should be blocked")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("other IPs have their own bucket")
	}
}

// TestRateLimiter_Refills verifies tokens return after an interval.
func TestRateLimiter_Refills(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("ip") {
		t.Fatal("first request should be allowed")
	}
	now = now.Add(59 * time.Second)
	if rl.Allow("ip") {
		t.Fatal("should still be empty before the interval")
	}
	now = now.Add(2 * time.Second)
	if !rl.Allow("ip") {
		t.Error("should refill after the interval")
	}
}

// TestRateLimit_RejectsAndSkipsPreflight verifies the middleware wiring.
func TestRateLimit_RejectsAndSkipsPreflight(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	defer rl.Stop()
	h := RateLimit(rl, false, rejectHandler())(okHandler())

	do := func(method string) int {
		req := httptest.NewRequest(method, "/api/contact", nil)
		req.RemoteAddr = "192.0.2.7:5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}
	if code := do(http.MethodPost); code != http.StatusOK {
		t.Fatalf("first POST = %d", code)
	}
	if code := do(http.MethodPost); code != http.StatusTooManyRequests {
		t.Errorf("second POST = %d, want 429", code)
	}
	if code := do(http.MethodOptions); code != http.StatusOK {
		t.Errorf("preflight = %d, want 200", code)
	}
}

// TestClientIP verifies proxy headers are only trusted when configured.
func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := ClientIP(req, false); got != "192.0.2.7" {
		t.Errorf("untrusted = %q, want 192.0.2.7", got)
	}
	if got := ClientIP(req, true); got != "203.0.113.9" {
		t.Errorf("trusted = %q, want 203.0.113.9", got)
	}

	req.Header.Del("X-Forwarded-For")
	req.Header.Set("X-Real-IP", "198.51.100.4")
	if got := ClientIP(req, true); got != "198.51.100.4" {
		t.Errorf("x-real-ip = %q", got)
	}

	req.RemoteAddr = "[2001:db8::1]:443"
	if got := ClientIP(req, false); got != "2001:db8::1" {
		t.Errorf("ipv6 = %q", got)
	}
}

// TestCORS_Preflight verifies OPTIONS is answered without reaching the handler.
func TestCORS_Preflight(t *testing.T) {
	called := false
	h := CORS("*")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/contact", nil))

	if rr.Code != http.StatusOK || called {
		t.Errorf("status = %d, handler called = %v", rr.Code, called)
	}
	for k, want := range map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "POST, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type",
		"Content-Type":                 "application/json",
	} {
		if got := rr.Header().Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
}

// TestCORS_SpecificOriginVaries verifies caches key on Origin for a fixed origin.
func TestCORS_SpecificOriginVaries(t *testing.T) {
	h := CORS("https://nammabody.com")(okHandler())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/contact", nil))
	if rr.Header().Get("Vary") != "Origin" {
		t.Errorf("Vary = %q", rr.Header().Get("Vary"))
	}
}

// TestSecurityHeaders verifies the API hardening headers.
func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeaders(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" || rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("headers = %v", rr.Header())
	}
}

// TestChain_Order verifies the last middleware runs first.
func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	Chain(okHandler(), mw("inner"), mw("outer")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("order = %v", order)
	}
}
