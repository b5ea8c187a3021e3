package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeCounterStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (f *fakeCounterStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[key]++
	return f.counts[key], nil
}

func loginRequest(email string) *http.Request {
	body := bytes.NewBufferString(`{"email":"` + email + `","password":"secret"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
	req.RemoteAddr = "203.0.113.10:52000"
	return req
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRateLimitAllowsUnderLimit(t *testing.T) {
	policy := NewAuthRateLimitPolicy("login", time.Minute, 3, 3)
	handler := AuthRateLimit(policy, &fakeCounterStore{}, nil)(okHandler())

	for i := 0; i < 3; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, loginRequest("ana@village.ph"))
		if resp.Code != http.StatusOK {
			t.Fatalf("attempt %d blocked with %d", i+1, resp.Code)
		}
	}
}

func TestAuthRateLimitBlocksEmailOverLimit(t *testing.T) {
	policy := NewAuthRateLimitPolicy("login", time.Minute, 100, 2)
	store := &fakeCounterStore{}
	handler := AuthRateLimit(policy, store, nil)(okHandler())

	var last int
	for i := 0; i < 3; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, loginRequest("ana@village.ph"))
		last = resp.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", last)
	}

	// Another email is unaffected.
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, loginRequest("ben@village.ph"))
	if resp.Code != http.StatusOK {
		t.Fatalf("other email should pass, got %d", resp.Code)
	}
}

func TestAuthRateLimitBlocksIPOverLimit(t *testing.T) {
	policy := NewAuthRateLimitPolicy("login", time.Minute, 2, 0)
	handler := AuthRateLimit(policy, &fakeCounterStore{}, nil)(okHandler())

	var last int
	for i := 0; i < 3; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, loginRequest("ana@village.ph"))
		last = resp.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", last)
	}
}

func TestAuthRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	policy := NewAuthRateLimitPolicy("login", 0, 0, 0)
	handler := AuthRateLimit(policy, &fakeCounterStore{}, nil)(okHandler())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, loginRequest("ana@village.ph"))
	if resp.Code != http.StatusOK {
		t.Fatalf("disabled policy should not block, got %d", resp.Code)
	}
}

func TestAuthRateLimitNormalizesEmailCase(t *testing.T) {
	policy := NewAuthRateLimitPolicy("login", time.Minute, 100, 2)
	store := &fakeCounterStore{}
	handler := AuthRateLimit(policy, store, nil)(okHandler())

	emails := []string{"Ana@Village.ph", "ana@village.ph ", "ANA@VILLAGE.PH"}
	var last int
	for _, email := range emails {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, loginRequest(email))
		last = resp.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("case variants must share a counter, got %d", last)
	}
}
