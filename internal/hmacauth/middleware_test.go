package hmacauth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func fixedVerifier(now time.Time) *Verifier {
	return &Verifier{
		Secret:  "secret",
		MaxSkew: time.Minute,
		Now: func() time.Time {
			return now
		},
	}
}

func signed(method, path, ts, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(SignatureHeader, Sign("secret", method, path, ts, []byte(body)))
	req.Header.Set(TimestampHeader, ts)
	return req
}

func TestMiddleware_AllowsValidSignatureAndKeepsBody(t *testing.T) {
	body := `{"amount":"10000"}`
	now := time.Unix(1_700_000_000, 0)
	ts := strconv.FormatInt(now.Unix(), 10)

	req := signed(http.MethodPost, "/api/v1/deposits", ts, body)
	rec := httptest.NewRecorder()

	var seen string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen = string(b)
		w.WriteHeader(http.StatusOK)
	})

	fixedVerifier(now).Middleware(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seen != body {
		t.Fatalf("handler saw body %q, want %q", seen, body)
	}
}

func TestMiddleware_RejectsInvalidSignature(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	ts := strconv.FormatInt(now.Unix(), 10)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/mint", strings.NewReader(`{}`))
	req.Header.Set(SignatureHeader, "deadbeef")
	req.Header.Set(TimestampHeader, ts)
	rec := httptest.NewRecorder()

	fixedVerifier(now).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestVerify_SignatureBoundToRoute(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	ts := strconv.FormatInt(now.Unix(), 10)
	v := fixedVerifier(now)

	mint := signed(http.MethodPost, "/api/v1/mint", ts, `{}`)
	sig := mint.Header.Get(SignatureHeader)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/deposits"},
		{http.MethodDelete, "/api/v1/error"},
		{http.MethodPut, "/api/v1/mint"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(`{}`))
		req.Header.Set(SignatureHeader, sig)
		req.Header.Set(TimestampHeader, ts)
		if err := v.Verify(req); err != ErrInvalidSignature {
			t.Fatalf("%s %s: expected ErrInvalidSignature, got %v", tc.method, tc.path, err)
		}
	}

	if err := v.Verify(mint); err != nil {
		t.Fatalf("expected mint signature valid on mint, got %v", err)
	}
}

func TestVerify_RejectsStaleTimestamp(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	ts := strconv.FormatInt(now.Add(-2*time.Minute).Unix(), 10)

	req := signed(http.MethodPost, "/api/v1/mint", ts, `{}`)

	if err := fixedVerifier(now).Verify(req); err != ErrStaleTimestamp {
		t.Fatalf("expected ErrStaleTimestamp, got %v", err)
	}
}

func TestVerify_MissingHeaders(t *testing.T) {
	v := fixedVerifier(time.Unix(1_700_000_000, 0))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/mint", nil)
	if err := v.Verify(req); err != ErrMissingSignature {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}

	req.Header.Set(SignatureHeader, "abc")
	if err := v.Verify(req); err != ErrMissingTimestamp {
		t.Fatalf("expected ErrMissingTimestamp, got %v", err)
	}
}

func TestVerify_AcceptsUppercaseHex(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	ts := strconv.FormatInt(now.Unix(), 10)

	req := signed(http.MethodPost, "/api/v1/mint", ts, "x")
	req.Header.Set(SignatureHeader, strings.ToUpper(req.Header.Get(SignatureHeader)))

	if err := fixedVerifier(now).Verify(req); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestMiddleware_RejectsOversizedBody(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	ts := strconv.FormatInt(now.Unix(), 10)
	v := fixedVerifier(now)
	v.MaxBodyBytes = 16

	req := signed(http.MethodPost, "/api/v1/deposits", ts, strings.Repeat("a", 17))
	rec := httptest.NewRecorder()
	v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestVerify_DisabledWithoutSecret(t *testing.T) {
	v := &Verifier{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mint", nil)
	if err := v.Verify(req); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
