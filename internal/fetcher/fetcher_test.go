package fetcher

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ogpimage/internal/retry"
	"ogpimage/internal/timeutil"
)

func newTestFetcher() *HTTPFetcher {
	return New(log.New(io.Discard, "", 0), Options{
		Timeout:    5 * time.Second,
		RetryParam: retry.NewRetryParam(0, 1, 3, timeutil.NewBackoffParam(time.Millisecond, 2, 5*time.Millisecond)),
	})
}

func TestGetSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != defaultUserAgent {
			t.Errorf("User-Agent = %q, want %q", ua, defaultUserAgent)
		}
		if accept := r.Header.Get("Accept"); accept != "application/rss+xml" {
			t.Errorf("Accept = %q", accept)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte("<rss/>"))
	}))
	defer srv.Close()

	res, err := newTestFetcher().Get(context.Background(), srv.URL, "application/rss+xml")
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if string(res.Body) != "<rss/>" {
		t.Errorf("Body = %q", res.Body)
	}
	if res.ContentType != "application/rss+xml" {
		t.Errorf("ContentType = %q", res.ContentType)
	}
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	res, err := newTestFetcher().Get(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if string(res.Body) != "ok" {
		t.Errorf("Body = %q, want ok", res.Body)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestGetClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Get(context.Background(), srv.URL, "")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Get() error = %v, want *FetchError", err)
	}
	if fetchErr.Cause != ErrCauseRequest4xx || fetchErr.StatusCode != http.StatusNotFound {
		t.Errorf("unexpected fetch error: %+v", fetchErr)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestGetExhaustedRetriesReportsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Get(context.Background(), srv.URL, "")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Get() error = %v, want wrapped *FetchError", err)
	}
	if fetchErr.Cause != ErrCauseRequest5xx {
		t.Errorf("Cause = %s, want %s", fetchErr.Cause, ErrCauseRequest5xx)
	}
}

func TestCheckDestination(t *testing.T) {
	tests := []struct {
		host    string
		wantErr bool
	}{
		{"127.0.0.1", false},
		{"10.1.2.3", true},
		{"192.168.0.10", true},
		{"8.8.8.8", false},
		{"", false},
	}
	for _, tt := range tests {
		err := checkDestination(tt.host)
		if (err != nil) != tt.wantErr {
			t.Errorf("checkDestination(%q) error = %v, wantErr %v", tt.host, err, tt.wantErr)
		}
	}
}

func TestGetRejectsRedirectToPrivateAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://10.1.2.3/admin", http.StatusFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Get(context.Background(), srv.URL+"/feed", "")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Get() error = %v, want *FetchError", err)
	}
	if fetchErr.Cause != ErrCausePrivateDestination {
		t.Errorf("Cause = %s, want %s", fetchErr.Cause, ErrCausePrivateDestination)
	}
	if fetchErr.IsRetryable() {
		t.Error("private destination must not be retried")
	}
}

func TestGetFollowsRedirectToPublicAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/moved" {
			w.Write([]byte("ok"))
			return
		}
		http.Redirect(w, r, "/moved", http.StatusMovedPermanently)
	}))
	defer srv.Close()

	res, err := newTestFetcher().Get(context.Background(), srv.URL+"/old", "")
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if string(res.Body) != "ok" {
		t.Errorf("Body = %q, want ok", res.Body)
	}
}

func TestRedact(t *testing.T) {
	got := Redact("https://www.googleapis.com/webfonts/v1/webfonts?family=Inter&key=secret")
	if strings.Contains(got, "secret") {
		t.Errorf("Redact() = %q, still contains the credential", got)
	}
	if plain := "https://kq5.jp/rss.xml"; Redact(plain) != plain {
		t.Errorf("Redact(%q) changed a URL without credentials", plain)
	}

	err := &FetchError{URL: "https://x.test/?key=secret", Message: `Get "https://x.test/?key=secret": EOF`, Cause: ErrCauseNetworkFailure}
	if strings.Contains(err.Error(), "secret") {
		t.Errorf("Error() = %q, leaks the credential", err.Error())
	}
}
