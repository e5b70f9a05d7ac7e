package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetcherSendsUserAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "Research Terminal RSS Reader/1.0" {
			t.Errorf("Unexpected user agent %q", ua)
		}
		w.Write([]byte("<rss/>"))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), "Research Terminal RSS Reader/1.0")
	data, err := fetcher.Fetch(context.Background(), server.URL, time.Second)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(data) != "<rss/>" {
		t.Errorf("Unexpected body %q", data)
	}
}

func TestFetcherRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), "test").WithRetry(3, time.Millisecond)
	data, err := fetcher.Fetch(context.Background(), server.URL, time.Second)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(data) != "ok" || calls.Load() != 2 {
		t.Errorf("Expected success on second attempt, got %q after %d calls", data, calls.Load())
	}
}

func TestFetcherDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), "test").WithRetry(3, time.Millisecond)
	_, err := fetcher.Fetch(context.Background(), server.URL, time.Second)
	if err == nil {
		t.Fatal("Expected error for 404")
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("Expected StatusError 404, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected a single attempt, got %d", calls.Load())
	}
}
