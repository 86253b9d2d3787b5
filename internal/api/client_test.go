package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.DebugLevel)
	l.SetOutput(io.Discard)
	return l
}

func TestNormalizeBaseURL(t *testing.T) {
	cases := map[string]string{
		"127.0.0.1:9097":         "http://127.0.0.1:9097",
		"127.0.0.1:9097/":        "http://127.0.0.1:9097",
		" http://localhost:9090": "http://localhost:9090",
		"https://ctl.example/":   "https://ctl.example",
	}
	for in, want := range cases {
		if got := normalizeBaseURL(in); got != want {
			t.Errorf("normalizeBaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestGetConnections verifies bearer auth and totals decoding.
func TestGetConnections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/connections" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer s3cr3t" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"downloadTotal": 2048,
			"uploadTotal":   1024,
			"connections":   []interface{}{},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "s3cr3t", newTestLogger())
	conns, err := client.GetConnections(context.Background())
	if err != nil {
		t.Fatalf("GetConnections failed: %v", err)
	}
	if conns.UploadTotal != 1024 || conns.DownloadTotal != 2048 {
		t.Errorf("conns = %+v, want up 1024 down 2048", conns)
	}
}

// TestNoSecretNoAuthHeader verifies an empty secret sends no Authorization header.
func TestNoSecretNoAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		w.Write([]byte(`{"mode":"rule"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", newTestLogger())
	cfg, err := client.GetConfigs(context.Background())
	if err != nil {
		t.Fatalf("GetConfigs failed: %v", err)
	}
	if cfg.Mode != "rule" {
		t.Errorf("Mode = %q, want rule", cfg.Mode)
	}
}

func TestGetProxies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"proxies":{
			"GLOBAL":{"name":"GLOBAL","type":"Selector","now":"Proxy","all":["DIRECT","Proxy"]},
			"Proxy":{"name":"Proxy","type":"Selector","now":"HK-01","all":["HK-01"]},
			"HK-01":{"name":"HK-01","type":"Shadowsocks"}
		}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", newTestLogger())
	proxies, err := client.GetProxies(context.Background())
	if err != nil {
		t.Fatalf("GetProxies failed: %v", err)
	}
	if len(proxies) != 3 {
		t.Fatalf("expected 3 proxies, got %d", len(proxies))
	}
	if proxies["GLOBAL"].Now != "Proxy" {
		t.Errorf("GLOBAL.Now = %q", proxies["GLOBAL"].Now)
	}
	if proxies["HK-01"].Now != "" {
		t.Errorf("leaf node should have empty Now, got %q", proxies["HK-01"].Now)
	}
}

func TestGetProxies_EmptyDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", newTestLogger())
	proxies, err := client.GetProxies(context.Background())
	if err != nil {
		t.Fatalf("GetProxies failed: %v", err)
	}
	if proxies == nil || len(proxies) != 0 {
		t.Errorf("expected empty non-nil map, got %v", proxies)
	}
}

// TestRetryOn5xx verifies one retry after a server error.
func TestRetryOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"uploadTotal":1,"downloadTotal":2}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", newTestLogger())
	if _, err := client.GetConnections(context.Background()); err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

// TestNoRetryOn4xx verifies a client error fails immediately.
func TestNoRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "wrong", newTestLogger())
	if _, err := client.GetConnections(context.Background()); err == nil {
		t.Fatal("expected error on 401")
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestPersistent5xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", newTestLogger())
	if _, err := client.GetProxies(context.Background()); err == nil {
		t.Fatal("expected error after retries")
	}
}

func TestMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"uploadTotal":`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", newTestLogger())
	if _, err := client.GetConnections(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRetryHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(srv.URL, "", newTestLogger())
	start := time.Now()
	if _, err := client.GetConnections(ctx); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if time.Since(start) > time.Second {
		t.Error("cancelled request should return promptly")
	}
}

// TestOpenTraffic verifies the stream is delivered line by line.
func TestOpenTraffic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/traffic" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		flusher := w.(http.Flusher)
		for i := 1; i <= 3; i++ {
			fmt.Fprintf(w, "{\"up\":%d,\"down\":%d}\n", i, i*10)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", newTestLogger())
	body, err := client.OpenTraffic(context.Background())
	if err != nil {
		t.Fatalf("OpenTraffic failed: %v", err)
	}
	defer body.Close()

	scanner := bufio.NewScanner(body)
	lines := 0
	for scanner.Scan() {
		lines++
	}
	if lines != 3 {
		t.Errorf("expected 3 lines, got %d", lines)
	}
}

func TestOpenTraffic_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", newTestLogger())
	if _, err := client.OpenTraffic(context.Background()); err == nil {
		t.Fatal("expected error for 403")
	}
}
