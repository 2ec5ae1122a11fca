package utils

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func TestCacheFileName(t *testing.T) {
	tests := []struct {
		url, want string
	}{
		{"https://example.com/data/fireTimeSeries.json", "example.com_fireTimeSeries.json"},
		{"https://example.com/data/fire.json?token=abc", "example.com_fire.json"},
		{"http://127.0.0.1:8080/series.json", "127.0.0.1_8080_series.json"},
	}
	for _, tt := range tests {
		if got := CacheFileName(tt.url); got != tt.want {
			t.Errorf("CacheFileName(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestOpenLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.json")
	if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := Open(path, "")
	if err != nil {
		t.Fatalf("Open local: %v", err)
	}
	defer r.Close()
	b, _ := io.ReadAll(r)
	if string(b) != "[]" {
		t.Errorf("read %q, want []", b)
	}
}

func TestOpenRemoteCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.json" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		_, _ = w.Write([]byte(`[{"step":0}]`))
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	for i := 0; i < 2; i++ {
		r, err := Open(srv.URL+"/series.json", cacheDir)
		if err != nil {
			t.Fatalf("Open remote: %v", err)
		}
		b, _ := io.ReadAll(r)
		r.Close()
		if string(b) != `[{"step":0}]` {
			t.Errorf("read %q", b)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("server hit %d times, want 1", hits.Load())
	}

	if _, err := Open(srv.URL+"/missing.json", cacheDir); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing file error = %v, want ErrNotFound", err)
	}
}
