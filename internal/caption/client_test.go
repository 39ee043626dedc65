package caption

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func writeTestImage(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cat.png")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write test image: %v", err)
	}
	return path
}

func newCaptionServer(t *testing.T, status int, body string, calls *atomic.Int32, received *[]byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("expected bearer authorization header, got %q", got)
		}
		data, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read request body: %v", err)
		}
		if received != nil {
			*received = data
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_Caption(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected string
	}{
		{"list response", http.StatusOK, `[{"generated_text": "a cat on a sofa"}]`, "a cat on a sofa"},
		{"object response", http.StatusOK, `{"generated_text": "a dog running"}`, "a dog running"},
		{"empty object", http.StatusOK, `{}`, FallbackUnable},
		{"empty list", http.StatusOK, `[]`, FallbackUnable},
		{"non-json body", http.StatusOK, `definitely not json`, FallbackError},
		{"service unavailable", http.StatusServiceUnavailable, `{"error": "Model is currently loading"}`, FallbackError},
		{"unauthorized", http.StatusUnauthorized, `{"error": "Invalid credentials"}`, FallbackError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			var received []byte
			server := newCaptionServer(t, tt.status, tt.body, &calls, &received)

			image := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x01}
			client := NewClient(server.URL, "test-token", 0)

			got := client.Caption(context.Background(), writeTestImage(t, image))
			if got != tt.expected {
				t.Errorf("expected caption %q, got %q", tt.expected, got)
			}
			if calls.Load() != 1 {
				t.Errorf("expected exactly one request, got %d", calls.Load())
			}
			if !bytes.Equal(received, image) {
				t.Errorf("expected raw image bytes as request body")
			}
		})
	}
}

func TestClient_Caption_MissingFile(t *testing.T) {
	var calls atomic.Int32
	server := newCaptionServer(t, http.StatusOK, `[{"generated_text": "never"}]`, &calls, nil)
	client := NewClient(server.URL, "test-token", 0)

	got := client.Caption(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	if got != FallbackError {
		t.Errorf("expected %q, got %q", FallbackError, got)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no request for an unreadable file, got %d", calls.Load())
	}
}

func TestClient_Caption_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(url, "test-token", 0)
	got := client.Caption(context.Background(), writeTestImage(t, []byte("img")))
	if got != FallbackError {
		t.Errorf("expected %q, got %q", FallbackError, got)
	}
}

func TestClient_Generate_StatusError(t *testing.T) {
	server := newCaptionServer(t, http.StatusServiceUnavailable, `{"error": "loading"}`, nil, nil)
	client := NewClient(server.URL, "test-token", 0)

	_, err := client.Generate(context.Background(), []byte("img"))
	if err == nil {
		t.Fatal("expected error for 503 response, got nil")
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status error 503, got %v", err)
	}
}

func TestClient_Generate_WithoutToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Values("Authorization"); len(got) != 1 || strings.TrimSpace(got[0]) != "Bearer" {
			t.Errorf("expected empty bearer authorization header, got %q", got)
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 0)
	_, err := client.Generate(context.Background(), []byte("img"))
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status error 401, got %v", err)
	}
	if got := client.Caption(context.Background(), writeTestImage(t, []byte("img"))); got != FallbackError {
		t.Errorf("expected %q for unauthorized request, got %q", FallbackError, got)
	}
}
