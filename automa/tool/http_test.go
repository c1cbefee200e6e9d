package tool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPTool_Name(t *testing.T) {
	h := NewHTTPTool()
	if h.Name() != "http_request" {
		t.Fatalf("expected http_request, got %q", h.Name())
	}
}

func TestHTTPTool_GetReturnsStatusHeadersAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	h := NewHTTPTool()
	out, err := h.Call(context.Background(), map[string]interface{}{"url": srv.URL})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out["status_code"] != http.StatusOK {
		t.Fatalf("expected status 200, got %v", out["status_code"])
	}
	if out["body"] != "hello" {
		t.Fatalf("expected body %q, got %v", "hello", out["body"])
	}
	headers, ok := out["headers"].(map[string]interface{})
	if !ok || headers["X-Test"] != "yes" {
		t.Fatalf("expected X-Test header to round-trip, got %+v", out["headers"])
	}
}

func TestHTTPTool_PostSendsBodyAndHeaders(t *testing.T) {
	var gotMethod, gotBody, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Get("X-Custom")
		buf := make([]byte, 64)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	h := NewHTTPTool()
	out, err := h.Call(context.Background(), map[string]interface{}{
		"url":     srv.URL,
		"method":  "post",
		"body":    "payload",
		"headers": map[string]interface{}{"X-Custom": "abc"},
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("expected POST, got %q", gotMethod)
	}
	if gotBody != "payload" {
		t.Fatalf("expected body payload, got %q", gotBody)
	}
	if gotHeader != "abc" {
		t.Fatalf("expected X-Custom header sent, got %q", gotHeader)
	}
	if out["status_code"] != http.StatusCreated {
		t.Fatalf("expected status 201, got %v", out["status_code"])
	}
}

func TestHTTPTool_MissingURLRejected(t *testing.T) {
	h := NewHTTPTool()
	if _, err := h.Call(context.Background(), map[string]interface{}{}); err == nil {
		t.Fatal("expected an error when url is missing")
	}
}

func TestHTTPTool_UnsupportedMethodRejected(t *testing.T) {
	h := NewHTTPTool()
	if _, err := h.Call(context.Background(), map[string]interface{}{"url": "http://example.com", "method": "DELETE"}); err == nil {
		t.Fatal("expected an error for an unsupported method")
	}
}

func TestHTTPTool_RespectsCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := NewHTTPTool()
	if _, err := h.Call(ctx, map[string]interface{}{"url": srv.URL}); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}
