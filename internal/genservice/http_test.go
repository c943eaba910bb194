package genservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/wrench/internal/composer"
	"github.com/kalambet/wrench/internal/vehicle"
)

func testPayload(t *testing.T) composer.Payload {
	t.Helper()
	spec, err := vehicle.Build(map[string]string{
		"year": "2020", "make": "Toyota", "model": "Camry", "service_type": "Oil Change",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return composer.Compose(spec)
}

func wantKind(t *testing.T, err error, kind Kind) *ServiceError {
	t.Helper()
	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v (%T), want *ServiceError", err, err)
	}
	if se.Kind != kind {
		t.Fatalf("kind = %q, want %q (err: %v)", se.Kind, kind, err)
	}
	return se
}

func TestHTTPInvoke_RequestShape(t *testing.T) {
	var got map[string]any
	var auth, path string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"parts":[]}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "sk-test", time.Second)
	raw, err := c.Invoke(context.Background(), testPayload(t))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if string(raw) != `{"parts":[]}` {
		t.Errorf("raw = %s", raw)
	}
	if path != "/invoke" {
		t.Errorf("path = %q, want /invoke", path)
	}
	if auth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", auth)
	}
	for _, key := range []string{"prompt", "add_context_from_internet", "response_json_schema"} {
		if _, ok := got[key]; !ok {
			t.Errorf("request missing %q", key)
		}
	}
	if got["add_context_from_internet"] != true {
		t.Errorf("add_context_from_internet = %v", got["add_context_from_internet"])
	}
}

func TestHTTPInvoke_NoKeyNoAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h := r.Header.Get("Authorization"); h != "" {
			t.Errorf("Authorization = %q, want empty", h)
		}
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	if _, err := NewHTTPClient(srv.URL, "", time.Second).Invoke(context.Background(), testPayload(t)); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
}

func TestHTTPInvoke_Envelope(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bare object", `{"parts":[{"name":"x"}]}`, `{"parts":[{"name":"x"}]}`},
		{"object envelope", `{"response":{"guides":[]}}`, `{"guides":[]}`},
		{"string envelope", `{"response":"{\"parts\":[]}"}`, `{"parts":[]}`},
		{"fenced string envelope", `{"response":"` + "```json\\n{\\\"a\\\":1}\\n```" + `"}`, `{"a":1}`},
		{"top-level string", `"not an object"`, `"not an object"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			raw, err := NewHTTPClient(srv.URL, "k", time.Second).Invoke(context.Background(), testPayload(t))
			if err != nil {
				t.Fatalf("Invoke: %v", err)
			}
			if string(raw) != tt.want {
				t.Errorf("raw = %s, want %s", raw, tt.want)
			}
		})
	}
}

func TestHTTPInvoke_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>oops</html>`)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, "k", time.Second).Invoke(context.Background(), testPayload(t))
	wantKind(t, err, KindMalformed)
}

func TestHTTPInvoke_RejectedNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusTooManyRequests, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				http.Error(w, `{"error":"nope"}`, status)
			}))
			defer srv.Close()

			_, err := NewHTTPClient(srv.URL, "k", time.Second).Invoke(context.Background(), testPayload(t))
			se := wantKind(t, err, KindRejected)
			var re *RejectedError
			if !errors.As(se, &re) || re.Status != status {
				t.Errorf("RejectedError = %+v, want status %d", re, status)
			}
			if se.Retryable() {
				t.Error("rejected error reported retryable")
			}
			if n := calls.Load(); n != 1 {
				t.Errorf("service called %d times, want 1", n)
			}
		})
	}
}

func TestHTTPInvoke_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, "k", 50*time.Millisecond).Invoke(context.Background(), testPayload(t))
	se := wantKind(t, err, KindTimeout)
	if !se.Retryable() {
		t.Error("timeout not reported retryable")
	}
}

func TestHTTPInvoke_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := NewHTTPClient(srv.URL, "k", time.Second).Invoke(context.Background(), testPayload(t))
	wantKind(t, err, KindNetwork)
}
