package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"zerostack-chat/internal/config"
	"zerostack-chat/internal/identity"
	"zerostack-chat/internal/logging"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(r *http.Request, status int, body string) *http.Response {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    r,
	}
}

func readBody(t *testing.T, r *http.Request) string {
	t.Helper()
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("read request body: %v", err)
	}
	return string(data)
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	raw := readBody(t, r)
	if raw == "" {
		return nil
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		t.Fatalf("decode request body %q: %v", raw, err)
	}
	return body
}

func testLogger() *logging.Logger {
	logger := logging.New(false)
	logger.SetTerminalOutputEnabled(false)
	return logger
}

func newTestClient(session identity.Session, fn roundTripFunc) *ZeroStackClient {
	return New(
		&http.Client{Transport: fn},
		"zs_test",
		config.APIEndpoints{APIURL: "https://example.test/api"},
		identity.NewResolver(session),
		testLogger(),
	)
}

func TestExecute_SetsHeadersAndUnwrapsEnvelope(t *testing.T) {
	c := newTestClient(identity.Session{}, func(r *http.Request) (*http.Response, error) {
		if got := r.URL.String(); got != "https://example.test/api/data/rooms?limit=5" {
			t.Fatalf("url = %q", got)
		}
		if got := r.Header.Get("x-api-key"); got != "zs_test" {
			t.Fatalf("x-api-key = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Fatalf("Content-Type = %q", got)
		}
		if r.Header.Get("Authorization") != "" || r.Header.Get("x-guest-id") != "" {
			t.Fatalf("unexpected credential headers: %v", r.Header)
		}
		return jsonResponse(r, http.StatusOK, `{"success":true,"data":{"ok":1}}`), nil
	})

	data, err := c.Execute(context.Background(), http.MethodGet, "/data/rooms?limit=5", nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if string(data) != `{"ok":1}` {
		t.Fatalf("Execute() data = %s", data)
	}
}

func TestExecute_SuccessFalseIsProtocolError(t *testing.T) {
	c := newTestClient(identity.Session{}, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(r, http.StatusBadRequest, `{"success":false,"error":"bad input"}`), nil
	})

	_, err := c.Execute(context.Background(), http.MethodPost, "/data/messages", map[string]any{"data": 1})
	if err == nil {
		t.Fatalf("Execute() expected error")
	}
	if err.Error() != "bad input" {
		t.Fatalf("error message = %q, want %q", err.Error(), "bad input")
	}
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) || protoErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("error = %#v, want *ProtocolError with status 400", err)
	}
}

func TestExecute_SuccessFalseIgnoresOKStatus(t *testing.T) {
	c := newTestClient(identity.Session{}, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(r, http.StatusOK, `{"success":false}`), nil
	})
	_, err := c.Execute(context.Background(), http.MethodGet, "/data/rooms", nil)
	if err == nil || err.Error() != "Request failed" {
		t.Fatalf("Execute() error = %v, want default failure message", err)
	}
}

func TestExecute_MalformedBodyIsProtocolError(t *testing.T) {
	c := newTestClient(identity.Session{}, func(r *http.Request) (*http.Response, error) {
		resp := jsonResponse(r, http.StatusBadGateway, `<html>bad gateway</html>`)
		resp.Header.Set("Content-Type", "text/html")
		return resp, nil
	})
	_, err := c.Execute(context.Background(), http.MethodGet, "/data/rooms", nil)
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("error = %T %v, want *ProtocolError", err, err)
	}
	var syntaxErr *json.SyntaxError
	if protoErr.StatusCode != http.StatusBadGateway || !errors.As(err, &syntaxErr) {
		t.Fatalf("protocol error = %#v, want 502 wrapping json syntax error", protoErr)
	}
}

func TestExecute_TransportFailureIsNetworkError(t *testing.T) {
	dialErr := errors.New("connection refused")
	c := newTestClient(identity.Session{}, func(r *http.Request) (*http.Response, error) {
		return nil, dialErr
	})
	_, err := c.Execute(context.Background(), http.MethodGet, "/data/rooms", nil)
	if !IsNetwork(err) {
		t.Fatalf("error = %T %v, want *NetworkError", err, err)
	}
	if !errors.Is(err, dialErr) {
		t.Fatalf("NetworkError does not wrap cause: %v", err)
	}
	if IsUnauthorized(err) {
		t.Fatalf("network error reported as unauthorized")
	}
}

func TestExecute_TokenBeatsGuestID(t *testing.T) {
	c := newTestClient(identity.Session{Token: "tok", GuestID: "guest_abc"}, func(r *http.Request) (*http.Response, error) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Fatalf("Authorization = %q", got)
		}
		if _, ok := r.Header["X-Guest-Id"]; ok {
			t.Fatalf("x-guest-id sent alongside token: %v", r.Header)
		}
		return jsonResponse(r, http.StatusOK, `{"success":true,"data":[]}`), nil
	})
	if _, err := c.List(context.Background(), "messages", ListOptions{}); err != nil {
		t.Fatalf("List() error = %v", err)
	}
}

func TestIsUnauthorized(t *testing.T) {
	if !IsUnauthorized(&ProtocolError{StatusCode: http.StatusUnauthorized, Message: "expired"}) {
		t.Fatalf("IsUnauthorized(401) = false")
	}
	if IsUnauthorized(&ProtocolError{StatusCode: http.StatusBadRequest}) {
		t.Fatalf("IsUnauthorized(400) = true")
	}
}
