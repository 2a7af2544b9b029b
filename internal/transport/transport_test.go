package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pokedex-chat/console/internal/apierr"
	"github.com/pokedex-chat/console/internal/interfaces"
)

func TestExecuteBuildsJSONRequest(t *testing.T) {
	var seen *http.Request
	var seenBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Clone(context.Background())
		if err := json.NewDecoder(r.Body).Decode(&seenBody); err != nil {
			t.Errorf("Decoding body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	tr, err := New(server.URL)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	header := make(http.Header)
	header.Set("Authorization", "Bearer tok")
	resp, err := tr.Execute(context.Background(), interfaces.RequestDescriptor{
		Method: http.MethodPost,
		Path:   "/api/chat/message",
		Query:  map[string]string{"conversation_id": "3"},
		Body:   map[string]string{"message": "hi"},
		Header: header,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	if seen.URL.Path != "/api/chat/message" {
		t.Errorf("Unexpected path %q", seen.URL.Path)
	}
	if seen.URL.Query().Get("conversation_id") != "3" {
		t.Errorf("Query parameter missing, got %q", seen.URL.RawQuery)
	}
	if seen.Header.Get("Content-Type") != "application/json" {
		t.Errorf("Expected JSON content type, got %q", seen.Header.Get("Content-Type"))
	}
	if seen.Header.Get("Authorization") != "Bearer tok" {
		t.Errorf("Descriptor headers must be forwarded, got %q", seen.Header.Get("Authorization"))
	}
	if seen.Header.Get("X-Session-ID") == "" {
		t.Errorf("Expected a session id header")
	}
	if seenBody["message"] != "hi" {
		t.Errorf("Body not marshaled, got %v", seenBody)
	}
}

func TestExecuteMapsStatusesToErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			body:   `{"detail":"token expired"}`,
			check: func(t *testing.T, err error) {
				if !apierr.IsUnauthorized(err) {
					t.Errorf("Expected a 401 server error, got %v", err)
				}
			},
		},
		{
			name:   "validation",
			status: http.StatusUnprocessableEntity,
			body:   `{"detail":[{"loc":["body","username"],"msg":"field required","type":"value_error.missing"}]}`,
			check: func(t *testing.T, err error) {
				var ve *apierr.ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("Expected ValidationError, got %v", err)
				}
				if len(ve.Fields) != 1 || ve.Fields[0].Field != "username" {
					t.Errorf("Expected the field extracted, got %+v", ve.Fields)
				}
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"detail":"boom"}`,
			check: func(t *testing.T, err error) {
				var se *apierr.ServerError
				if !errors.As(err, &se) || se.StatusCode != http.StatusInternalServerError {
					t.Fatalf("Expected ServerError 500, got %v", err)
				}
				if se.Detail != "boom" {
					t.Errorf("Expected detail extracted, got %q", se.Detail)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			tr, err := New(server.URL)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			_, err = tr.Execute(context.Background(), interfaces.RequestDescriptor{Method: http.MethodGet, Path: "/"})
			if err == nil {
				t.Fatalf("Expected an error for status %d", tc.status)
			}
			tc.check(t, err)
		})
	}
}

func TestExecuteConnectionFailureIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing is listening anymore

	tr, err := New(server.URL)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = tr.Execute(context.Background(), interfaces.RequestDescriptor{Method: http.MethodGet, Path: "/"})

	var netErr *apierr.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Expected NetworkError, got %v", err)
	}
	if netErr.Op != "GET /" {
		t.Errorf("Expected the operation recorded, got %q", netErr.Op)
	}
}

func TestExecuteTimeoutIsFlagged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	tr, err := New(server.URL, WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = tr.Execute(context.Background(), interfaces.RequestDescriptor{Method: http.MethodGet, Path: "/slow"})

	var netErr *apierr.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Expected NetworkError, got %v", err)
	}
	if !netErr.Timeout {
		t.Errorf("Expected the timeout flag set")
	}
}

func TestNewNormalizesBareHostPort(t *testing.T) {
	tr, err := New("localhost:8000")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := tr.baseURL.String(); got != "http://localhost:8000" {
		t.Errorf("Expected scheme prepended, got %q", got)
	}
}

func TestNewRejectsEmptyBaseURL(t *testing.T) {
	if _, err := New("   "); err == nil {
		t.Fatalf("Expected an error for an empty base URL")
	}
}

func TestStatsTrackRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	tr, err := New(server.URL)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for n := 0; n < 3; n++ {
		if _, err := tr.Execute(context.Background(), interfaces.RequestDescriptor{Method: http.MethodGet, Path: "/"}); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
	}

	stats := tr.Stats()
	if stats.TotalRequests != 3 || stats.SuccessfulRequests != 3 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if stats.AverageResponseTime <= 0 {
		t.Errorf("Expected a positive average response time")
	}
}
