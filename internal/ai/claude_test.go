package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClaude_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("x-api-key") != "test-key" {
				t.Errorf("missing x-api-key header")
			}
			if r.Header.Get("anthropic-version") == "" {
				t.Errorf("missing anthropic-version header")
			}

			var req apiRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decoding request: %v", err)
			}
			if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
				t.Errorf("request messages = %+v, want one user message", req.Messages)
			}

			resp := apiResponse{
				Content: []apiContentBlock{
					{Type: "text", Text: "Hello "},
					{Type: "text", Text: "there."},
				},
			}
			_ = json.NewEncoder(w).Encode(resp)
		},
	))
	defer server.Close()

	c := NewClaude("test-key", "test-model", 256)
	c.apiURL = server.URL

	got, err := c.Generate(context.Background(), "say hello")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "Hello there." {
		t.Errorf("Generate() = %q, want concatenated text blocks", got)
	}
}

func TestClaude_GenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(
				`{"error": {"type": "rate_limit_error", "message": "slow down"}}`,
			))
		},
	))
	defer server.Close()

	c := NewClaude("test-key", "", 0)
	c.apiURL = server.URL

	_, err := c.Generate(context.Background(), "hi")
	if err == nil {
		t.Fatal("Generate() succeeded despite API error")
	}
	if !strings.Contains(err.Error(), "slow down") {
		t.Errorf("error %v missing API error message", err)
	}
}
