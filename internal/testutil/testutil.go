// Package testutil provides common test utilities and helpers for Yenta tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/carsonraft/yenta/internal/api"
	"github.com/carsonraft/yenta/internal/flow"
	"github.com/carsonraft/yenta/internal/notify"
	"github.com/carsonraft/yenta/internal/scoring"
	"github.com/carsonraft/yenta/internal/store"
)

// TestDeps bundles the mutable collaborators behind a test server so tests
// can seed state and inspect side effects.
type TestDeps struct {
	Store    *store.InMemoryStore
	Scorer   *scoring.MockClient
	Notifier *notify.MockClient
}

// NewTestServer creates a test API server with in-memory dependencies.
// This centralizes the test server creation logic used across multiple test files.
func NewTestServer() (*api.Server, *TestDeps) {
	st := store.NewInMemoryStore()
	scorer := scoring.NewMockClient()
	notifier := notify.NewMockClient()

	qualFlow := flow.NewQualificationFlow(st, flow.NewRuleExtractor(nil))
	gate := flow.NewRoundGate(st, flow.DefaultGateConfig())
	quality := flow.NewDataQualityAnalyzer(nil)

	srv := api.NewServer(st, qualFlow, gate, quality, scorer, notifier)
	return srv, &TestDeps{Store: st, Scorer: scorer, Notifier: notifier}
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
