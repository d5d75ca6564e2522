// Package testutil provides testing utilities for spycheck.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// ServersPath is the path prefix the mock serves lookups under.
const ServersPath = "/servers/"

// MockResponse defines the behavior for one mocked lookup.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock lookup server.
type MockAPI struct {
	server    *httptest.Server
	mu        sync.RWMutex
	responses map[string]MockResponse
	fallback  MockResponse

	requestCount  int
	active        int
	peakActive    int
	lastUserAgent string
}

// NewMockAPI creates a mock server that answers every identifier with the
// "absent" payload unless configured otherwise.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		responses: make(map[string]MockResponse),
		fallback:  NewAbsentResponse(),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Endpoint returns a lookup endpoint template pointing at the mock.
func (m *MockAPI) Endpoint() string {
	return m.server.URL + ServersPath + "{id}"
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// SetResponse configures the response for one identifier.
func (m *MockAPI) SetResponse(id string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[id] = resp
}

// SetFallback configures the response for identifiers without their own.
func (m *MockAPI) SetFallback(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = resp
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// GetPeakActive returns the highest number of requests served concurrently.
func (m *MockAPI) GetPeakActive() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.peakActive
}

// GetLastUserAgent returns the User-Agent of the most recent request.
func (m *MockAPI) GetLastUserAgent() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUserAgent
}

func (m *MockAPI) handle(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, ServersPath)

	m.mu.Lock()
	m.requestCount++
	m.active++
	if m.active > m.peakActive {
		m.peakActive = m.active
	}
	m.lastUserAgent = r.Header.Get("User-Agent")
	resp, ok := m.responses[id]
	if !ok {
		resp = m.fallback
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active--
		m.mu.Unlock()
	}()

	if !strings.HasPrefix(r.URL.Path, ServersPath) {
		http.NotFound(w, r)
		return
	}

	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewAbsentResponse creates a 200 response with the "absent" payload.
func NewAbsentResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       "false",
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewFoundResponse creates a 200 response carrying payload.
func NewFoundResponse(payload string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       payload,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Expires":      time.Now().Add(5 * time.Minute).Format(http.TimeFormat),
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewMalformedResponse creates a 200 response whose body is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       "<html>maintenance</html>",
		Headers: map[string]string{
			"Content-Type": "text/html",
		},
	}
}
