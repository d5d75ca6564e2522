package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sternrassler/spycheck/internal/testutil"
	"github.com/Sternrassler/spycheck/pkg/cache"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a test Redis client.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid config",
			config: DefaultConfig("TestApp/1.0.0"),
		},
		{
			name: "empty user agent",
			config: Config{
				Endpoint: DefaultEndpoint,
			},
			expectError: true,
			errorMsg:    "user-agent is required",
		},
		{
			name: "missing placeholder",
			config: Config{
				Endpoint:  "https://api.spy.pet/servers/",
				UserAgent: "TestApp/1.0.0",
			},
			expectError: true,
			errorMsg:    `endpoint "https://api.spy.pet/servers/" must contain {id}`,
		},
		{
			name: "unsupported scheme",
			config: Config{
				Endpoint:  "ftp://example.com/{id}",
				UserAgent: "TestApp/1.0.0",
			},
			expectError: true,
			errorMsg:    `endpoint scheme must be http or https (got "ftp")`,
		},
		{
			name: "negative timeout",
			config: Config{
				Endpoint:  DefaultEndpoint,
				UserAgent: "TestApp/1.0.0",
				Timeout:   -time.Second,
			},
			expectError: true,
			errorMsg:    "timeout must be >= 0 (got -1s)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}
			if client == nil {
				t.Error("Client is nil")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("")

	if cfg.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %q, want %q", cfg.UserAgent, DefaultUserAgent)
	}
	if cfg.Endpoint != DefaultEndpoint {
		t.Errorf("Endpoint = %q, want %q", cfg.Endpoint, DefaultEndpoint)
	}
	if cfg.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0 (no per-call timeout)", cfg.Timeout)
	}
	if cfg.Cache != nil {
		t.Error("Cache should be disabled by default")
	}
}

func TestClient_URL(t *testing.T) {
	client, err := New(DefaultConfig("TestApp/1.0.0"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		id   string
		want string
	}{
		{id: "1234567890", want: "https://api.spy.pet/servers/1234567890"},
		{id: "a/b", want: "https://api.spy.pet/servers/a%2Fb"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := client.URL(tt.id); got != tt.want {
				t.Errorf("URL(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		statusCode int
		expected   ErrorClass
	}{
		{200, ""},
		{204, ""},
		{304, ""},
		{403, ErrorClassClient},
		{404, ErrorClassClient},
		{429, ErrorClassClient},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.statusCode); got != tt.expected {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.statusCode, got, tt.expected)
		}
	}
}

func newMockClient(t *testing.T, mock *testutil.MockAPI) *Client {
	t.Helper()

	cfg := DefaultConfig("TestApp/1.0.0 (test@example.com)")
	cfg.Endpoint = mock.Endpoint()
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

func TestLookup_Found(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("42", testutil.NewFoundResponse(`{"name":"Acme"}`))

	client := newMockClient(t, mock)

	resp, err := client.Lookup(context.Background(), "42")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if !resp.Success() {
		t.Errorf("Success() = false, status %d", resp.StatusCode)
	}
	if string(resp.Body) != `{"name":"Acme"}` {
		t.Errorf("Body = %s", resp.Body)
	}
	if resp.FromCache {
		t.Error("FromCache = true without a cache")
	}
	if got := mock.GetLastUserAgent(); got != "TestApp/1.0.0 (test@example.com)" {
		t.Errorf("User-Agent = %q", got)
	}
}

func TestLookup_ErrorStatusIsNotAnError(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("500", testutil.NewServerErrorResponse())

	client := newMockClient(t, mock)

	resp, err := client.Lookup(context.Background(), "500")
	if err != nil {
		t.Fatalf("Lookup() error = %v, want status in response", err)
	}
	if resp.Success() {
		t.Error("Success() = true for 500")
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", resp.StatusCode)
	}
}

func TestLookup_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL + "/servers/{id}"
	server.Close()

	cfg := DefaultConfig("TestApp/1.0.0")
	cfg.Endpoint = endpoint
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = client.Lookup(context.Background(), "1")
	if err == nil {
		t.Fatal("Lookup() against closed server returned nil error")
	}
	if !IsTransport(err) {
		t.Errorf("IsTransport(%v) = false", err)
	}
}

func TestLookup_Timeout(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("slow", testutil.MockResponse{StatusCode: 200, Body: "false", Delay: 200 * time.Millisecond})

	cfg := DefaultConfig("TestApp/1.0.0")
	cfg.Endpoint = mock.Endpoint()
	cfg.Timeout = 20 * time.Millisecond
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := client.Lookup(context.Background(), "slow"); !IsTransport(err) {
		t.Errorf("Lookup() error = %v, want transport error", err)
	}
}

func TestLookup_CacheHit(t *testing.T) {
	redisClient := setupTestRedis(t)

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("42", testutil.NewFoundResponse(`{"name":"Acme"}`))

	cfg := DefaultConfig("TestApp/1.0.0")
	cfg.Endpoint = mock.Endpoint()
	cfg.Cache = cache.NewManager(redisClient)
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	if _, err := client.Lookup(ctx, "42"); err != nil {
		t.Fatalf("first Lookup() error = %v", err)
	}

	resp, err := client.Lookup(ctx, "42")
	if err != nil {
		t.Fatalf("second Lookup() error = %v", err)
	}
	if !resp.FromCache {
		t.Error("second lookup was not served from cache")
	}
	if string(resp.Body) != `{"name":"Acme"}` {
		t.Errorf("cached Body = %s", resp.Body)
	}
	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("server saw %d requests, want 1", got)
	}
}

func TestLookup_ErrorStatusNotCached(t *testing.T) {
	redisClient := setupTestRedis(t)

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("500", testutil.NewServerErrorResponse())

	cfg := DefaultConfig("TestApp/1.0.0")
	cfg.Endpoint = mock.Endpoint()
	cfg.Cache = cache.NewManager(redisClient)
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	client.Lookup(ctx, "500")
	client.Lookup(ctx, "500")

	if got := mock.GetRequestCount(); got != 2 {
		t.Errorf("server saw %d requests, want 2 (errors must not be cached)", got)
	}
}

// roundTripFunc adapts a function to http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestSetHTTPClient(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	client := newMockClient(t, mock)

	errRefused := errors.New("refused by test transport")
	var seenURL string
	client.SetHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		seenURL = req.URL.String()
		return nil, errRefused
	})})

	_, err := client.Lookup(context.Background(), "42")
	if !errors.Is(err, errRefused) {
		t.Fatalf("Lookup() error = %v, want the custom transport's error", err)
	}
	if seenURL != client.URL("42") {
		t.Errorf("transport saw %q, want %q", seenURL, client.URL("42"))
	}
	if got := mock.GetRequestCount(); got != 0 {
		t.Errorf("default transport was used: %d requests reached the mock", got)
	}
}
