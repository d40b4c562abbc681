package carriers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/carrier-integration/internal/domain/carrier"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []RequestLog
}

func (s *recordingSink) Record(entry RequestLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *recordingSink) all() []RequestLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RequestLog(nil), s.entries...)
}

func TestTransport_AuthHeaders(t *testing.T) {
	tests := []struct {
		name   string
		cfg    carrier.Config
		header string
		want   string
	}{
		{
			name:   "bearer wins over everything",
			cfg:    carrier.Config{AccessToken: "tok", APIKey: "key", ClientID: "id", ClientSecret: "secret"},
			header: "Authorization",
			want:   "Bearer tok",
		},
		{
			name:   "api key when no token",
			cfg:    carrier.Config{APIKey: "key", ClientID: "id", ClientSecret: "secret"},
			header: "X-API-Key",
			want:   "key",
		},
		{
			name:   "basic from client credentials",
			cfg:    carrier.Config{ClientID: "id", ClientSecret: "secret"},
			header: "Authorization",
			want:   "Basic aWQ6c2VjcmV0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTransport("test", nil, nil)
			tr.Configure(&tt.cfg, "https://example.test")
			assert.Equal(t, tt.want, tr.AuthHeaders().Get(tt.header))
		})
	}

	t.Run("no credentials", func(t *testing.T) {
		tr := NewTransport("test", nil, nil)
		tr.Configure(&carrier.Config{}, "https://example.test")
		assert.Empty(t, tr.AuthHeaders())
	})
}

func TestTransport_ConfigureEndpoint(t *testing.T) {
	tr := NewTransport("test", nil, nil)
	tr.Configure(&carrier.Config{}, "https://default.test/v2/")
	assert.Equal(t, "https://default.test/v2", tr.BaseURL())

	tr.Configure(&carrier.Config{APIEndpoint: "https://override.test"}, "https://default.test/v2")
	assert.Equal(t, "https://override.test", tr.BaseURL())
}

func TestTransport_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		code      string
		message   string
		retryable bool
	}{
		{"server error", http.StatusInternalServerError, `{"message":"boom"}`, "HTTP_500", "boom", true},
		{"bad gateway", http.StatusBadGateway, ``, "HTTP_502", "Bad Gateway", true},
		{"rate limited", http.StatusTooManyRequests, `{"error":"slow down"}`, "HTTP_429", "slow down", true},
		{"not found", http.StatusNotFound, `{"message":"no such claim"}`, "HTTP_404", "no such claim", false},
		{"unauthorized", http.StatusUnauthorized, `not json`, "HTTP_401", "not json", false},
		{"unprocessable", http.StatusUnprocessableEntity, `{"message":"policy inactive"}`, carrier.CodeValidation, "policy inactive", false},
		{"validation code in body", http.StatusBadRequest, `{"code":"VALIDATION_ERROR","message":"zip required"}`, carrier.CodeValidation, "zip required", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			sink := &recordingSink{}
			tr := NewTransport("test", srv.Client(), sink)
			tr.Configure(&carrier.Config{}, srv.URL)

			err := tr.Do(context.Background(), http.MethodGet, "/claims/1", nil, nil)
			require.Error(t, err)

			var cerr *carrier.Error
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.code, cerr.Code)
			assert.Equal(t, tt.message, cerr.Message)
			assert.Equal(t, tt.status, cerr.StatusCode)
			assert.Equal(t, tt.retryable, cerr.Retryable)

			entries := sink.all()
			require.Len(t, entries, 1)
			assert.False(t, entries[0].Success)
			assert.Equal(t, tt.status, entries[0].StatusCode)
			assert.Equal(t, "/claims/1", entries[0].Path)
		})
	}
}

func TestTransport_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	sink := &recordingSink{}
	tr := NewTransport("test", nil, sink)
	tr.Configure(&carrier.Config{}, endpoint)

	err := tr.Do(context.Background(), http.MethodGet, "/health", nil, nil)
	require.Error(t, err)
	assert.Equal(t, carrier.CodeNetwork, carrier.CodeOf(err))
	assert.True(t, carrier.IsRetryable(err))

	entries := sink.all()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Success)
	assert.Zero(t, entries[0].StatusCode)
}

func TestTransport_DoDecodesJSON(t *testing.T) {
	var gotAuth, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"claimId":"abc"}`))
	}))
	defer srv.Close()

	sink := &recordingSink{}
	tr := NewTransport("test", srv.Client(), sink)
	tr.Configure(&carrier.Config{AccessToken: "tok"}, srv.URL)

	var out struct {
		ClaimID string `json:"claimId"`
	}
	err := tr.Do(context.Background(), http.MethodPost, "/claims", map[string]string{"a": "b"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "abc", out.ClaimID)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "application/json", gotContentType)

	entries := sink.all()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Success)
	assert.Equal(t, http.StatusOK, entries[0].StatusCode)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   interface{}
		want *float64
	}{
		{nil, nil},
		{1500.5, floatPtr(1500.5)},
		{"$1,234.56", floatPtr(1234.56)},
		{"  800 ", floatPtr(800)},
		{"USD 42", floatPtr(42)},
		{"", nil},
		{"n/a", nil},
		{true, nil},
	}

	for _, tt := range tests {
		got := ParseAmount(tt.in)
		if tt.want == nil {
			assert.Nil(t, got, "input %v", tt.in)
			continue
		}
		require.NotNil(t, got, "input %v", tt.in)
		assert.InDelta(t, *tt.want, *got, 0.0001)
	}
}

func TestSanitizePhone(t *testing.T) {
	assert.Equal(t, "5125550142", SanitizePhone("(512) 555-0142"))
	assert.Equal(t, "15125550142", SanitizePhone("+1 512.555.0142"))
	assert.Equal(t, "", SanitizePhone("n/a"))
}

func TestVerifyHMACSHA256(t *testing.T) {
	payload := []byte(`{"eventType":"CLAIM_APPROVED"}`)
	sig := SignHMACSHA256("s3cret", payload)

	assert.True(t, VerifyHMACSHA256("s3cret", payload, sig))
	assert.True(t, VerifyHMACSHA256("s3cret", payload, "sha256="+sig))
	assert.False(t, VerifyHMACSHA256("other", payload, sig))
	assert.False(t, VerifyHMACSHA256("s3cret", []byte(`{}`), sig))
	assert.False(t, VerifyHMACSHA256("s3cret", payload, "zz-not-hex"))
	assert.False(t, VerifyHMACSHA256("", payload, sig))
	assert.False(t, VerifyHMACSHA256("s3cret", payload, ""))
}
