package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/carrier-integration/internal/domain/carrier"
	"github.com/garyjia/carrier-integration/internal/infrastructure/external/carriers"
)

func TestRoute(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/claims", "/claims"},
		{"/claims/HL-123", "/claims/:id"},
		{"/claims/HL-123/documents", "/claims/:id/documents"},
		{"/claims?claimNumber=HLN-1", "/claims"},
		{"https://auth.example.test/oauth/token", "/oauth/token"},
		{"/claims/abcdefabcdefabcdefabcdefabcdef", "/claims/:id"},
		{"/health", "/health"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Route(tt.in))
		})
	}
}

func TestSink_Record(t *testing.T) {
	ok := CarrierRequests.WithLabelValues("harborline", "GET", "/claims/:id", "200")
	failed := CarrierRequests.WithLabelValues("harborline", "POST", "/claims", "error")
	okBefore := testutil.ToFloat64(ok)
	failedBefore := testutil.ToFloat64(failed)

	var sink carriers.RequestSink = Sink{}
	sink.Record(carriers.RequestLog{Carrier: "harborline", Method: "GET", Path: "/claims/HL-9", Success: true, StatusCode: 200, Duration: 120 * time.Millisecond})
	sink.Record(carriers.RequestLog{Carrier: "harborline", Method: "POST", Path: "/claims", Error: "dial tcp: refused"})

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ok))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
}

func TestRecorder(t *testing.T) {
	okCounter := SyncOutcomes.WithLabelValues("mock", "sync", "ok")
	failCounter := SyncOutcomes.WithLabelValues("mock", "sync", "HTTP_503")
	plainCounter := SyncOutcomes.WithLabelValues("mock", "file", "error")
	intel := IntelRecords.WithLabelValues("mock", "high")

	okBefore := testutil.ToFloat64(okCounter)
	failBefore := testutil.ToFloat64(failCounter)
	plainBefore := testutil.ToFloat64(plainCounter)
	intelBefore := testutil.ToFloat64(intel)

	r := Recorder{}
	r.RecordSync("mock", "sync", nil)
	r.RecordSync("mock", "sync", carrier.NewError(carrier.HTTPErrorCode(503), "unavailable", true))
	r.RecordSync("mock", "file", errors.New("boom"))
	r.RecordIntel("mock", "high")

	assert.Equal(t, okBefore+1, testutil.ToFloat64(okCounter))
	assert.Equal(t, failBefore+1, testutil.ToFloat64(failCounter))
	assert.Equal(t, plainBefore+1, testutil.ToFloat64(plainCounter))
	assert.Equal(t, intelBefore+1, testutil.ToFloat64(intel))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	RegisterDefault()
	RegisterDefault()

	Sink{}.Record(carriers.RequestLog{Carrier: "mock", Method: "GET", Path: "/health", Success: true, StatusCode: 200})

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "carrier_requests_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
