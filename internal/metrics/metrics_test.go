package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordObservation(t *testing.T) {
	before := testutil.ToFloat64(ObservationsTotal.WithLabelValues("cam-test", "accepted"))
	RecordObservation("cam-test", "accepted")
	RecordObservation("cam-test", "accepted")
	after := testutil.ToFloat64(ObservationsTotal.WithLabelValues("cam-test", "accepted"))
	if after-before != 2 {
		t.Fatalf("expected counter to grow by 2, got %v", after-before)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	RecordAPIRequest(http.MethodGet, "/api/v1/stats", http.StatusOK, 15*time.Millisecond)
	got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/stats", "200"))
	if got < 1 {
		t.Fatalf("expected request to be counted, got %v", got)
	}
}
