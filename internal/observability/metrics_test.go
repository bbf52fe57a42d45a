package observability

import (
	"testing"
	"time"

	"github.com/danmuck/rovlink/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("robot-a", "GET", "/health", 200, 12*time.Millisecond)
	RecordPacket("robot-a", "in", "store_update")
	RecordLinkError("robot-a", ErrKindDecode)
	RecordConnectionEvent("robot-a", "connected")
	ObserveRTT("robot-a", 4*time.Millisecond)
	RecordStoreUpdate("robot-a", "shared")

	if got := testutil.ToFloat64(linkErrors.WithLabelValues("robot-a", ErrKindDecode)); got < 1 {
		t.Fatalf("expected decode errors >= 1, got %v", got)
	}
	if got := testutil.ToFloat64(linkConnections.WithLabelValues("robot-a", "connected")); got < 1 {
		t.Fatalf("expected connected events >= 1, got %v", got)
	}
}
