package uvcstream

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	d := NewListenerDispatcher(nil, m)
	d.Bind(&mockPublisher{})

	d.Dispatch(testRawFrame(4, 4))
	d.Dispatch(testRawFrame(4, 4))
	d.Unbind(d.token)
	d.Dispatch(testRawFrame(4, 4)) // No consumer: dropped

	if got := testutil.ToFloat64(m.framesDelivered); got != 2 {
		t.Errorf("frames_delivered = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.framesDropped); got != 1 {
		t.Errorf("frames_dropped = %v, want 1", got)
	}

	m.setSessionState(SessionActive)
	if got := testutil.ToFloat64(m.sessionState); got != float64(SessionActive) {
		t.Errorf("session_state = %v, want %v", got, float64(SessionActive))
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.frameDelivered()
	m.frameDropped()
	m.conversionError()
	m.setSessionState(SessionIdle)
}

func TestMetricsDoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewMetrics(reg); err != nil {
		t.Fatal(err)
	}
	if _, err := NewMetrics(reg); err == nil {
		t.Error("second registration on the same registry should fail")
	}
}
