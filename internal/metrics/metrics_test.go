package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.Observe("add_expense", "ok", 5*time.Millisecond)
	r.Observe("add_expense", "ok", 7*time.Millisecond)
	r.Observe("add_expense", "NOT_AUTHORIZED", time.Millisecond)
	r.Email(false)

	if got := testutil.ToFloat64(r.calls.WithLabelValues("add_expense", "ok")); got != 2 {
		t.Fatalf("expected 2 ok calls, got %v", got)
	}
	if got := testutil.ToFloat64(r.calls.WithLabelValues("add_expense", "NOT_AUTHORIZED")); got != 1 {
		t.Fatalf("expected 1 rejected call, got %v", got)
	}
	if got := testutil.ToFloat64(r.emails.WithLabelValues("failed")); got != 1 {
		t.Fatalf("expected 1 failed email, got %v", got)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.Observe("x", "ok", time.Second)
	r.Email(true)
}
