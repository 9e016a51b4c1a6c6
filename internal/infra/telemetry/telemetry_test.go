package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAuthMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewAuthMetrics(reg)
	if err != nil {
		t.Fatalf("NewAuthMetrics: %v", err)
	}

	metrics.ObserveLogin("success")
	metrics.ObserveLogin("success")
	metrics.ObserveLogin("bad_credentials")
	metrics.ObserveTokenIssued("access")
	metrics.ObserveVerification("expired")
	metrics.ObserveMailDispatch("dropped")

	if got := testutil.ToFloat64(metrics.logins.WithLabelValues("success")); got != 2 {
		t.Fatalf("expected 2 successful logins, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.logins.WithLabelValues("bad_credentials")); got != 1 {
		t.Fatalf("expected 1 failed login, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.tokensIssued.WithLabelValues("access")); got != 1 {
		t.Fatalf("expected 1 access token, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.verifications.WithLabelValues("expired")); got != 1 {
		t.Fatalf("expected 1 expired verification, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.mailDispatch.WithLabelValues("dropped")); got != 1 {
		t.Fatalf("expected 1 dropped mail, got %v", got)
	}
}

func TestNewAuthMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewAuthMetrics(reg)
	if err != nil {
		t.Fatalf("first NewAuthMetrics: %v", err)
	}
	second, err := NewAuthMetrics(reg)
	if err != nil {
		t.Fatalf("second NewAuthMetrics: %v", err)
	}

	first.ObserveLogin("success")
	second.ObserveLogin("success")

	if got := testutil.ToFloat64(first.logins.WithLabelValues("success")); got != 2 {
		t.Fatalf("expected shared counter value 2, got %v", got)
	}
}
