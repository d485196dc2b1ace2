package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetricFamily はレジストリから指定名のメトリクスファミリーを取得する。
func findMetricFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mf := findMetricFamily(t, reg, name)
	if len(mf.GetMetric()) != 1 {
		t.Fatalf("expected 1 metric for %s, got %d", name, len(mf.GetMetric()))
	}
	return mf.GetMetric()[0].GetCounter().GetValue()
}

func labeledCounterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	mf := findMetricFamily(t, reg, name)
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label && lp.GetValue() == value {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("%s{%s=%q} not found", name, label, value)
	return 0
}

func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func TestRecordFetchSuccessAndFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchSuccess()
	c.RecordFetchSuccess()
	c.RecordFetchFailure("upstream")

	if v := counterValue(t, reg, "sheetdash_sheet_fetch_success_total"); v != 2 {
		t.Errorf("fetch_success_total = %v, want 2", v)
	}
	if v := labeledCounterValue(t, reg, "sheetdash_sheet_fetch_fail_total", "reason", "upstream"); v != 1 {
		t.Errorf("fetch_fail_total{reason=upstream} = %v, want 1", v)
	}
}

func TestRecordCacheHitsAndMisses(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCacheHit()
	c.RecordCacheHit()
	c.RecordCacheHit()
	c.RecordCacheMiss()

	if v := counterValue(t, reg, "sheetdash_cache_hits_total"); v != 3 {
		t.Errorf("cache_hits_total = %v, want 3", v)
	}
	if v := counterValue(t, reg, "sheetdash_cache_misses_total"); v != 1 {
		t.Errorf("cache_misses_total = %v, want 1", v)
	}
}

func TestRecordAuthFailure_ByReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthFailure("invalid_token")
	c.RecordAuthFailure("session_expired_or_revoked")
	c.RecordAuthFailure("session_expired_or_revoked")

	if v := labeledCounterValue(t, reg, "sheetdash_auth_failures_total", "reason", "invalid_token"); v != 1 {
		t.Errorf("invalid_token = %v, want 1", v)
	}
	if v := labeledCounterValue(t, reg, "sheetdash_auth_failures_total", "reason", "session_expired_or_revoked"); v != 2 {
		t.Errorf("session_expired_or_revoked = %v, want 2", v)
	}
}

func TestRecordSweeps_AddCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionsSwept(5)
	c.RecordSessionsSwept(0)
	c.RecordCacheEntriesSwept(3)
	c.RecordSnapshotWriteFailure()

	if v := counterValue(t, reg, "sheetdash_sessions_swept_total"); v != 5 {
		t.Errorf("sessions_swept_total = %v, want 5", v)
	}
	if v := counterValue(t, reg, "sheetdash_cache_entries_swept_total"); v != 3 {
		t.Errorf("cache_entries_swept_total = %v, want 3", v)
	}
	if v := counterValue(t, reg, "sheetdash_snapshot_write_fail_total"); v != 1 {
		t.Errorf("snapshot_write_fail_total = %v, want 1", v)
	}
}

func TestRecordFetchLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchLatency(250 * time.Millisecond)
	c.RecordFetchLatency(time.Second)

	mf := findMetricFamily(t, reg, "sheetdash_sheet_fetch_latency_seconds")
	h := mf.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample count = %d, want 2", h.GetSampleCount())
	}
	if h.GetSampleSum() != 1.25 {
		t.Errorf("sample sum = %v, want 1.25", h.GetSampleSum())
	}
}

func TestRecordHTTPStatus_ByCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(401)

	if v := labeledCounterValue(t, reg, "sheetdash_http_status_total", "status_code", "200"); v != 2 {
		t.Errorf("status 200 = %v, want 2", v)
	}
	if v := labeledCounterValue(t, reg, "sheetdash_http_status_total", "status_code", "401"); v != 1 {
		t.Errorf("status 401 = %v, want 1", v)
	}
}

func TestOrNop(t *testing.T) {
	if _, ok := OrNop(nil).(Nop); !ok {
		t.Error("OrNop(nil) should return Nop")
	}
	c := NewCollector(prometheus.NewRegistry())
	if OrNop(c) != MetricsCollector(c) {
		t.Error("OrNop should return the given collector")
	}
}
