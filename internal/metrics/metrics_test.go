package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// gatherCounterValue は指定メトリクスの最初のカウンタ値を返す。
func gatherCounterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("%s metric not found", name)
	return 0
}

func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordRunCompleted_IncrementsCounterAndHistogram は完走カウンタと所要時間ヒストグラムが記録されることを検証する。
func TestRecordRunCompleted_IncrementsCounterAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRunCompleted(100 * time.Millisecond)
	c.RecordRunCompleted(2 * time.Second)

	if val := gatherCounterValue(t, reg, "patchvote_ingest_runs_completed_total"); val != 2 {
		t.Errorf("ingest_runs_completed_total = %v, want 2", val)
	}

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	found := false
	for _, mf := range metrics {
		if mf.GetName() == "patchvote_ingest_run_duration_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は0.1 + 2.0 = 2.1秒
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("patchvote_ingest_run_duration_seconds metric not found")
	}
}

// TestRecordRunFailed_IncrementsCounterWithCode はコードラベル付きの失敗カウンタが増加することを検証する。
func TestRecordRunFailed_IncrementsCounterWithCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRunFailed("SOURCE_UNAVAILABLE")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	found := false
	for _, mf := range metrics {
		if mf.GetName() == "patchvote_ingest_runs_failed_total" {
			found = true
			m := mf.GetMetric()[0]
			if m.GetLabel()[0].GetValue() != "SOURCE_UNAVAILABLE" {
				t.Errorf("code label = %s, want SOURCE_UNAVAILABLE", m.GetLabel()[0].GetValue())
			}
			if m.GetCounter().GetValue() != 1 {
				t.Errorf("ingest_runs_failed_total = %v, want 1", m.GetCounter().GetValue())
			}
		}
	}
	if !found {
		t.Error("patchvote_ingest_runs_failed_total metric not found")
	}
}

// TestRecordOutcome_CountsPerOutcome はUPSERT結果別のカウンタが増加することを検証する。
func TestRecordOutcome_CountsPerOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordOutcome("created")
	c.RecordOutcome("created")
	c.RecordOutcome("unchanged")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == "patchvote_patch_upserts_total" {
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "created":
					if val != 2 {
						t.Errorf("upserts_total{outcome=created} = %v, want 2", val)
					}
				case "unchanged":
					if val != 1 {
						t.Errorf("upserts_total{outcome=unchanged} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	found := false
	for _, mf := range metrics {
		if mf.GetName() == "patchvote_source_http_status_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "200":
					if val != 2 {
						t.Errorf("http_status_total{status_code=200} = %v, want 2", val)
					}
				case "404":
					if val != 1 {
						t.Errorf("http_status_total{status_code=404} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
	if !found {
		t.Error("patchvote_source_http_status_total metric not found")
	}
}

// TestRecordSectionsStored_AddsCount はセクション保存カウンタが件数分増加することを検証する。
func TestRecordSectionsStored_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSectionsStored(10)
	c.RecordSectionsStored(5)

	if val := gatherCounterValue(t, reg, "patchvote_sections_stored_total"); val != 15 {
		t.Errorf("sections_stored_total = %v, want 15", val)
	}
}

// TestRecordPatchNotFound_IncrementsCounter は未発見カウンタが増加することを検証する。
func TestRecordPatchNotFound_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPatchNotFound()

	if val := gatherCounterValue(t, reg, "patchvote_patch_not_found_total"); val != 1 {
		t.Errorf("patch_not_found_total = %v, want 1", val)
	}
}

// TestSetupMetricsRoute_ServesMetrics は/metricsパスでメトリクスが返ることを検証する。
func TestSetupMetricsRoute_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordRunCompleted(time.Second)

	handler := SetupMetricsRoute(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "patchvote_ingest_runs_completed_total") {
		t.Error("response should contain patchvote_ingest_runs_completed_total metric")
	}
}

// TestNopCollector_ImplementsInterface はNopCollectorがインターフェースを満たすことを検証する。
func TestNopCollector_ImplementsInterface(t *testing.T) {
	var c MetricsCollector = NopCollector{}
	c.RecordRunCompleted(time.Second)
	c.RecordRunFailed("SOURCE_UNAVAILABLE")
	c.RecordOutcome("created")
	c.RecordItemFailure("PARSE_FAILED")
	c.RecordPatchNotFound()
	c.RecordHTTPStatus(200)
	c.RecordSectionsStored(3)
}
