package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesRecordedMetrics(t *testing.T) {
	UpdateWhalesTracked(3)
	RecordFillsStreamed(7)
	UpdateCopierSessions(2, 15, 1)
	RecordBacktestRun("success", 0.25)
	RecordTradesSimulated(40)
	RecordPricePointsWritten(1440)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := string(body)

	expected := []string{
		`whale_copy_lab_ingestion_whales_tracked 3`,
		`whale_copy_lab_ingestion_fills_streamed_total 7`,
		`whale_copy_lab_copier_sessions_active 2`,
		`whale_copy_lab_copier_session_fills_copied 15`,
		`whale_copy_lab_copier_session_errors 1`,
		`whale_copy_lab_backtest_runs_total{status="success"} 1`,
		`whale_copy_lab_backtest_trades_simulated_total 40`,
		`whale_copy_lab_pricefeed_points_written_total 1440`,
	}
	for _, want := range expected {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
