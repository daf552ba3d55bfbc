package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
)

func TestPipeline_Counters(t *testing.T) {
	p := NewPipeline()

	p.AttemptStarted()
	p.AttemptStarted()
	p.StepFinished("mint", "ok", 150*time.Millisecond)
	p.StepFinished("mint", "retry", time.Second)
	p.UploadServed(true)
	p.UploadServed(false)
	p.UploadServed(false)
	p.MintFinished(mintdom.ResultMinted)

	if got := testutil.ToFloat64(p.attempts); got != 2 {
		t.Errorf("attempts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(p.steps.WithLabelValues("mint", "retry")); got != 1 {
		t.Errorf("step retry = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.uploads.WithLabelValues("miss")); got != 2 {
		t.Errorf("uploads miss = %v, want 2", got)
	}
	if got := testutil.ToFloat64(p.results.WithLabelValues("minted")); got != 1 {
		t.Errorf("results minted = %v, want 1", got)
	}

	p.HTTPPanics().Inc()
	if got := testutil.ToFloat64(p.httpPanics); got != 1 {
		t.Errorf("http panics = %v, want 1", got)
	}
}

func TestPipeline_Handler(t *testing.T) {
	p := NewPipeline()
	p.MintFinished(mintdom.ResultFailed)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `champion_mint_results_total{status="failed"} 1`) {
		t.Errorf("exposition missing result counter:\n%s", body)
	}
}
