package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/matzehuels/provgraph/pkg/observability"
)

func TestHooksRecord(t *testing.T) {
	m := New()
	m.Install()
	t.Cleanup(observability.Reset)

	sig := observability.Signatures()
	sig.OnCompute("module", time.Millisecond)
	sig.OnCompute("module", time.Millisecond)
	sig.OnHit("subpipeline")
	sig.OnPurge("connection", 3)

	ctx := context.Background()
	observability.Cache().OnCacheMiss(ctx, "result")
	observability.Cache().OnCacheSet(ctx, "result", 128)
	observability.Cache().OnCacheHit(ctx, "result")

	observability.HTTP().OnRequest(ctx, "GET", "/healthz")
	observability.HTTP().OnResponse(ctx, "GET", "/healthz", 200, time.Millisecond)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"computed", testutil.ToFloat64(m.signaturesComputed.WithLabelValues("module")), 2},
		{"hits", testutil.ToFloat64(m.signatureHits.WithLabelValues("subpipeline")), 1},
		{"purged", testutil.ToFloat64(m.signaturesPurged.WithLabelValues("connection")), 3},
		{"cache hit", testutil.ToFloat64(m.cacheLookups.WithLabelValues("result", "hit")), 1},
		{"cache miss", testutil.ToFloat64(m.cacheLookups.WithLabelValues("result", "miss")), 1},
		{"cache bytes", testutil.ToFloat64(m.cacheBytes.WithLabelValues("result")), 128},
		{"requests", testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/healthz", "200")), 1},
		{"in flight", testutil.ToFloat64(m.httpInFlight), 0},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestHandler(t *testing.T) {
	m := New()
	signatureHooks{m}.OnCompute("subpipeline", time.Microsecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `provgraph_signature_computed_total{layer="subpipeline"} 1`) {
		t.Error("exposition missing signature counter")
	}
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	signatureHooks{a}.OnHit("module")
	if got := testutil.ToFloat64(b.signatureHits.WithLabelValues("module")); got != 0 {
		t.Errorf("second instance saw %v hits", got)
	}
}
