package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RecordChunkAndStored(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordChunk(true, 0.1, 3000)
	m.RecordChunk(false, 0.2, 1500)
	m.RecordStored(10, 1, 7, 2, 12345)

	if got := testutil.ToFloat64(m.ChunkRequests.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok chunks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ChunkRequests.WithLabelValues("error")); got != 1 {
		t.Errorf("error chunks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ChunkWidth); got != 1500 {
		t.Errorf("chunk width = %v, want 1500", got)
	}
	if got := testutil.ToFloat64(m.EventsStored); got != 7 {
		t.Errorf("stored = %v, want 7", got)
	}
	if got := testutil.ToFloat64(m.LastBlockFetched); got != 12345 {
		t.Errorf("last block = %v, want 12345", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordChunk(true, 1, 1)
	m.RecordStored(1, 1, 1, 1, 1)
	m.RecordTimestampLookup("rpc")
	m.RecordPipelineRun("features", "ok", 1)
	m.RecordFeaturesBuilt(1)
}
