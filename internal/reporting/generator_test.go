package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dex-exec-lab/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func testReport() *domain.BacktestReport {
	return &domain.BacktestReport{
		RunID:           "run-1",
		Pool:            "0xpool",
		TrainFraction:   0.6,
		StaticQuantile:  0.9,
		RollingWindow:   3,
		RollingQuantile: 0.5,
		RowsLoaded:      10,
		RowsCleaned:     8,
		TrainRows:       4,
		EvalRows:        4,
		StaticCap:       4,
		StaticCapSource: "train_quantile",
		StaticFull: domain.PolicyOutcome{
			Policy:   "static",
			Baseline: domain.CostSummary{Name: "baseline", Count: 4, Sum: 0.8},
			Capped:   domain.CostSummary{Name: "static", Count: 4, Sum: 0.5},
		},
		RollingEvaluable: 1,
		RollingCoverage:  0.25,
		StaticDecisions: []domain.SizingDecision{
			{BlockNumber: 5, LogIndex: 0, Z: 8, TradeSize: 2, AdverseSlippage: 0.1, Cap: ptr(4), Scale: ptr(0.5), EffectiveSize: ptr(1), EffectiveCost: ptr(0.1)},
		},
		RollingDecisions: []domain.SizingDecision{
			{BlockNumber: 1, LogIndex: 2, Z: 5, TradeSize: 2, AdverseSlippage: 0.1},
			{BlockNumber: 5, LogIndex: 0, Z: 8, TradeSize: 2, AdverseSlippage: 0.1, Cap: ptr(6), Scale: ptr(0.75), EffectiveSize: ptr(1.5), EffectiveCost: ptr(0.15)},
		},
	}
}

func TestRenderDecisionsCSV(t *testing.T) {
	out := RenderDecisionsCSV("roll", testReport().RollingDecisions)
	lines := strings.Split(strings.TrimSpace(out), "\n")

	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(lines))
	}
	wantHeader := "block_number,log_index,z,trade_size,adverse_slippage,z_cap_roll,scale_roll,size_eff_roll,cost_eff_roll"
	if lines[0] != wantHeader {
		t.Errorf("Header mismatch:\n got %s\nwant %s", lines[0], wantHeader)
	}
	if lines[1] != "1,2,5,2,0.1,,,," {
		t.Errorf("Warm-up row should have empty policy columns, got %s", lines[1])
	}
	if lines[2] != "5,0,8,2,0.1,6,0.75,1.5,0.15" {
		t.Errorf("Unexpected row: %s", lines[2])
	}
}

func TestRenderMarkdown(t *testing.T) {
	fixed := time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC)
	md := RenderMarkdown(testReport(), fixed)

	for _, want := range []string{
		"# Z-Cap Sizing Backtest",
		"Generated: 2025-01-04T12:00:00Z",
		"| Rolling Evaluable | 1 (25.0%) |",
		"## Static Cap (full evaluation set)",
		"| baseline | 4 |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown missing %q", want)
		}
	}
	if strings.Contains(md, "Cap Quantile Sweep") {
		t.Error("Sweep section should be omitted when empty")
	}
}

func TestRenderMarkdown_NoRollingRows(t *testing.T) {
	r := testReport()
	r.RollingEvaluable = 0
	md := RenderMarkdown(r, time.Now())
	if !strings.Contains(md, "Rolling window never filled") {
		t.Error("Expected note about empty rolling comparison")
	}
}

func TestGenerator_Render(t *testing.T) {
	r := testReport()
	r.Sweep = []domain.CapSweepRow{{Quantile: 0.5, Cap: 2, P99Cost: 0.1, TotalCost: 1, ExecutedNotional: 0.8}}

	artifacts, err := NewGenerator().Render(r)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	names := make(map[string]Artifact)
	for _, a := range artifacts {
		names[a.Name] = a
	}
	for _, want := range []string{FileReportJSON, FileReportMarkdown, FileDecisionsStatic, FileDecisionsRolling, FileCapSweep} {
		if _, ok := names[want]; !ok {
			t.Errorf("Missing artifact %s", want)
		}
	}
	if _, ok := names[FileTailBins]; ok {
		t.Error("Tail bins artifact should be omitted when empty")
	}

	var decoded map[string]any
	if err := json.Unmarshal(names[FileReportJSON].Data, &decoded); err != nil {
		t.Fatalf("report.json is not valid JSON: %v", err)
	}
	if decoded["run_id"] != "run-1" {
		t.Errorf("Expected run_id run-1, got %v", decoded["run_id"])
	}
	if _, ok := decoded["StaticDecisions"]; ok {
		t.Error("Decisions must not be embedded in report.json")
	}
}

func TestWriteDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	artifacts, err := NewGenerator().Render(testReport())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	paths, err := WriteDir(dir, artifacts)
	if err != nil {
		t.Fatalf("WriteDir failed: %v", err)
	}
	if len(paths) != len(artifacts) {
		t.Fatalf("Expected %d files, got %d", len(artifacts), len(paths))
	}
	data, err := os.ReadFile(filepath.Join(dir, FileDecisionsRolling))
	if err != nil {
		t.Fatalf("Read decisions failed: %v", err)
	}
	if !strings.HasPrefix(string(data), "block_number,") {
		t.Errorf("Unexpected decisions content: %s", data)
	}
}

type recordingUploader struct {
	keys    []string
	types   []string
	failKey string
}

func (u *recordingUploader) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	if path == u.failKey {
		return errors.New("boom")
	}
	if _, err := io.ReadAll(data); err != nil {
		return err
	}
	u.keys = append(u.keys, path)
	u.types = append(u.types, contentType)
	return nil
}

func TestUpload(t *testing.T) {
	artifacts := []Artifact{
		{Name: FileReportJSON, ContentType: contentTypeJSON, Data: []byte("{}")},
		{Name: FileDecisionsStatic, ContentType: contentTypeCSV, Data: []byte("a\n")},
	}
	u := &recordingUploader{}

	keys, err := Upload(context.Background(), u, "backtests/run-1", artifacts)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "backtests/run-1/report.json" {
		t.Errorf("Unexpected keys: %v", keys)
	}
	if u.types[1] != contentTypeCSV {
		t.Errorf("Expected content type %s, got %s", contentTypeCSV, u.types[1])
	}

	u = &recordingUploader{failKey: "backtests/run-1/decisions_static.csv"}
	keys, err = Upload(context.Background(), u, "backtests/run-1", artifacts)
	if err == nil {
		t.Fatal("Expected upload error")
	}
	if len(keys) != 1 {
		t.Errorf("Expected 1 key before failure, got %d", len(keys))
	}
}
