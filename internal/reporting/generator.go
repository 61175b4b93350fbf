package reporting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"dex-exec-lab/internal/domain"
)

// Generator renders backtest reports into output artifacts.
type Generator struct {
	now func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator() *Generator {
	return &Generator{
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Render produces all artifacts for a report. Tail-bin and sweep CSVs are
// included only when the report carries those sections.
func (g *Generator) Render(r *domain.BacktestReport) ([]Artifact, error) {
	if r == nil {
		return nil, fmt.Errorf("nil report")
	}

	reportJSON, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}

	artifacts := []Artifact{
		{Name: FileReportJSON, ContentType: contentTypeJSON, Data: append(reportJSON, '\n')},
		{Name: FileReportMarkdown, ContentType: contentTypeMarkdown, Data: []byte(RenderMarkdown(r, g.now()))},
		{Name: FileDecisionsStatic, ContentType: contentTypeCSV, Data: []byte(RenderDecisionsCSV("static", r.StaticDecisions))},
		{Name: FileDecisionsRolling, ContentType: contentTypeCSV, Data: []byte(RenderDecisionsCSV("roll", r.RollingDecisions))},
	}
	if len(r.TailBins) > 0 {
		artifacts = append(artifacts, Artifact{Name: FileTailBins, ContentType: contentTypeCSV, Data: []byte(RenderTailBinsCSV(r.TailBins))})
	}
	if len(r.Sweep) > 0 {
		artifacts = append(artifacts, Artifact{Name: FileCapSweep, ContentType: contentTypeCSV, Data: []byte(RenderCapSweepCSV(r.Sweep))})
	}
	return artifacts, nil
}

// WriteDir writes artifacts into dir, creating it if needed.
// Returns the written file paths.
func WriteDir(dir string, artifacts []Artifact) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		p := filepath.Join(dir, a.Name)
		if err := os.WriteFile(p, a.Data, 0644); err != nil {
			return paths, fmt.Errorf("write %s: %w", a.Name, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// Upload puts every artifact under prefix using uploader.
// Returns the object keys written.
func Upload(ctx context.Context, uploader Uploader, prefix string, artifacts []Artifact) ([]string, error) {
	keys := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		key := path.Join(prefix, a.Name)
		if err := uploader.Put(ctx, key, bytes.NewReader(a.Data), a.ContentType); err != nil {
			return keys, fmt.Errorf("upload %s: %w", a.Name, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
