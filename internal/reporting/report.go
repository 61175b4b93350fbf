package reporting

import (
	"context"
	"io"
)

// Artifact file names written for every backtest run.
const (
	FileReportJSON       = "report.json"
	FileReportMarkdown   = "report.md"
	FileDecisionsStatic  = "decisions_static.csv"
	FileDecisionsRolling = "decisions_rolling.csv"
	FileTailBins         = "tail_bins.csv"
	FileCapSweep         = "cap_sweep.csv"
)

const (
	contentTypeJSON     = "application/json"
	contentTypeMarkdown = "text/markdown"
	contentTypeCSV      = "text/csv"
)

// Artifact is one rendered output file.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Uploader stores artifacts in object storage.
type Uploader interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
