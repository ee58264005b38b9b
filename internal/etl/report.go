package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BartekS5/subjectmap/pkg/models"
)

// FileReportSink writes the run report as indented JSON.
type FileReportSink struct {
	Path string
}

func (s *FileReportSink) Save(_ context.Context, report *models.RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run report: %w", err)
	}
	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := writeAtomic(s.Path, append(data, '\n')); err != nil {
		return fmt.Errorf("write run report '%s': %w", s.Path, err)
	}
	return nil
}
