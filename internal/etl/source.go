package etl

import (
	"context"
	"fmt"
	"os"

	"github.com/BartekS5/subjectmap/pkg/models"
)

// FileSource reads a previously exported document from disk.
type FileSource struct {
	Path string
}

func (s *FileSource) Fetch(ctx context.Context) (*models.RawRecordSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read input file: %w", err)
	}
	return &models.RawRecordSet{Data: data, Origin: s.Path}, nil
}
