package etl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BartekS5/subjectmap/pkg/models"
)

// maxExportSize bounds the record export read into memory.
const maxExportSize = 512 << 20

// REDCapSource exports all records of a project through the REDCap API as
// flat XML.
type REDCapSource struct {
	URI     string
	Token   string
	Timeout time.Duration
	Client  *http.Client
}

func NewREDCapSource(uri, token string, timeout time.Duration) *REDCapSource {
	return &REDCapSource{URI: uri, Token: token, Timeout: timeout, Client: http.DefaultClient}
}

func (s *REDCapSource) Fetch(ctx context.Context) (*models.RawRecordSet, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	form := url.Values{
		"token":        {s.Token},
		"content":      {"record"},
		"format":       {"xml"},
		"type":         {"flat"},
		"returnFormat": {"xml"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URI, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build export request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/xml")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("record export from %s: %w", s.URI, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxExportSize))
	if err != nil {
		return nil, fmt.Errorf("read record export: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("record export from %s: status %d: %s", s.URI, resp.StatusCode, snippet(body))
	}
	return &models.RawRecordSet{Data: body, Origin: s.URI}, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
