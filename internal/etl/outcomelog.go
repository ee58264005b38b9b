package etl

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/BartekS5/subjectmap/pkg/models"
)

// OutcomeLog is an append-only JSON-lines file with one line per finished
// site. Appends from concurrent workers are serialised.
type OutcomeLog struct {
	mu   sync.Mutex
	file *os.File
}

type outcomeLine struct {
	RunID string    `json:"run_id"`
	Time  time.Time `json:"time"`
	models.SiteOutcome
}

func OpenOutcomeLog(path string) (*OutcomeLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open outcome log '%s': %w", path, err)
	}
	return &OutcomeLog{file: f}, nil
}

func (l *OutcomeLog) Append(runID string, o models.SiteOutcome) error {
	line, err := json.Marshal(outcomeLine{RunID: runID, Time: time.Now().UTC(), SiteOutcome: o})
	if err != nil {
		return err
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.file.Write(line)
	return err
}

func (l *OutcomeLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
