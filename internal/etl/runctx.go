package etl

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BartekS5/subjectmap/pkg/logger"
	"github.com/BartekS5/subjectmap/pkg/models"
)

// Options are the operator-controlled knobs of one run.
type Options struct {
	OutputDir      string
	ArtifactPrefix string
	Workers        int
	Timeout        time.Duration
	DryRun         bool
}

// RunContext is handed to every component of a run. It carries the run id,
// the logger and the outcomes collected so far.
type RunContext struct {
	RunID   string
	Log     *logger.Logger
	Options Options

	// OutcomeLog, when set, receives every outcome as it is recorded.
	OutcomeLog *OutcomeLog

	mu       sync.Mutex
	outcomes map[string]models.SiteOutcome
}

func NewRunContext(log *logger.Logger, opts Options) *RunContext {
	if log == nil {
		log = logger.Discard()
	}
	return &RunContext{
		RunID:    uuid.NewString(),
		Log:      log,
		Options:  opts,
		outcomes: make(map[string]models.SiteOutcome),
	}
}

// Record stores the outcome of one site. It is safe for concurrent use.
func (rc *RunContext) Record(o models.SiteOutcome) {
	rc.mu.Lock()
	rc.outcomes[o.SiteID] = o
	rc.mu.Unlock()

	if rc.OutcomeLog != nil {
		if err := rc.OutcomeLog.Append(rc.RunID, o); err != nil {
			rc.Log.Errorf("Failed to append outcome for site %s: %v", o.SiteID, err)
		}
	}
}

// Outcome returns the recorded outcome of a site.
func (rc *RunContext) Outcome(siteID string) (models.SiteOutcome, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	o, ok := rc.outcomes[siteID]
	return o, ok
}

// Outcomes returns the recorded outcomes in the given site order. Sites
// without an outcome are skipped.
func (rc *RunContext) Outcomes(order []string) []models.SiteOutcome {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]models.SiteOutcome, 0, len(order))
	for _, id := range order {
		if o, ok := rc.outcomes[id]; ok {
			out = append(out, o)
		}
	}
	return out
}
