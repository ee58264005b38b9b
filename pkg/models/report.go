package models

import "time"

// Outcome statuses reported per produced site.
const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
	StatusUnmatched = "unmatched"
	StatusPlanned   = "planned" // dry run: matched, transfer not attempted
)

// SiteOutcome is the final state of one produced site identifier.
type SiteOutcome struct {
	SiteID     string        `json:"site_id" bson:"site_id"`
	Status     string        `json:"status" bson:"status"`
	Reason     string        `json:"reason,omitempty" bson:"reason,omitempty"`
	Error      string        `json:"error,omitempty" bson:"error,omitempty"`
	Phase      JobState      `json:"phase,omitempty" bson:"phase,omitempty"`
	Contact    string        `json:"contact,omitempty" bson:"contact,omitempty"`
	Address    string        `json:"address,omitempty" bson:"address,omitempty"`
	RemotePath string        `json:"remote_path,omitempty" bson:"remote_path,omitempty"`
	Artifact   string        `json:"artifact,omitempty" bson:"artifact,omitempty"`
	Bytes      int64         `json:"bytes,omitempty" bson:"bytes,omitempty"`
	Duration   time.Duration `json:"duration,omitempty" bson:"duration,omitempty"`
	Attempted  bool          `json:"attempted" bson:"attempted"`
}

// CatalogIssue is a catalog entry excluded from the resolvable set.
type CatalogIssue struct {
	SiteID  string   `json:"site_id" bson:"site_id"`
	Missing []string `json:"missing,omitempty" bson:"missing,omitempty"`
	Reason  string   `json:"reason" bson:"reason"`
}

// RunReport is the operator-facing summary of one run.
type RunReport struct {
	RunID           string         `json:"run_id" bson:"run_id"`
	StartedAt       time.Time      `json:"started_at" bson:"started_at"`
	FinishedAt      time.Time      `json:"finished_at" bson:"finished_at"`
	DryRun          bool           `json:"dry_run" bson:"dry_run"`
	RecordsIn       int            `json:"records_in" bson:"records_in"`
	RecordsRetained int            `json:"records_retained" bson:"records_retained"`
	RecordsDropped  int            `json:"records_dropped" bson:"records_dropped"`
	GroupsProduced  int            `json:"groups_produced" bson:"groups_produced"`
	JobsAttempted   int            `json:"jobs_attempted" bson:"jobs_attempted"`
	Outcomes        []SiteOutcome  `json:"outcomes" bson:"outcomes"`
	Unmatched       []string       `json:"unmatched" bson:"unmatched"`
	CatalogIssues   []CatalogIssue `json:"catalog_issues,omitempty" bson:"catalog_issues,omitempty"`
}

// Delivered counts outcomes with status delivered.
func (r *RunReport) Delivered() int {
	return r.count(StatusDelivered)
}

// Failed counts outcomes with status failed.
func (r *RunReport) Failed() int {
	return r.count(StatusFailed)
}

// Complete reports whether every produced site was delivered (or planned in a dry run).
func (r *RunReport) Complete() bool {
	for _, o := range r.Outcomes {
		if o.Status != StatusDelivered && o.Status != StatusPlanned {
			return false
		}
	}
	return true
}

func (r *RunReport) count(status string) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}
