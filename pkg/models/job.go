package models

import (
	"errors"
	"fmt"
	"time"
)

// JobState is a TransferJob lifecycle state.
type JobState string

const (
	StateCreated       JobState = "created"
	StateConnecting    JobState = "connecting"
	StateAuthenticated JobState = "authenticated"
	StateTransferring  JobState = "transferring"
	StateDelivered     JobState = "delivered"
	StateFailed        JobState = "failed"
)

var (
	ErrInvalidTransition = errors.New("invalid job state transition")

	// ErrAuthRejected is wrapped by transports when the remote end refuses
	// the supplied credentials.
	ErrAuthRejected = errors.New("authentication rejected")

	// ErrCredential marks a credential that could not be resolved or used
	// locally, before the remote end was asked.
	ErrCredential = errors.New("credential unusable")
)

var nextState = map[JobState]JobState{
	StateCreated:       StateConnecting,
	StateConnecting:    StateAuthenticated,
	StateAuthenticated: StateTransferring,
	StateTransferring:  StateDelivered,
}

// Terminal reports whether no further transition is possible.
func (s JobState) Terminal() bool {
	return s == StateDelivered || s == StateFailed
}

// TransferJob pairs one artifact with its resolved destination. A job is
// owned by a single worker for its whole life.
type TransferJob struct {
	Artifact GroupArtifact
	Entry    SiteCatalogEntry

	// Secret is the resolved credential; Entry.Credential may only hold a reference.
	Secret string

	State     JobState
	Failed    JobState // state the job was in when it failed
	Err       error
	StartedAt time.Time
	EndedAt   time.Time
}

func NewTransferJob(artifact GroupArtifact, entry SiteCatalogEntry) *TransferJob {
	return &TransferJob{Artifact: artifact, Entry: entry, State: StateCreated}
}

// SiteID is the identifier of the site the job delivers to.
func (j *TransferJob) SiteID() string { return j.Artifact.SiteID }

// RemoteName is the file name used at the destination.
func (j *TransferJob) RemoteName() string {
	if j.Entry.RemoteName != "" {
		return j.Entry.RemoteName
	}
	return j.Artifact.FileName
}

// Advance moves the job to the next state of the happy path.
func (j *TransferJob) Advance(to JobState) error {
	if nextState[j.State] != to {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.State, to)
	}
	j.State = to
	return nil
}

// Fail moves a non-terminal job to failed, remembering where it stopped.
func (j *TransferJob) Fail(err error) error {
	if j.State.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.State, StateFailed)
	}
	j.Failed = j.State
	j.State = StateFailed
	j.Err = err
	return nil
}
