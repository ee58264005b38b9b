package etl

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoCatalogEntry marks a produced site id the catalog cannot resolve.
	ErrNoCatalogEntry = errors.New("no catalog entry")

	// ErrIncompleteDelivery reports a run that finished but left at least one
	// produced site undelivered.
	ErrIncompleteDelivery = errors.New("one or more sites were not delivered")
)

// MalformedInputError reports a raw document that cannot be parsed into records.
type MalformedInputError struct {
	Origin string
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	msg := "malformed input"
	if e.Origin != "" {
		msg += " from " + e.Origin
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// RulesetError reports a ruleset that refers to data the input does not have.
type RulesetError struct {
	Stage  string
	Field  string
	Reason string
}

func (e *RulesetError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s ruleset: field %q: %s", e.Stage, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s ruleset: %s", e.Stage, e.Reason)
}

// MaterializationError reports an artifact that could not be written or
// disappeared before dispatch.
type MaterializationError struct {
	SiteID string
	Path   string
	Err    error
}

func (e *MaterializationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("materialize site %q (%s): %v", e.SiteID, e.Path, e.Err)
	}
	return fmt.Sprintf("materialize site %q: %v", e.SiteID, e.Err)
}

func (e *MaterializationError) Unwrap() error { return e.Err }

// CatalogNotFoundError reports a registry document that is missing or unreadable.
type CatalogNotFoundError struct {
	Path string
	Err  error
}

func (e *CatalogNotFoundError) Error() string {
	return fmt.Sprintf("site catalog '%s' not available: %v", e.Path, e.Err)
}

func (e *CatalogNotFoundError) Unwrap() error { return e.Err }

// CatalogEntryIncompleteError reports an entry excluded from the resolvable set.
type CatalogEntryIncompleteError struct {
	SiteID  string
	Missing []string
	Reason  string
}

func (e *CatalogEntryIncompleteError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("catalog entry %q missing %s", e.SiteID, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("catalog entry %q: %s", e.SiteID, e.Reason)
}

// TransferFailure is the per-job failure recorded by the dispatcher.
type TransferFailure struct {
	SiteID  string
	Reason  string
	Phase   string
	Contact string
	Err     error
}

func (e *TransferFailure) Error() string {
	return fmt.Sprintf("transfer to site %q failed (%s) while %s: %v", e.SiteID, e.Reason, e.Phase, e.Err)
}

func (e *TransferFailure) Unwrap() error { return e.Err }

// UnmatchedGroupWarning reports a produced group that was never dispatched.
type UnmatchedGroupWarning struct {
	SiteID string
	Cause  error
}

func (e *UnmatchedGroupWarning) Error() string {
	return fmt.Sprintf("site %q unmatched: %v", e.SiteID, e.Cause)
}

func (e *UnmatchedGroupWarning) Unwrap() error { return e.Cause }

func IsMalformedInput(err error) bool {
	var target *MalformedInputError
	return errors.As(err, &target)
}

func IsRulesetError(err error) bool {
	var target *RulesetError
	return errors.As(err, &target)
}

func IsMaterializationError(err error) bool {
	var target *MaterializationError
	return errors.As(err, &target)
}

func IsCatalogNotFound(err error) bool {
	var target *CatalogNotFoundError
	return errors.As(err, &target)
}

func IsTransferFailure(err error) bool {
	var target *TransferFailure
	return errors.As(err, &target)
}

// IsFatal reports whether err invalidates the whole run.
func IsFatal(err error) bool {
	return IsMalformedInput(err) || IsRulesetError(err) || IsMaterializationError(err) || IsCatalogNotFound(err)
}
