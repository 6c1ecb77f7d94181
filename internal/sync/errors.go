package sync

import "errors"

// Common errors returned by sync operations.
//
// These errors can be checked using errors.Is() for proper error handling:
//
//	if errors.Is(err, sync.ErrStoreWriteFailed) {
//	    // Safe to retry the whole sync call
//	}
var (
	// ErrSourceUnreadable is returned when the renderer cannot decode the
	// source document. Terminal for that invocation; the store is left
	// untouched.
	ErrSourceUnreadable = errors.New("source document unreadable")

	// ErrStoreUnavailable is returned when the persisted store cannot be
	// reached or opened. Terminal; no writes are attempted.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrStoreWriteFailed is returned when an individual insert, update, or
	// delete fails mid-sync. Remaining work for that call is aborted; the
	// call is safe to retry because every applied write was idempotent and
	// the document fingerprint has not been committed.
	ErrStoreWriteFailed = errors.New("store write failed")

	// ErrEnrichmentFailed is returned by enrichment engines when text
	// extraction fails. Never fatal to page sync: the engine logs it and
	// stores a degraded result instead.
	ErrEnrichmentFailed = errors.New("enrichment failed")
)

// IsRetryable returns true if re-invoking Sync with the same inputs is
// expected to converge. Partial writes self-heal on retry because the
// document fingerprint is only committed after all page work succeeds.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrStoreWriteFailed)
}

// IsFatal returns true if the error indicates the invocation cannot make
// progress at all (bad source, unreachable store).
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrSourceUnreadable) {
		return true
	}

	if errors.Is(err, ErrStoreUnavailable) {
		return true
	}

	return false
}
