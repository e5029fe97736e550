// Package billing enforces the billing lifecycle state machine. The same
// rules are mirrored server-side; the guard here exists so invalid
// transitions are rejected before any optimistic update or queue entry is
// created, and must never assume the server trusts it.
package billing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/norvik-as/fieldops-api/internal/domain"
)

var (
	// ErrInvalidTransition is returned for a (from, to) pair outside the
	// legal edges of the billing state machine
	ErrInvalidTransition = errors.New("invalid billing status transition")

	// ErrReportRequired is returned when completing without a technician report
	ErrReportRequired = errors.New("technician report is required to complete for billing")

	// ErrTimeLogRequired is returned when completing with an empty time log
	ErrTimeLogRequired = errors.New("at least one time log entry is required to complete for billing")

	// ErrPartsRequired is returned when completing with no parts logged
	ErrPartsRequired = errors.New("at least one part entry is required to complete for billing")

	// ErrDetailsLocked is returned when editing billable details outside READY
	ErrDetailsLocked = errors.New("billable details are locked once sent")

	// ErrNotDone is returned when billing is started on an order that is
	// not operationally done
	ErrNotDone = errors.New("work order must be done before billing can start")
)

// legalTransitions holds the edges of the billing state machine:
//
//	NONE  --(complete for billing)--> READY
//	READY --> SENT
//	SENT  --> READY     (reopen)
//	SENT  --> INVOICED
//
// Everything else, including any transition out of INVOICED, is rejected.
var legalTransitions = map[domain.BillingStatus][]domain.BillingStatus{
	domain.BillingNone:     {domain.BillingReady},
	domain.BillingReady:    {domain.BillingSent},
	domain.BillingSent:     {domain.BillingReady, domain.BillingInvoiced},
	domain.BillingInvoiced: {},
}

// CanTransition reports whether from -> to is a legal billing edge
func CanTransition(from, to domain.BillingStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition (wrapped with the pair)
// when from -> to is not a legal edge
func ValidateTransition(from, to domain.BillingStatus) error {
	if !from.IsValid() || !to.IsValid() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// ValidateCompletion checks the preconditions for NONE -> READY: a
// non-empty report and non-empty time-log and part collections. The first
// failing precondition is returned.
func ValidateCompletion(report string, timeLogCount, partCount int) error {
	if strings.TrimSpace(report) == "" {
		return ErrReportRequired
	}
	if timeLogCount == 0 {
		return ErrTimeLogRequired
	}
	if partCount == 0 {
		return ErrPartsRequired
	}
	return nil
}

// ValidateCompletionAllowed checks that billing may start at all for the
// given operational and billing state: billing leaves NONE only once the
// order is DONE (or is being set DONE in the same composite mutation).
func ValidateCompletionAllowed(billingStatus domain.BillingStatus) error {
	if billingStatus != domain.BillingNone {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, billingStatus, domain.BillingReady)
	}
	return nil
}

// ValidateDetailsEditable checks that billable details may be edited:
// only while billing status is exactly READY. Details become immutable
// once sent, until reopened.
func ValidateDetailsEditable(status domain.BillingStatus) error {
	if status != domain.BillingReady {
		return fmt.Errorf("%w (billing status: %s)", ErrDetailsLocked, status)
	}
	return nil
}
