// internal/errors/errors.go
package appErrors

import "fmt"

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

type ErrLeadNotFound struct {
	LeadID int
}

func (e *ErrLeadNotFound) Error() string {
	return fmt.Sprintf("lead with ID %d not found", e.LeadID)
}

func NewLeadNotFound(id int) error {
	return &ErrLeadNotFound{LeadID: id}
}

// ValidationError covers illegal state transitions and structurally
// invalid campaigns (no steps, no enrolled leads).
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func NewValidation(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// AuthError means the callback trigger could not be authenticated.
// Surfaced as 401, never retried.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "unauthorized: " + e.Reason
}

func NewAuth(reason string) error {
	return &AuthError{Reason: reason}
}

// ConcurrencyConflict is returned by the lead repository when an
// optimistic version check fails. Callers retry once with fresh state.
type ConcurrencyConflict struct {
	LeadID          int
	ExpectedVersion int
}

func (e *ConcurrencyConflict) Error() string {
	return fmt.Sprintf("lead %d version %d no longer current", e.LeadID, e.ExpectedVersion)
}

func NewConcurrencyConflict(leadID, expected int) error {
	return &ConcurrencyConflict{LeadID: leadID, ExpectedVersion: expected}
}

// TransientChannelError marks an adapter failure that may succeed on a
// later pass (timeout, rate limit). Recorded, not surfaced.
type TransientChannelError struct {
	Detail string
}

func (e *TransientChannelError) Error() string {
	return "transient channel error: " + e.Detail
}

func NewTransientChannel(detail string) error {
	return &TransientChannelError{Detail: detail}
}

// PermanentChannelError marks an action the channel reports can never
// succeed. The lead is failed and never retried.
type PermanentChannelError struct {
	Detail string
}

func (e *PermanentChannelError) Error() string {
	return "permanent channel error: " + e.Detail
}

func NewPermanentChannel(detail string) error {
	return &PermanentChannelError{Detail: detail}
}

// ErrRunInProgress is returned by the daily-run coordinator when a
// trigger overlaps an in-flight pass.
type ErrRunInProgress struct{}

func (e *ErrRunInProgress) Error() string {
	return "a daily run is already in progress"
}

func NewRunInProgress() error {
	return &ErrRunInProgress{}
}
