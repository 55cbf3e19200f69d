// internal/channel/adapter.go
package channel

import (
	"context"

	"github.com/unclebandit/outreach-backend/internal/model"
)

// Action is one step dispatch for one lead.
type Action struct {
	Campaign *model.Campaign
	Lead     *model.Lead
	Step     *model.Step
}

// Result is the adapter's report on a send attempt. Ordinary transient
// conditions (rate limit, upstream timeout) come back as an outcome,
// not an error; the error return is reserved for transport failures.
type Result struct {
	Outcome model.Outcome
	Detail  string
}

// LeadRef identifies a lead to the external channel for status checks.
type LeadRef struct {
	LeadID     int
	ContactRef string
	Channel    string
}

// StateSnapshot is the channel's view of asynchronous lead state not
// otherwise delivered to us (connection accepted, reply received).
type StateSnapshot struct {
	Accepted bool
	Replied  bool
	Detail   string
}

// Adapter is the external collaborator performing the actual send and
// status check against one channel. Implementations must honor ctx
// cancellation; callers always bound invocations with a timeout.
type Adapter interface {
	Send(ctx context.Context, action Action) (Result, error)
	Status(ctx context.Context, ref LeadRef) (StateSnapshot, error)
}
