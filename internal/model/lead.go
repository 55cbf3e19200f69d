// internal/model/lead.go
package model

import "time"

type LeadStatus string

const (
	LeadPending    LeadStatus = "pending"
	LeadInProgress LeadStatus = "in_progress"
	LeadCompleted  LeadStatus = "completed"
	LeadFailed     LeadStatus = "failed"
	LeadReplied    LeadStatus = "replied"
)

// Terminal leads are never dispatched again.
func (s LeadStatus) Terminal() bool {
	return s == LeadCompleted || s == LeadFailed || s == LeadReplied
}

// Lead is a target contact enrolled in a campaign. CurrentStep never
// decreases; Version backs the optimistic compare-and-swap used by the
// scheduler and the polling loop.
type Lead struct {
	ID           int        `db:"id" json:"id"`
	CampaignID   int        `db:"campaign_id" json:"campaign_id"`
	ContactRef   string     `db:"contact_ref" json:"contact_ref"`
	CurrentStep  int        `db:"current_step" json:"current_step"`
	Status       LeadStatus `db:"status" json:"status"`
	LastActionAt *time.Time `db:"last_action_at" json:"last_action_at,omitempty"`
	AcceptedAt   *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	Version      int        `db:"version" json:"version"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}
