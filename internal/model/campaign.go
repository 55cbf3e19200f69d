// internal/model/campaign.go
package model

import "time"

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignStopped   CampaignStatus = "stopped"
	CampaignCompleted CampaignStatus = "completed"
)

// Terminal reports whether no further transitions are possible.
func (s CampaignStatus) Terminal() bool {
	return s == CampaignStopped || s == CampaignCompleted
}

type Campaign struct {
	ID        int            `db:"id" json:"id"`
	OrgID     int            `db:"org_id" json:"org_id"`
	Name      string         `db:"name" json:"name"`
	Status    CampaignStatus `db:"status" json:"status"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}
