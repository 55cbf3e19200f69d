// internal/model/step.go
package model

import "time"

// Step is one channel action in a campaign's ordered sequence.
// Position values are unique and contiguous starting at 0.
type Step struct {
	ID           int       `db:"id" json:"id"`
	CampaignID   int       `db:"campaign_id" json:"campaign_id"`
	Channel      string    `db:"channel" json:"channel"`
	ActionType   string    `db:"action_type" json:"action_type"`
	Position     int       `db:"position" json:"position"`
	DelaySeconds int       `db:"delay_seconds" json:"delay_seconds"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Delay is the minimum wait since the lead's previous action.
func (s *Step) Delay() time.Duration {
	return time.Duration(s.DelaySeconds) * time.Second
}
