// internal/model/polling_cursor.go
package model

import "time"

// PollingCursor tracks when a campaign is next due for a status poll.
// NextPollAt advances by IntervalSeconds on every tick regardless of
// outcome, so a failing adapter never starves other campaigns.
type PollingCursor struct {
	CampaignID      int       `db:"campaign_id" json:"campaign_id"`
	NextPollAt      time.Time `db:"next_poll_at" json:"next_poll_at"`
	IntervalSeconds int       `db:"interval_seconds" json:"interval_seconds"`
}

func (c *PollingCursor) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}
