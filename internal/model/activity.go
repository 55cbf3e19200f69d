// internal/model/activity.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeTransientError Outcome = "transient_error"
	OutcomePermanentError Outcome = "permanent_error"
)

// Activity is the immutable record of one dispatch attempt. Rows are
// append-only; nothing in the system updates an activity after insert.
type Activity struct {
	ID        uuid.UUID `db:"id" json:"id"`
	LeadID    int       `db:"lead_id" json:"lead_id"`
	StepID    int       `db:"step_id" json:"step_id"`
	Channel   string    `db:"channel" json:"channel"`
	Outcome   Outcome   `db:"outcome" json:"outcome"`
	Detail    string    `db:"detail" json:"detail,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
