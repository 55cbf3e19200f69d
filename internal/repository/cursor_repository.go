package repository

import (
	"database/sql"
	"time"

	"github.com/unclebandit/outreach-backend/internal/model"
)

type CursorRepositoryInterface interface {
	// Ensure creates the campaign's cursor if missing, due immediately.
	Ensure(campaignID int, interval time.Duration) error

	// ListDue returns cursors with next_poll_at at or before now.
	ListDue(now time.Time) ([]*model.PollingCursor, error)

	// Advance moves next_poll_at forward. Called once per polled
	// campaign per tick regardless of poll outcome.
	Advance(campaignID int, next time.Time) error
}

type CursorRepository struct {
	DB *sql.DB
}

func (r *CursorRepository) Ensure(campaignID int, interval time.Duration) error {
	query := `
        INSERT INTO polling_cursors (campaign_id, next_poll_at, interval_seconds)
        VALUES ($1, $2, $3)
        ON CONFLICT (campaign_id) DO NOTHING
    `
	_, err := r.DB.Exec(query, campaignID, time.Now().UTC(), int(interval.Seconds()))
	return err
}

func (r *CursorRepository) ListDue(now time.Time) ([]*model.PollingCursor, error) {
	query := `
        SELECT campaign_id, next_poll_at, interval_seconds
        FROM polling_cursors
        WHERE next_poll_at <= $1
        ORDER BY next_poll_at
    `
	rows, err := r.DB.Query(query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cursors := []*model.PollingCursor{}
	for rows.Next() {
		c := &model.PollingCursor{}
		if err := rows.Scan(&c.CampaignID, &c.NextPollAt, &c.IntervalSeconds); err != nil {
			return nil, err
		}
		cursors = append(cursors, c)
	}
	return cursors, rows.Err()
}

func (r *CursorRepository) Advance(campaignID int, next time.Time) error {
	query := `UPDATE polling_cursors SET next_poll_at=$1 WHERE campaign_id=$2`
	_, err := r.DB.Exec(query, next, campaignID)
	return err
}

var _ CursorRepositoryInterface = (*CursorRepository)(nil)
