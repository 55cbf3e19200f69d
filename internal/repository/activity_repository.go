package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/outreach-backend/internal/model"
)

type ActivityRepositoryInterface interface {
	// Append inserts one activity row. Activities are append-only;
	// there is deliberately no update method.
	Append(a *model.Activity) error
	ListByLead(leadID int) ([]*model.Activity, error)
	ListByCampaign(campaignID int) ([]*model.Activity, error)
}

type ActivityRepository struct {
	DB *sql.DB
}

func (r *ActivityRepository) Append(a *model.Activity) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	query := `
        INSERT INTO activities (id, lead_id, step_id, channel, outcome, detail, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err := r.DB.Exec(query, a.ID, a.LeadID, a.StepID, a.Channel, a.Outcome, a.Detail, a.CreatedAt)
	return err
}

func (r *ActivityRepository) ListByLead(leadID int) ([]*model.Activity, error) {
	query := `
        SELECT id, lead_id, step_id, channel, outcome, detail, created_at
        FROM activities WHERE lead_id=$1 ORDER BY created_at
    `
	return r.queryActivities(query, leadID)
}

func (r *ActivityRepository) ListByCampaign(campaignID int) ([]*model.Activity, error) {
	query := `
        SELECT a.id, a.lead_id, a.step_id, a.channel, a.outcome, a.detail, a.created_at
        FROM activities a
        JOIN leads l ON l.id = a.lead_id
        WHERE l.campaign_id=$1
        ORDER BY a.created_at
    `
	return r.queryActivities(query, campaignID)
}

func (r *ActivityRepository) queryActivities(query string, args ...interface{}) ([]*model.Activity, error) {
	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activities := []*model.Activity{}
	for rows.Next() {
		a := &model.Activity{}
		if err := rows.Scan(&a.ID, &a.LeadID, &a.StepID, &a.Channel, &a.Outcome, &a.Detail, &a.CreatedAt); err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

var _ ActivityRepositoryInterface = (*ActivityRepository)(nil)
