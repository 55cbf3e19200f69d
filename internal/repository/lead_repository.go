package repository

import (
	"database/sql"
	"time"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
)

type LeadRepositoryInterface interface {
	Create(l *model.Lead) error
	GetByID(id int) (*model.Lead, error)
	ListByCampaign(campaignID int) ([]*model.Lead, error)

	// ListDispatchable returns the campaign's non-terminal leads in
	// ascending last_action_at order, never-dispatched leads first.
	ListDispatchable(campaignID, limit int) ([]*model.Lead, error)

	// ListAwaitingStatus returns leads with an asynchronous channel
	// outcome still pending (a sent action awaiting acceptance/reply).
	ListAwaitingStatus(campaignID int) ([]*model.Lead, error)

	// UpdateIfVersion applies the lead's current fields only when the
	// stored row still carries expectedVersion, bumping the version.
	// Returns ConcurrencyConflict when the row moved underneath us.
	UpdateIfVersion(l *model.Lead, expectedVersion int) error

	CountNonTerminal(campaignID int) (int, error)
	CountByCampaign(campaignID int) (int, error)
}

type LeadRepository struct {
	DB *sql.DB
}

func (r *LeadRepository) Create(l *model.Lead) error {
	l.CreatedAt = time.Now().UTC()
	if l.Status == "" {
		l.Status = model.LeadPending
	}
	query := `
        INSERT INTO leads (campaign_id, contact_ref, current_step, status, last_action_at, accepted_at, version, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, 1, $7)
        RETURNING id, version
    `
	return r.DB.QueryRow(query, l.CampaignID, l.ContactRef, l.CurrentStep, l.Status, l.LastActionAt, l.AcceptedAt, l.CreatedAt).
		Scan(&l.ID, &l.Version)
}

func (r *LeadRepository) GetByID(id int) (*model.Lead, error) {
	query := `
        SELECT id, campaign_id, contact_ref, current_step, status, last_action_at, accepted_at, version, created_at
        FROM leads WHERE id=$1
    `
	var l model.Lead
	err := r.DB.QueryRow(query, id).Scan(
		&l.ID, &l.CampaignID, &l.ContactRef, &l.CurrentStep,
		&l.Status, &l.LastActionAt, &l.AcceptedAt, &l.Version, &l.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewLeadNotFound(id)
		}
		return nil, err
	}
	return &l, nil
}

func (r *LeadRepository) ListByCampaign(campaignID int) ([]*model.Lead, error) {
	query := `
        SELECT id, campaign_id, contact_ref, current_step, status, last_action_at, accepted_at, version, created_at
        FROM leads WHERE campaign_id=$1 ORDER BY id
    `
	return r.queryLeads(query, campaignID)
}

func (r *LeadRepository) ListDispatchable(campaignID, limit int) ([]*model.Lead, error) {
	// Oldest last action first bounds staleness; fresh leads with no
	// action yet sort ahead of everything.
	query := `
        SELECT id, campaign_id, contact_ref, current_step, status, last_action_at, accepted_at, version, created_at
        FROM leads
        WHERE campaign_id=$1 AND status NOT IN ('completed', 'failed', 'replied')
        ORDER BY last_action_at ASC NULLS FIRST, id
        LIMIT $2
    `
	return r.queryLeads(query, campaignID, limit)
}

func (r *LeadRepository) ListAwaitingStatus(campaignID int) ([]*model.Lead, error) {
	query := `
        SELECT id, campaign_id, contact_ref, current_step, status, last_action_at, accepted_at, version, created_at
        FROM leads
        WHERE campaign_id=$1 AND status='in_progress'
        ORDER BY id
    `
	return r.queryLeads(query, campaignID)
}

func (r *LeadRepository) UpdateIfVersion(l *model.Lead, expectedVersion int) error {
	query := `
        UPDATE leads
        SET current_step=$1, status=$2, last_action_at=$3, accepted_at=$4, version=version+1
        WHERE id=$5 AND version=$6
    `
	res, err := r.DB.Exec(query, l.CurrentStep, l.Status, l.LastActionAt, l.AcceptedAt, l.ID, expectedVersion)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewConcurrencyConflict(l.ID, expectedVersion)
	}
	l.Version = expectedVersion + 1
	return nil
}

func (r *LeadRepository) CountNonTerminal(campaignID int) (int, error) {
	var count int
	err := r.DB.QueryRow(`
        SELECT COUNT(*) FROM leads
        WHERE campaign_id=$1 AND status NOT IN ('completed', 'failed', 'replied')`,
		campaignID).Scan(&count)
	return count, err
}

func (r *LeadRepository) CountByCampaign(campaignID int) (int, error) {
	var count int
	err := r.DB.QueryRow(`SELECT COUNT(*) FROM leads WHERE campaign_id=$1`, campaignID).Scan(&count)
	return count, err
}

func (r *LeadRepository) queryLeads(query string, args ...interface{}) ([]*model.Lead, error) {
	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := []*model.Lead{}
	for rows.Next() {
		l := &model.Lead{}
		if err := rows.Scan(
			&l.ID, &l.CampaignID, &l.ContactRef, &l.CurrentStep,
			&l.Status, &l.LastActionAt, &l.AcceptedAt, &l.Version, &l.CreatedAt,
		); err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

var _ LeadRepositoryInterface = (*LeadRepository)(nil)
