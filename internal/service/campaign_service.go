// internal/service/campaign_service.go
package service

import (
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/repository"
)

// CampaignService covers the non-scheduling control surface: creation,
// enrollment, and the read projections. Lifecycle transitions delegate
// to the state machine.
type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	LeadRepo     repository.LeadRepositoryInterface
	ActivityRepo repository.ActivityRepositoryInterface
	StateMachine *CampaignStateMachine
	Logger       *zap.Logger
}

type StepInput struct {
	Channel      string `json:"channel"`
	ActionType   string `json:"action_type"`
	DelaySeconds int    `json:"delay_seconds"`
}

type CampaignDetails struct {
	ID        int                  `json:"id"`
	OrgID     int                  `json:"org_id"`
	Name      string               `json:"name"`
	Status    model.CampaignStatus `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt *time.Time           `json:"updated_at,omitempty"`
	Steps     []*model.Step        `json:"steps"`
	Stats     map[string]int       `json:"stats"`
}

// CreateCampaign creates a draft campaign with its ordered steps.
// Positions are assigned from the input order, so they are always
// unique and contiguous.
func (s *CampaignService) CreateCampaign(orgID int, name string, steps []StepInput) (*model.Campaign, error) {
	if name == "" {
		return nil, appErrors.NewValidation("campaign name is required")
	}
	for i, in := range steps {
		if in.Channel == "" || in.ActionType == "" {
			return nil, appErrors.NewValidation("step %d is missing channel or action type", i)
		}
		if in.DelaySeconds < 0 {
			return nil, appErrors.NewValidation("step %d has a negative delay", i)
		}
	}

	c := &model.Campaign{
		OrgID:  orgID,
		Name:   name,
		Status: model.CampaignDraft,
	}
	if err := s.CampaignRepo.Create(c); err != nil {
		return nil, err
	}
	for i, in := range steps {
		step := &model.Step{
			CampaignID:   c.ID,
			Channel:      in.Channel,
			ActionType:   in.ActionType,
			Position:     i,
			DelaySeconds: in.DelaySeconds,
		}
		if err := s.CampaignRepo.CreateStep(step); err != nil {
			return nil, err
		}
	}
	s.Logger.Info("campaign created", zap.Int("campaign_id", c.ID), zap.Int("steps", len(steps)))
	return c, nil
}

// EnrollLeads adds contacts to a non-terminal campaign at step 0.
func (s *CampaignService) EnrollLeads(campaignID int, contactRefs []string) ([]*model.Lead, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status.Terminal() {
		return nil, appErrors.NewValidation("cannot enroll leads into %s campaign", campaign.Status)
	}
	if len(contactRefs) == 0 {
		return nil, appErrors.NewValidation("no contacts given")
	}

	leads := make([]*model.Lead, 0, len(contactRefs))
	for _, ref := range contactRefs {
		if ref == "" {
			continue
		}
		lead := &model.Lead{
			CampaignID: campaignID,
			ContactRef: ref,
			Status:     model.LeadPending,
		}
		if err := s.LeadRepo.Create(lead); err != nil {
			s.Logger.Warn("lead enrollment failed",
				zap.Int("campaign_id", campaignID), zap.String("contact_ref", ref), zap.Error(err))
			continue
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// GetCampaignDetails returns a campaign with its steps and lead stats.
func (s *CampaignService) GetCampaignDetails(campaignID int) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	steps, err := s.CampaignRepo.StepsByCampaign(campaignID)
	if err != nil {
		return nil, err
	}
	stats, err := s.CampaignRepo.GetCampaignStats(campaignID)
	if err != nil {
		return nil, err
	}
	return &CampaignDetails{
		ID:        campaign.ID,
		OrgID:     campaign.OrgID,
		Name:      campaign.Name,
		Status:    campaign.Status,
		CreatedAt: campaign.CreatedAt,
		UpdatedAt: campaign.UpdatedAt,
		Steps:     steps,
		Stats:     stats,
	}, nil
}

func (s *CampaignService) Leads(campaignID int) ([]*model.Lead, error) {
	if _, err := s.CampaignRepo.GetByID(campaignID); err != nil {
		return nil, err
	}
	return s.LeadRepo.ListByCampaign(campaignID)
}

func (s *CampaignService) Steps(campaignID int) ([]*model.Step, error) {
	if _, err := s.CampaignRepo.GetByID(campaignID); err != nil {
		return nil, err
	}
	return s.CampaignRepo.StepsByCampaign(campaignID)
}

func (s *CampaignService) Activities(campaignID int) ([]*model.Activity, error) {
	if _, err := s.CampaignRepo.GetByID(campaignID); err != nil {
		return nil, err
	}
	return s.ActivityRepo.ListByCampaign(campaignID)
}
