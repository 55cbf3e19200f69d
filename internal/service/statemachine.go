// internal/service/statemachine.go
package service

import (
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/repository"
)

// CampaignStateMachine owns campaign lifecycle transitions:
//
//	draft -> active -> {paused, completed, stopped}
//	paused -> {active, stopped}
//
// stopped and completed are terminal. Completion is derived, never
// user-invoked; see CompleteIfFinished.
type CampaignStateMachine struct {
	CampaignRepo repository.CampaignRepositoryInterface
	LeadRepo     repository.LeadRepositoryInterface
	CursorRepo   repository.CursorRepositoryInterface
	PollInterval time.Duration
	Logger       *zap.Logger
}

// Start activates a draft or paused campaign. A campaign with zero
// steps or zero enrolled leads cannot start.
func (m *CampaignStateMachine) Start(campaignID int) (*model.Campaign, error) {
	campaign, err := m.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != model.CampaignDraft && campaign.Status != model.CampaignPaused {
		return nil, appErrors.NewValidation("cannot start campaign in status %s", campaign.Status)
	}

	steps, err := m.CampaignRepo.StepsByCampaign(campaignID)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, appErrors.NewValidation("campaign %d has no steps", campaignID)
	}
	leadCount, err := m.LeadRepo.CountByCampaign(campaignID)
	if err != nil {
		return nil, err
	}
	if leadCount == 0 {
		return nil, appErrors.NewValidation("campaign %d has no enrolled leads", campaignID)
	}

	if err := m.CampaignRepo.UpdateStatus(campaignID, model.CampaignActive); err != nil {
		return nil, err
	}
	if err := m.CursorRepo.Ensure(campaignID, m.PollInterval); err != nil {
		return nil, err
	}
	campaign.Status = model.CampaignActive
	m.Logger.Info("campaign started", zap.Int("campaign_id", campaignID))
	return campaign, nil
}

// Pause suspends an active campaign, preserving all lead positions.
// Pausing an already-paused campaign is a no-op.
func (m *CampaignStateMachine) Pause(campaignID int) (*model.Campaign, error) {
	campaign, err := m.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status == model.CampaignPaused {
		return campaign, nil
	}
	if campaign.Status != model.CampaignActive {
		return nil, appErrors.NewValidation("cannot pause campaign in status %s", campaign.Status)
	}
	if err := m.CampaignRepo.UpdateStatus(campaignID, model.CampaignPaused); err != nil {
		return nil, err
	}
	campaign.Status = model.CampaignPaused
	m.Logger.Info("campaign paused", zap.Int("campaign_id", campaignID))
	return campaign, nil
}

// Stop is terminal and allowed from any non-terminal state. It takes
// effect for any dispatch not yet handed to an adapter; the scheduler
// re-checks status immediately before each send.
func (m *CampaignStateMachine) Stop(campaignID int) (*model.Campaign, error) {
	campaign, err := m.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status == model.CampaignStopped {
		return campaign, nil
	}
	if campaign.Status.Terminal() {
		return nil, appErrors.NewValidation("cannot stop campaign in status %s", campaign.Status)
	}
	if err := m.CampaignRepo.UpdateStatus(campaignID, model.CampaignStopped); err != nil {
		return nil, err
	}
	campaign.Status = model.CampaignStopped
	m.Logger.Info("campaign stopped", zap.Int("campaign_id", campaignID))
	return campaign, nil
}

// CompleteIfFinished transitions an active campaign to completed once
// every enrolled lead is terminal. Returns whether it transitioned.
func (m *CampaignStateMachine) CompleteIfFinished(campaignID int) (bool, error) {
	campaign, err := m.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return false, err
	}
	if campaign.Status != model.CampaignActive {
		return false, nil
	}
	total, err := m.LeadRepo.CountByCampaign(campaignID)
	if err != nil {
		return false, err
	}
	if total == 0 {
		return false, nil
	}
	remaining, err := m.LeadRepo.CountNonTerminal(campaignID)
	if err != nil {
		return false, err
	}
	if remaining > 0 {
		return false, nil
	}
	if err := m.CampaignRepo.UpdateStatus(campaignID, model.CampaignCompleted); err != nil {
		return false, err
	}
	m.Logger.Info("campaign completed", zap.Int("campaign_id", campaignID))
	return true, nil
}
