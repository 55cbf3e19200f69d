// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	StateMachine    *service.CampaignStateMachine
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrgID int                 `json:"org_id"`
		Name  string              `json:"name"`
		Steps []service.StepInput `json:"steps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(body.OrgID, body.Name, body.Steps)
	if err != nil {
		writeError(w, err)
		return
	}

	json.NewEncoder(w).Encode(campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	campaigns, pagination, err := c.CampaignService.ListCampaigns(page, pageSize, status)
	if err != nil {
		writeError(w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	details, err := c.CampaignService.GetCampaignDetails(id)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(details)
}

func (c *CampaignController) EnrollLeads(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	var body struct {
		ContactRefs []string `json:"contact_refs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	leads, err := c.CampaignService.EnrollLeads(id, body.ContactRefs)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"enrolled": len(leads),
		"leads":    leads,
	})
}

// ====================== Lifecycle ======================

func (c *CampaignController) StartCampaign(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.StateMachine.Start)
}

func (c *CampaignController) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.StateMachine.Pause)
}

func (c *CampaignController) StopCampaign(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.StateMachine.Stop)
}

func (c *CampaignController) transition(w http.ResponseWriter, r *http.Request, op func(int) (*model.Campaign, error)) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	campaign, err := op(id)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":     campaign.ID,
		"status": campaign.Status,
	})
}

// ====================== Projections ======================

func (c *CampaignController) ListLeads(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	leads, err := c.CampaignService.Leads(id)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(leads)
}

func (c *CampaignController) ListSteps(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	steps, err := c.CampaignService.Steps(id)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(steps)
}

func (c *CampaignController) ListActivities(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	activities, err := c.CampaignService.Activities(id)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(activities)
}

// ====================== Helpers ======================

func campaignID(w http.ResponseWriter, r *http.Request) (int, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	var validation *appErrors.ValidationError
	var campaignNotFound *appErrors.ErrCampaignNotFound
	var leadNotFound *appErrors.ErrLeadNotFound
	switch {
	case errors.As(err, &validation):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &campaignNotFound), errors.As(err, &leadNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
