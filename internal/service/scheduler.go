// internal/service/scheduler.go
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/unclebandit/outreach-backend/internal/channel"
	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/repository"
)

// PassSummary aggregates what one due-action pass did. Per-lead
// failures never fail the pass; they are counted here instead.
type PassSummary struct {
	Campaigns       int `json:"campaigns"`
	Dispatched      int `json:"dispatched"`
	Succeeded       int `json:"succeeded"`
	TransientFailed int `json:"transient_failed"`
	PermanentFailed int `json:"permanent_failed"`
	RateLimited     int `json:"rate_limited"`
	Conflicts       int `json:"conflicts"`
}

// StepScheduler computes which lead/step actions are due across the
// active campaigns and dispatches them through channel adapters.
type StepScheduler struct {
	CampaignRepo repository.CampaignRepositoryInterface
	LeadRepo     repository.LeadRepositoryInterface
	ActivityRepo repository.ActivityRepositoryInterface
	Adapters     *channel.Registry
	Invoker      *channel.Invoker
	StateMachine *CampaignStateMachine
	RateLimits   map[string]int // per-channel dispatch cap for one pass
	BatchSize    int
	Logger       *zap.Logger
	Now          func() time.Time
}

func (s *StepScheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// RunPass sweeps every active campaign once. Campaign-level errors are
// logged and isolated; the pass always runs to the end.
func (s *StepScheduler) RunPass(ctx context.Context) (*PassSummary, error) {
	campaigns, err := s.CampaignRepo.ListByStatus(model.CampaignActive)
	if err != nil {
		return nil, err
	}

	summary := &PassSummary{}
	limiters := map[string]*rate.Limiter{}
	for _, c := range campaigns {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.Campaigns++
		if err := s.sweepCampaign(ctx, c, limiters, summary); err != nil {
			s.Logger.Error("campaign sweep failed",
				zap.Int("campaign_id", c.ID), zap.Error(err))
		}
	}
	return summary, nil
}

func (s *StepScheduler) sweepCampaign(ctx context.Context, c *model.Campaign, limiters map[string]*rate.Limiter, summary *PassSummary) error {
	steps, err := s.CampaignRepo.StepsByCampaign(c.ID)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		return nil
	}

	leads, err := s.LeadRepo.ListDispatchable(c.ID, s.BatchSize)
	if err != nil {
		return err
	}

	for _, lead := range leads {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if lead.Status.Terminal() || lead.CurrentStep >= len(steps) {
			continue
		}
		step := steps[lead.CurrentStep]
		if !s.due(lead, step) {
			continue
		}
		if lim := s.limiterFor(limiters, step.Channel); lim != nil && !lim.Allow() {
			// Skipped leads keep their state and come back next pass.
			summary.RateLimited++
			continue
		}

		proceed, err := s.dispatch(ctx, c.ID, lead, step, len(steps), summary)
		if err != nil {
			s.Logger.Warn("dispatch failed",
				zap.Int("lead_id", lead.ID), zap.Int("step_id", step.ID), zap.Error(err))
		}
		if !proceed {
			// Campaign left active state mid-pass; abandon the sweep.
			return nil
		}
	}

	if _, err := s.StateMachine.CompleteIfFinished(c.ID); err != nil {
		s.Logger.Warn("completion check failed", zap.Int("campaign_id", c.ID), zap.Error(err))
	}
	return nil
}

// due: a lead with no action yet is immediately due for step 0;
// otherwise the step's minimum delay must have elapsed.
func (s *StepScheduler) due(lead *model.Lead, step *model.Step) bool {
	if lead.LastActionAt == nil {
		return true
	}
	return s.now().Sub(*lead.LastActionAt) >= step.Delay()
}

func (s *StepScheduler) limiterFor(limiters map[string]*rate.Limiter, channelTag string) *rate.Limiter {
	if lim, ok := limiters[channelTag]; ok {
		return lim
	}
	cap, ok := s.RateLimits[channelTag]
	if !ok {
		limiters[channelTag] = nil
		return nil
	}
	// The burst is the whole daily budget; refill spreads it over a day
	// so back-to-back passes cannot double-spend the cap.
	lim := rate.NewLimiter(rate.Limit(float64(cap)/(24*3600)), cap)
	limiters[channelTag] = lim
	return lim
}

// dispatch executes one lead/step action. The second return is false
// when the campaign is no longer active and the sweep must stop.
func (s *StepScheduler) dispatch(ctx context.Context, campaignID int, lead *model.Lead, step *model.Step, stepCount int, summary *PassSummary) (bool, error) {
	// A stop issued mid-pass wins over anything computed as due.
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return true, err
	}
	if campaign.Status != model.CampaignActive {
		return false, nil
	}

	// Re-read the lead so a concurrent poller's update is visible
	// before we send anything.
	cur, err := s.LeadRepo.GetByID(lead.ID)
	if err != nil {
		return true, err
	}
	if cur.Status.Terminal() || cur.CurrentStep != lead.CurrentStep {
		return true, nil
	}

	adapter, err := s.Adapters.Get(step.Channel)
	if err != nil {
		return true, err
	}

	res := s.Invoker.Send(ctx, adapter, channel.Action{Campaign: campaign, Lead: cur, Step: step})
	summary.Dispatched++

	activity := &model.Activity{
		LeadID:  cur.ID,
		StepID:  step.ID,
		Channel: step.Channel,
		Outcome: res.Outcome,
		Detail:  res.Detail,
	}
	if err := s.ActivityRepo.Append(activity); err != nil {
		// Without the audit row we do not advance; the lead stays due.
		summary.TransientFailed++
		return true, err
	}

	switch res.Outcome {
	case model.OutcomeSuccess:
		summary.Succeeded++
		now := s.now()
		dispatchedStep := cur.CurrentStep
		s.updateLead(cur, summary, func(l *model.Lead) bool {
			if l.Status.Terminal() || l.CurrentStep != dispatchedStep {
				return false
			}
			l.CurrentStep++
			l.LastActionAt = &now
			if l.CurrentStep >= stepCount {
				l.Status = model.LeadCompleted
			} else {
				l.Status = model.LeadInProgress
			}
			return true
		})
	case model.OutcomePermanentError:
		summary.PermanentFailed++
		s.updateLead(cur, summary, func(l *model.Lead) bool {
			if l.Status.Terminal() {
				return false
			}
			l.Status = model.LeadFailed
			return true
		})
	default:
		// transient_error: position and status untouched so the lead
		// is retried on a later pass.
		summary.TransientFailed++
	}
	return true, nil
}

// updateLead applies decide through the optimistic version check. On a
// conflict it re-reads once and re-decides; a second conflict skips the
// lead for this pass.
func (s *StepScheduler) updateLead(lead *model.Lead, summary *PassSummary, decide func(*model.Lead) bool) {
	if !decide(lead) {
		return
	}
	err := s.LeadRepo.UpdateIfVersion(lead, lead.Version)
	if err == nil {
		return
	}
	var conflict *appErrors.ConcurrencyConflict
	if !errors.As(err, &conflict) {
		s.Logger.Warn("lead update failed", zap.Int("lead_id", lead.ID), zap.Error(err))
		return
	}
	summary.Conflicts++

	fresh, err := s.LeadRepo.GetByID(lead.ID)
	if err != nil {
		s.Logger.Warn("lead re-read failed", zap.Int("lead_id", lead.ID), zap.Error(err))
		return
	}
	if !decide(fresh) {
		return
	}
	if err := s.LeadRepo.UpdateIfVersion(fresh, fresh.Version); err != nil {
		summary.Conflicts++
		s.Logger.Warn("lead conflicted twice, skipping for this pass",
			zap.Int("lead_id", lead.ID), zap.Error(err))
	}
}
