// internal/service/polling.go
package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/outreach-backend/internal/channel"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/repository"
)

// PollingScheduler is the background loop reconciling asynchronous
// channel state. Constructed once at process startup, started once, and
// stopped once at shutdown; the handle is injected into whatever needs
// to stop it, there is no package-level instance.
type PollingScheduler struct {
	campaignRepo repository.CampaignRepositoryInterface
	leadRepo     repository.LeadRepositoryInterface
	cursorRepo   repository.CursorRepositoryInterface
	adapters     *channel.Registry
	invoker      *channel.Invoker
	reconciler   *LeadReconciler
	stateMachine *CampaignStateMachine
	interval     time.Duration
	concurrency  int
	logger       *zap.Logger
	nowFn        func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewPollingScheduler(
	campaignRepo repository.CampaignRepositoryInterface,
	leadRepo repository.LeadRepositoryInterface,
	cursorRepo repository.CursorRepositoryInterface,
	adapters *channel.Registry,
	invoker *channel.Invoker,
	reconciler *LeadReconciler,
	stateMachine *CampaignStateMachine,
	interval time.Duration,
	concurrency int,
	logger *zap.Logger,
) *PollingScheduler {
	return &PollingScheduler{
		campaignRepo: campaignRepo,
		leadRepo:     leadRepo,
		cursorRepo:   cursorRepo,
		adapters:     adapters,
		invoker:      invoker,
		reconciler:   reconciler,
		stateMachine: stateMachine,
		interval:     interval,
		concurrency:  concurrency,
		logger:       logger.Named("polling"),
		nowFn:        func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the timer loop. Calling Start while already running is
// a no-op.
func (p *PollingScheduler) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.running = true
	go p.run(ctx, done)
	p.logger.Info("polling scheduler started", zap.Duration("interval", p.interval))
}

// Stop cancels the pending timer and waits for the loop to exit; no
// tick fires after Stop returns. Safe to call when never started.
func (p *PollingScheduler) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.running = false
	p.mu.Unlock()

	cancel()
	<-done
	p.logger.Info("polling scheduler stopped")
}

func (p *PollingScheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Tick(ctx); err != nil {
				p.logger.Error("tick failed", zap.Error(err))
			}
		}
	}
}

// Tick polls every campaign whose cursor is due. Campaigns are polled
// concurrently with a bound, so one slow adapter cannot block the rest
// of the tick.
func (p *PollingScheduler) Tick(ctx context.Context) error {
	cursors, err := p.cursorRepo.ListDue(p.nowFn())
	if err != nil {
		return err
	}

	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)
	for _, cursor := range cursors {
		cursor := cursor
		g.Go(func() error {
			p.pollCampaign(ctx, cursor)
			return nil
		})
	}
	return g.Wait()
}

func (p *PollingScheduler) pollCampaign(ctx context.Context, cursor *model.PollingCursor) {
	// The cursor advances whatever happens below, so a failing campaign
	// is revisited on schedule instead of hogging every tick.
	defer func() {
		next := p.nowFn().Add(cursor.Interval())
		if err := p.cursorRepo.Advance(cursor.CampaignID, next); err != nil {
			p.logger.Warn("cursor advance failed",
				zap.Int("campaign_id", cursor.CampaignID), zap.Error(err))
		}
	}()

	campaign, err := p.campaignRepo.GetByID(cursor.CampaignID)
	if err != nil {
		p.logger.Warn("campaign lookup failed",
			zap.Int("campaign_id", cursor.CampaignID), zap.Error(err))
		return
	}
	if campaign.Status != model.CampaignActive {
		return
	}

	steps, err := p.campaignRepo.StepsByCampaign(campaign.ID)
	if err != nil {
		p.logger.Warn("steps lookup failed", zap.Int("campaign_id", campaign.ID), zap.Error(err))
		return
	}
	leads, err := p.leadRepo.ListAwaitingStatus(campaign.ID)
	if err != nil {
		p.logger.Warn("lead listing failed", zap.Int("campaign_id", campaign.ID), zap.Error(err))
		return
	}

	reconciled := false
	for _, lead := range leads {
		if ctx.Err() != nil {
			return
		}
		// The action awaiting an outcome is the one last dispatched.
		idx := lead.CurrentStep - 1
		if idx < 0 || idx >= len(steps) {
			continue
		}
		step := steps[idx]

		adapter, err := p.adapters.Get(step.Channel)
		if err != nil {
			p.logger.Warn("no adapter for channel",
				zap.String("channel", step.Channel), zap.Int("lead_id", lead.ID))
			continue
		}

		snap, err := p.invoker.Status(ctx, adapter, channel.LeadRef{
			LeadID:     lead.ID,
			ContactRef: lead.ContactRef,
			Channel:    step.Channel,
		})
		if err != nil {
			// Timeouts and transient adapter failures are isolated per
			// lead; the rest of the campaign still gets polled.
			p.logger.Warn("status check failed", zap.Int("lead_id", lead.ID), zap.Error(err))
			continue
		}

		changed, err := p.reconciler.Apply(lead.ID, snap)
		if err != nil {
			p.logger.Warn("reconcile failed", zap.Int("lead_id", lead.ID), zap.Error(err))
			continue
		}
		if changed {
			reconciled = true
		}
	}

	if reconciled {
		// A reply may have terminalized the last outstanding lead.
		if _, err := p.stateMachine.CompleteIfFinished(campaign.ID); err != nil {
			p.logger.Warn("completion check failed", zap.Int("campaign_id", campaign.ID), zap.Error(err))
		}
	}
}

// SetNow overrides the clock; tests only.
func (p *PollingScheduler) SetNow(now func() time.Time) { p.nowFn = now }
