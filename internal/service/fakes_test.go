package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/outreach-backend/internal/channel"
	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/service"
)

// --- In-memory repositories ---

type fakeCampaignRepo struct {
	mu        sync.Mutex
	nextID    int
	campaigns map[int]*model.Campaign
	steps     map[int][]*model.Step
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{
		campaigns: map[int]*model.Campaign{},
		steps:     map[int][]*model.Step{},
	}
}

func (f *fakeCampaignRepo) Create(c *model.Campaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c.ID = f.nextID
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	cp := *c
	f.campaigns[c.ID] = &cp
	return nil
}

func (f *fakeCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCampaignRepo) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := []*model.Campaign{}
	for _, c := range f.campaigns {
		if status != "" && string(c.Status) != status {
			continue
		}
		cp := *c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	if offset > len(all) {
		return []*model.Campaign{}, total, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (f *fakeCampaignRepo) ListByStatus(status model.CampaignStatus) ([]*model.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Campaign{}
	for _, c := range f.campaigns {
		if c.Status == status {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCampaignRepo) UpdateStatus(id int, status model.CampaignStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	c.Status = status
	return nil
}

func (f *fakeCampaignRepo) CreateStep(s *model.Step) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	s.ID = f.nextID
	cp := *s
	f.steps[s.CampaignID] = append(f.steps[s.CampaignID], &cp)
	return nil
}

func (f *fakeCampaignRepo) StepsByCampaign(id int) ([]*model.Step, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Step{}
	for _, s := range f.steps[id] {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f *fakeCampaignRepo) GetCampaignStats(id int) (map[string]int, error) {
	return map[string]int{}, nil
}

type fakeLeadRepo struct {
	mu     sync.Mutex
	nextID int
	leads  map[int]*model.Lead

	// When set, the next UpdateIfVersion bumps the stored version and
	// returns a conflict, like a racer committing between our read and
	// our write.
	conflictNextUpdate bool
}

func newFakeLeadRepo() *fakeLeadRepo {
	return &fakeLeadRepo{leads: map[int]*model.Lead{}}
}

func (f *fakeLeadRepo) Create(l *model.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	l.ID = f.nextID
	l.Version = 1
	if l.Status == "" {
		l.Status = model.LeadPending
	}
	cp := *l
	f.leads[l.ID] = &cp
	return nil
}

func (f *fakeLeadRepo) GetByID(id int) (*model.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok {
		return nil, appErrors.NewLeadNotFound(id)
	}
	cp := *l
	return &cp, nil
}

func (f *fakeLeadRepo) ListByCampaign(campaignID int) ([]*model.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Lead{}
	for _, l := range f.leads {
		if l.CampaignID == campaignID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeLeadRepo) ListDispatchable(campaignID, limit int) ([]*model.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Lead{}
	for _, l := range f.leads {
		if l.CampaignID == campaignID && !l.Status.Terminal() {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.LastActionAt == nil && b.LastActionAt == nil:
			return a.ID < b.ID
		case a.LastActionAt == nil:
			return true
		case b.LastActionAt == nil:
			return false
		case !a.LastActionAt.Equal(*b.LastActionAt):
			return a.LastActionAt.Before(*b.LastActionAt)
		default:
			return a.ID < b.ID
		}
	})
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeLeadRepo) ListAwaitingStatus(campaignID int) ([]*model.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Lead{}
	for _, l := range f.leads {
		if l.CampaignID == campaignID && l.Status == model.LeadInProgress {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeLeadRepo) UpdateIfVersion(l *model.Lead, expectedVersion int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.leads[l.ID]
	if !ok {
		return appErrors.NewLeadNotFound(l.ID)
	}
	if f.conflictNextUpdate {
		f.conflictNextUpdate = false
		stored.Version++
		return appErrors.NewConcurrencyConflict(l.ID, expectedVersion)
	}
	if stored.Version != expectedVersion {
		return appErrors.NewConcurrencyConflict(l.ID, expectedVersion)
	}
	cp := *l
	cp.Version = expectedVersion + 1
	f.leads[l.ID] = &cp
	l.Version = cp.Version
	return nil
}

func (f *fakeLeadRepo) CountNonTerminal(campaignID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, l := range f.leads {
		if l.CampaignID == campaignID && !l.Status.Terminal() {
			n++
		}
	}
	return n, nil
}

func (f *fakeLeadRepo) CountByCampaign(campaignID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, l := range f.leads {
		if l.CampaignID == campaignID {
			n++
		}
	}
	return n, nil
}

// bumpVersion simulates a concurrent writer racing us.
func (f *fakeLeadRepo) bumpVersion(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.leads[id]; ok {
		l.Version++
	}
}

type fakeActivityRepo struct {
	mu         sync.Mutex
	activities []*model.Activity
}

func (f *fakeActivityRepo) Append(a *model.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	f.activities = append(f.activities, &cp)
	return nil
}

func (f *fakeActivityRepo) ListByLead(leadID int) ([]*model.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Activity{}
	for _, a := range f.activities {
		if a.LeadID == leadID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeActivityRepo) ListByCampaign(campaignID int) ([]*model.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Activity{}
	for _, a := range f.activities {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeActivityRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.activities)
}

type fakeCursorRepo struct {
	mu      sync.Mutex
	cursors map[int]*model.PollingCursor
}

func newFakeCursorRepo() *fakeCursorRepo {
	return &fakeCursorRepo{cursors: map[int]*model.PollingCursor{}}
}

func (f *fakeCursorRepo) Ensure(campaignID int, interval time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cursors[campaignID]; ok {
		return nil
	}
	f.cursors[campaignID] = &model.PollingCursor{
		CampaignID:      campaignID,
		NextPollAt:      time.Now().UTC(),
		IntervalSeconds: int(interval.Seconds()),
	}
	return nil
}

func (f *fakeCursorRepo) ListDue(now time.Time) ([]*model.PollingCursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.PollingCursor{}
	for _, c := range f.cursors {
		if !c.NextPollAt.After(now) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CampaignID < out[j].CampaignID })
	return out, nil
}

func (f *fakeCursorRepo) Advance(campaignID int, next time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.cursors[campaignID]; ok {
		c.NextPollAt = next
	}
	return nil
}

func (f *fakeCursorRepo) nextPollAt(campaignID int) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.cursors[campaignID]; ok {
		return c.NextPollAt
	}
	return time.Time{}
}

// --- Scripted channel adapter ---

type scriptedAdapter struct {
	mu       sync.Mutex
	sendFn   func(ctx context.Context, action channel.Action) (channel.Result, error)
	statusFn func(ctx context.Context, ref channel.LeadRef) (channel.StateSnapshot, error)
	sends    []channel.Action
}

func (a *scriptedAdapter) Send(ctx context.Context, action channel.Action) (channel.Result, error) {
	a.mu.Lock()
	a.sends = append(a.sends, action)
	fn := a.sendFn
	a.mu.Unlock()
	if fn != nil {
		return fn(ctx, action)
	}
	return channel.Result{Outcome: model.OutcomeSuccess, Detail: "ok"}, nil
}

func (a *scriptedAdapter) Status(ctx context.Context, ref channel.LeadRef) (channel.StateSnapshot, error) {
	a.mu.Lock()
	fn := a.statusFn
	a.mu.Unlock()
	if fn != nil {
		return fn(ctx, ref)
	}
	return channel.StateSnapshot{}, nil
}

func (a *scriptedAdapter) sendCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sends)
}

// --- Fixture ---

type fixture struct {
	campaigns  *fakeCampaignRepo
	leads      *fakeLeadRepo
	activities *fakeActivityRepo
	cursors    *fakeCursorRepo
	adapter    *scriptedAdapter
	registry   *channel.Registry
	sm         *service.CampaignStateMachine
	scheduler  *service.StepScheduler
	reconciler *service.LeadReconciler
}

func newFixture() *fixture {
	campaigns := newFakeCampaignRepo()
	leads := newFakeLeadRepo()
	activities := &fakeActivityRepo{}
	cursors := newFakeCursorRepo()
	adapter := &scriptedAdapter{}

	registry := channel.NewRegistry()
	registry.Register("linkedin", adapter)
	registry.Register("email", adapter)

	logger := zap.NewNop()
	sm := &service.CampaignStateMachine{
		CampaignRepo: campaigns,
		LeadRepo:     leads,
		CursorRepo:   cursors,
		PollInterval: time.Minute,
		Logger:       logger,
	}
	scheduler := &service.StepScheduler{
		CampaignRepo: campaigns,
		LeadRepo:     leads,
		ActivityRepo: activities,
		Adapters:     registry,
		Invoker:      &channel.Invoker{Timeout: 200 * time.Millisecond},
		StateMachine: sm,
		RateLimits:   map[string]int{},
		BatchSize:    100,
		Logger:       logger,
	}
	reconciler := &service.LeadReconciler{LeadRepo: leads, Logger: logger}

	return &fixture{
		campaigns:  campaigns,
		leads:      leads,
		activities: activities,
		cursors:    cursors,
		adapter:    adapter,
		registry:   registry,
		sm:         sm,
		scheduler:  scheduler,
		reconciler: reconciler,
	}
}

func (f *fixture) addCampaign(status model.CampaignStatus, stepDefs ...model.Step) *model.Campaign {
	c := &model.Campaign{OrgID: 1, Name: "outreach", Status: status}
	if err := f.campaigns.Create(c); err != nil {
		panic(err)
	}
	for i := range stepDefs {
		s := stepDefs[i]
		s.CampaignID = c.ID
		s.Position = i
		if s.Channel == "" {
			s.Channel = "linkedin"
		}
		if s.ActionType == "" {
			s.ActionType = "connect"
		}
		if err := f.campaigns.CreateStep(&s); err != nil {
			panic(err)
		}
	}
	return c
}

func (f *fixture) addLead(campaignID int, currentStep int, status model.LeadStatus, lastActionAt *time.Time) *model.Lead {
	l := &model.Lead{
		CampaignID:   campaignID,
		ContactRef:   "contact",
		CurrentStep:  currentStep,
		Status:       status,
		LastActionAt: lastActionAt,
	}
	if err := f.leads.Create(l); err != nil {
		panic(err)
	}
	return l
}

func timePtr(t time.Time) *time.Time { return &t }
