// internal/service/reconcile.go
package service

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/outreach-backend/internal/channel"
	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/repository"
)

// LeadReconciler folds externally observed channel state (replies,
// connection acceptances) into lead rows. Both the polling loop and the
// AMQP event worker go through here, so the compare-and-swap discipline
// is identical on both paths.
type LeadReconciler struct {
	LeadRepo repository.LeadRepositoryInterface
	Logger   *zap.Logger
	Now      func() time.Time
}

func (r *LeadReconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

// Apply reconciles one snapshot. Returns whether the lead changed.
// A version conflict is retried once with fresh state; a second
// conflict leaves the lead for the next tick.
func (r *LeadReconciler) Apply(leadID int, snap channel.StateSnapshot) (bool, error) {
	lead, err := r.LeadRepo.GetByID(leadID)
	if err != nil {
		return false, err
	}
	return r.apply(lead, snap, true)
}

func (r *LeadReconciler) apply(lead *model.Lead, snap channel.StateSnapshot, retry bool) (bool, error) {
	if lead.Status.Terminal() {
		return false, nil
	}

	changed := false
	if snap.Replied {
		lead.Status = model.LeadReplied
		changed = true
	}
	if snap.Accepted && lead.AcceptedAt == nil {
		// First observed acceptance restarts the next step's delay
		// clock; later polls reporting the same acceptance are ignored.
		now := r.now()
		lead.AcceptedAt = &now
		if !snap.Replied {
			lead.LastActionAt = &now
		}
		changed = true
	}
	if !changed {
		return false, nil
	}

	err := r.LeadRepo.UpdateIfVersion(lead, lead.Version)
	if err == nil {
		if lead.Status == model.LeadReplied {
			r.Logger.Info("lead replied", zap.Int("lead_id", lead.ID))
		}
		return true, nil
	}

	var conflict *appErrors.ConcurrencyConflict
	if errors.As(err, &conflict) && retry {
		fresh, readErr := r.LeadRepo.GetByID(lead.ID)
		if readErr != nil {
			return false, readErr
		}
		return r.apply(fresh, snap, false)
	}
	return false, err
}
