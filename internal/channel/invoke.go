// internal/channel/invoke.go
package channel

import (
	"context"
	"errors"
	"time"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
)

// Invoker bounds every adapter call with a timeout and folds errors
// into the outcome taxonomy. A timed-out send is always a
// transient_error, never a success, and the step is not advanced.
type Invoker struct {
	Timeout time.Duration
}

func (i *Invoker) Send(ctx context.Context, a Adapter, action Action) Result {
	ctx, cancel := context.WithTimeout(ctx, i.Timeout)
	defer cancel()

	res, err := a.Send(ctx, action)
	if err != nil {
		return Result{Outcome: classify(err), Detail: err.Error()}
	}
	if res.Outcome == "" {
		res.Outcome = model.OutcomeSuccess
	}
	return res
}

func (i *Invoker) Status(ctx context.Context, a Adapter, ref LeadRef) (StateSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, i.Timeout)
	defer cancel()
	return a.Status(ctx, ref)
}

func classify(err error) model.Outcome {
	var perm *appErrors.PermanentChannelError
	if errors.As(err, &perm) {
		return model.OutcomePermanentError
	}
	// Deadline, cancellation, and anything unclassified are retryable.
	return model.OutcomeTransientError
}
