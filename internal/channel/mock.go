// internal/channel/mock.go
package channel

import (
	"context"
	"math/rand"

	"github.com/unclebandit/outreach-backend/internal/model"
)

// MockAdapter simulates a channel for local development and seeding.
// Sends succeed with the configured rate and fail transiently otherwise.
type MockAdapter struct {
	SuccessRate float64 // 0..1, defaults to 0.9 when zero
	ReplyRate   float64 // chance Status reports a reply
}

func (m *MockAdapter) Send(ctx context.Context, action Action) (Result, error) {
	rate := m.SuccessRate
	if rate == 0 {
		rate = 0.9
	}
	if rand.Float64() < rate {
		return Result{Outcome: model.OutcomeSuccess, Detail: "mock send ok"}, nil
	}
	return Result{Outcome: model.OutcomeTransientError, Detail: "mock send failed"}, nil
}

func (m *MockAdapter) Status(ctx context.Context, ref LeadRef) (StateSnapshot, error) {
	if rand.Float64() < m.ReplyRate {
		return StateSnapshot{Replied: true, Detail: "mock reply"}, nil
	}
	return StateSnapshot{Accepted: true}, nil
}

var _ Adapter = (*MockAdapter)(nil)
