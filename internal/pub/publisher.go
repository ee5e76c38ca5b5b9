package pub

import (
	"context"
	"errors"

	"reconciliation-service/internal/domain"
)

//go:generate mockgen -destination=mocks/mock_publisher.go -source=publisher.go Publisher

// Publisher delivers reconciliation events. Delivery is best effort; callers
// log failures and never undo a committed reconciliation because of them.
type Publisher interface {
	Publish(ctx context.Context, evt *domain.ReconciliationEvent) error
}

// MultiPublisher fans an event out to every publisher.
type MultiPublisher struct {
	publishers []Publisher
}

func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	var ps []Publisher
	for _, p := range publishers {
		if p != nil {
			ps = append(ps, p)
		}
	}
	return &MultiPublisher{publishers: ps}
}

func (m *MultiPublisher) Publish(ctx context.Context, evt *domain.ReconciliationEvent) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *domain.ReconciliationEvent) error { return nil }
