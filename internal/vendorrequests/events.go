package vendorrequests

import (
	"context"
	"errors"
	"time"

	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

// StatusChanged is emitted after every committed workflow action, including
// actions that keep the status, such as banking updates and info requests.
type StatusChanged struct {
	RequestID     int64           `json:"requestId"`
	RequestNumber string          `json:"requestNumber"`
	CompanyName   string          `json:"companyName"`
	Action        workflow.Action `json:"action"`
	From          workflow.Status `json:"from"`
	To            workflow.Status `json:"to"`
	ActorID       int64           `json:"actorId"`
	RequestedBy   int64           `json:"requestedBy"`
	Note          string          `json:"note,omitempty"`
	At            time.Time       `json:"at"`
}

// Changed reports whether the status moved.
func (e StatusChanged) Changed() bool {
	return e.From != e.To
}

// EventPublisher receives committed workflow events.
type EventPublisher interface {
	Publish(ctx context.Context, evt StatusChanged) error
}

// Publishers fans an event out to every publisher and joins their errors.
type Publishers []EventPublisher

// Publish implements EventPublisher.
func (p Publishers) Publish(ctx context.Context, evt StatusChanged) error {
	var errs []error
	for _, pub := range p {
		if pub == nil {
			continue
		}
		if err := pub.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
