package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tramita-io/tramita/internal/messaging"
	natsclient "github.com/tramita-io/tramita/internal/messaging/nats"
)

// Publisher publishes events to NATS subjects for the tramita service.
type Publisher struct {
	client *natsclient.Client
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(client *natsclient.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishMessageDispatched publishes a message dispatched event.
func (p *Publisher) PublishMessageDispatched(ctx context.Context, event *MessageDispatchedEvent) error {
	return p.publish(ctx, messaging.SubjectMessagesDispatched, event)
}

// PublishProcessForwarded publishes a process forwarded event.
func (p *Publisher) PublishProcessForwarded(ctx context.Context, event *ProcessForwardedEvent) error {
	return p.publish(ctx, messaging.SubjectProcessesForwarded, event)
}

// PublishMessageArchived publishes a message archived event.
func (p *Publisher) PublishMessageArchived(ctx context.Context, event *MessageArchivedEvent) error {
	return p.publish(ctx, messaging.SubjectMessagesArchived, event)
}

// publish marshals data to JSON and publishes to the specified subject.
func (p *Publisher) publish(ctx context.Context, subject string, data interface{}) error {
	bytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return p.client.Publish(ctx, subject, bytes)
}
