package messaging

import (
	"context"
	"encoding/json"
	"time"

	"example.com/backstage/services/erpgateway/config"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Event types published by the gateway
const (
	EventItemChanged      = "item.changed"
	EventContractUpserted = "contract.upserted"
)

const contentType = "application/json"

// Event is the envelope of every published message
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Source     string      `json:"source"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

// NewEvent wraps data in an envelope with a fresh id
func NewEvent(eventType, source string, data interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Source:     source,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher sends gateway events
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
	PublishAll(ctx context.Context, eventType string, data []interface{}) error
	Close() error
}

// ServiceBusPublisher publishes events to an Azure Service Bus queue
type ServiceBusPublisher struct {
	client    *azservicebus.Client
	sender    *azservicebus.Sender
	queueName string
	source    string
}

// NewPublisher creates a Service Bus publisher. Without a connection string
// events are only logged.
func NewPublisher(cfg config.AzureConfig, source string) (Publisher, error) {
	if cfg.QueueConnStr == "" {
		log.Warn().Msg("Azure Service Bus connection string not provided, events will not be published")
		return NopPublisher{}, nil
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}

	return &ServiceBusPublisher{
		client:    client,
		sender:    sender,
		queueName: cfg.QueueName,
		source:    source,
	}, nil
}

// Publish sends a single event
func (p *ServiceBusPublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	msg, err := newMessage(NewEvent(eventType, p.source, data))
	if err != nil {
		return err
	}
	if err := p.sender.SendMessage(ctx, msg, nil); err != nil {
		return errors.Wrapf(err, "failed to publish %s", eventType)
	}
	return nil
}

// PublishAll sends one event per element, packing them into as few batches as the queue allows
func (p *ServiceBusPublisher) PublishAll(ctx context.Context, eventType string, data []interface{}) error {
	if len(data) == 0 {
		return nil
	}

	batch, err := p.sender.NewMessageBatch(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create message batch")
	}

	for _, d := range data {
		msg, err := newMessage(NewEvent(eventType, p.source, d))
		if err != nil {
			return err
		}

		err = batch.AddMessage(msg, nil)
		if errors.Is(err, azservicebus.ErrMessageTooLarge) {
			if batch.NumMessages() == 0 {
				return errors.Wrapf(err, "%s event exceeds the batch size", eventType)
			}
			if err := p.sender.SendMessageBatch(ctx, batch, nil); err != nil {
				return errors.Wrapf(err, "failed to publish %s batch", eventType)
			}
			if batch, err = p.sender.NewMessageBatch(ctx, nil); err != nil {
				return errors.Wrap(err, "failed to create message batch")
			}
			err = batch.AddMessage(msg, nil)
		}
		if err != nil {
			return errors.Wrapf(err, "failed to add %s event to batch", eventType)
		}
	}

	if batch.NumMessages() > 0 {
		if err := p.sender.SendMessageBatch(ctx, batch, nil); err != nil {
			return errors.Wrapf(err, "failed to publish %s batch", eventType)
		}
	}

	log.Debug().Str("queue", p.queueName).Str("type", eventType).Int("count", len(data)).Msg("Events published")
	return nil
}

// Close closes the sender and the client
func (p *ServiceBusPublisher) Close() error {
	if p.sender != nil {
		if err := p.sender.Close(context.Background()); err != nil {
			return err
		}
	}
	if p.client != nil {
		return p.client.Close(context.Background())
	}
	return nil
}

func newMessage(event Event) (*azservicebus.Message, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal %s event", event.Type)
	}

	ct := contentType
	subject := event.Type
	id := event.ID
	return &azservicebus.Message{
		Body:        body,
		MessageID:   &id,
		Subject:     &subject,
		ContentType: &ct,
		ApplicationProperties: map[string]interface{}{
			"source": event.Source,
			"type":   event.Type,
			"time":   event.OccurredAt.Format(time.RFC3339),
		},
	}, nil
}

// NopPublisher logs events instead of sending them
type NopPublisher struct{}

// Publish implements Publisher
func (NopPublisher) Publish(_ context.Context, eventType string, _ interface{}) error {
	log.Debug().Str("type", eventType).Msg("Event not published, messaging disabled")
	return nil
}

// PublishAll implements Publisher
func (NopPublisher) PublishAll(_ context.Context, eventType string, data []interface{}) error {
	log.Debug().Str("type", eventType).Int("count", len(data)).Msg("Events not published, messaging disabled")
	return nil
}

// Close implements Publisher
func (NopPublisher) Close() error { return nil }
