package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/Lllllllleong/printerbridge/internal/models"
)

const (
	eventSource     = "printer-bridge"
	eventTypePrefix = "com.printerbridge.order."
)

// Notifier publishes order status changes. Implementations log delivery
// failures instead of returning them.
type Notifier interface {
	Notify(ctx context.Context, ev models.StatusEvent)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, models.StatusEvent) {}

// CloudEventNotifier posts status events to an HTTP sink as CloudEvents.
type CloudEventNotifier struct {
	client cloudevents.Client
	source string
}

func NewCloudEventNotifier(sinkURL string) (*CloudEventNotifier, error) {
	if sinkURL == "" {
		return nil, fmt.Errorf("sinkURL must be provided to create a notifier")
	}
	client, err := cloudevents.NewClientHTTP(cloudevents.WithTarget(sinkURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create CloudEvents client: %w", err)
	}
	return &CloudEventNotifier{client: client, source: eventSource}, nil
}

func (n *CloudEventNotifier) Notify(ctx context.Context, ev models.StatusEvent) {
	event, err := newStatusCloudEvent(n.source, ev, time.Now())
	if err != nil {
		slog.Error("Failed to build status event", "orderId", ev.OrderID, "error", err)
		return
	}
	if result := n.client.Send(ctx, event); !cloudevents.IsACK(result) {
		slog.Warn("Status event not delivered.", "orderId", ev.OrderID, "type", event.Type(), "error", result)
	}
}

func newStatusCloudEvent(source string, ev models.StatusEvent, now time.Time) (cloudevents.Event, error) {
	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetSource(source)
	event.SetType(eventTypePrefix + strings.ToLower(string(ev.Status)))
	event.SetSubject(ev.OrderID)
	event.SetTime(now)
	if err := event.SetData(cloudevents.ApplicationJSON, ev); err != nil {
		return event, fmt.Errorf("failed to encode event data: %w", err)
	}
	return event, nil
}
