package services

import (
	"context"

	"crewdispatch/internal/events"
	"crewdispatch/internal/logger"
)

// Notifier delivers a message to a chat recipient. Delivery is best-effort:
// implementations report success but never return an error, so a failed send
// can never roll back or abort a state transition.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) bool
}

// BusNotifier publishes outbound messages on the event bus; the chat
// transport subscribes on the other side and handles actual delivery.
type BusNotifier struct {
	bus *events.EventBus
	log logger.Logger
}

func NewBusNotifier(bus *events.EventBus) *BusNotifier {
	return &BusNotifier{
		bus: bus,
		log: logger.New("BusNotifier"),
	}
}

func (n *BusNotifier) Send(ctx context.Context, chatID int64, text string) bool {
	log := n.log.TraceFromContext(ctx).Function("Send")

	err := n.bus.Publish(events.OUTBOUND_CHANNEL, events.Event{
		Type:   events.NOTIFY,
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		log.Warn("failed to publish outbound message", "chatID", chatID, "error", err)
		return false
	}

	return true
}
