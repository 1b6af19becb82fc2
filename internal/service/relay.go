package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Strob0t/Studio/internal/port/broadcast"
	"github.com/Strob0t/Studio/internal/port/messagequeue"
)

// EventRelay forwards notification and billing events from the queue to
// this instance's websocket clients.
type EventRelay struct {
	queue messagequeue.Queue
	hub   broadcast.Broadcaster
}

// NewEventRelay creates an EventRelay.
func NewEventRelay(queue messagequeue.Queue, hub broadcast.Broadcaster) *EventRelay {
	return &EventRelay{queue: queue, hub: hub}
}

var relayedSubjects = map[string]string{
	messagequeue.SubjectNotificationCreated: broadcast.EventNotificationCreated,
	messagequeue.SubjectSubscriptionChanged: broadcast.EventSubscriptionChanged,
}

// Start subscribes to every relayed subject. The returned function stops all
// subscriptions.
func (r *EventRelay) Start(ctx context.Context) (func(), error) {
	var cancels []func()
	stop := func() {
		for _, c := range cancels {
			c()
		}
	}
	for prefix := range relayedSubjects {
		cancel, err := r.queue.Subscribe(ctx, prefix+".>", r.handle)
		if err != nil {
			stop()
			return nil, fmt.Errorf("subscribe %s: %w", prefix, err)
		}
		cancels = append(cancels, cancel)
	}
	return stop, nil
}

func (r *EventRelay) handle(ctx context.Context, subject string, data []byte) error {
	prefix, tenantID := messagequeue.SplitTenant(subject)
	event, ok := relayedSubjects[prefix]
	if !ok || tenantID == "" {
		return nil
	}
	r.hub.BroadcastToTenant(ctx, tenantID, event, json.RawMessage(data))
	return nil
}
