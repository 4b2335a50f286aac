package main

import (
	"context"

	"ordersummary/server/storage"
)

// SummaryTrigger bridges movement completions into summary broadcasts.
// It is invoked synchronously on the write path, so it must return promptly
// and must never surface an error to the caller: the enclosing write cannot
// fail because broadcasting did.
type SummaryTrigger struct {
	store storage.Store
	hub   *Hub
}

// NewSummaryTrigger wires the trigger to the store and hub, and marks the
// hub's change callback as registered.
func NewSummaryTrigger(store storage.Store, hub *Hub) *SummaryTrigger {
	hub.SetCallbackRegistered(true)
	return &SummaryTrigger{store: store, hub: hub}
}

// MovesCompleted inspects moves that just transitioned state, recomputes the
// summary for the affected product templates, and hands the rows to the hub.
// Only moves that completed as part of an outbound delivery count. The hub
// hand-off is non-blocking; errors are logged and swallowed.
func (t *SummaryTrigger) MovesCompleted(ctx context.Context, moves []*storage.StockMove) {
	templateIDs := make([]int64, 0, len(moves))
	deliveryIDs := make([]int64, 0, len(moves))
	seenTemplates := make(map[int64]struct{})
	seenDeliveries := make(map[int64]struct{})

	for _, m := range moves {
		if m.State != storage.StateDone {
			continue
		}
		if m.DeliveryID == nil || m.DeliveryType != storage.DeliveryTypeOutgoing {
			continue
		}
		if _, ok := seenTemplates[m.TemplateID]; !ok {
			seenTemplates[m.TemplateID] = struct{}{}
			templateIDs = append(templateIDs, m.TemplateID)
		}
		if _, ok := seenDeliveries[*m.DeliveryID]; !ok {
			seenDeliveries[*m.DeliveryID] = struct{}{}
			deliveryIDs = append(deliveryIDs, *m.DeliveryID)
		}
	}

	if len(templateIDs) == 0 {
		return
	}

	rows, err := t.store.OrderSummary(ctx, storage.SummaryFilter{TemplateIDs: templateIDs})
	if err != nil {
		logError("Failed to recompute summary after move completion",
			"template_ids", templateIDs, "error", err)
		return
	}
	if len(rows) == 0 {
		return
	}

	logDebug("Publishing summary update",
		"rows", len(rows), "template_ids", templateIDs, "delivery_ids", deliveryIDs)
	t.hub.Publish(rows, deliveryIDs)
}
