package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"techdispatch/internal/model"
	"techdispatch/internal/obs"
	"techdispatch/internal/store"
)

const (
	EventDispatchEvaluated = "dispatch.evaluated"
	EventConflictsHigh     = "dispatch.conflicts.high"
)

// Events lists the event types subscriptions may ask for.
var Events = []string{EventDispatchEvaluated, EventConflictsHigh}

type Publisher struct {
	Store store.Store
}

func NewPublisher(s store.Store) *Publisher {
	return &Publisher{Store: s}
}

// Emit sends an event to all subscriptions for the tenant and event type.
func (p *Publisher) Emit(ctx context.Context, tenantID, eventType string, data any) {
	subs, err := p.Store.GetSubscriptionsForEvent(ctx, tenantID, eventType)
	if err != nil {
		log.Printf("req_id=%s op=webhooks.emit tenant=%s type=%s err=%v", obs.RequestID(ctx), tenantID, eventType, err)
		return
	}
	if len(subs) == 0 {
		return
	}
	payload := map[string]any{
		"id":       fmt.Sprintf("evt_%d", time.Now().UnixNano()),
		"type":     eventType,
		"tenantId": tenantID,
		"ts":       time.Now().UTC().Format(time.RFC3339),
		"data":     data,
	}
	body, _ := json.Marshal(payload)
	for _, s := range subs {
		if _, err := p.Store.EnqueueWebhook(ctx, tenantID, s.ID, eventType, s.URL, s.Secret, body); err != nil {
			log.Printf("req_id=%s op=webhooks.enqueue tenant=%s sub=%s err=%v", obs.RequestID(ctx), tenantID, s.ID, err)
		}
	}
}

// EmitEvaluation announces a finished evaluation, plus a separate event when
// it found high-severity conflicts.
func (p *Publisher) EmitEvaluation(ctx context.Context, tenantID string, ev model.Evaluation) {
	p.Emit(ctx, tenantID, EventDispatchEvaluated, map[string]any{
		"date":  ev.Date,
		"stats": ev.Stats,
	})
	high := HighConflicts(ev.Conflicts)
	if len(high) > 0 {
		p.Emit(ctx, tenantID, EventConflictsHigh, map[string]any{
			"date":      ev.Date,
			"conflicts": high,
		})
	}
}

func HighConflicts(cs []model.Conflict) []model.Conflict {
	out := []model.Conflict{}
	for _, c := range cs {
		if c.Severity == model.SeverityHigh {
			out = append(out, c)
		}
	}
	return out
}
