// Package events carries catalog change notifications from the api to the
// worker over a redis stream.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Type string

const (
	ProductCreated     Type = "product.created"
	ProductUpdated     Type = "product.updated"
	ProductDeleted     Type = "product.deleted"
	ModuleCreated      Type = "module.created"
	ModuleUpdated      Type = "module.updated"
	ModuleDeleted      Type = "module.deleted"
	LessonCreated      Type = "lesson.created"
	LessonUpdated      Type = "lesson.updated"
	LessonDeleted      Type = "lesson.deleted"
	EntitlementGranted Type = "entitlement.granted"
	EntitlementRevoked Type = "entitlement.revoked"
	IntegritySweep     Type = "integrity.sweep"
)

// Catalog reports whether events of this type change catalog content.
func (t Type) Catalog() bool {
	switch t {
	case ProductCreated, ProductUpdated, ProductDeleted,
		ModuleCreated, ModuleUpdated, ModuleDeleted,
		LessonCreated, LessonUpdated, LessonDeleted:
		return true
	}
	return false
}

// Event is flattened into stream fields; empty ids are omitted.
type Event struct {
	Type          Type   `json:"type"`
	ProductID     string `json:"productId,omitempty"`
	ModuleID      string `json:"moduleId,omitempty"`
	LessonID      string `json:"lessonId,omitempty"`
	EntitlementID string `json:"entitlementId,omitempty"`
	UserID        string `json:"userId,omitempty"`
	ActorID       string `json:"actorId,omitempty"`
	OccurredAt    string `json:"occurredAt,omitempty"`
}

func (e Event) values() map[string]interface{} {
	values := map[string]interface{}{"type": string(e.Type)}
	add := func(k, v string) {
		if v != "" {
			values[k] = v
		}
	}
	add("productId", e.ProductID)
	add("moduleId", e.ModuleID)
	add("lessonId", e.LessonID)
	add("entitlementId", e.EntitlementID)
	add("userId", e.UserID)
	add("actorId", e.ActorID)
	add("occurredAt", e.OccurredAt)
	return values
}

// Decode rebuilds an Event from the fields of a stream message.
func Decode(values map[string]interface{}) (Event, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return Event{}, err
	}
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return Event{}, err
	}
	if e.Type == "" {
		return Event{}, fmt.Errorf("event without type")
	}
	return e, nil
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type StreamPublisher struct {
	client redis.Cmdable
	stream string
	maxLen int64
	now    func() time.Time
}

func NewStreamPublisher(client redis.Cmdable, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		stream: stream,
		maxLen: maxLen,
		now:    time.Now,
	}
}

func (p *StreamPublisher) Publish(ctx context.Context, event Event) error {
	if event.OccurredAt == "" {
		event.OccurredAt = p.now().UTC().Format(time.RFC3339)
	}
	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: event.values(),
	}).Result()
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Nop drops every event. Used when no redis is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]Type, len(r.events))
	for i, e := range r.events {
		types[i] = e.Type
	}
	return types
}
