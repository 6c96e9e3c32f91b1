// Package channel fans out tenant events to live dashboard connections.
package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/abduss/shopdrop/internal/metrics"
	"go.uber.org/zap"
)

// Subscriber is one live dashboard connection.
//
// Deliver must not block: it either queues the event or returns an error, in which case
// the registry drops the subscriber from every channel. Close must be idempotent.
type Subscriber interface {
	ID() string
	Deliver(Event) error
	Close()
}

// Publisher sends an event to everyone currently subscribed to a tenant.
type Publisher interface {
	Publish(ctx context.Context, tenantID string, event Event)
}

// Registry maps tenants to their subscribers. Lock order is Registry.mu before
// tenantChannel.mu; fan-out holds only the channel lock.
type Registry struct {
	mu          sync.RWMutex
	channels    map[string]*tenantChannel
	memberships map[string]*membership
	log         *zap.Logger
}

type tenantChannel struct {
	mu      sync.Mutex
	members map[string]Subscriber
}

type membership struct {
	sub     Subscriber
	tenants map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		channels:    make(map[string]*tenantChannel),
		memberships: make(map[string]*membership),
		log:         log,
	}
}

// Join adds sub to the tenant's channel. Joining twice is a no-op.
func (r *Registry) Join(tenantID string, sub Subscriber) {
	if tenantID == "" || sub == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[tenantID]
	if !ok {
		ch = &tenantChannel{members: make(map[string]Subscriber)}
		r.channels[tenantID] = ch
	}

	ch.mu.Lock()
	if _, exists := ch.members[sub.ID()]; !exists {
		ch.members[sub.ID()] = sub
		metrics.Subscribers.Inc()
	}
	ch.mu.Unlock()

	m, ok := r.memberships[sub.ID()]
	if !ok {
		m = &membership{sub: sub, tenants: make(map[string]struct{})}
		r.memberships[sub.ID()] = m
	}
	m.tenants[tenantID] = struct{}{}
}

// Leave removes sub from one tenant's channel, if it is a member.
func (r *Registry) Leave(tenantID string, sub Subscriber) {
	if sub == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(tenantID, sub.ID())
	if m, ok := r.memberships[sub.ID()]; ok {
		delete(m.tenants, tenantID)
		if len(m.tenants) == 0 {
			delete(r.memberships, sub.ID())
		}
	}
}

// OnDisconnect removes sub from every channel it joined and closes it.
func (r *Registry) OnDisconnect(sub Subscriber) {
	if sub == nil {
		return
	}

	r.mu.Lock()
	if m, ok := r.memberships[sub.ID()]; ok {
		for tenantID := range m.tenants {
			r.removeLocked(tenantID, sub.ID())
		}
		delete(r.memberships, sub.ID())
	}
	r.mu.Unlock()

	sub.Close()
}

// Publish delivers event to the tenant's current members. Subscribers that fail delivery
// are disconnected; the rest are unaffected.
func (r *Registry) Publish(_ context.Context, tenantID string, event Event) {
	r.mu.RLock()
	ch := r.channels[tenantID]
	r.mu.RUnlock()
	if ch == nil {
		return
	}

	dead := ch.fanOut(event)
	for _, sub := range dead {
		metrics.EventsDropped.Inc()
		r.log.Info("dropping unreachable subscriber",
			zap.String("tenant_id", tenantID),
			zap.String("subscriber_id", sub.ID()),
		)
		r.OnDisconnect(sub)
	}
}

func (ch *tenantChannel) fanOut(event Event) []Subscriber {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	var dead []Subscriber
	for _, sub := range ch.members {
		if err := deliver(sub, event); err != nil {
			dead = append(dead, sub)
			continue
		}
		metrics.EventsDelivered.Inc()
	}
	return dead
}

// deliver turns a panicking subscriber into a failed delivery.
func deliver(sub Subscriber, event Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: deliver panicked: %v", ErrSubscriberClosed, rec)
		}
	}()
	return sub.Deliver(event)
}

// Count returns the number of subscribers in the tenant's channel.
func (r *Registry) Count(tenantID string) int {
	r.mu.RLock()
	ch := r.channels[tenantID]
	r.mu.RUnlock()
	if ch == nil {
		return 0
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.members)
}

func (r *Registry) removeLocked(tenantID, subID string) {
	ch, ok := r.channels[tenantID]
	if !ok {
		return
	}
	ch.mu.Lock()
	if _, exists := ch.members[subID]; exists {
		delete(ch.members, subID)
		metrics.Subscribers.Dec()
	}
	empty := len(ch.members) == 0
	ch.mu.Unlock()

	if empty {
		delete(r.channels, tenantID)
	}
}
