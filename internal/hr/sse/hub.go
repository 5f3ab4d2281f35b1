// Package sse fans notification events out to the browser connections of
// each employee.
package sse

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultBuffer is the per-connection queue length.
const DefaultBuffer = 64

// Event is one server-sent event.
type Event struct {
	Name string `json:"event"`
	Data string `json:"data"`
}

// Subscription is one open connection of an employee.
type Subscription struct {
	ID         string
	EmployeeID string
	Events     <-chan Event

	events chan Event
}

// Hub tracks the open subscriptions, keyed by employee.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[string]*Subscription
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{subs: make(map[string]map[string]*Subscription), logger: logger}
}

// Subscribe opens a connection for employeeID with a queue of buffer events
// (DefaultBuffer when buffer < 1).
func (h *Hub) Subscribe(employeeID string, buffer int) *Subscription {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	ch := make(chan Event, buffer)
	sub := &Subscription{ID: uuid.NewString(), EmployeeID: employeeID, Events: ch, events: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[employeeID] == nil {
		h.subs[employeeID] = make(map[string]*Subscription)
	}
	h.subs[employeeID][sub.ID] = sub
	h.logger.Debug("sse subscribed",
		zap.String("employee_id", employeeID),
		zap.String("subscription_id", sub.ID),
		zap.Int("employee_connections", len(h.subs[employeeID])))
	return sub
}

// Unsubscribe closes the subscription's queue. Events already queued stay
// readable. Calling it twice is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.subs[sub.EmployeeID]
	if _, ok := conns[sub.ID]; !ok {
		return
	}
	delete(conns, sub.ID)
	if len(conns) == 0 {
		delete(h.subs, sub.EmployeeID)
	}
	close(sub.events)
	h.logger.Debug("sse unsubscribed",
		zap.String("employee_id", sub.EmployeeID),
		zap.String("subscription_id", sub.ID))
}

// Connections returns the number of open subscriptions.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, conns := range h.subs {
		n += len(conns)
	}
	return n
}

// Send queues event on every connection of employeeID and returns how many
// accepted it. A connection whose queue is full misses the event.
func (h *Hub) Send(employeeID string, event Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, sub := range h.subs[employeeID] {
		select {
		case sub.events <- event:
			delivered++
		default:
			h.logger.Warn("sse queue full, event dropped",
				zap.String("subscription_id", sub.ID),
				zap.String("event", event.Name))
		}
	}
	return delivered
}

// Publish marshals payload to JSON and sends it as event name.
func (h *Hub) Publish(employeeID, name string, payload any) (int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	return h.Send(employeeID, Event{Name: name, Data: string(data)}), nil
}
