// Package notify delivers localized workflow notifications over the SSE hub.
package notify

import (
	"context"
	"sync"

	"github.com/bitfantasy/nimo-hr/internal/hr/i18n"
	"github.com/bitfantasy/nimo-hr/internal/hr/sse"
	"go.uber.org/zap"
)

// Event types pushed to clients.
const (
	EventTimesheetPending  = "timesheet_pending"
	EventTimesheetApproved = "timesheet_approved"
	EventTimesheetRejected = "timesheet_rejected"
	EventTimesheetReopened = "timesheet_reopened"
	EventBulkFinished      = "bulk_operation_finished"
)

// Message is one notification for one recipient. Params feed the localized
// text, Ref is passed through to the client untouched.
type Message struct {
	UserID    string
	Locale    string
	Event     string
	MessageID string
	Params    map[string]any
	Ref       map[string]string
}

// Sender delivers messages. Delivery is best effort.
type Sender interface {
	Send(ctx context.Context, msg Message)
}

// payload is the JSON body of the SSE event.
type payload struct {
	Text string            `json:"text"`
	Ref  map[string]string `json:"ref,omitempty"`
}

// HubSender renders messages with the translator and pushes them to the hub.
type HubSender struct {
	hub    *sse.Hub
	tr     *i18n.Translator
	logger *zap.Logger
}

func NewHubSender(hub *sse.Hub, tr *i18n.Translator, logger *zap.Logger) *HubSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HubSender{hub: hub, tr: tr, logger: logger}
}

func (s *HubSender) Send(ctx context.Context, msg Message) {
	if msg.UserID == "" {
		return
	}
	text := s.tr.T(msg.Locale, msg.MessageID, msg.Params)
	n, err := s.hub.Publish(msg.UserID, msg.Event, payload{Text: text, Ref: msg.Ref})
	if err != nil {
		s.logger.Warn("notification dropped",
			zap.String("user_id", msg.UserID),
			zap.String("event", msg.Event),
			zap.Error(err))
		return
	}
	s.logger.Debug("notification sent",
		zap.String("user_id", msg.UserID),
		zap.String("event", msg.Event),
		zap.Int("connections", n))
}

// Recorder keeps every message in memory. Tests use it in place of the hub.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Send(_ context.Context, msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

// Messages returns a copy of what was sent so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// For returns the messages addressed to userID.
func (r *Recorder) For(userID string) []Message {
	var out []Message
	for _, m := range r.Messages() {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out
}
