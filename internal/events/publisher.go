// Package events broadcasts approval transitions and event lifecycle changes
// over NATS so that other campus systems can react to them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/Lowii-3dy/campus-sched/internal/application"
	"github.com/Lowii-3dy/campus-sched/internal/approval"
	"github.com/Lowii-3dy/campus-sched/internal/logging"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "campus.scheduling"

// Conn is the subset of *nats.Conn used for publishing.
type Conn interface {
	PublishMsg(msg *nats.Msg) error
}

// Publisher implements application.EventPublisher on top of NATS.
type Publisher struct {
	conn   Conn
	prefix string
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
	close  func()
}

var _ application.EventPublisher = (*Publisher)(nil)

// Connect dials the NATS server and returns a publisher bound to it.
func Connect(url, prefix string, logger *slog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name("campus-sched"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	publisher := NewPublisher(nc, prefix, logger)
	publisher.close = nc.Close
	publisher.logger.Info("connected to NATS", "url", nc.ConnectedUrlRedacted())
	return publisher, nil
}

// NewPublisher wraps an existing connection.
func NewPublisher(conn Conn, prefix string, logger *slog.Logger) *Publisher {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, prefix: prefix, now: time.Now, newID: uuid.NewString, logger: logger}
}

// Close closes the connection opened by Connect, if any.
func (p *Publisher) Close() {
	if p != nil && p.close != nil {
		p.close()
	}
}

// ApprovalMessage is the payload of `<prefix>.approval.<action>`.
type ApprovalMessage struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	EventID     string    `json:"event_id"`
	OrganizerID string    `json:"organizer_id"`
	From        string    `json:"from,omitempty"`
	To          string    `json:"to"`
	ActorID     string    `json:"actor_id"`
	ActorRole   string    `json:"actor_role"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	Timestamp   time.Time `json:"timestamp"`
}

// EventMessage is the payload of `<prefix>.event.<action>`.
type EventMessage struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	EventID     string     `json:"event_id"`
	ScheduleID  string     `json:"schedule_id"`
	OrganizerID string     `json:"organizer_id"`
	Title       string     `json:"title,omitempty"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	Building    string     `json:"building,omitempty"`
	Room        string     `json:"room,omitempty"`
	Status      string     `json:"status"`
	Recurrence  string     `json:"recurrence,omitempty"`
	Until       *time.Time `json:"until,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// ApprovalSubject returns the subject for an approval action.
func (p *Publisher) ApprovalSubject(action approval.Action) string {
	return p.prefix + ".approval." + string(action)
}

// EventSubject returns the subject for a lifecycle action.
func (p *Publisher) EventSubject(action application.LifecycleAction) string {
	return p.prefix + ".event." + string(action)
}

// PublishApprovalTransition announces an applied approval transition.
func (p *Publisher) PublishApprovalTransition(ctx context.Context, record approval.Record, transition approval.Transition) error {
	if p == nil || p.conn == nil {
		return nil
	}
	subject := p.ApprovalSubject(transition.Action)
	message := ApprovalMessage{
		ID:          p.newID(),
		Type:        "approval." + string(transition.Action),
		EventID:     record.EventID,
		OrganizerID: record.OrganizerID,
		From:        string(transition.From),
		To:          string(transition.To),
		ActorID:     transition.ActorID,
		ActorRole:   string(transition.ActorRole),
		Reason:      transition.Reason,
		OccurredAt:  transition.At.UTC(),
		Timestamp:   p.now().UTC(),
	}
	return p.publish(ctx, subject, message.ID, message, "event_id", record.EventID)
}

// PublishEventLifecycle announces a created, updated or deleted event.
func (p *Publisher) PublishEventLifecycle(ctx context.Context, action application.LifecycleAction, event application.Event) error {
	if p == nil || p.conn == nil {
		return nil
	}
	subject := p.EventSubject(action)
	message := EventMessage{
		ID:          p.newID(),
		Type:        "event." + string(action),
		EventID:     event.ID,
		ScheduleID:  event.ScheduleID,
		OrganizerID: event.OrganizerID,
		Title:       event.Title,
		Start:       event.Interval.Start.UTC(),
		End:         event.Interval.End.UTC(),
		Status:      string(event.Status),
		Timestamp:   p.now().UTC(),
	}
	if event.Location != nil {
		message.Building, message.Room = event.Location.Building, event.Location.Room
	}
	if event.Recurrence != nil {
		message.Recurrence = string(event.Recurrence.Frequency)
		message.Until = event.Recurrence.Until
	}
	return p.publish(ctx, subject, message.ID, message, "event_id", event.ID)
}

func (p *Publisher) publish(ctx context.Context, subject, id string, payload any, attrs ...any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, id)
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}

	logging.Resolve(ctx, p.logger).DebugContext(ctx, "published message", append([]any{"subject", subject, "message_id", id}, attrs...)...)
	return nil
}

// NopPublisher discards every message. It is used when NATS is not configured.
type NopPublisher struct{}

// PublishApprovalTransition implements application.EventPublisher.
func (NopPublisher) PublishApprovalTransition(context.Context, approval.Record, approval.Transition) error {
	return nil
}

// PublishEventLifecycle implements application.EventPublisher.
func (NopPublisher) PublishEventLifecycle(context.Context, application.LifecycleAction, application.Event) error {
	return nil
}
