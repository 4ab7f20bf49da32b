package service

import (
	"context"
	"time"

	"github.com/hivedesk/portal/logger"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
)

// EmployeeEvent is published for each confirmed record mutation.
type EmployeeEvent struct {
	Type       string    `json:"type"`
	EmployeeID string    `json:"employeeId"`
	Name       string    `json:"name,omitempty"`
	Email      string    `json:"email,omitempty"`
	Department string    `json:"department,omitempty"`
	Position   string    `json:"position,omitempty"`
	StartDate  string    `json:"startDate,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventPublisher sends employee lifecycle events to Kafka. Publishing is
// best effort: failures are logged and never fail the mutation.
type EventPublisher struct {
	w     messageWriter
	topic string
	now   func() time.Time
}

func NewEventPublisher(brokers []string, topic string) *EventPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		Async:                  true,
		AllowAutoTopicCreation: true,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			logger.Warningf("kafka: "+msg, args...)
		}),
	}
	return &EventPublisher{w: w, topic: topic, now: time.Now}
}

func (p *EventPublisher) RecordsChanged(ctx context.Context, change RecordChange) {
	event := EmployeeEvent{
		Type:       "employee." + string(change.Action),
		EmployeeID: change.ID,
		Name:       change.Fields.Name,
		Email:      change.Fields.Email,
		Department: change.Fields.Department,
		Position:   change.Fields.Position,
		StartDate:  change.Fields.StartDate,
		OccurredAt: p.now().UTC(),
	}
	b, err := json.Marshal(event)
	if err != nil {
		logger.Warning("marshal employee event:", err)
		return
	}
	err = p.w.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(change.ID),
		Value: b,
	})
	if err != nil {
		logger.Warning("write employee event:", err)
	}
}

func (p *EventPublisher) Close() error {
	return p.w.Close()
}
