package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"counter-service/internal/entity"
)

// EventPublisher announces committed counter mutations.
type EventPublisher interface {
	Publish(ctx context.Context, event entity.CounterEvent) error
}

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher writes counter events as JSON messages.
type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// EventKey builds the message key: counter.<operation>.<instance id>
func EventKey(event entity.CounterEvent) string {
	return fmt.Sprintf("counter.%s.%s", event.Operation, event.InstanceID)
}

func (p *KafkaPublisher) Publish(ctx context.Context, event entity.CounterEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(EventKey(event)),
		Value: eventJSON,
	}

	return p.writer.WriteMessages(ctx, msg)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, entity.CounterEvent) error {
	return nil
}
