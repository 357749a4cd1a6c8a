package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"counter-service/internal/entity"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Handler receives every decoded counter event.
type Handler func(ctx context.Context, event entity.CounterEvent) error

type Consumer struct {
	reader  MessageReader
	handler Handler
}

func NewConsumer(reader MessageReader, handler Handler) *Consumer {
	return &Consumer{reader: reader, handler: handler}
}

// LogHandler writes each event to the consumer's logger.
func LogHandler(ctx context.Context, event entity.CounterEvent) error {
	logger.Info().
		Str("id", event.InstanceID).
		Str("name", event.Name).
		Str("operation", string(event.Operation)).
		Int64("count", event.Value).
		Time("at", event.At).
		Msg("Counter event")
	return nil
}

// Run reads counter events until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Error().Err(err).Msg("Error reading message")
			return err
		}

		c.processMessage(ctx, msg)
	}
}

// processMessage decodes one message; malformed messages are logged and skipped.
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) {
	var event entity.CounterEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		logger.Error().Err(err).Msgf("Error unmarshalling message at offset %d", msg.Offset)
		return
	}

	// key -> "counter.increment.<id>" or "counter.decrement.<id>"
	op, id, err := parseKey(string(msg.Key))
	if err != nil {
		logger.Error().Err(err).Msgf("Skipping message at offset %d", msg.Offset)
		return
	}
	if op != event.Operation || id != event.InstanceID {
		logger.Warn().Msgf("Message key %q does not match its payload", msg.Key)
	}

	if err := c.handler(ctx, event); err != nil {
		logger.Error().Err(err).Msgf("Error handling %s event for counter %s", event.Operation, event.InstanceID)
	}
}

func parseKey(key string) (entity.Operation, string, error) {
	parts := strings.SplitN(key, ".", 3)
	if len(parts) != 3 || parts[0] != "counter" {
		return "", "", fmt.Errorf("malformed event key %q", key)
	}
	op := entity.Operation(parts[1])
	if !op.Mutates() {
		return "", "", fmt.Errorf("unknown event type %q", parts[1])
	}
	return op, parts[2], nil
}
