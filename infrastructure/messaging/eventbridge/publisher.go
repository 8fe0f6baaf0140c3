// Package eventbridge forwards accepted quote submissions to AWS EventBridge.
package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"github.com/suryansh-business-work/party-wings-website/domain/quote"
)

const maxRetries = 3

// API is the subset of the EventBridge client the publisher uses.
type API interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// ErrRejected is returned when EventBridge accepted the call but failed the entry.
var ErrRejected = errors.New("event rejected by EventBridge")

// Publisher sends QuoteSubmitted events to an event bus.
type Publisher struct {
	client       API
	eventBusName string
	source       string
	logger       *zap.Logger
	backoff      time.Duration
}

// NewPublisher creates a publisher for eventBusName.
func NewPublisher(client API, eventBusName, source string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		source:       source,
		logger:       logger,
		backoff:      100 * time.Millisecond,
	}
}

// PublishSubmitted publishes ev, retrying transport failures with
// exponential backoff.
func (p *Publisher) PublishSubmitted(ctx context.Context, ev quote.Submitted) error {
	detail, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	input := &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{{
			EventBusName: aws.String(p.eventBusName),
			Source:       aws.String(p.source),
			DetailType:   aws.String(quote.EventQuoteSubmitted),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(ev.SubmittedAt),
		}},
	}

	backoff := p.backoff
	for attempt := 1; ; attempt++ {
		err = p.put(ctx, input)
		if err == nil || errors.Is(err, ErrRejected) || attempt == maxRetries {
			break
		}
		p.logger.Warn("Retrying event publication",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}

	p.logger.Debug("Event published to EventBridge",
		zap.String("id", ev.ID),
		zap.String("eventBus", p.eventBusName),
	)
	return nil
}

func (p *Publisher) put(ctx context.Context, input *eventbridge.PutEventsInput) error {
	result, err := p.client.PutEvents(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to publish event to EventBridge: %w", err)
	}
	if result.FailedEntryCount > 0 {
		for _, entry := range result.Entries {
			if entry.ErrorCode != nil {
				p.logger.Error("Failed to publish event",
					zap.String("errorCode", aws.ToString(entry.ErrorCode)),
					zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return ErrRejected
	}
	return nil
}

// LogPublisher records submissions in the log when no event bus is configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishSubmitted(_ context.Context, ev quote.Submitted) error {
	p.logger.Info("Quote submitted",
		zap.String("id", ev.ID),
		zap.String("name", ev.Submission.Name),
		zap.String("email", ev.Submission.Email),
		zap.Strings("services", ev.Submission.SelectedServices.IDs()),
	)
	return nil
}
