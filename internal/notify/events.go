// Package notify publishes indexing run events to Amazon EventBridge.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"
)

const (
	// Source is the EventBridge source of every event published here.
	Source = "ytindexer"
	// DetailTypePlaylistIndexed marks the end of an indexing run.
	DetailTypePlaylistIndexed = "PlaylistIndexed"
)

// PutEventsAPI is the subset of the EventBridge client used by Publisher.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// PlaylistIndexed is the detail of a PlaylistIndexed event.
type PlaylistIndexed struct {
	RunID          string `json:"runId"`
	PlaylistURL    string `json:"playlistUrl"`
	Status         string `json:"status"`
	Processed      int    `json:"processed"`
	Indexed        int    `json:"indexed"`
	AlreadyIndexed int    `json:"alreadyIndexed"`
	Attempts       int    `json:"attempts"`
	FailedURL      string `json:"failedUrl,omitempty"`
	FailedStage    string `json:"failedStage,omitempty"`
	DurationMs     int64  `json:"durationMs"`
}

// Publisher sends events to one event bus. A Publisher without a bus name
// drops every event.
type Publisher struct {
	client  PutEventsAPI
	busName string
}

// NewPublisher creates a Publisher for busName.
func NewPublisher(client PutEventsAPI, busName string) *Publisher {
	return &Publisher{client: client, busName: busName}
}

// Enabled reports whether events are actually sent.
func (p *Publisher) Enabled() bool {
	return p != nil && p.client != nil && p.busName != ""
}

// PublishPlaylistIndexed emits a PlaylistIndexed event.
func (p *Publisher) PublishPlaylistIndexed(ctx context.Context, event PlaylistIndexed) error {
	if !p.Enabled() {
		return nil
	}

	detail, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal PlaylistIndexed: %w", err)
	}

	input := &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{
			{
				EventBusName: aws.String(p.busName),
				Source:       aws.String(Source),
				DetailType:   aws.String(DetailTypePlaylistIndexed),
				Detail:       aws.String(string(detail)),
			},
		},
	}

	result, err := p.client.PutEvents(ctx, input)
	if err != nil {
		log.Error().Err(err).Str("runId", event.RunID).Str("bus", p.busName).Msg("EventBridge PutEvents failed")
		return fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil || entry.ErrorMessage != nil {
				log.Error().
					Int("index", i).
					Str("errorCode", aws.ToString(entry.ErrorCode)).
					Str("errorMessage", aws.ToString(entry.ErrorMessage)).
					Str("runId", event.RunID).
					Msg("EventBridge PutEvents entry failed")
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
			}
		}
	}

	log.Debug().Str("runId", event.RunID).Str("status", event.Status).Msg("PlaylistIndexed emitted to EventBridge")
	return nil
}
