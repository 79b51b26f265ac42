package main

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ehr/medassist/internal/domain/dictation"
	"github.com/ehr/medassist/internal/domain/history"
	"github.com/ehr/medassist/internal/platform/websocket"
)

// HubPublisher forwards history and dictation events to the WebSocket hub,
// keeping the domain packages free of transport imports.
type HubPublisher struct {
	hub    *websocket.Hub
	logger zerolog.Logger
}

func NewHubPublisher(hub *websocket.Hub, logger zerolog.Logger) *HubPublisher {
	return &HubPublisher{hub: hub, logger: logger}
}

// PublishHistoryEvent implements history.Publisher. Every event goes to the
// history topic; events tied to a profile also go to its profile topic.
func (p *HubPublisher) PublishHistoryEvent(ctx context.Context, ev history.Event) {
	p.publish(ctx, string(ev.Type), websocket.TopicHistory, ev)
	if ev.ProfileID != "" {
		p.publish(ctx, string(ev.Type), websocket.ProfileTopic(ev.ProfileID), ev)
	}
}

// PublishDictationEvent implements dictation.Publisher.
func (p *HubPublisher) PublishDictationEvent(ctx context.Context, ev dictation.Event) {
	p.publish(ctx, string(ev.Type), websocket.TopicDictation, ev.Task)
	if ev.Task != nil {
		p.publish(ctx, string(ev.Type), websocket.ProfileTopic(ev.Task.ProfileID), ev.Task)
	}
}

func (p *HubPublisher) publish(ctx context.Context, eventType, topic string, payload any) {
	wev, err := websocket.NewEvent(eventType, topic, payload)
	if err == nil {
		err = p.hub.Publish(ctx, wev)
	}
	if err != nil {
		p.logger.Warn().Err(err).Str("topic", topic).Str("type", eventType).Msg("failed to publish event")
	}
}
