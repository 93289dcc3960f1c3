package handlers

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/example/questor/services/progress/internal/events"
)

var ErrAsyncPublishDisabled = errors.New("async publish is disabled")

type publisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

type EventPublisher struct {
	js          publisher
	asyncWrites bool
}

func NewEventPublisher(js nats.JetStreamContext, asyncWrites bool) *EventPublisher {
	if js == nil {
		return &EventPublisher{asyncWrites: asyncWrites}
	}
	return &EventPublisher{js: js, asyncWrites: asyncWrites}
}

func (p *EventPublisher) Enabled() bool {
	return p != nil && p.js != nil && p.asyncWrites
}

// PublishTick stamps ev with an id and creation time and publishes it.
func (p *EventPublisher) PublishTick(ev events.Playback) (string, error) {
	if !p.Enabled() {
		return "", ErrAsyncPublishDisabled
	}

	ev.EventID = uuid.NewString()
	if ev.CreatedAt == "" {
		ev.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}
	if _, err := p.js.Publish(events.SubjectPlayback, body); err != nil {
		return "", err
	}
	return ev.EventID, nil
}
