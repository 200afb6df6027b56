package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/travigo/corridor/pkg/broker"
	"github.com/travigo/corridor/pkg/corridor"
	"github.com/travigo/corridor/pkg/ctdf"
	"github.com/travigo/corridor/pkg/relay"
)

const outboundQueueSize = 1024
const publishTimeout = 2 * time.Second

type outboundMessage struct {
	topic   string
	payload []byte
}

// CancelRequest is the payload of an sos/<id>/cancel message
type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Bridge translates between the broker topics, the relay hub and the corridor engine.
// Outbound messages go through one queue drained by one goroutine so they keep
// the order they were produced in.
type Bridge struct {
	broker broker.Broker
	hub    *relay.Hub
	engine *corridor.Engine

	origin string

	outbound chan outboundMessage
	stopOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}
}

func NewBridge(transport broker.Broker, hub *relay.Hub, engine *corridor.Engine) *Bridge {
	return &Bridge{
		broker: transport,
		hub:    hub,
		engine: engine,
		origin: uuid.NewString(),

		outbound: make(chan outboundMessage, outboundQueueSize),
		stopped:  make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (b *Bridge) Origin() string {
	return b.origin
}

// Start connects to the broker and only then subscribes
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.broker.Connect(ctx); err != nil {
		return err
	}

	subscriptions := map[string]broker.Handler{
		patternSOS:            b.handleSOS,
		patternSOSCancel:      b.handleCancel,
		patternCaseStatus:     b.handleCaseStatus,
		patternCorridorSignal: b.handleCorridorSignal,
	}
	for _, pattern := range locationPatterns {
		subscriptions[pattern] = b.handleLocation
	}

	for pattern, handler := range subscriptions {
		if err := b.broker.Subscribe(pattern, handler); err != nil {
			return err
		}
		log.Debug().Str("topic", pattern).Msg("Bridge subscribed")
	}

	go b.publishLoop()

	log.Info().Str("origin", b.origin).Msg("Bridge started")

	return nil
}

// Stop flushes nothing further and closes the broker
func (b *Bridge) Stop() error {
	b.stopOnce.Do(func() {
		close(b.stopped)
	})

	select {
	case <-b.done:
	case <-time.After(publishTimeout):
	}

	return b.broker.Close()
}

func (b *Bridge) publishLoop() {
	defer close(b.done)

	for {
		select {
		case <-b.stopped:
			return
		case message := <-b.outbound:
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			err := b.broker.Publish(ctx, message.topic, message.payload)
			cancel()

			if err != nil {
				log.Warn().Err(err).Str("topic", message.topic).Msg("Broker publish failed")
			}
		}
	}
}

func (b *Bridge) enqueue(topic string, body interface{}) {
	payload, err := json.Marshal(body)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to encode broker message")
		return
	}

	select {
	case b.outbound <- outboundMessage{topic: topic, payload: payload}:
	default:
		log.Warn().Str("topic", topic).Msg("Broker outbound queue full, dropped message")
	}
}

// PublishLocation republishes a relayed position for other services
func (b *Bridge) PublishLocation(update ctdf.LocationUpdate) {
	update.Origin = b.origin
	b.enqueue(TopicLocation(update.EntityType, update.EntityID), update)
}

// Emit receives corridor engine events. It is called with a signal locked so it only enqueues.
func (b *Bridge) Emit(event ctdf.Event) {
	switch body := event.Body.(type) {
	case ctdf.SignalCommand:
		b.enqueue(TopicSignalCommand(body.SignalID), body)
		if body.IncidentID != "" {
			b.enqueue(TopicCorridorSignal(body.IncidentID), body)
		}
	case ctdf.CaseStatus:
		b.enqueue(TopicCaseStatus(body.IncidentID), body)
	}
}

// PublishIncident announces a new incident to every relay and the engine behind it
func (b *Bridge) PublishIncident(ctx context.Context, incident ctdf.Incident) error {
	return SendIncident(ctx, b.broker, incident)
}

func (b *Bridge) PublishCancel(ctx context.Context, incidentID string, reason string) error {
	return SendCancel(ctx, b.broker, incidentID, reason)
}

// SendIncident publishes incident on its sos topic
func SendIncident(ctx context.Context, transport broker.Broker, incident ctdf.Incident) error {
	payload, err := json.Marshal(incident)
	if err != nil {
		return err
	}

	return transport.Publish(ctx, TopicSOS(incident.ID), payload)
}

func SendCancel(ctx context.Context, transport broker.Broker, incidentID string, reason string) error {
	payload, err := json.Marshal(CancelRequest{Reason: reason})
	if err != nil {
		return err
	}

	return transport.Publish(ctx, TopicSOSCancel(incidentID), payload)
}

// SendLocation publishes a position as if it came from another relay
func SendLocation(ctx context.Context, transport broker.Broker, update ctdf.LocationUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return err
	}

	return transport.Publish(ctx, TopicLocation(update.EntityType, update.EntityID), payload)
}

func (b *Bridge) handleSOS(message broker.Message) {
	incidentID := topicLevel(message.Topic, 1)

	var incident ctdf.Incident
	if err := json.Unmarshal(message.Payload, &incident); err != nil {
		log.Warn().Err(err).Str("topic", message.Topic).Msg("Dropped malformed SOS")
		return
	}
	if incident.ID == "" {
		incident.ID = incidentID
	}
	if incident.ReportedAt.IsZero() {
		incident.ReportedAt = time.Now()
	}

	if err := b.engine.RegisterIncident(incident); err != nil {
		log.Warn().Err(err).Str("incident", incident.ID).Msg("Dropped invalid SOS")
		return
	}

	b.broadcast(incident.ID, ctdf.EnvelopeTypeSOSNew, incident)
}

func (b *Bridge) handleCancel(message broker.Message) {
	incidentID := topicLevel(message.Topic, 1)

	request := CancelRequest{Reason: "cancelled"}
	if len(message.Payload) > 0 {
		json.Unmarshal(message.Payload, &request)
	}

	// Observers hear about it through the CANCELLED status on case/<id>/status
	restored, err := b.engine.CancelIncident(incidentID, request.Reason)
	if err != nil {
		log.Debug().Err(err).Str("incident", incidentID).Msg("Cancel for incident unknown to this relay")
		return
	}

	log.Info().Str("incident", incidentID).Int("restored", restored).Msg("Incident cancelled")
}

func (b *Bridge) handleCaseStatus(message broker.Message) {
	b.relayRaw(topicLevel(message.Topic, 1), ctdf.EnvelopeTypeCaseUpdate, message)
}

func (b *Bridge) handleCorridorSignal(message broker.Message) {
	b.relayRaw(topicLevel(message.Topic, 1), ctdf.EnvelopeTypeSignalUpdate, message)
}

func (b *Bridge) handleLocation(message broker.Message) {
	update, err := ctdf.DecodeLocationUpdate(message.Payload)
	if err != nil {
		log.Debug().Err(err).Str("topic", message.Topic).Msg("Dropped invalid broker location")
		return
	}

	// Already relayed and forwarded when it first arrived here
	if update.Origin == b.origin {
		return
	}

	b.hub.RelayLocation(*update)
}

func (b *Bridge) relayRaw(incidentID string, envelopeType ctdf.EnvelopeType, message broker.Message) {
	if !json.Valid(message.Payload) {
		log.Debug().Str("topic", message.Topic).Msg("Dropped malformed broker payload")
		return
	}

	b.hub.BroadcastIncident(incidentID, &ctdf.Envelope{
		Type:    envelopeType,
		Payload: message.Payload,
	})
}

func (b *Bridge) broadcast(incidentID string, envelopeType ctdf.EnvelopeType, payload interface{}) {
	envelope, err := ctdf.NewEnvelope(envelopeType, payload)
	if err != nil {
		return
	}

	b.hub.BroadcastIncident(incidentID, envelope)
}
