package elastic_client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/corridor/pkg/ctdf"
)

const auditQueueSize = 1000

// AuditEvent is the indexed form of a corridor engine event
type AuditEvent struct {
	Timestamp time.Time
	Type      ctdf.EventType

	IncidentID string
	SignalID   string `json:",omitempty"`
	EntityID   string `json:",omitempty"`

	State    ctdf.LightState      `json:",omitempty"`
	Corridor bool                 `json:",omitempty"`
	Status   ctdf.CaseStatusValue `json:",omitempty"`
	Phase    string               `json:",omitempty"`
	Hospital string               `json:",omitempty"`
}

func NewAuditEvent(event ctdf.Event) (AuditEvent, bool) {
	audit := AuditEvent{
		Timestamp: event.Timestamp,
		Type:      event.Type,
	}

	switch body := event.Body.(type) {
	case ctdf.SignalCommand:
		audit.IncidentID = body.IncidentID
		audit.SignalID = body.SignalID
		audit.State = body.State
		audit.Corridor = body.Corridor
	case ctdf.CaseStatus:
		audit.IncidentID = body.IncidentID
		audit.EntityID = body.EntityID
		audit.Status = body.Status
		audit.Phase = body.Phase
		if body.Hospital != nil {
			audit.Hospital = body.Hospital.ID
		}
	default:
		return audit, false
	}

	return audit, true
}

func AuditIndexName(timestamp time.Time) string {
	yearNumber, weekNumber := timestamp.ISOWeek()
	return fmt.Sprintf("corridor-events-%d-%d", yearNumber, weekNumber)
}

// AuditSink indexes corridor events in the background. It drops events when the
// queue is full rather than holding up the engine.
type AuditSink struct {
	events chan AuditEvent
	index  func(indexName string, document io.ReadSeeker)
}

func NewAuditSink() *AuditSink {
	sink := &AuditSink{
		events: make(chan AuditEvent, auditQueueSize),
		index:  IndexRequest,
	}

	go sink.run()

	return sink
}

func (s *AuditSink) Emit(event ctdf.Event) {
	audit, ok := NewAuditEvent(event)
	if !ok {
		return
	}

	select {
	case s.events <- audit:
	default:
		log.Warn().Str("incident", audit.IncidentID).Msg("Audit queue full, dropped event")
	}
}

func (s *AuditSink) run() {
	for audit := range s.events {
		auditJSON, err := json.Marshal(audit)
		if err != nil {
			continue
		}

		s.index(AuditIndexName(audit.Timestamp), bytes.NewReader(auditJSON))
	}
}
