package ctdf

import (
	"time"
)

// Event is emitted by the corridor engine whenever it changes signal or mission state
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Body      interface{} `json:"body"`
}

type EventType string

const (
	EventTypeSignalCommand EventType = "SignalCommand"
	EventTypeCaseStatus    EventType = "CaseStatus"
	EventTypeMissionUpdate EventType = "MissionUpdate"
)

func NewEvent(eventType EventType, body interface{}) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Body:      body,
	}
}

type LightState string

const (
	LightStateGreen  LightState = "GREEN"
	LightStateRed    LightState = "RED"
	LightStateYellow LightState = "YELLOW"
)

func (s LightState) Valid() bool {
	switch s {
	case LightStateGreen, LightStateRed, LightStateYellow:
		return true
	}
	return false
}

// SignalCommand instructs a junction controller to hold a light state.
// Duration is in seconds and only set for corridor activations.
type SignalCommand struct {
	SignalID   string     `json:"signalId"`
	Junction   string     `json:"junction"`
	IncidentID string     `json:"accidentId"`
	State      LightState `json:"state"`
	Duration   int        `json:"duration,omitempty"`
	Corridor   bool       `json:"corridor"`
}

type CaseStatusValue string

const (
	CaseStatusArrived     CaseStatusValue = "ARRIVED"
	CaseStatusToHospital  CaseStatusValue = "TRANSPORTING"
	CaseStatusAtHospital  CaseStatusValue = "AT_HOSPITAL"
	CaseStatusCancelled   CaseStatusValue = "CANCELLED"
	CaseStatusHospitalSet CaseStatusValue = "HOSPITAL_ASSIGNED"
)

// CaseStatus describes a change in the lifecycle of an incident
type CaseStatus struct {
	IncidentID string          `json:"accidentId"`
	EntityID   string          `json:"entityId,omitempty"`
	Status     CaseStatusValue `json:"status"`
	Phase      string          `json:"phase,omitempty"`
	Hospital   *Hospital       `json:"hospital,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}
