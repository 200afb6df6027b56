package corridor

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/corridor/pkg/ctdf"
	"github.com/travigo/corridor/pkg/geo"
	"github.com/travigo/corridor/pkg/hospitals"
	"github.com/travigo/corridor/pkg/signals"
	"golang.org/x/exp/slices"
)

var (
	ErrUnknownIncident = errors.New("unknown incident")
	ErrMissingPosition = errors.New("position report is missing incident or entity")
	errInvalidDuration = errors.New("duration must be positive")
)

const hospitalLookupTimeout = 2 * time.Second

type incidentState struct {
	incident ctdf.Incident
	hospital *ctdf.Hospital
}

// Engine turns responder positions into signal preemption and mission tracking.
//
// It exclusively owns the signal registry corridor state, the active corridor
// index, the registered incidents and the missions. Lock order is always signal
// then engine; the engine mutex is never held while waiting on a signal lock.
type Engine struct {
	config    Config
	registry  *signals.Registry
	hospitals hospitals.Directory
	scheduler Scheduler
	sinks     []Sink

	mutex     sync.Mutex
	incidents map[string]*incidentState
	active    map[string]map[string]struct{}
	missions  map[string]*Mission
}

func NewEngine(config Config, registry *signals.Registry, directory hospitals.Directory) *Engine {
	return &Engine{
		config:    config,
		registry:  registry,
		hospitals: directory,
		scheduler: clockScheduler{},

		incidents: map[string]*incidentState{},
		active:    map[string]map[string]struct{}{},
		missions:  map[string]*Mission{},
	}
}

func (e *Engine) WithScheduler(scheduler Scheduler) *Engine {
	e.scheduler = scheduler
	return e
}

func (e *Engine) AddSink(sink Sink) {
	e.sinks = append(e.sinks, sink)
}

func (e *Engine) Config() Config {
	return e.config
}

func (e *Engine) Registry() *signals.Registry {
	return e.registry
}

// RegisterIncident records the scene of a new incident so position reports for it are accepted
func (e *Engine) RegisterIncident(incident ctdf.Incident) error {
	if incident.ID == "" {
		return ErrMissingPosition
	}
	if !incident.Scene.Valid() {
		return geo.ErrInvalidPoint
	}
	if incident.ReportedAt.IsZero() {
		incident.ReportedAt = time.Now()
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()

	if existing, ok := e.incidents[incident.ID]; ok {
		existing.incident = incident
		return nil
	}

	e.incidents[incident.ID] = &incidentState{incident: incident}

	log.Info().Str("incident", incident.ID).
		Float64("lat", incident.Scene.Latitude).
		Float64("lng", incident.Scene.Longitude).
		Msg("Registered incident")

	return nil
}

// OnAmbulancePosition is the single entry point for responder position reports.
// Reports for unknown incidents or with invalid positions are dropped.
func (e *Engine) OnAmbulancePosition(ctx context.Context, incidentID string, entityID string, point ctdf.GeoPoint) error {
	if incidentID == "" || entityID == "" {
		return ErrMissingPosition
	}
	if !point.Valid() {
		return geo.ErrInvalidPoint
	}

	e.mutex.Lock()
	state, ok := e.incidents[incidentID]
	var incident ctdf.Incident
	if ok {
		incident = state.incident
	}
	e.mutex.Unlock()

	if !ok {
		return ErrUnknownIncident
	}

	searchRadius := math.Max(e.config.ActivationRadius, e.registry.MaxActivationRadius())
	candidates, err := geo.WithinRadius(point, searchRadius, e.registry.List())
	if err != nil {
		return err
	}

	for _, signal := range candidates {
		e.flipGreen(signal, incidentID, point)
	}

	e.restoreOutOfRange(incidentID, point)

	e.trackMission(ctx, incident, entityID, point)

	return nil
}

// ReleaseIncident restores every signal held by the incident and forgets its mission.
// Later position reports for the incident are dropped.
func (e *Engine) ReleaseIncident(incidentID string, reason string) (int, error) {
	e.mutex.Lock()
	_, registered := e.incidents[incidentID]
	_, hasMission := e.missions[incidentID]
	held := e.activeSignalIDsLocked(incidentID)
	delete(e.incidents, incidentID)
	e.mutex.Unlock()

	if !registered && !hasMission && len(held) == 0 {
		return 0, ErrUnknownIncident
	}

	restored := 0
	for _, signalID := range held {
		signal, ok := e.registry.Lookup(signalID)
		if !ok {
			continue
		}

		signal.Lock()
		if signal.CorridorActive && signal.OwningIncidentID == incidentID {
			e.restoreLocked(signal, reason)
			restored++
		}
		signal.Unlock()
	}

	e.mutex.Lock()
	delete(e.active, incidentID)
	delete(e.missions, incidentID)
	e.mutex.Unlock()

	log.Info().Str("incident", incidentID).Int("restored", restored).Str("reason", reason).Msg("Released corridor")

	return restored, nil
}

// CancelIncident releases the incident's corridor and announces CANCELLED to every
// sink. Releases that follow a hospital arrival go through ReleaseIncident instead.
func (e *Engine) CancelIncident(incidentID string, reason string) (int, error) {
	e.mutex.Lock()
	entityID := ""
	if mission, ok := e.missions[incidentID]; ok {
		entityID = mission.EntityID
	}
	e.mutex.Unlock()

	restored, err := e.ReleaseIncident(incidentID, reason)
	if err != nil {
		return 0, err
	}

	e.emit(ctdf.EventTypeCaseStatus, ctdf.CaseStatus{
		IncidentID: incidentID,
		EntityID:   entityID,
		Status:     ctdf.CaseStatusCancelled,
		Timestamp:  time.Now(),
	})

	return restored, nil
}

// ActiveCorridors lists the signals currently held by each incident
func (e *Engine) ActiveCorridors() map[string][]string {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	corridors := map[string][]string{}
	for incidentID := range e.active {
		if ids := e.activeSignalIDsLocked(incidentID); len(ids) > 0 {
			corridors[incidentID] = ids
		}
	}

	return corridors
}

func (e *Engine) Incidents() []ctdf.Incident {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	incidents := make([]ctdf.Incident, 0, len(e.incidents))
	for _, state := range e.incidents {
		incidents = append(incidents, state.incident)
	}
	slices.SortFunc(incidents, func(a, b ctdf.Incident) int {
		return compareStrings(a.ID, b.ID)
	})

	return incidents
}

func (e *Engine) activeSignalIDsLocked(incidentID string) []string {
	ids := make([]string, 0, len(e.active[incidentID]))
	for id := range e.active[incidentID] {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}

func (e *Engine) emit(eventType ctdf.EventType, body interface{}) {
	event := ctdf.NewEvent(eventType, body)

	for _, sink := range e.sinks {
		sink.Emit(event)
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
