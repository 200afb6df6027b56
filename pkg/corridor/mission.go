package corridor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/corridor/pkg/ctdf"
	"github.com/travigo/corridor/pkg/geo"
	"golang.org/x/exp/slices"
)

type MissionPhase int

const (
	PhaseToScene MissionPhase = iota
	PhaseAtScene
	PhaseToHospital
	PhaseAtHospital
)

func (p MissionPhase) String() string {
	switch p {
	case PhaseToScene:
		return "TO_SCENE"
	case PhaseAtScene:
		return "AT_SCENE"
	case PhaseToHospital:
		return "TO_HOSPITAL"
	case PhaseAtHospital:
		return "AT_HOSPITAL"
	}
	return "UNKNOWN"
}

func (p MissionPhase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// Mission is one responder's trip for one incident. Phases only ever move forward.
type Mission struct {
	IncidentID string       `json:"accidentId"`
	EntityID   string       `json:"entityId"`
	Phase      MissionPhase `json:"phase"`

	Scene    ctdf.GeoPoint  `json:"sceneLocation"`
	Hospital *ctdf.Hospital `json:"hospital,omitempty"`

	LastPosition ctdf.GeoPoint `json:"lastPosition"`

	CreatedAt         time.Time  `json:"createdAt"`
	SceneArrivedAt    *time.Time `json:"sceneArrivedAt,omitempty"`
	HospitalArrivedAt *time.Time `json:"hospitalArrivedAt,omitempty"`
}

func (m *Mission) advance(phase MissionPhase) bool {
	if phase <= m.Phase {
		return false
	}

	m.Phase = phase
	return true
}

func (e *Engine) trackMission(ctx context.Context, incident ctdf.Incident, entityID string, point ctdf.GeoPoint) {
	now := time.Now()

	e.mutex.Lock()
	state, ok := e.incidents[incident.ID]
	if !ok {
		e.mutex.Unlock()
		return
	}

	mission, ok := e.missions[incident.ID]
	if !ok {
		mission = &Mission{
			IncidentID: incident.ID,
			EntityID:   entityID,
			Phase:      PhaseToScene,
			Scene:      incident.Scene,
			Hospital:   state.hospital,
			CreatedAt:  now,
		}
		e.missions[incident.ID] = mission

		log.Info().Str("incident", incident.ID).Str("entity", entityID).Msg("Mission started")
	}

	if mission.EntityID != entityID {
		e.mutex.Unlock()
		return
	}

	mission.LastPosition = point

	transitioned := false
	switch mission.Phase {
	case PhaseToScene:
		if distance, err := geo.DistanceMetres(point, mission.Scene); err == nil && distance <= e.config.ArrivalRadius {
			transitioned = mission.advance(PhaseAtScene)
			mission.SceneArrivedAt = &now
		}
	case PhaseAtScene:
		if distance, err := geo.DistanceMetres(point, mission.Scene); err == nil && distance > 2*e.config.ArrivalRadius {
			transitioned = mission.advance(PhaseToHospital)
		}
	case PhaseToHospital:
		if mission.Hospital != nil {
			if distance, err := geo.DistanceMetres(point, mission.Hospital.Location); err == nil && distance <= e.config.ArrivalRadius {
				transitioned = mission.advance(PhaseAtHospital)
				mission.HospitalArrivedAt = &now
			}
		}
	}

	snapshot := *mission
	e.mutex.Unlock()

	// A failed lookup at the scene is retried on every report until a hospital is found
	if snapshot.Phase == PhaseToHospital && snapshot.Hospital == nil {
		if hospital := e.assignNearestHospital(ctx, snapshot.IncidentID, point); hospital != nil {
			e.emit(ctdf.EventTypeMissionUpdate, ctdf.CaseStatus{
				IncidentID: snapshot.IncidentID,
				EntityID:   snapshot.EntityID,
				Status:     ctdf.CaseStatusHospitalSet,
				Phase:      snapshot.Phase.String(),
				Hospital:   hospital,
				Timestamp:  now,
			})
		}
	}

	if !transitioned {
		return
	}

	log.Info().
		Str("incident", snapshot.IncidentID).
		Str("entity", snapshot.EntityID).
		Str("phase", snapshot.Phase.String()).
		Msg("Mission phase changed")

	switch snapshot.Phase {
	case PhaseAtScene:
		hospital := snapshot.Hospital
		if hospital == nil {
			hospital = e.assignNearestHospital(ctx, snapshot.IncidentID, snapshot.Scene)
		}

		e.emit(ctdf.EventTypeCaseStatus, ctdf.CaseStatus{
			IncidentID: snapshot.IncidentID,
			EntityID:   snapshot.EntityID,
			Status:     ctdf.CaseStatusArrived,
			Phase:      snapshot.Phase.String(),
			Hospital:   hospital,
			Timestamp:  now,
		})
	case PhaseToHospital:
		e.emit(ctdf.EventTypeMissionUpdate, ctdf.CaseStatus{
			IncidentID: snapshot.IncidentID,
			EntityID:   snapshot.EntityID,
			Status:     ctdf.CaseStatusToHospital,
			Phase:      snapshot.Phase.String(),
			Hospital:   snapshot.Hospital,
			Timestamp:  now,
		})
	case PhaseAtHospital:
		e.emit(ctdf.EventTypeMissionUpdate, ctdf.CaseStatus{
			IncidentID: snapshot.IncidentID,
			EntityID:   snapshot.EntityID,
			Status:     ctdf.CaseStatusAtHospital,
			Phase:      snapshot.Phase.String(),
			Hospital:   snapshot.Hospital,
			Timestamp:  now,
		})

		e.ReleaseIncident(snapshot.IncidentID, "arrived at hospital")
	}
}

// assignNearestHospital queries the directory and stores the result as the routing
// target unless a hospital was chosen in the meantime
func (e *Engine) assignNearestHospital(ctx context.Context, incidentID string, from ctdf.GeoPoint) *ctdf.Hospital {
	if e.hospitals == nil {
		return nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, hospitalLookupTimeout)
	defer cancel()

	nearest, err := e.hospitals.FindNearest(lookupCtx, from, 1)
	if err != nil || len(nearest) == 0 {
		log.Warn().Err(err).Str("incident", incidentID).Msg("No hospital found for mission")
		return nil
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()

	mission, ok := e.missions[incidentID]
	if !ok {
		return nil
	}
	if mission.Hospital == nil {
		hospital := nearest[0]
		mission.Hospital = &hospital
	}

	return mission.Hospital
}

// StartHospitalRouting selects the receiving hospital ahead of automatic selection.
// An empty hospitalID picks the facility nearest the responder, or the scene if no
// position has been reported yet.
func (e *Engine) StartHospitalRouting(ctx context.Context, incidentID string, hospitalID string) (*ctdf.Hospital, error) {
	e.mutex.Lock()
	state, ok := e.incidents[incidentID]
	var origin ctdf.GeoPoint
	if ok {
		origin = state.incident.Scene
		if mission, hasMission := e.missions[incidentID]; hasMission && mission.LastPosition.Valid() && mission.Phase > PhaseToScene {
			origin = mission.LastPosition
		}
	}
	e.mutex.Unlock()

	if !ok {
		return nil, ErrUnknownIncident
	}
	if e.hospitals == nil {
		return nil, errors.New("no hospital directory configured")
	}

	lookupCtx, cancel := context.WithTimeout(ctx, hospitalLookupTimeout)
	defer cancel()

	var hospital *ctdf.Hospital
	if hospitalID != "" {
		found, err := e.hospitals.Lookup(lookupCtx, hospitalID)
		if err != nil {
			return nil, err
		}
		hospital = found
	} else {
		nearest, err := e.hospitals.FindNearest(lookupCtx, origin, 1)
		if err != nil {
			return nil, err
		}
		if len(nearest) == 0 {
			return nil, errors.New("no hospital available")
		}
		hospital = &nearest[0]
	}

	e.mutex.Lock()
	state, ok = e.incidents[incidentID]
	if !ok {
		e.mutex.Unlock()
		return nil, ErrUnknownIncident
	}
	state.hospital = hospital
	entityID := ""
	phase := PhaseToScene
	if mission, hasMission := e.missions[incidentID]; hasMission {
		mission.Hospital = hospital
		entityID = mission.EntityID
		phase = mission.Phase
	}
	e.mutex.Unlock()

	log.Info().Str("incident", incidentID).Str("hospital", hospital.ID).Msg("Hospital routing selected")

	e.emit(ctdf.EventTypeMissionUpdate, ctdf.CaseStatus{
		IncidentID: incidentID,
		EntityID:   entityID,
		Status:     ctdf.CaseStatusHospitalSet,
		Phase:      phase.String(),
		Hospital:   hospital,
		Timestamp:  time.Now(),
	})

	return hospital, nil
}

// Mission returns a copy of the incident's live mission
func (e *Engine) Mission(incidentID string) (Mission, bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	mission, ok := e.missions[incidentID]
	if !ok {
		return Mission{}, false
	}
	return *mission, true
}

func (e *Engine) Missions() []Mission {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	missions := make([]Mission, 0, len(e.missions))
	for _, mission := range e.missions {
		missions = append(missions, *mission)
	}
	slices.SortFunc(missions, func(a, b Mission) int {
		return compareStrings(a.IncidentID, b.IncidentID)
	})

	return missions
}
