package corridor

import (
	"github.com/rs/zerolog/log"
	"github.com/travigo/corridor/pkg/ctdf"
	"github.com/travigo/corridor/pkg/geo"
	"github.com/travigo/corridor/pkg/signals"
)

func (e *Engine) activationRadius(signal *signals.Signal) float64 {
	if signal.ActivationRadius > 0 {
		return signal.ActivationRadius
	}
	return e.config.ActivationRadius
}

func (e *Engine) restoreRadius(signal *signals.Signal) float64 {
	if signal.RestoreRadius > 0 {
		return signal.RestoreRadius
	}
	if signal.ActivationRadius > 0 {
		// Keep the same hysteresis margin as the defaults
		return signal.ActivationRadius + (e.config.RestoreRadius - e.config.ActivationRadius)
	}
	return e.config.RestoreRadius
}

// flipGreen forces a signal green for the incident. A signal that is locked by a
// concurrent mutation is skipped and picked up again on the next position report.
func (e *Engine) flipGreen(signal *signals.Signal, incidentID string, point ctdf.GeoPoint) {
	if !signal.TryLock() {
		log.Debug().Str("signal", signal.ID).Str("incident", incidentID).Msg("Signal busy, deferring flip")
		return
	}
	defer signal.Unlock()

	distance, err := geo.DistanceMetres(point, signal.Location)
	if err != nil || distance > e.activationRadius(signal) {
		return
	}

	if signal.CorridorActive {
		if signal.OwningIncidentID == incidentID {
			e.scheduleRestoreLocked(signal, incidentID)
		} else {
			log.Debug().
				Str("signal", signal.ID).
				Str("incident", incidentID).
				Str("owner", signal.OwningIncidentID).
				Msg("Signal held by another corridor")
		}
		return
	}

	if !e.claim(incidentID, signal.ID) {
		return
	}

	signal.OriginalState = signal.CurrentState
	signal.CorridorActive = true
	signal.OwningIncidentID = incidentID
	signal.CurrentState = ctdf.LightStateGreen

	log.Info().
		Str("signal", signal.ID).
		Str("junction", signal.Junction).
		Str("incident", incidentID).
		Float64("distance", distance).
		Msg("Corridor activated signal")

	e.emit(ctdf.EventTypeSignalCommand, ctdf.SignalCommand{
		SignalID:   signal.ID,
		Junction:   signal.Junction,
		IncidentID: incidentID,
		State:      ctdf.LightStateGreen,
		Duration:   int(e.config.GreenDuration.Seconds()),
		Corridor:   true,
	})

	e.scheduleRestoreLocked(signal, incidentID)
}

// restoreOutOfRange restores every signal of the incident the responder has moved beyond
func (e *Engine) restoreOutOfRange(incidentID string, point ctdf.GeoPoint) {
	e.mutex.Lock()
	held := e.activeSignalIDsLocked(incidentID)
	e.mutex.Unlock()

	for _, signalID := range held {
		signal, ok := e.registry.Lookup(signalID)
		if !ok {
			continue
		}

		signal.Lock()
		if signal.CorridorActive && signal.OwningIncidentID == incidentID {
			distance, err := geo.DistanceMetres(point, signal.Location)
			if err == nil && distance > e.restoreRadius(signal) {
				e.restoreLocked(signal, "out of range")
			}
		}
		signal.Unlock()
	}
}

// scheduleRestoreLocked replaces any pending restore with a new one owned by the incident
func (e *Engine) scheduleRestoreLocked(signal *signals.Signal, incidentID string) {
	signal.Pending.Cancel()

	pending := &signals.PendingRestore{Token: incidentID}
	timer := e.scheduler.AfterFunc(e.config.GreenDuration, func() {
		e.onRestoreTimer(signal, pending)
	})
	pending.Stop = timer.Stop

	signal.Pending = pending
}

// onRestoreTimer only acts if the timer is still the live one and its token still owns the signal
func (e *Engine) onRestoreTimer(signal *signals.Signal, pending *signals.PendingRestore) {
	signal.Lock()
	defer signal.Unlock()

	if signal.Pending != pending || !signal.CorridorActive || signal.OwningIncidentID != pending.Token {
		log.Debug().
			Str("signal", signal.ID).
			Str("token", pending.Token).
			Str("owner", signal.OwningIncidentID).
			Msg("Ignoring stale restore timer")
		return
	}

	e.restoreLocked(signal, "green duration elapsed")
}

// restoreLocked returns the signal to its pre-corridor state. The signal lock must be held.
func (e *Engine) restoreLocked(signal *signals.Signal, reason string) {
	signal.Pending.Cancel()
	signal.Pending = nil

	incidentID := signal.OwningIncidentID

	signal.CurrentState = signal.OriginalState
	signal.CorridorActive = false
	signal.OwningIncidentID = ""

	e.release(incidentID, signal.ID)

	log.Info().
		Str("signal", signal.ID).
		Str("incident", incidentID).
		Str("state", string(signal.CurrentState)).
		Str("reason", reason).
		Msg("Corridor restored signal")

	e.emit(ctdf.EventTypeSignalCommand, ctdf.SignalCommand{
		SignalID:   signal.ID,
		Junction:   signal.Junction,
		IncidentID: incidentID,
		State:      signal.CurrentState,
		Corridor:   false,
	})
}

// claim adds the signal to the incident's active set if the incident is still registered
func (e *Engine) claim(incidentID string, signalID string) bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if _, ok := e.incidents[incidentID]; !ok {
		return false
	}

	held, ok := e.active[incidentID]
	if !ok {
		held = map[string]struct{}{}
		e.active[incidentID] = held
	}
	held[signalID] = struct{}{}

	return true
}

func (e *Engine) release(incidentID string, signalID string) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if held, ok := e.active[incidentID]; ok {
		delete(held, signalID)
		if len(held) == 0 {
			delete(e.active, incidentID)
		}
	}
}
