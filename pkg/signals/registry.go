package signals

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/travigo/corridor/pkg/ctdf"
)

var ErrInvalidSignal = errors.New("invalid signal")

// Registry owns the set of controllable signals. Signals are never removed.
type Registry struct {
	mutex   sync.RWMutex
	signals map[string]*Signal
	order   []string

	maxActivationRadius float64
}

func NewRegistry() *Registry {
	return &Registry{
		signals: map[string]*Signal{},
	}
}

// Add registers a signal or updates the descriptive fields of an existing one.
// Corridor state and location of an existing signal are never touched.
func (r *Registry) Add(signal *Signal) error {
	if err := validate(signal); err != nil {
		log.Warn().Err(err).Str("signal", signal.ID).Msg("Rejected signal")
		return err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if existing, ok := r.signals[signal.ID]; ok {
		if existing.Location.Latitude != signal.Location.Latitude || existing.Location.Longitude != signal.Location.Longitude {
			log.Warn().Str("signal", signal.ID).Msg("Rejected signal relocation")
			return fmt.Errorf("%w: signal %s cannot be relocated", ErrInvalidSignal, signal.ID)
		}

		existing.Lock()
		existing.Junction = signal.Junction
		existing.ActivationRadius = signal.ActivationRadius
		existing.RestoreRadius = signal.RestoreRadius
		existing.Unlock()

		r.trackRadius(signal)

		log.Debug().Str("signal", signal.ID).Msg("Updated signal")
		return nil
	}

	if signal.CurrentState == "" {
		signal.CurrentState = ctdf.LightStateRed
	}
	signal.OriginalState = signal.CurrentState
	signal.CorridorActive = false
	signal.OwningIncidentID = ""
	signal.Pending = nil

	r.signals[signal.ID] = signal
	r.order = append(r.order, signal.ID)
	r.trackRadius(signal)

	log.Debug().Str("signal", signal.ID).Str("junction", signal.Junction).Msg("Registered signal")

	return nil
}

func (r *Registry) Lookup(id string) (*Signal, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	signal, ok := r.signals[id]
	return signal, ok
}

// List returns every signal in registration order
func (r *Registry) List() []*Signal {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	list := make([]*Signal, 0, len(r.order))
	for _, id := range r.order {
		list = append(list, r.signals[id])
	}

	return list
}

func (r *Registry) trackRadius(signal *Signal) {
	if signal.ActivationRadius > r.maxActivationRadius {
		r.maxActivationRadius = signal.ActivationRadius
	}
}

// MaxActivationRadius is the largest per junction activation radius override
func (r *Registry) MaxActivationRadius() float64 {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.maxActivationRadius
}

func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.order)
}

func validate(signal *Signal) error {
	if signal == nil {
		return fmt.Errorf("%w: nil signal", ErrInvalidSignal)
	}
	if signal.ID == "" {
		return fmt.Errorf("%w: missing identifier", ErrInvalidSignal)
	}
	if !signal.Location.Valid() {
		return fmt.Errorf("%w: location %f,%f out of range", ErrInvalidSignal, signal.Location.Latitude, signal.Location.Longitude)
	}
	if signal.CurrentState != "" && !signal.CurrentState.Valid() {
		return fmt.Errorf("%w: unknown light state %s", ErrInvalidSignal, signal.CurrentState)
	}
	if signal.ActivationRadius < 0 || signal.RestoreRadius < 0 {
		return fmt.Errorf("%w: negative radius", ErrInvalidSignal)
	}
	if signal.ActivationRadius > 0 && signal.RestoreRadius > 0 && signal.RestoreRadius <= signal.ActivationRadius {
		return fmt.Errorf("%w: restore radius must exceed activation radius", ErrInvalidSignal)
	}

	return nil
}
