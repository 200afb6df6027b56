package signals

import (
	"sync"

	"github.com/jinzhu/copier"
	"github.com/travigo/corridor/pkg/ctdf"
)

// PendingRestore is a scheduled restore of a signal. Token is the incident that
// scheduled it and the restore must only act while that incident still owns the signal.
type PendingRestore struct {
	Token string
	Stop  func() bool
}

// Cancel stops the underlying timer. It is safe to call on a nil restore.
func (p *PendingRestore) Cancel() {
	if p != nil && p.Stop != nil {
		p.Stop()
	}
}

// Signal is a controllable traffic signal at a junction.
//
// All mutable fields are guarded by the signal's own lock. Only the corridor engine
// mutates corridor state and it always does so while holding that lock.
type Signal struct {
	// Location never changes once registered and can be read without the lock
	ID       string
	Location ctdf.GeoPoint

	Junction string

	CurrentState  ctdf.LightState
	OriginalState ctdf.LightState

	CorridorActive   bool
	OwningIncidentID string

	// Per junction overrides, zero uses the engine defaults
	ActivationRadius float64
	RestoreRadius    float64

	Pending *PendingRestore

	mutex sync.Mutex
}

func (s *Signal) Lock() {
	s.mutex.Lock()
}

// TryLock acquires the signal lock without waiting
func (s *Signal) TryLock() bool {
	return s.mutex.TryLock()
}

func (s *Signal) Unlock() {
	s.mutex.Unlock()
}

func (s *Signal) GetLocation() ctdf.GeoPoint {
	return s.Location
}

// View is a lock free copy of a signal for diagnostics
type View struct {
	ID       string        `json:"id" groups:"basic"`
	Junction string        `json:"junction" groups:"basic"`
	Location ctdf.GeoPoint `json:"location" groups:"basic"`

	CurrentState     ctdf.LightState `json:"currentState" groups:"basic"`
	OriginalState    ctdf.LightState `json:"originalState,omitempty" groups:"detailed"`
	CorridorActive   bool            `json:"corridorActive" groups:"basic"`
	OwningIncidentID string          `json:"owningIncidentId,omitempty" groups:"basic"`

	ActivationRadius float64 `json:"activationRadius,omitempty" groups:"detailed"`
	RestoreRadius    float64 `json:"restoreRadius,omitempty" groups:"detailed"`

	RestorePending bool `json:"restorePending" groups:"detailed"`
}

func (s *Signal) Snapshot() View {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var view View
	copier.Copy(&view, s)
	view.RestorePending = s.Pending != nil

	return view
}
