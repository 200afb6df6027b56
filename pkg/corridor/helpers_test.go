package corridor_test

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/travigo/corridor/pkg/corridor"
	"github.com/travigo/corridor/pkg/ctdf"
	"github.com/travigo/corridor/pkg/geo"
	"github.com/travigo/corridor/pkg/hospitals"
	"github.com/travigo/corridor/pkg/signals"
)

var origin = ctdf.NewGeoPoint(18.5204, 73.8567)

// north returns a point the given number of metres due north of p
func north(p ctdf.GeoPoint, metres float64) ctdf.GeoPoint {
	return ctdf.NewGeoPoint(p.Latitude+(metres/geo.EarthRadiusMetres)*180/math.Pi, p.Longitude)
}

type fakeTimer struct {
	delay    time.Duration
	callback func()
	stopped  bool
	fired    bool
}

func (t *fakeTimer) Stop() bool {
	live := !t.stopped && !t.fired
	t.stopped = true
	return live
}

type fakeScheduler struct {
	mutex  sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(delay time.Duration, callback func()) corridor.Timer {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	timer := &fakeTimer{delay: delay, callback: callback}
	s.timers = append(s.timers, timer)
	return timer
}

// fire runs the callback even if the timer was stopped, as happens when a timer
// has already fired and is waiting on the signal lock
func (s *fakeScheduler) fire(timer *fakeTimer) {
	timer.fired = true
	timer.callback()
}

func (s *fakeScheduler) live() []*fakeTimer {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var live []*fakeTimer
	for _, timer := range s.timers {
		if !timer.stopped && !timer.fired {
			live = append(live, timer)
		}
	}
	return live
}

func (s *fakeScheduler) last() *fakeTimer {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.timers) == 0 {
		return nil
	}
	return s.timers[len(s.timers)-1]
}

type recordingSink struct {
	mutex  sync.Mutex
	events []ctdf.Event
}

func (r *recordingSink) Emit(event ctdf.Event) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.events = append(r.events, event)
}

func (r *recordingSink) signalCommands() []ctdf.SignalCommand {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var commands []ctdf.SignalCommand
	for _, event := range r.events {
		if event.Type == ctdf.EventTypeSignalCommand {
			commands = append(commands, event.Body.(ctdf.SignalCommand))
		}
	}
	return commands
}

func (r *recordingSink) caseStatuses() []ctdf.CaseStatus {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var statuses []ctdf.CaseStatus
	for _, event := range r.events {
		if event.Type == ctdf.EventTypeCaseStatus || event.Type == ctdf.EventTypeMissionUpdate {
			statuses = append(statuses, event.Body.(ctdf.CaseStatus))
		}
	}
	return statuses
}

type testHarness struct {
	engine    *corridor.Engine
	registry  *signals.Registry
	scheduler *fakeScheduler
	sink      *recordingSink
}

func newHarness(t *testing.T, signalList ...*signals.Signal) *testHarness {
	t.Helper()

	registry := signals.NewRegistry()
	for _, signal := range signalList {
		require.NoError(t, registry.Add(signal))
	}

	directory := hospitals.NewStaticDirectory([]ctdf.Hospital{
		{ID: "HOSP-1", Name: "Sassoon General", Location: north(origin, 5000)},
		{ID: "HOSP-2", Name: "Ruby Hall", Location: north(origin, 9000)},
	})

	scheduler := &fakeScheduler{}
	sink := &recordingSink{}

	engine := corridor.NewEngine(corridor.DefaultConfig, registry, directory).WithScheduler(scheduler)
	engine.AddSink(sink)

	return &testHarness{
		engine:    engine,
		registry:  registry,
		scheduler: scheduler,
		sink:      sink,
	}
}

func (h *testHarness) signal(t *testing.T, id string) signals.View {
	t.Helper()

	signal, ok := h.registry.Lookup(id)
	require.True(t, ok)
	return signal.Snapshot()
}

func redSignal(id string, location ctdf.GeoPoint) *signals.Signal {
	return &signals.Signal{
		ID:           id,
		Junction:     "Junction " + id,
		Location:     location,
		CurrentState: ctdf.LightStateRed,
	}
}
