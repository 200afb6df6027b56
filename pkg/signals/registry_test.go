package signals_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/corridor/pkg/ctdf"
	"github.com/travigo/corridor/pkg/signals"
)

func TestRegistryAddAndLookup(t *testing.T) {
	registry := signals.NewRegistry()

	err := registry.Add(&signals.Signal{
		ID:           "SIG-001",
		Junction:     "Shivajinagar Chowk",
		Location:     ctdf.NewGeoPoint(18.5204, 73.8567),
		CurrentState: ctdf.LightStateRed,
	})
	require.NoError(t, err)

	signal, ok := registry.Lookup("SIG-001")
	require.True(t, ok)
	assert.Equal(t, "Shivajinagar Chowk", signal.Junction)
	assert.Equal(t, ctdf.LightStateRed, signal.CurrentState)
	assert.False(t, signal.CorridorActive)
	assert.Empty(t, signal.OwningIncidentID)

	_, ok = registry.Lookup("SIG-404")
	assert.False(t, ok)
}

func TestRegistryDefaultsToRed(t *testing.T) {
	registry := signals.NewRegistry()
	require.NoError(t, registry.Add(&signals.Signal{ID: "SIG-002", Location: ctdf.NewGeoPoint(1, 1)}))

	signal, _ := registry.Lookup("SIG-002")
	assert.Equal(t, ctdf.LightStateRed, signal.CurrentState)
}

func TestRegistryRejectsInvalid(t *testing.T) {
	registry := signals.NewRegistry()

	for name, signal := range map[string]*signals.Signal{
		"latitude":  {ID: "A", Location: ctdf.NewGeoPoint(95, 0)},
		"longitude": {ID: "B", Location: ctdf.NewGeoPoint(0, -190)},
		"nan":       {ID: "C", Location: ctdf.NewGeoPoint(math.NaN(), 0)},
		"no id":     {Location: ctdf.NewGeoPoint(0, 0)},
		"state":     {ID: "D", Location: ctdf.NewGeoPoint(0, 0), CurrentState: "BLUE"},
		"radii":     {ID: "E", Location: ctdf.NewGeoPoint(0, 0), ActivationRadius: 300, RestoreRadius: 200},
	} {
		err := registry.Add(signal)
		assert.ErrorIs(t, err, signals.ErrInvalidSignal, name)
	}

	assert.Equal(t, 0, registry.Len())
	assert.Empty(t, registry.List())
}

func TestRegistryUpdateKeepsCorridorState(t *testing.T) {
	registry := signals.NewRegistry()
	require.NoError(t, registry.Add(&signals.Signal{ID: "SIG-001", Junction: "Old", Location: ctdf.NewGeoPoint(1, 1)}))

	signal, _ := registry.Lookup("SIG-001")
	signal.Lock()
	signal.CurrentState = ctdf.LightStateGreen
	signal.CorridorActive = true
	signal.OwningIncidentID = "ACC-1"
	signal.Unlock()

	require.NoError(t, registry.Add(&signals.Signal{ID: "SIG-001", Junction: "New", Location: ctdf.NewGeoPoint(1, 1), ActivationRadius: 700}))

	view := signal.Snapshot()
	assert.Equal(t, "New", view.Junction)
	assert.Equal(t, 700.0, view.ActivationRadius)
	assert.Equal(t, 700.0, registry.MaxActivationRadius())
	assert.Equal(t, ctdf.LightStateGreen, view.CurrentState)
	assert.True(t, view.CorridorActive)
	assert.Equal(t, "ACC-1", view.OwningIncidentID)
	assert.Equal(t, 1, registry.Len())
}

func TestRegistryListOrder(t *testing.T) {
	registry := signals.NewRegistry()
	for _, id := range []string{"SIG-003", "SIG-001", "SIG-002"} {
		require.NoError(t, registry.Add(&signals.Signal{ID: id, Location: ctdf.NewGeoPoint(0, 0)}))
	}

	var ids []string
	for _, signal := range registry.List() {
		ids = append(ids, signal.ID)
	}
	assert.Equal(t, []string{"SIG-003", "SIG-001", "SIG-002"}, ids)
}

func TestSignalTryLock(t *testing.T) {
	signal := &signals.Signal{ID: "SIG-001"}

	require.True(t, signal.TryLock())
	assert.False(t, signal.TryLock())
	signal.Unlock()
	assert.True(t, signal.TryLock())
	signal.Unlock()
}

func TestPendingRestoreCancel(t *testing.T) {
	var nilRestore *signals.PendingRestore
	assert.NotPanics(t, func() { nilRestore.Cancel() })

	stopped := false
	restore := &signals.PendingRestore{Token: "ACC-1", Stop: func() bool { stopped = true; return true }}
	restore.Cancel()
	assert.True(t, stopped)
}

func TestRegistryRejectsRelocation(t *testing.T) {
	registry := signals.NewRegistry()
	require.NoError(t, registry.Add(&signals.Signal{ID: "SIG-001", Junction: "Old", Location: ctdf.NewGeoPoint(1, 1)}))

	err := registry.Add(&signals.Signal{ID: "SIG-001", Junction: "Moved", Location: ctdf.NewGeoPoint(2, 2)})
	assert.ErrorIs(t, err, signals.ErrInvalidSignal)

	signal, _ := registry.Lookup("SIG-001")
	assert.Equal(t, "Old", signal.Snapshot().Junction)
	assert.Equal(t, ctdf.NewGeoPoint(1, 1), signal.GetLocation())
}
