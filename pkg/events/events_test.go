package events

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/corridor/pkg/bridge"
	"github.com/travigo/corridor/pkg/broker"
	"github.com/travigo/corridor/pkg/ctdf"
)

func TestSyntheticIncident(t *testing.T) {
	incident, err := SyntheticIncident("", 18.5, 73.8, "LOW")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(incident.ID, "ACC-TEST-"))
	assert.Equal(t, "LOW", incident.Severity)
	assert.False(t, incident.ReportedAt.IsZero())

	incident, err = SyntheticIncident("ACC-7", 18.5, 73.8, "HIGH")
	require.NoError(t, err)
	assert.Equal(t, "ACC-7", incident.ID)

	_, err = SyntheticIncident("ACC-8", 91, 73.8, "HIGH")
	assert.Error(t, err)
}

func TestSyntheticLocation(t *testing.T) {
	update, err := SyntheticLocation("ACC-1", "AMB-1", "responder", 18.5, 73.8)
	require.NoError(t, err)
	assert.Equal(t, ctdf.EntityTypeResponder, update.EntityType)
	assert.False(t, update.Timestamp.IsZero())

	_, err = SyntheticLocation("ACC-1", "AMB-1", "", 18.5, 190)
	assert.ErrorIs(t, err, ctdf.ErrInvalidLocation)
}

func TestPublishedTopics(t *testing.T) {
	transport := broker.NewMemoryBroker()
	ctx := context.Background()
	require.NoError(t, transport.Connect(ctx))

	var mutex sync.Mutex
	received := map[string][]byte{}
	require.NoError(t, transport.Subscribe("#", func(message broker.Message) {
		mutex.Lock()
		defer mutex.Unlock()
		received[message.Topic] = message.Payload
	}))

	incident, err := SyntheticIncident("ACC-1", 18.5, 73.8, "HIGH")
	require.NoError(t, err)
	require.NoError(t, bridge.SendIncident(ctx, transport, incident))
	require.NoError(t, bridge.SendCancel(ctx, transport, "ACC-1", "duplicate"))

	update, err := SyntheticLocation("ACC-1", "AMB-1", "AMBULANCE", 18.5, 73.8)
	require.NoError(t, err)
	require.NoError(t, bridge.SendLocation(ctx, transport, update))

	mutex.Lock()
	defer mutex.Unlock()

	require.Contains(t, received, "sos/ACC-1")
	var decoded ctdf.Incident
	require.NoError(t, json.Unmarshal(received["sos/ACC-1"], &decoded))
	assert.Equal(t, "ACC-1", decoded.ID)

	assert.JSONEq(t, `{"reason":"duplicate"}`, string(received["sos/ACC-1/cancel"]))
	assert.Contains(t, received, "ambulance/AMB-1/location")
}

func TestMemoryBrokerRefused(t *testing.T) {
	err := withBroker(broker.KindMemory, func(ctx context.Context, transport broker.Broker) error {
		return nil
	})
	assert.Error(t, err)
}
