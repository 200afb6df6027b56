package relay

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/travigo/corridor/pkg/auth"
	"github.com/travigo/corridor/pkg/ctdf"
)

type fakeConn struct {
	inbound chan []byte

	mutex     sync.Mutex
	written   []ctdf.Envelope
	closeCode int
	readLimit int64
	deadlines []time.Time
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 16)}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	message, ok := <-c.inbound
	if !ok {
		return 0, nil, io.EOF
	}
	return 1, message, nil
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	var envelope ctdf.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.written = append(c.written, envelope)
	return nil
}

func (c *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if len(data) >= 2 {
		c.closeCode = int(binary.BigEndian.Uint16(data[:2]))
	}
	return nil
}

func (c *fakeConn) SetWriteDeadline(deadline time.Time) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.deadlines = append(c.deadlines, deadline)
	return nil
}

func (c *fakeConn) SetReadLimit(limit int64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.readLimit = limit
}

func (c *fakeConn) writeDeadlines() []time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return append([]time.Time(nil), c.deadlines...)
}

func (c *fakeConn) envelopes(envelopeType ctdf.EnvelopeType) []ctdf.Envelope {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var matching []ctdf.Envelope
	for _, envelope := range c.written {
		if envelope.Type == envelopeType {
			matching = append(matching, envelope)
		}
	}
	return matching
}

func (c *fakeConn) code() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.closeCode
}

type fakeVerifier struct{}

func (fakeVerifier) Verify(ctx context.Context, token string) (*auth.Claims, error) {
	if token == "" {
		return nil, auth.ErrMissingToken
	}
	if token != "valid" {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Claims{Subject: "tester"}, nil
}

type forwardCall struct {
	incidentID string
	entityID   string
	point      ctdf.GeoPoint
}

type fakeForwarder struct {
	mutex sync.Mutex
	calls []forwardCall
	err   error
	delay time.Duration
}

func (f *fakeForwarder) OnAmbulancePosition(ctx context.Context, incidentID string, entityID string, point ctdf.GeoPoint) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.calls = append(f.calls, forwardCall{incidentID: incidentID, entityID: entityID, point: point})
	return f.err
}

func (f *fakeForwarder) count() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	return len(f.calls)
}

type fakePublisher struct {
	mutex   sync.Mutex
	updates []ctdf.LocationUpdate
}

func (p *fakePublisher) PublishLocation(update ctdf.LocationUpdate) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.updates = append(p.updates, update)
}

func (p *fakePublisher) count() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return len(p.updates)
}

var errEngineDown = errors.New("engine unavailable")

func newTestHub(t *testing.T) (*Hub, *fakeForwarder, *fakePublisher) {
	t.Helper()

	forwarder := &fakeForwarder{}
	publisher := &fakePublisher{}

	hub := NewHub(DefaultConfig, fakeVerifier{}, nil).WithForwarder(forwarder).WithPublisher(publisher)
	t.Cleanup(hub.Close)

	return hub, forwarder, publisher
}

func locationFrame(t *testing.T, payload string) []byte {
	t.Helper()

	frame, err := json.Marshal(map[string]json.RawMessage{
		"type":    json.RawMessage(`"LOCATION_UPDATE"`),
		"payload": json.RawMessage(payload),
	})
	require.NoError(t, err)
	return frame
}
