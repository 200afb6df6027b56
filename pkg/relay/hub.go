package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/travigo/corridor/pkg/auth"
	"github.com/travigo/corridor/pkg/ctdf"
	"golang.org/x/exp/slices"
)

// GlobalRoom receives every incident's lifecycle and location events
const GlobalRoom = "global"

// CloseAuthFailed is sent when the handshake token is missing or rejected
const CloseAuthFailed = 4001

// Forwarder receives responder positions, normally the corridor engine
type Forwarder interface {
	OnAmbulancePosition(ctx context.Context, incidentID string, entityID string, point ctdf.GeoPoint) error
}

// Publisher republishes locations for other services, normally the bridge.
// It must not block.
type Publisher interface {
	PublishLocation(update ctdf.LocationUpdate)
}

type forwardRequest struct {
	incidentID string
	entityID   string
	point      ctdf.GeoPoint
}

type Hub struct {
	config   Config
	verifier auth.Verifier
	cache    *LocationCache

	forwarder Forwarder
	publisher Publisher

	mutex sync.RWMutex
	rooms map[string]map[string]*Session

	forwardQueue chan forwardRequest
	closeOnce    sync.Once
	stopped      chan struct{}
}

func NewHub(config Config, verifier auth.Verifier, cache *LocationCache) *Hub {
	if cache == nil {
		cache = NewLocationCache(config.LocationCacheSize)
	}

	hub := &Hub{
		config:   config,
		verifier: verifier,
		cache:    cache,
		rooms: map[string]map[string]*Session{
			GlobalRoom: {},
		},
		forwardQueue: make(chan forwardRequest, config.ForwardQueueSize),
		stopped:      make(chan struct{}),
	}

	go hub.forwardLoop()

	return hub
}

func (h *Hub) WithForwarder(forwarder Forwarder) *Hub {
	h.forwarder = forwarder
	return h
}

func (h *Hub) WithPublisher(publisher Publisher) *Hub {
	h.publisher = publisher
	return h
}

func (h *Hub) Cache() *LocationCache {
	return h.cache
}

// Close stops forwarding to the engine
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.stopped)
	})
}

// ServeConn runs one connection from handshake to disconnect
func (h *Hub) ServeConn(ctx context.Context, conn Conn, token string, room string) {
	claims, err := h.authenticate(ctx, token)
	if err != nil {
		log.Warn().Err(err).Str("room", room).Msg("Rejected relay connection")

		closeMessage := websocket.FormatCloseMessage(CloseAuthFailed, "authentication required")
		conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(time.Second))
		return
	}

	if limiter, ok := conn.(readLimiter); ok && h.config.MaxFrameSize > 0 {
		limiter.SetReadLimit(h.config.MaxFrameSize)
	}

	session := h.Join(conn, claims, room)
	defer h.Leave(session)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}

		h.HandleMessage(ctx, session, message)
	}
}

func (h *Hub) authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	if token == "" {
		return nil, auth.ErrMissingToken
	}
	if h.verifier == nil {
		return nil, errors.New("no credential verifier configured")
	}

	return h.verifier.Verify(ctx, token)
}

// Join admits an authenticated connection to a room. An empty room selects the global room.
func (h *Hub) Join(conn Conn, claims *auth.Claims, room string) *Session {
	if room == "" {
		room = GlobalRoom
	}

	session := &Session{
		ID:          uuid.NewString(),
		Room:        room,
		ConnectedAt: time.Now(),

		conn:         conn,
		queue:        newSendQueue(h.config.SendQueueSize),
		writeTimeout: h.config.WriteTimeout,
		done:         make(chan struct{}),
	}
	if claims != nil {
		session.Subject = claims.Subject
		session.Role = claims.Role
	}

	go session.writeLoop()

	if envelope, err := ctdf.NewEnvelope(ctdf.EnvelopeTypeConnected, map[string]string{"sessionId": session.ID, "room": room}); err == nil {
		session.Send(envelope.Bytes())
	}

	h.mutex.Lock()
	members, ok := h.rooms[room]
	if !ok {
		members = map[string]*Session{}
		h.rooms[room] = members
	}
	members[session.ID] = session
	h.mutex.Unlock()

	log.Info().Str("session", session.ID).Str("room", room).Str("subject", session.Subject).Msg("Relay session joined")

	// Replay what we know so a reconnecting observer is not blind until the next report
	var known []ctdf.LocationUpdate
	if room == GlobalRoom {
		known = h.cache.List()
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		known = h.cache.Recent(ctx, room)
		cancel()
	}

	for _, update := range known {
		if envelope, err := ctdf.NewEnvelope(ctdf.EnvelopeTypeLocationUpdate, update); err == nil {
			session.Send(envelope.Bytes())
		}
	}

	return session
}

// Leave removes the session from its room and waits for its writer to finish
func (h *Hub) Leave(session *Session) {
	h.mutex.Lock()
	if members, ok := h.rooms[session.Room]; ok {
		delete(members, session.ID)
		if len(members) == 0 && session.Room != GlobalRoom {
			delete(h.rooms, session.Room)
		}
	}
	h.mutex.Unlock()

	session.queue.close()
	<-session.done

	log.Info().Str("session", session.ID).Str("room", session.Room).Msg("Relay session left")
}

// HandleMessage processes one inbound frame. Anything that is not understood is dropped.
func (h *Hub) HandleMessage(ctx context.Context, session *Session, message []byte) {
	var envelope ctdf.Envelope
	if err := json.Unmarshal(message, &envelope); err != nil {
		return
	}

	switch envelope.Type {
	case ctdf.EnvelopeTypePing:
		if pong, err := ctdf.NewEnvelope(ctdf.EnvelopeTypePong, nil); err == nil {
			session.Send(pong.Bytes())
		}
	case ctdf.EnvelopeTypeLocationUpdate:
		update, err := ctdf.DecodeLocationUpdate(envelope.Payload)
		if err != nil {
			log.Debug().Err(err).Str("session", session.ID).Msg("Dropped invalid location update")
			return
		}

		if update.AccidentID == "" && session.Room != GlobalRoom {
			update.AccidentID = session.Room
		}

		h.ingest(*update, session, true)
	}
}

// IngestLocation handles a position that arrived without a persistent connection
func (h *Hub) IngestLocation(update ctdf.LocationUpdate) {
	h.ingest(update, nil, true)
}

// RelayLocation handles a position that arrived from the broker. It is not published again.
func (h *Hub) RelayLocation(update ctdf.LocationUpdate) {
	h.ingest(update, nil, false)
}

func (h *Hub) ingest(update ctdf.LocationUpdate, sender *Session, publish bool) {
	update.Origin = ""
	h.cache.Put(update)

	envelope, err := ctdf.NewEnvelope(ctdf.EnvelopeTypeLocationUpdate, update)
	if err != nil {
		return
	}

	room := update.AccidentID
	if sender != nil {
		room = sender.Room
	}
	if room == "" {
		room = GlobalRoom
	}

	h.Broadcast(room, envelope, sender)
	if room != GlobalRoom {
		h.Broadcast(GlobalRoom, envelope, sender)
	}

	if update.IsResponder() && update.AccidentID != "" && h.forwarder != nil {
		select {
		case h.forwardQueue <- forwardRequest{incidentID: update.AccidentID, entityID: update.EntityID, point: update.Location}:
		default:
			log.Warn().Str("entity", update.EntityID).Msg("Forward queue full, dropped position")
		}
	}

	if publish && h.publisher != nil {
		h.publisher.PublishLocation(update)
	}
}

// forwardLoop hands positions to the engine in arrival order, each bounded by the forward timeout
func (h *Hub) forwardLoop() {
	for {
		select {
		case <-h.stopped:
			return
		case request := <-h.forwardQueue:
			ctx, cancel := context.WithTimeout(context.Background(), h.config.ForwardTimeout)
			err := h.forwarder.OnAmbulancePosition(ctx, request.incidentID, request.entityID, request.point)
			cancel()

			if err != nil {
				log.Debug().Err(err).
					Str("incident", request.incidentID).
					Str("entity", request.entityID).
					Msg("Position not applied to corridor")
			}
		}
	}
}

// Broadcast sends envelope to every member of room except one
func (h *Hub) Broadcast(room string, envelope *ctdf.Envelope, except *Session) {
	frame := envelope.Bytes()

	h.mutex.RLock()
	members := make([]*Session, 0, len(h.rooms[room]))
	for _, session := range h.rooms[room] {
		if session != except {
			members = append(members, session)
		}
	}
	h.mutex.RUnlock()

	for _, session := range members {
		session.Send(frame)
	}
}

// BroadcastIncident sends an incident lifecycle event to its room and the global room
func (h *Hub) BroadcastIncident(incidentID string, envelope *ctdf.Envelope) {
	if incidentID != "" && incidentID != GlobalRoom {
		h.Broadcast(incidentID, envelope, nil)
	}
	h.Broadcast(GlobalRoom, envelope, nil)
}

type RoomSummary struct {
	Room    string `json:"room"`
	Members int    `json:"members"`

	// Dropped counts frames discarded by the current members' full send queues
	Dropped int `json:"dropped"`
}

// Rooms lists every room with its member count. The global room is always present.
func (h *Hub) Rooms() []RoomSummary {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	rooms := make([]RoomSummary, 0, len(h.rooms))
	for room, members := range h.rooms {
		summary := RoomSummary{Room: room, Members: len(members)}
		for _, session := range members {
			summary.Dropped += session.Dropped()
		}
		rooms = append(rooms, summary)
	}
	slices.SortFunc(rooms, func(a, b RoomSummary) int {
		switch {
		case a.Room < b.Room:
			return -1
		case a.Room > b.Room:
			return 1
		}
		return 0
	})

	return rooms
}

// IsMember reports whether the session id is in room
func (h *Hub) IsMember(room string, sessionID string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	_, ok := h.rooms[room][sessionID]
	return ok
}
