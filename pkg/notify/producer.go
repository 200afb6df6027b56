package notify

import (
	"encoding/json"
	"sync"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/travigo/corridor/pkg/ctdf"
)

const producerBufferSize = 500

// Queue is the publishing side of an rmq queue
type Queue interface {
	PublishBytes(payload ...[]byte) error
}

// Producer turns case status events into queued notifications. Publishing
// happens on its own goroutine so the engine never waits on Redis.
type Producer struct {
	queue   Queue
	pending chan Notification

	mutex  sync.RWMutex
	closed bool
}

func OpenProducer(connection rmq.Connection) (*Producer, error) {
	queue, err := connection.OpenQueue(QueueName)
	if err != nil {
		return nil, err
	}

	return NewProducer(queue), nil
}

func NewProducer(queue Queue) *Producer {
	producer := &Producer{
		queue:   queue,
		pending: make(chan Notification, producerBufferSize),
	}

	go producer.run()

	return producer
}

func (p *Producer) Emit(event ctdf.Event) {
	status, ok := event.Body.(ctdf.CaseStatus)
	if !ok {
		return
	}

	p.mutex.RLock()
	defer p.mutex.RUnlock()
	if p.closed {
		return
	}

	select {
	case p.pending <- NewNotification(status):
	default:
		log.Warn().Str("incident", status.IncidentID).Msg("Notify queue backed up, dropped notification")
	}
}

// Close stops accepting notifications. Anything already accepted is still published.
func (p *Producer) Close() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.closed {
		p.closed = true
		close(p.pending)
	}
}

func (p *Producer) run() {
	for notification := range p.pending {
		notificationBytes, err := json.Marshal(notification)
		if err != nil {
			continue
		}

		if err := p.queue.PublishBytes(notificationBytes); err != nil {
			log.Error().Err(err).Str("incident", notification.IncidentID).Msg("Failed to queue notification")
			continue
		}

		log.Debug().Str("incident", notification.IncidentID).Str("status", string(notification.Status)).Msg("Queued notification")
	}
}
