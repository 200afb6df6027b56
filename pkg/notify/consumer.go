package notify

import (
	"encoding/json"
	"io"
	"os"

	"github.com/adjust/rmq/v5"
	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
)

// TailBatchConsumer prints notifications as they are consumed
type TailBatchConsumer struct {
	out io.Writer
}

func NewTailBatchConsumer() *TailBatchConsumer {
	return &TailBatchConsumer{out: os.Stdout}
}

func (c *TailBatchConsumer) Consume(batch rmq.Deliveries) {
	c.printAll(batch.Payloads())

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Error().Err(err).Msg("Failed to ack notification")
		}
	}
}

func (c *TailBatchConsumer) printAll(payloads []string) {
	for _, payload := range payloads {
		var notification Notification
		if err := json.Unmarshal([]byte(payload), &notification); err != nil {
			log.Warn().Err(err).Msg("Skipping unreadable notification")
			continue
		}

		pretty.Fprintf(c.out, "%# v\n", notification)
	}
}
