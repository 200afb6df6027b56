package ctdf

import "encoding/json"

type EnvelopeType string

const (
	EnvelopeTypeLocationUpdate EnvelopeType = "LOCATION_UPDATE"
	EnvelopeTypeSOSNew         EnvelopeType = "SOS_NEW"
	EnvelopeTypeCaseUpdate     EnvelopeType = "CASE_UPDATE"
	EnvelopeTypeSignalUpdate   EnvelopeType = "SIGNAL_UPDATE"
	EnvelopeTypeConnected      EnvelopeType = "CONNECTED"
	EnvelopeTypePing           EnvelopeType = "PING"
	EnvelopeTypePong           EnvelopeType = "PONG"
)

// Envelope is the typed frame exchanged with relay subscribers
type Envelope struct {
	Type    EnvelopeType    `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewEnvelope(envelopeType EnvelopeType, payload interface{}) (*Envelope, error) {
	envelope := &Envelope{Type: envelopeType}

	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		envelope.Payload = payloadBytes
	}

	return envelope, nil
}

func (e *Envelope) Bytes() []byte {
	envelopeBytes, _ := json.Marshal(e)
	return envelopeBytes
}
