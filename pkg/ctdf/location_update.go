package ctdf

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type EntityType string

const (
	EntityTypeAmbulance EntityType = "AMBULANCE"
	EntityTypeResponder EntityType = "RESPONDER"
	EntityTypeVictim    EntityType = "VICTIM"
)

// LocationUpdate is a single position report from a tracked entity
type LocationUpdate struct {
	AccidentID string     `json:"accidentId,omitempty" groups:"basic"`
	EntityID   string     `json:"entityId" groups:"basic"`
	EntityType EntityType `json:"entityType" groups:"basic"`

	Location  GeoPoint  `json:"location" groups:"basic"`
	Timestamp Timestamp `json:"timestamp" groups:"basic"`

	// Origin identifies the relay process that republished the update onto the broker
	Origin string `json:"origin,omitempty" groups:"detailed"`
}

// IsResponder reports whether the update comes from a vehicle that drives corridor control
func (u *LocationUpdate) IsResponder() bool {
	return u.EntityType == EntityTypeAmbulance || u.EntityType == EntityTypeResponder
}

func (u *LocationUpdate) CacheKey() string {
	return fmt.Sprintf("%s:%s", u.EntityType, u.EntityID)
}

// Normalise upper-cases the entity type and fills a missing timestamp
func (u *LocationUpdate) Normalise(now time.Time) {
	u.EntityType = EntityType(strings.ToUpper(strings.TrimSpace(string(u.EntityType))))
	if u.EntityType == "" {
		u.EntityType = EntityTypeAmbulance
	}

	if u.Timestamp.IsZero() {
		u.Timestamp = Timestamp{now}
	}
}

// Timestamp accepts either RFC3339 strings or epoch milliseconds on the wire
// and always marshals as RFC3339.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		if text == "" {
			return nil
		}

		parsed, err := time.Parse(time.RFC3339Nano, text)
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	}

	millis, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return errors.New("timestamp must be RFC3339 or epoch milliseconds")
	}
	t.Time = time.UnixMilli(int64(millis)).UTC()

	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}
