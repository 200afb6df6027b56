package ctdf

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var ErrInvalidLocation = errors.New("location outside of valid coordinate range")

const locationUpdateSchemaText = `{
	"type": "object",
	"required": ["entityId", "location"],
	"properties": {
		"accidentId": {"type": "string"},
		"entityId": {"type": "string", "minLength": 1},
		"entityType": {"type": "string"},
		"location": {
			"type": "object",
			"required": ["lat", "lng"],
			"properties": {
				"lat": {"type": "number", "minimum": -90, "maximum": 90},
				"lng": {"type": "number", "minimum": -180, "maximum": 180},
				"heading": {"type": "number"},
				"speed": {"type": "number"},
				"accuracy": {"type": "number"}
			}
		}
	}
}`

var locationUpdateSchema = jsonschema.MustCompileString("location_update.json", locationUpdateSchemaText)

// DecodeLocationUpdate validates a raw payload against the location update schema
// and returns the normalised update. Out of range coordinates are always rejected.
func DecodeLocationUpdate(raw []byte) (*LocationUpdate, error) {
	var document interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return nil, err
	}

	if err := locationUpdateSchema.Validate(document); err != nil {
		return nil, fmt.Errorf("location update failed validation: %w", err)
	}

	var update LocationUpdate
	if err := json.Unmarshal(raw, &update); err != nil {
		return nil, err
	}

	if !update.Location.Valid() {
		return nil, ErrInvalidLocation
	}

	update.Normalise(time.Now())

	return &update, nil
}
