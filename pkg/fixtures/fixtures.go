package fixtures

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
	"github.com/travigo/corridor/pkg/corridor"
	"github.com/travigo/corridor/pkg/ctdf"
	"github.com/travigo/corridor/pkg/hospitals"
	"github.com/travigo/corridor/pkg/signals"
	"gopkg.in/yaml.v3"
)

const (
	SignalsFile   = "signals.csv"
	HospitalsFile = "hospitals.yaml"
	IncidentsFile = "incidents.yaml"
)

// SignalRecord is one row of the signals fixture. Zero radii use the engine defaults.
type SignalRecord struct {
	ID               string  `csv:"signal_id"`
	Junction         string  `csv:"junction"`
	Latitude         float64 `csv:"lat"`
	Longitude        float64 `csv:"lng"`
	State            string  `csv:"state"`
	ActivationRadius float64 `csv:"activation_radius"`
	RestoreRadius    float64 `csv:"restore_radius"`
}

func (r *SignalRecord) Signal() *signals.Signal {
	return &signals.Signal{
		ID:               r.ID,
		Junction:         r.Junction,
		Location:         ctdf.NewGeoPoint(r.Latitude, r.Longitude),
		CurrentState:     ctdf.LightState(strings.ToUpper(strings.TrimSpace(r.State))),
		ActivationRadius: r.ActivationRadius,
		RestoreRadius:    r.RestoreRadius,
	}
}

// Set is the seed data the in-memory registries are rebuilt from on start
type Set struct {
	Signals   []SignalRecord
	Hospitals []ctdf.Hospital
	Incidents []ctdf.Incident
}

func ParseSignals(reader io.Reader) ([]SignalRecord, error) {
	// Allow trailing optional columns to be missing
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.FieldsPerRecord = -1
		r.TrimLeadingSpace = true
		return r
	})

	var records []SignalRecord
	if err := gocsv.Unmarshal(reader, &records); err != nil {
		return nil, err
	}

	return records, nil
}

func ParseHospitals(reader io.Reader) ([]ctdf.Hospital, error) {
	var hospitalList []ctdf.Hospital
	if err := yaml.NewDecoder(reader).Decode(&hospitalList); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return hospitalList, nil
}

func ParseIncidents(reader io.Reader) ([]ctdf.Incident, error) {
	var incidents []ctdf.Incident
	if err := yaml.NewDecoder(reader).Decode(&incidents); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return incidents, nil
}

// Load reads every fixture file present in directory. Missing files are skipped.
func Load(directory string) (*Set, error) {
	set := &Set{}

	parsers := map[string]func([]byte) error{
		SignalsFile: func(content []byte) (err error) {
			set.Signals, err = ParseSignals(bytes.NewReader(content))
			return
		},
		HospitalsFile: func(content []byte) (err error) {
			set.Hospitals, err = ParseHospitals(bytes.NewReader(content))
			return
		},
		IncidentsFile: func(content []byte) (err error) {
			set.Incidents, err = ParseIncidents(bytes.NewReader(content))
			return
		},
	}

	for fileName, parse := range parsers {
		path := filepath.Join(directory, fileName)

		content, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Str("path", path).Msg("Fixture file not present")
			continue
		} else if err != nil {
			return nil, err
		}

		log.Debug().Str("path", path).Msg("Loading fixture file")

		if err := parse(content); err != nil {
			return nil, err
		}
	}

	return set, nil
}

type Summary struct {
	Signals   int
	Hospitals int
	Incidents int
	Rejected  int
}

// Apply seeds the registry, hospital directory and engine. Invalid records are
// logged and skipped.
func (s *Set) Apply(registry *signals.Registry, directory *hospitals.StaticDirectory, engine *corridor.Engine) Summary {
	summary := Summary{}

	for i := range s.Signals {
		if err := registry.Add(s.Signals[i].Signal()); err != nil {
			summary.Rejected++
			continue
		}
		summary.Signals++
	}

	if directory != nil {
		for _, hospital := range s.Hospitals {
			if !directory.Add(hospital) {
				summary.Rejected++
				continue
			}
			summary.Hospitals++
		}
	}

	if engine != nil {
		for _, incident := range s.Incidents {
			if err := engine.RegisterIncident(incident); err != nil {
				log.Warn().Err(err).Str("incident", incident.ID).Msg("Rejected fixture incident")
				summary.Rejected++
				continue
			}
			summary.Incidents++
		}
	}

	log.Info().
		Int("signals", summary.Signals).
		Int("hospitals", summary.Hospitals).
		Int("incidents", summary.Incidents).
		Int("rejected", summary.Rejected).
		Msg("Loaded fixtures")

	return summary
}
