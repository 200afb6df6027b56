package hospitals

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/travigo/corridor/pkg/ctdf"
	"github.com/travigo/corridor/pkg/geo"
	"golang.org/x/exp/slices"
)

var ErrNotFound = errors.New("hospital not found")

// Directory finds receiving facilities for a mission
type Directory interface {
	FindNearest(ctx context.Context, point ctdf.GeoPoint, limit int) ([]ctdf.Hospital, error)
	Lookup(ctx context.Context, id string) (*ctdf.Hospital, error)
}

// StaticDirectory serves hospitals loaded from fixture data
type StaticDirectory struct {
	mutex     sync.RWMutex
	hospitals []ctdf.Hospital
}

func NewStaticDirectory(hospitals []ctdf.Hospital) *StaticDirectory {
	directory := &StaticDirectory{}

	for _, hospital := range hospitals {
		directory.Add(hospital)
	}

	return directory
}

func (d *StaticDirectory) Add(hospital ctdf.Hospital) bool {
	if hospital.ID == "" || !hospital.Location.Valid() {
		log.Warn().Str("hospital", hospital.ID).Msg("Rejected hospital with invalid identifier or location")
		return false
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.hospitals = append(d.hospitals, hospital)
	return true
}

func (d *StaticDirectory) FindNearest(ctx context.Context, point ctdf.GeoPoint, limit int) ([]ctdf.Hospital, error) {
	if !point.Valid() {
		return nil, geo.ErrInvalidPoint
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type rankedHospital struct {
		hospital ctdf.Hospital
		distance float64
	}

	d.mutex.RLock()
	ranked := make([]rankedHospital, 0, len(d.hospitals))
	for _, hospital := range d.hospitals {
		distance, err := geo.DistanceMetres(point, hospital.Location)
		if err != nil {
			continue
		}
		ranked = append(ranked, rankedHospital{hospital: hospital, distance: distance})
	}
	d.mutex.RUnlock()

	slices.SortStableFunc(ranked, func(a, b rankedHospital) int {
		switch {
		case a.distance < b.distance:
			return -1
		case a.distance > b.distance:
			return 1
		}
		return 0
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	nearest := make([]ctdf.Hospital, 0, len(ranked))
	for _, item := range ranked {
		nearest = append(nearest, item.hospital)
	}

	return nearest, nil
}

func (d *StaticDirectory) Lookup(ctx context.Context, id string) (*ctdf.Hospital, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	for _, hospital := range d.hospitals {
		if hospital.ID == id {
			found := hospital
			return &found, nil
		}
	}

	return nil, ErrNotFound
}
