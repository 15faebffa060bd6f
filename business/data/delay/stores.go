package delay

import (
	"io"
	logger "log"

	"github.com/OpenTransitTools/gtfsdelay/business/data/gtfs"
	"github.com/OpenTransitTools/gtfsdelay/foundation/database"
)

// Stores is the schedule and observation access owned by a single worker
type Stores struct {
	Schedule     gtfs.ScheduleStore
	Observations ObservationStore
	// Closer, if set, releases the connection behind the stores
	Closer io.Closer
}

// Close releases the worker's connection
func (s *Stores) Close() error {
	if s.Closer == nil {
		return nil
	}
	return s.Closer.Close()
}

// StoresFactory creates a new independent Stores for each worker
type StoresFactory func() (*Stores, error)

// DBStoresFactory returns a StoresFactory opening a new database connection pool for every worker
func DBStoresFactory(log *logger.Logger, cfg database.Config) StoresFactory {
	return func() (*Stores, error) {
		db, err := database.Open(cfg)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Schedule:     gtfs.NewDBScheduleStore(db),
			Observations: NewDBStore(log, db),
			Closer:       db,
		}, nil
	}
}

// SharedStoresFactory returns a StoresFactory handing every worker the same stores, which are never closed
func SharedStoresFactory(schedule gtfs.ScheduleStore, observations ObservationStore) StoresFactory {
	return func() (*Stores, error) {
		return &Stores{Schedule: schedule, Observations: observations}, nil
	}
}
