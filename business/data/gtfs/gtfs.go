// Package gtfs provides read only access to the static gtfs schedule used to resolve realtime delay observations
package gtfs

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// ScheduleStore provides the schedule queries needed while ingesting and consolidating delay observations.
// The schedule is loaded upstream and is assumed not to change for the duration of a run.
type ScheduleStore interface {
	// ListAllowedRouteIds returns the route_ids of all routes operated by agencyIds
	ListAllowedRouteIds(ctx context.Context, agencyIds []int64) ([]int64, error)
	// ListScheduledStopsForTrips returns the StopTimes of tripIds ordered by trip_id and stop_sequence
	ListScheduledStopsForTrips(ctx context.Context, tripIds []int64) ([]*StopTime, error)
}

// DBScheduleStore implements ScheduleStore on top of the schedule tables in the database
type DBScheduleStore struct {
	db *sqlx.DB
}

// NewDBScheduleStore creates DBScheduleStore using db
func NewDBScheduleStore(db *sqlx.DB) *DBScheduleStore {
	return &DBScheduleStore{db: db}
}

// ListAllowedRouteIds implements ScheduleStore
func (s *DBScheduleStore) ListAllowedRouteIds(ctx context.Context, agencyIds []int64) ([]int64, error) {
	return GetRouteIdsForAgencies(ctx, s.db, agencyIds)
}

// ListScheduledStopsForTrips implements ScheduleStore
func (s *DBScheduleStore) ListScheduledStopsForTrips(ctx context.Context, tripIds []int64) ([]*StopTime, error) {
	return GetStopTimesForTrips(ctx, s.db, tripIds)
}
