package gtfs

import (
	"context"
	"fmt"

	"github.com/OpenTransitTools/gtfsdelay/foundation/database"
	"github.com/jmoiron/sqlx"
)

// maxTripIdsPerQuery keeps "in" lists well below the postgres bind parameter limit
const maxTripIdsPerQuery = 5000

// StopTime contains a record from a gtfs stop_times.txt file
// represents a scheduled arrival and departure at a stop.
// ArrivalTime and DepartureTime are seconds from the start of the service day, and may exceed 24 hours
type StopTime struct {
	TripId        int64  `db:"trip_id" json:"trip_id"`
	StopSequence  uint32 `db:"stop_sequence" json:"stop_sequence"`
	StopId        string `db:"stop_id" json:"stop_id"`
	ArrivalTime   int    `db:"arrival_time" json:"arrival_time"`
	DepartureTime int    `db:"departure_time" json:"departure_time"`
}

// GetStopTimesForTrips collects StopTimes for tripIds ordered by trip_id and stop_sequence
func GetStopTimesForTrips(ctx context.Context, db *sqlx.DB, tripIds []int64) ([]*StopTime, error) {
	results := make([]*StopTime, 0)
	statementString := "select trip_id, stop_sequence, stop_id, arrival_time, departure_time " +
		"from stop_time where trip_id in (:trip_ids) " +
		"order by trip_id, stop_sequence"

	for start := 0; start < len(tripIds); start += maxTripIdsPerQuery {
		end := start + maxTripIdsPerQuery
		if end > len(tripIds) {
			end = len(tripIds)
		}
		query, args, err := database.PrepareNamedQueryFromMap(statementString, db, map[string]interface{}{
			"trip_ids": tripIds[start:end],
		})
		if err != nil {
			return nil, err
		}
		var batch []*StopTime
		err = db.SelectContext(ctx, &batch, query, args...)
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve stop times for %d trips. error: %w", end-start, err)
		}
		results = append(results, batch...)
	}
	return results, nil
}

// GroupStopTimesByTrip places stopTimes into a map keyed by tripId, preserving their order
func GroupStopTimesByTrip(stopTimes []*StopTime) map[int64][]*StopTime {
	results := make(map[int64][]*StopTime)
	for _, stopTime := range stopTimes {
		results[stopTime.TripId] = append(results[stopTime.TripId], stopTime)
	}
	return results
}

// FindStopTime returns the first StopTime in stopTimes visiting stopId, or nil if the stop isn't visited
func FindStopTime(stopTimes []*StopTime, stopId string) *StopTime {
	for _, stopTime := range stopTimes {
		if stopTime.StopId == stopId {
			return stopTime
		}
	}
	return nil
}
