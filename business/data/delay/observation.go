// Package delay provides CRUD functionality for delay observations recorded from gtfs-rt trip updates
package delay

import (
	"context"
	"fmt"
	"time"
)

// MaxInsertBatch is the largest number of Observations sent in a single insert statement
const MaxInsertBatch = 500

// Observation is a single arrival/departure delay reading for a scheduled stop on a trip, as reported by one
// gtfs-rt snapshot. Many Observations accumulate for the same trip, service date and stop until consolidated
type Observation struct {
	Id int64 `db:"id" json:"id"`
	// ServiceDate is the 12am date of the service day the trip belongs to
	ServiceDate time.Time `db:"service_date" json:"service_date"`
	// Timestamp is when the snapshot containing the reading was captured
	Timestamp    time.Time `db:"timestamp" json:"timestamp"`
	TripId       int64     `db:"trip_id" json:"trip_id"`
	RouteId      int64     `db:"route_id" json:"route_id"`
	StopId       string    `db:"stop_id" json:"stop_id"`
	StopSequence int       `db:"stop_sequence" json:"stop_sequence"`
	// StartTime is the trip start time in seconds from the start of the service day, may exceed 24 hours
	StartTime int `db:"start_time" json:"start_time"`
	// TripStart is the instant the trip started, ServiceDate plus StartTime
	TripStart      time.Time `db:"trip_start" json:"trip_start"`
	ArrivalDelay   *int      `db:"arrival_delay" json:"arrival_delay"`
	DepartureDelay *int      `db:"departure_delay" json:"departure_delay"`
}

func (o *Observation) String() string {
	return fmt.Sprintf("Observation{id:%d, date:%s, trip:%d, route:%d, stop:%s(%d), at:%s, arrival:%s, departure:%s}",
		o.Id, o.ServiceDate.Format("2006-01-02"), o.TripId, o.RouteId, o.StopId, o.StopSequence,
		o.Timestamp.Format(time.RFC3339), formatDelay(o.ArrivalDelay), formatDelay(o.DepartureDelay))
}

func formatDelay(d *int) string {
	if d == nil {
		return "-"
	}
	return fmt.Sprintf("%ds", *d)
}

// ObservationStore records, lists and prunes Observations.
// All reads and deletes are scoped to a single service date so dates can be consolidated concurrently
type ObservationStore interface {
	// InsertObservations records observations, returning the number of rows created
	InsertObservations(ctx context.Context, observations []*Observation) (int64, error)
	// ListDistinctTripIds returns every trip_id with at least one Observation on serviceDate
	ListDistinctTripIds(ctx context.Context, serviceDate time.Time) ([]int64, error)
	// ListObservations returns Observations for a trip on serviceDate ordered by timestamp then id
	ListObservations(ctx context.Context, serviceDate time.Time, tripId int64) ([]*Observation, error)
	// DeleteObservations removes Observations for a trip on serviceDate except those in excludeIds
	DeleteObservations(ctx context.Context, serviceDate time.Time, tripId int64, excludeIds []int64) (int64, error)
	// ListDistinctServiceDates returns every service date with at least one Observation
	ListDistinctServiceDates(ctx context.Context) ([]time.Time, error)
	// Truncate removes all Observations
	Truncate(ctx context.Context) error
}

// InsertInBatches records observations with store in chunks of at most batchSize rows
// returns the total number of rows created
func InsertInBatches(ctx context.Context,
	store ObservationStore,
	observations []*Observation,
	batchSize int) (int64, error) {
	if batchSize <= 0 || batchSize > MaxInsertBatch {
		batchSize = MaxInsertBatch
	}
	var total int64
	for start := 0; start < len(observations); start += batchSize {
		end := start + batchSize
		if end > len(observations) {
			end = len(observations)
		}
		created, err := store.InsertObservations(ctx, observations[start:end])
		if err != nil {
			return total, fmt.Errorf("after recording %d observations failed to record batch of %d: %w",
				total, end-start, err)
		}
		total += created
	}
	return total, nil
}
