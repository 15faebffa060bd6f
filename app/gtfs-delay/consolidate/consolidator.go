package consolidate

import (
	"context"
	"fmt"
	logger "log"
	"sync"
	"time"

	"github.com/OpenTransitTools/gtfsdelay/business/data/delay"
	"github.com/OpenTransitTools/gtfsdelay/business/data/gtfs"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

// Options configures consolidation
type Options struct {
	// Location is the timezone the schedule's times of day are expressed in
	Location *time.Location `validate:"required"`
	// TripConcurrency is the number of trips of one service date consolidated at once
	TripConcurrency int `validate:"gte=1"`
	// ServiceDates limits consolidation to these dates, all dates with observations when empty
	ServiceDates []time.Time
}

// Validate checks Options are usable
func (o Options) Validate() error {
	v := validator.New()
	if err := v.Struct(o); err != nil {
		return fmt.Errorf("invalid consolidate options: %w", err)
	}
	return nil
}

// Recorder receives counts as service dates are consolidated
type Recorder interface {
	ObservationsDeleted(count int64)
	CanonicalKept(count int)
	TripsUnresolved(count int)
}

type noopRecorder struct{}

func (noopRecorder) ObservationsDeleted(int64) {}
func (noopRecorder) CanonicalKept(int)         {}
func (noopRecorder) TripsUnresolved(int)       {}

// Result counts the work done consolidating one service date
type Result struct {
	Trips   int
	Final   int
	Removed int64
	// Missing is the number of trips purged because they have no schedule
	Missing int
}

func (r *Result) add(other Result) {
	r.Trips += other.Trips
	r.Final += other.Final
	r.Removed += other.Removed
	r.Missing += other.Missing
}

// Consolidator reduces the observations of a service date to one per trip and stop
type Consolidator struct {
	log      *logger.Logger
	opts     Options
	stores   *delay.Stores
	recorder Recorder
}

// NewConsolidator creates Consolidator using stores. recorder may be nil
func NewConsolidator(log *logger.Logger, opts Options, stores *delay.Stores, recorder Recorder) *Consolidator {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if opts.TripConcurrency < 1 {
		opts.TripConcurrency = 1
	}
	return &Consolidator{
		log:      log,
		opts:     opts,
		stores:   stores,
		recorder: recorder,
	}
}

// ConsolidateDate keeps the canonical observation of every scheduled stop of every trip on serviceDate and deletes
// the rest. Trips without a schedule have all their observations deleted.
// Only rows of serviceDate are read or deleted, so different dates may be consolidated concurrently
func (c *Consolidator) ConsolidateDate(ctx context.Context, serviceDate time.Time) (Result, error) {
	var result Result
	tripIds, err := c.stores.Observations.ListDistinctTripIds(ctx, serviceDate)
	if err != nil {
		return result, err
	}
	result.Trips = len(tripIds)
	if len(tripIds) == 0 {
		return result, nil
	}

	stopTimes, err := c.stores.Schedule.ListScheduledStopsForTrips(ctx, tripIds)
	if err != nil {
		return result, err
	}
	stopTimesByTrip := gtfs.GroupStopTimesByTrip(stopTimes)
	serviceDay := gtfs.ServiceDateIn(serviceDate, c.opts.Location)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.opts.TripConcurrency)
	mu := sync.Mutex{}
	for _, tripId := range tripIds {
		tripId := tripId
		group.Go(func() error {
			tripResult, err := c.consolidateTrip(groupCtx, serviceDate, serviceDay, tripId, stopTimesByTrip[tripId])
			mu.Lock()
			defer mu.Unlock()
			result.add(tripResult)
			if err != nil {
				return fmt.Errorf("trip %d: %w", tripId, err)
			}
			return nil
		})
	}
	err = group.Wait()
	return result, err
}

func (c *Consolidator) consolidateTrip(ctx context.Context,
	serviceDate time.Time,
	serviceDay time.Time,
	tripId int64,
	stopTimes []*gtfs.StopTime) (Result, error) {

	var result Result
	var observations []*delay.Observation
	var err error
	if len(stopTimes) > 0 {
		observations, err = c.stores.Observations.ListObservations(ctx, serviceDate, tripId)
		if err != nil {
			return result, err
		}
	}

	var keptIds []int64
	if len(stopTimes) == 0 || len(observations) == 0 {
		result.Missing = 1
		c.recorder.TripsUnresolved(1)
	} else {
		for _, kept := range SelectCanonical(observations, stopTimes, serviceDay) {
			keptIds = append(keptIds, kept.Id)
		}
		result.Final = len(keptIds)
		c.recorder.CanonicalKept(len(keptIds))
	}

	removed, err := c.stores.Observations.DeleteObservations(ctx, serviceDate, tripId, keptIds)
	result.Removed = removed
	c.recorder.ObservationsDeleted(removed)
	return result, err
}

// Worker consolidates service dates. Implements workpool.Worker
type Worker struct {
	id           int
	consolidator *Consolidator
	holidays     *transitHolidayCalendar
	stores       *delay.Stores
}

// NewWorker creates Worker owning stores. recorder may be nil
func NewWorker(log *logger.Logger, id int, opts Options, stores *delay.Stores, recorder Recorder) *Worker {
	return &Worker{
		id:           id,
		consolidator: NewConsolidator(log, opts, stores, recorder),
		holidays:     makeTransitHolidayCalendar(),
		stores:       stores,
	}
}

// Process consolidates serviceDate and summarizes the result
func (w *Worker) Process(ctx context.Context, serviceDate time.Time) (string, error) {
	start := time.Now()
	result, err := w.consolidator.ConsolidateDate(ctx, serviceDate)
	if err != nil {
		return "", fmt.Errorf("unable to consolidate %s: %w", gtfs.FormatServiceDate(serviceDate), err)
	}
	return fmt.Sprintf("worker %d result(%s %s): trips: %d final: %d removed: %d missing: %d %v",
		w.id, gtfs.FormatServiceDate(serviceDate), w.holidays.dayType(serviceDate),
		result.Trips, result.Final, result.Removed, result.Missing,
		time.Since(start).Round(time.Millisecond)), nil
}

// Close releases the worker's stores
func (w *Worker) Close() error {
	return w.stores.Close()
}
