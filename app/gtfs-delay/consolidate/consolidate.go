// Package consolidate reduces the delay observations recorded for each trip and stop of a service date
// to the single canonical observation of the stop's departure
package consolidate

import (
	"context"
	logger "log"
	"time"

	"github.com/OpenTransitTools/gtfsdelay/business/data/delay"
	"github.com/OpenTransitTools/gtfsdelay/business/data/gtfs"
	"github.com/OpenTransitTools/gtfsdelay/foundation/workpool"
)

// Run consolidates every service date present in the observation store (or those listed in opts.ServiceDates)
// with a pool of poolSize workers, each with its own stores from newStores. onSettled is called as each
// date completes.
// Failed dates are returned in the outcomes, the returned error is only set when consolidation could not start
func Run(ctx context.Context,
	log *logger.Logger,
	opts Options,
	poolSize int,
	newStores delay.StoresFactory,
	recorder Recorder,
	onSettled func(workpool.Outcome[time.Time])) ([]workpool.Outcome[time.Time], error) {

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	serviceDates, err := ListServiceDates(ctx, newStores)
	if err != nil {
		return nil, err
	}
	serviceDates = filterServiceDates(serviceDates, opts.ServiceDates)

	log.Printf("Consolidating %d service dates", len(serviceDates))
	return workpool.Run(ctx, log, poolSize, func(id int) (workpool.Worker[time.Time], error) {
		stores, err := newStores()
		if err != nil {
			return nil, err
		}
		return NewWorker(log, id, opts, stores, recorder), nil
	}, serviceDates, onSettled)
}

// ListServiceDates returns every service date with observations
func ListServiceDates(ctx context.Context, newStores delay.StoresFactory) ([]time.Time, error) {
	stores, err := newStores()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = stores.Close()
	}()
	return stores.Observations.ListDistinctServiceDates(ctx)
}

// filterServiceDates returns the dates in serviceDates that are also in only, or serviceDates if only is empty
func filterServiceDates(serviceDates []time.Time, only []time.Time) []time.Time {
	if len(only) == 0 {
		return serviceDates
	}
	wanted := make(map[string]bool)
	for _, date := range only {
		wanted[gtfs.FormatServiceDate(date)] = true
	}
	var results []time.Time
	for _, date := range serviceDates {
		if wanted[gtfs.FormatServiceDate(date)] {
			results = append(results, date)
		}
	}
	return results
}
