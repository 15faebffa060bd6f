// Package ingest records delay observations from recorded gtfs-realtime trip update snapshots
package ingest

import (
	"context"
	"fmt"
	logger "log"

	"github.com/OpenTransitTools/gtfsdelay/business/data/delay"
	"github.com/OpenTransitTools/gtfsdelay/business/data/gtfsrt"
	"github.com/OpenTransitTools/gtfsdelay/foundation/workpool"
)

// Run ingests every snapshot artifact in opts.DataDir with a pool of poolSize workers, each with its own stores
// from newStores. onSettled is called as each artifact completes.
// Failed artifacts are returned in the outcomes, the returned error is only set when ingestion could not start
func Run(ctx context.Context,
	log *logger.Logger,
	opts Options,
	poolSize int,
	newStores delay.StoresFactory,
	recorder Recorder,
	onSettled func(workpool.Outcome[string])) ([]workpool.Outcome[string], error) {

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	folders, err := gtfsrt.ListArtifacts(opts.DataDir)
	if err != nil {
		return nil, err
	}

	if opts.Truncate {
		if err = truncate(ctx, newStores); err != nil {
			return nil, err
		}
	}

	log.Printf("Ingesting %d snapshot artifacts from %s", len(folders), opts.DataDir)
	return workpool.Run(ctx, log, poolSize, func(id int) (workpool.Worker[string], error) {
		stores, err := newStores()
		if err != nil {
			return nil, err
		}
		return NewWorker(log, id, opts, stores, recorder), nil
	}, folders, onSettled)
}

func truncate(ctx context.Context, newStores delay.StoresFactory) error {
	stores, err := newStores()
	if err != nil {
		return err
	}
	defer func() {
		_ = stores.Close()
	}()
	if err = stores.Observations.Truncate(ctx); err != nil {
		return fmt.Errorf("unable to truncate observations: %w", err)
	}
	return nil
}
