package ingest

import (
	"context"
	"errors"
	"fmt"
	logger "log"
	"path/filepath"
	"time"

	"github.com/OpenTransitTools/gtfsdelay/business/data/delay"
	"github.com/OpenTransitTools/gtfsdelay/business/data/gtfsrt"
	"github.com/go-playground/validator/v10"
)

// Options configures ingestion
type Options struct {
	// DataDir holds one snapshot artifact (directory, bundle or document) per work item
	DataDir string `validate:"required"`
	// AgencyIds selects the routes observations are recorded for
	AgencyIds []int64 `validate:"required,min=1,dive,gt=0"`
	// BatchSize is the number of observations sent per insert
	BatchSize int `validate:"gte=1,lte=500"`
	// Location is the timezone service dates and trip start times are expressed in
	Location *time.Location `validate:"required"`
	// Truncate removes all existing observations before ingesting
	Truncate bool
}

// Validate checks Options are usable
func (o Options) Validate() error {
	v := validator.New()
	if err := v.Struct(o); err != nil {
		return fmt.Errorf("invalid ingest options: %w", err)
	}
	return nil
}

// Recorder receives counts as observations are inserted
type Recorder interface {
	ObservationsInserted(count int64)
}

type noopRecorder struct{}

func (noopRecorder) ObservationsInserted(int64) {}

// Worker records the delays found in snapshot artifacts. Implements workpool.Worker
type Worker struct {
	log       *logger.Logger
	id        int
	opts      Options
	stores    *delay.Stores
	allowlist *RouteAllowlistCache
	recorder  Recorder
}

// NewWorker creates Worker owning stores. recorder may be nil
func NewWorker(log *logger.Logger, id int, opts Options, stores *delay.Stores, recorder Recorder) *Worker {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Worker{
		log:       log,
		id:        id,
		opts:      opts,
		stores:    stores,
		allowlist: NewRouteAllowlistCache(stores.Schedule, opts.AgencyIds),
		recorder:  recorder,
	}
}

// Process records the observations of every snapshot in the artifact named folder, in capture order.
// A missing artifact is reported in the summary and is not an error
func (w *Worker) Process(ctx context.Context, folder string) (string, error) {
	start := time.Now()
	if err := w.allowlist.EnsureLoaded(ctx); err != nil {
		return "", err
	}

	snapshots, err := gtfsrt.LoadSnapshots(filepath.Join(w.opts.DataDir, folder))
	if errors.Is(err, gtfsrt.ErrArtifactNotFound) {
		return fmt.Sprintf("worker %d result(%s): not found", w.id, folder), nil
	}
	if err != nil {
		return "", fmt.Errorf("unable to load snapshots from %s: %w", folder, err)
	}

	var stats ExtractStats
	var created int64
	for _, snapshot := range snapshots {
		observations, snapshotStats := ExtractDelays(snapshot.Feed, w.allowlist, w.opts.Location)
		stats.Add(snapshotStats)
		count, err := delay.InsertInBatches(ctx, w.stores.Observations, observations, w.opts.BatchSize)
		created += count
		w.recorder.ObservationsInserted(count)
		if err != nil {
			return "", fmt.Errorf("unable to record observations from %s %s: %w", folder, snapshot.Name, err)
		}
	}

	return fmt.Sprintf("worker %d result(%s): snapshots: %d entities: %d created: %d dropped: %d %v",
		w.id, folder, len(snapshots), stats.Entities, created, stats.Dropped(),
		time.Since(start).Round(time.Millisecond)), nil
}

// Close releases the worker's stores
func (w *Worker) Close() error {
	return w.stores.Close()
}
