package consolidate

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenTransitTools/gtfsdelay/app/gtfs-delay/ingest"
	"github.com/OpenTransitTools/gtfsdelay/business/data/delay"
	"github.com/OpenTransitTools/gtfsdelay/business/data/delay/delaytest"
	"github.com/OpenTransitTools/gtfsdelay/business/data/gtfs"
	"github.com/OpenTransitTools/gtfsdelay/business/data/gtfsrt"
	"github.com/matryer/is"
)

func e2eUpdate(stopSequence uint32, stopId string, delaySeconds int32) *gtfsrt.StopTimeUpdate {
	return &gtfsrt.StopTimeUpdate{
		StopSequence:         &stopSequence,
		StopId:               stopId,
		Arrival:              gtfsrt.DelayEvent(delaySeconds),
		Departure:            gtfsrt.DelayEvent(delaySeconds),
		ScheduleRelationship: gtfsrt.Scheduled,
	}
}

func e2eEntity(tripId int64, routeId int64, updates ...*gtfsrt.StopTimeUpdate) *gtfsrt.FeedEntity {
	return &gtfsrt.FeedEntity{
		Id: fmt.Sprintf("%d", tripId),
		TripUpdate: &gtfsrt.TripUpdate{
			Trip: gtfsrt.TripDescriptor{
				TripId:               fmt.Sprintf("%d", tripId),
				RouteId:              fmt.Sprintf("%d", routeId),
				StartTime:            "08:30:00",
				StartDate:            "20220110",
				ScheduleRelationship: gtfsrt.TripScheduled,
			},
			StopTimeUpdate: updates,
		},
	}
}

func writeZipBundle(t *testing.T, path string, feeds ...*gtfsrt.FeedMessage) {
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	w := zip.NewWriter(file)
	for _, feed := range feeds {
		data, err := json.Marshal(feed)
		if err != nil {
			t.Fatal(err)
		}
		f, err := w.Create(fmt.Sprintf("%d.json", feed.Header.Timestamp))
		if err != nil {
			t.Fatal(err)
		}
		if _, err = f.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err = w.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestIngestThenConsolidate(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	store := delaytest.NewStore([]gtfs.Route{
		{RouteId: 10, AgencyId: 326},
		{RouteId: 20, AgencyId: 326},
		{RouteId: 99, AgencyId: 400},
	}, []*gtfs.StopTime{
		stopTime(1001, 1, "A", seconds(8, 40)),
		stopTime(1001, 2, "B", seconds(9, 0)),
		stopTime(1001, 3, "C", seconds(9, 30)),
		stopTime(2001, 1, "A", seconds(8, 50)),
		stopTime(2001, 2, "B", seconds(9, 10)),
		stopTime(9001, 1, "A", seconds(8, 45)),
	})

	skipped := e2eUpdate(4, "D", 0)
	skipped.ScheduleRelationship = gtfsrt.Skipped
	first := &gtfsrt.FeedMessage{
		Header: gtfsrt.FeedHeader{GtfsRealtimeVersion: "2.0", Timestamp: at(8, 55).Unix()},
		Entity: []*gtfsrt.FeedEntity{
			e2eEntity(1001, 10, e2eUpdate(1, "A", 10), e2eUpdate(2, "B", 20), e2eUpdate(3, "C", 30), skipped),
			e2eEntity(2001, 20, e2eUpdate(1, "A", 40), e2eUpdate(2, "B", 50)),
			e2eEntity(3001, 20, e2eUpdate(1, "X", 60)),
			e2eEntity(9001, 99, e2eUpdate(1, "A", 70)),
		},
	}
	second := &gtfsrt.FeedMessage{
		Header: gtfsrt.FeedHeader{GtfsRealtimeVersion: "2.0", Timestamp: at(9, 15).Unix()},
		Entity: []*gtfsrt.FeedEntity{
			e2eEntity(1001, 10, e2eUpdate(2, "B", 120), e2eUpdate(3, "C", 130)),
			e2eEntity(2001, 20, e2eUpdate(1, "A", 140), e2eUpdate(2, "B", 150)),
			e2eEntity(3001, 20, e2eUpdate(1, "X", 160)),
			e2eEntity(9001, 99, e2eUpdate(1, "A", 170)),
		},
	}
	dataDir := t.TempDir()
	writeZipBundle(t, filepath.Join(dataDir, "2022-01-10.zip"), second, first)

	log := discardLogger()
	newStores := delay.SharedStoresFactory(store, store)
	outcomes, err := ingest.Run(ctx, log, ingest.Options{
		DataDir:   dataDir,
		AgencyIds: []int64{326},
		BatchSize: 4,
		Location:  time.UTC,
	}, 2, newStores, nil, nil)
	is.NoErr(err)
	is.Equal(len(outcomes), 1)
	is.NoErr(outcomes[0].Err)

	// every scheduled update of routes 10 and 20, none of route 99
	ingested := store.Observations()
	is.Equal(len(ingested), 11)
	for _, o := range ingested {
		is.True(o.RouteId != 99)
	}

	dates, err := store.ListDistinctServiceDates(ctx)
	is.NoErr(err)
	is.Equal(len(dates), 1)
	is.True(dates[0].Equal(testServiceDate))

	consolidated, err := Run(ctx, log, testOptions(), 2, newStores, nil, nil)
	is.NoErr(err)
	is.Equal(len(consolidated), 1)
	is.NoErr(consolidated[0].Err)

	type tripStop struct {
		tripId int64
		stopId string
	}
	kept := make(map[tripStop]int)
	for _, o := range store.Observations() {
		key := tripStop{tripId: o.TripId, stopId: o.StopId}
		if _, present := kept[key]; present {
			t.Errorf("more than one observation remains for trip %d stop %s", o.TripId, o.StopId)
		}
		kept[key] = *o.DepartureDelay
	}
	is.Equal(kept, map[tripStop]int{
		{tripId: 1001, stopId: "A"}: 10,
		{tripId: 1001, stopId: "B"}: 120,
		{tripId: 1001, stopId: "C"}: 30,
		{tripId: 2001, stopId: "A"}: 40,
		{tripId: 2001, stopId: "B"}: 150,
	})
}
