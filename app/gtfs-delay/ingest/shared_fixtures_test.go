package ingest

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/OpenTransitTools/gtfsdelay/business/data/gtfs"
	"github.com/OpenTransitTools/gtfsdelay/business/data/gtfsrt"
)

type testLogWriter struct {
	mu       sync.Mutex
	logLines []string
	log      *log.Logger
}

func makeTestLogWriter() *testLogWriter {
	logWriter := testLogWriter{
		logLines: make([]string, 0),
	}
	logger := log.New(&logWriter, "GTFS_DELAY : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logWriter.log = logger
	return &logWriter
}

func (t *testLogWriter) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logLines = append(t.logLines, string(p))
	return len(p), nil
}

func uint32Ptr(i uint32) *uint32 {
	return &i
}

func intPtr(i int) *int {
	return &i
}

// testRoutes has two routes for agency 326 and one for agency 400
func testRoutes() []gtfs.Route {
	return []gtfs.Route{
		{RouteId: 10, AgencyId: 326, RouteShortName: "10", RouteType: 3},
		{RouteId: 20, AgencyId: 326, RouteShortName: "20", RouteType: 3},
		{RouteId: 99, AgencyId: 400, RouteShortName: "99", RouteType: 2},
	}
}

func scheduledUpdate(stopSequence uint32, stopId string, arrival, departure gtfsrt.StopTimeEvent) *gtfsrt.StopTimeUpdate {
	return &gtfsrt.StopTimeUpdate{
		StopSequence:         uint32Ptr(stopSequence),
		StopId:               stopId,
		Arrival:              arrival,
		Departure:            departure,
		ScheduleRelationship: gtfsrt.Scheduled,
	}
}

func tripEntity(tripId, routeId, startTime, startDate string, updates ...*gtfsrt.StopTimeUpdate) *gtfsrt.FeedEntity {
	return &gtfsrt.FeedEntity{
		Id: tripId,
		TripUpdate: &gtfsrt.TripUpdate{
			Trip: gtfsrt.TripDescriptor{
				TripId:               tripId,
				RouteId:              routeId,
				StartTime:            startTime,
				StartDate:            startDate,
				ScheduleRelationship: gtfsrt.TripScheduled,
			},
			StopTimeUpdate: updates,
		},
	}
}

func feedAt(timestamp int64, entities ...*gtfsrt.FeedEntity) *gtfsrt.FeedMessage {
	return &gtfsrt.FeedMessage{
		Header: gtfsrt.FeedHeader{
			GtfsRealtimeVersion: "2.0",
			Incrementality:      gtfsrt.FullDataset,
			Timestamp:           timestamp,
		},
		Entity: entities,
	}
}

// writeFeedFolder writes feeds as JSON documents into dataDir/folder, named so that
// file name order is the reverse of capture order
func writeFeedFolder(t *testing.T, dataDir string, folder string, feeds ...*gtfsrt.FeedMessage) {
	dir := filepath.Join(dataDir, folder)
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("unable to create %s: %v", dir, err)
	}
	for i, feed := range feeds {
		data, err := json.Marshal(feed)
		if err != nil {
			t.Fatalf("unable to encode feed: %v", err)
		}
		name := filepath.Join(dir, fmt.Sprintf("snapshot-%03d.json", len(feeds)-i))
		if err = os.WriteFile(name, data, 0600); err != nil {
			t.Fatalf("unable to write %s: %v", name, err)
		}
	}
}
