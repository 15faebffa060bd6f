package consolidate

import (
	"io"
	"log"
	"sync"
	"time"

	"github.com/OpenTransitTools/gtfsdelay/business/data/delay"
	"github.com/OpenTransitTools/gtfsdelay/business/data/gtfs"
)

var testServiceDate = time.Date(2022, 1, 10, 0, 0, 0, 0, time.UTC)

func discardLogger() *log.Logger {
	return log.New(io.Discard, "GTFS_DELAY : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
}

func intPtr(i int) *int {
	return &i
}

// at returns hour:minute on the test service date in UTC
func at(hour, minute int) time.Time {
	return testServiceDate.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func seconds(hour, minute int) int {
	return (hour * 60 * 60) + (minute * 60)
}

// observation builds an Observation for a trip starting at 08:00 on the test service date
func observation(id int64, tripId int64, stopId string, capturedAt time.Time, delaySeconds int) *delay.Observation {
	return &delay.Observation{
		Id:             id,
		ServiceDate:    testServiceDate,
		Timestamp:      capturedAt,
		TripId:         tripId,
		RouteId:        10,
		StopId:         stopId,
		StartTime:      seconds(8, 0),
		TripStart:      at(8, 0),
		ArrivalDelay:   intPtr(delaySeconds),
		DepartureDelay: intPtr(delaySeconds),
	}
}

func stopTime(tripId int64, stopSequence uint32, stopId string, departure int) *gtfs.StopTime {
	return &gtfs.StopTime{
		TripId:        tripId,
		StopSequence:  stopSequence,
		StopId:        stopId,
		ArrivalTime:   departure,
		DepartureTime: departure,
	}
}

func observationIds(observations []*delay.Observation) []int64 {
	results := make([]int64, 0, len(observations))
	for _, o := range observations {
		results = append(results, o.Id)
	}
	return results
}

type countingRecorder struct {
	mu         sync.Mutex
	deleted    int64
	kept       int
	unresolved int
}

func (c *countingRecorder) ObservationsDeleted(count int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted += count
}

func (c *countingRecorder) CanonicalKept(count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kept += count
}

func (c *countingRecorder) TripsUnresolved(count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unresolved += count
}
