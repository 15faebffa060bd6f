package consolidate

import (
	"sort"
	"time"

	"github.com/OpenTransitTools/gtfsdelay/business/data/delay"
	"github.com/OpenTransitTools/gtfsdelay/business/data/gtfs"
)

// ExpectedDeparture returns the instant a stop's scheduled departure falls on.
// The departure is placed on serviceDay (12am in the schedule's location), when that lands before the trip
// started it is moved to the following day
func ExpectedDeparture(serviceDay time.Time, departureSeconds int, tripStart time.Time) time.Time {
	expected := gtfs.MakeScheduleTime(serviceDay, departureSeconds)
	if expected.Before(tripStart) {
		expected = expected.Add(24 * time.Hour)
	}
	return expected
}

// SelectCanonical chooses the Observation kept for each stop of a single trip.
// For each stop the first Observation captured at or after the stop's expected departure is kept,
// or the earliest captured if there is none. Stops missing from stopTimes keep nothing.
// The trip start is taken from the earliest Observation. Results are in the order stops were first observed
func SelectCanonical(observations []*delay.Observation,
	stopTimes []*gtfs.StopTime,
	serviceDay time.Time) []*delay.Observation {

	if len(observations) == 0 {
		return nil
	}
	ordered := make([]*delay.Observation, len(observations))
	copy(ordered, observations)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		return ordered[i].Id < ordered[j].Id
	})
	tripStart := ordered[0].TripStart

	var stopOrder []string
	byStop := make(map[string][]*delay.Observation)
	for _, o := range ordered {
		if _, present := byStop[o.StopId]; !present {
			stopOrder = append(stopOrder, o.StopId)
		}
		byStop[o.StopId] = append(byStop[o.StopId], o)
	}

	results := make([]*delay.Observation, 0, len(stopOrder))
	for _, stopId := range stopOrder {
		stopTime := gtfs.FindStopTime(stopTimes, stopId)
		if stopTime == nil {
			continue
		}
		expected := ExpectedDeparture(serviceDay, stopTime.DepartureTime, tripStart)
		results = append(results, firstAtOrAfter(byStop[stopId], expected))
	}
	return results
}

// firstAtOrAfter returns the first of the time ordered observations captured at or after at, or the first
func firstAtOrAfter(observations []*delay.Observation, at time.Time) *delay.Observation {
	for _, o := range observations {
		if !o.Timestamp.Before(at) {
			return o
		}
	}
	return observations[0]
}
