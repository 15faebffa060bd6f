// Package gtfsrt decodes recorded gtfs-realtime trip update snapshots.
// Snapshots are either JSON documents using the gtfs-realtime field names or protobuf encoded FeedMessages,
// both decode into the same FeedMessage type.
package gtfsrt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	gtfspb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// stop time update schedule relationships
const (
	Scheduled = "Scheduled"
	Skipped   = "Skipped"
	NoData    = "NoData"
)

// trip descriptor schedule relationships
const (
	TripScheduled   = "Scheduled"
	TripAdded       = "Added"
	TripUnscheduled = "Unscheduled"
	TripCanceled    = "Canceled"
)

// feed incrementality
const (
	FullDataset  = "FullDataset"
	Differential = "Differential"
)

// FeedMessage is one gtfs-realtime snapshot
type FeedMessage struct {
	Header FeedHeader    `json:"Header"`
	Entity []*FeedEntity `json:"Entity"`
}

// FeedHeader contains the snapshot metadata
type FeedHeader struct {
	GtfsRealtimeVersion string `json:"GtfsRealtimeVersion"`
	Incrementality      string `json:"Incrementality"`
	// Timestamp is the capture time in unix seconds
	Timestamp int64 `json:"Timestamp"`
}

// Time returns the capture time of the snapshot
func (h FeedHeader) Time() time.Time {
	return time.Unix(h.Timestamp, 0)
}

type FeedEntity struct {
	Id         string      `json:"Id"`
	IsDeleted  bool        `json:"IsDeleted"`
	TripUpdate *TripUpdate `json:"TripUpdate"`
}

type TripUpdate struct {
	Trip           TripDescriptor    `json:"Trip"`
	StopTimeUpdate []*StopTimeUpdate `json:"StopTimeUpdate"`
}

// TripDescriptor identifies the trip instance a TripUpdate is for.
// StartTime is HH:MM:SS and may exceed 24:00:00, StartDate is YYYYMMDD
type TripDescriptor struct {
	TripId               string `json:"TripId"`
	RouteId              string `json:"RouteId"`
	StartTime            string `json:"StartTime"`
	StartDate            string `json:"StartDate"`
	ScheduleRelationship string `json:"ScheduleRelationship"`
}

type StopTimeUpdate struct {
	StopSequence         *uint32       `json:"StopSequence,omitempty"`
	StopId               string        `json:"StopId"`
	Arrival              StopTimeEvent `json:"Arrival"`
	Departure            StopTimeEvent `json:"Departure"`
	ScheduleRelationship string        `json:"ScheduleRelationship"`
}

// GetStopSequence returns the stop sequence or 0 when it was not reported
func (u *StopTimeUpdate) GetStopSequence() uint32 {
	if u.StopSequence == nil {
		return 0
	}
	return *u.StopSequence
}

// EventKind identifies which variant a StopTimeEvent holds
type EventKind int

const (
	// EventAbsent is an event that was not reported
	EventAbsent EventKind = iota
	// EventDelay carries a signed delay in seconds relative to the schedule
	EventDelay
	// EventTime carries an absolute time in unix seconds
	EventTime
)

func (k EventKind) String() string {
	switch k {
	case EventDelay:
		return "delay"
	case EventTime:
		return "time"
	default:
		return "absent"
	}
}

// StopTimeEvent is a predicted or observed arrival or departure. It holds exactly one variant, selected by Kind.
// When a document reports both a delay and a time, the delay is kept
type StopTimeEvent struct {
	Kind        EventKind
	Delay       int32
	Time        int64
	Uncertainty *int32
}

// DelayEvent creates a StopTimeEvent carrying a delay in seconds
func DelayEvent(seconds int32) StopTimeEvent {
	return StopTimeEvent{Kind: EventDelay, Delay: seconds}
}

// TimeEvent creates a StopTimeEvent carrying an absolute unix time
func TimeEvent(unixSeconds int64) StopTimeEvent {
	return StopTimeEvent{Kind: EventTime, Time: unixSeconds}
}

// DelaySeconds returns the delay when the event is the delay variant
func (e StopTimeEvent) DelaySeconds() (int, bool) {
	if e.Kind != EventDelay {
		return 0, false
	}
	return int(e.Delay), true
}

type stopTimeEventJSON struct {
	Delay       *int32 `json:"Delay,omitempty"`
	Time        *int64 `json:"Time,omitempty"`
	Uncertainty *int32 `json:"Uncertainty,omitempty"`
}

// UnmarshalJSON decodes {Delay|Time, Uncertainty?} into the matching variant. null or {} is EventAbsent
func (e *StopTimeEvent) UnmarshalJSON(data []byte) error {
	*e = StopTimeEvent{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var raw stopTimeEventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.Delay != nil:
		e.Kind = EventDelay
		e.Delay = *raw.Delay
	case raw.Time != nil:
		e.Kind = EventTime
		e.Time = *raw.Time
	default:
		return nil
	}
	e.Uncertainty = raw.Uncertainty
	return nil
}

// MarshalJSON encodes the event in the same form UnmarshalJSON accepts
func (e StopTimeEvent) MarshalJSON() ([]byte, error) {
	raw := stopTimeEventJSON{Uncertainty: e.Uncertainty}
	switch e.Kind {
	case EventDelay:
		raw.Delay = &e.Delay
	case EventTime:
		raw.Time = &e.Time
	default:
		return []byte("null"), nil
	}
	return json.Marshal(raw)
}

// DecodeJSON decodes a JSON snapshot document
func DecodeJSON(data []byte) (*FeedMessage, error) {
	var msg FeedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unable to decode json feed message: %w", err)
	}
	return &msg, nil
}

// DecodeProtobuf decodes a protobuf encoded gtfs-realtime FeedMessage
func DecodeProtobuf(data []byte) (*FeedMessage, error) {
	var pbMsg gtfspb.FeedMessage
	if err := proto.Unmarshal(data, &pbMsg); err != nil {
		return nil, fmt.Errorf("unable to decode protobuf feed message: %w", err)
	}
	return FromProto(&pbMsg), nil
}

// Decode decodes a snapshot document, choosing the format from the extension of name.
// Unknown extensions are treated as JSON when the document starts with '{' and as protobuf otherwise
func Decode(name string, data []byte) (*FeedMessage, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return DecodeJSON(data)
	case ".pb", ".pbf", ".bin":
		return DecodeProtobuf(data)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return DecodeJSON(data)
	}
	return DecodeProtobuf(data)
}

// FromProto converts a gtfs-realtime binding FeedMessage into FeedMessage
func FromProto(pbMsg *gtfspb.FeedMessage) *FeedMessage {
	header := pbMsg.GetHeader()
	msg := &FeedMessage{
		Header: FeedHeader{
			GtfsRealtimeVersion: header.GetGtfsRealtimeVersion(),
			Incrementality:      incrementalityFromProto(header.GetIncrementality()),
			Timestamp:           int64(header.GetTimestamp()),
		},
		Entity: make([]*FeedEntity, 0, len(pbMsg.GetEntity())),
	}
	for _, pbEntity := range pbMsg.GetEntity() {
		entity := &FeedEntity{
			Id:        pbEntity.GetId(),
			IsDeleted: pbEntity.GetIsDeleted(),
		}
		if pbTripUpdate := pbEntity.GetTripUpdate(); pbTripUpdate != nil {
			entity.TripUpdate = tripUpdateFromProto(pbTripUpdate)
		}
		msg.Entity = append(msg.Entity, entity)
	}
	return msg
}

func tripUpdateFromProto(pbTripUpdate *gtfspb.TripUpdate) *TripUpdate {
	trip := pbTripUpdate.GetTrip()
	tripUpdate := &TripUpdate{
		Trip: TripDescriptor{
			TripId:               trip.GetTripId(),
			RouteId:              trip.GetRouteId(),
			StartTime:            trip.GetStartTime(),
			StartDate:            trip.GetStartDate(),
			ScheduleRelationship: tripRelationshipFromProto(trip.GetScheduleRelationship()),
		},
	}
	for _, pbUpdate := range pbTripUpdate.GetStopTimeUpdate() {
		update := &StopTimeUpdate{
			StopId:               pbUpdate.GetStopId(),
			Arrival:              eventFromProto(pbUpdate.GetArrival()),
			Departure:            eventFromProto(pbUpdate.GetDeparture()),
			ScheduleRelationship: stopRelationshipFromProto(pbUpdate.GetScheduleRelationship()),
		}
		if pbUpdate.StopSequence != nil {
			stopSequence := pbUpdate.GetStopSequence()
			update.StopSequence = &stopSequence
		}
		tripUpdate.StopTimeUpdate = append(tripUpdate.StopTimeUpdate, update)
	}
	return tripUpdate
}

func eventFromProto(pbEvent *gtfspb.TripUpdate_StopTimeEvent) StopTimeEvent {
	if pbEvent == nil {
		return StopTimeEvent{}
	}
	var event StopTimeEvent
	switch {
	case pbEvent.Delay != nil:
		event = DelayEvent(pbEvent.GetDelay())
	case pbEvent.Time != nil:
		event = TimeEvent(pbEvent.GetTime())
	default:
		return event
	}
	if pbEvent.Uncertainty != nil {
		uncertainty := pbEvent.GetUncertainty()
		event.Uncertainty = &uncertainty
	}
	return event
}

func stopRelationshipFromProto(r gtfspb.TripUpdate_StopTimeUpdate_ScheduleRelationship) string {
	switch r {
	case gtfspb.TripUpdate_StopTimeUpdate_SCHEDULED:
		return Scheduled
	case gtfspb.TripUpdate_StopTimeUpdate_SKIPPED:
		return Skipped
	case gtfspb.TripUpdate_StopTimeUpdate_NO_DATA:
		return NoData
	}
	return r.String()
}

func tripRelationshipFromProto(r gtfspb.TripDescriptor_ScheduleRelationship) string {
	switch r {
	case gtfspb.TripDescriptor_SCHEDULED:
		return TripScheduled
	case gtfspb.TripDescriptor_ADDED:
		return TripAdded
	case gtfspb.TripDescriptor_UNSCHEDULED:
		return TripUnscheduled
	case gtfspb.TripDescriptor_CANCELED:
		return TripCanceled
	}
	return r.String()
}

func incrementalityFromProto(i gtfspb.FeedHeader_Incrementality) string {
	if i == gtfspb.FeedHeader_DIFFERENTIAL {
		return Differential
	}
	return FullDataset
}
