// Package progress reports the completion of work items: log lines, Prometheus metrics and NATS messages
package progress

import (
	logger "log"
	"time"

	"github.com/OpenTransitTools/gtfsdelay/foundation/workpool"
	"github.com/nats-io/nats.go"
)

// Reporter logs, counts and publishes settled work items. The collector and NATS connection are both optional
type Reporter struct {
	log       *logger.Logger
	collector *Collector
	publisher *publisher
}

// NewReporter creates Reporter. collector and natsConnection may be nil
func NewReporter(log *logger.Logger, collector *Collector, natsConnection *nats.Conn, subject string) *Reporter {
	return &Reporter{
		log:       log,
		collector: collector,
		publisher: makePublisher(log, natsConnection, subject, collector),
	}
}

// OnSettled builds a workpool settle callback for pool, itemName renders the item in log lines and messages
func OnSettled[T any](r *Reporter, pool string, itemName func(T) string) func(workpool.Outcome[T]) {
	return func(outcome workpool.Outcome[T]) {
		msg := &Message{
			Pool:      pool,
			Item:      itemName(outcome.Item),
			Worker:    outcome.WorkerId,
			Summary:   outcome.Summary,
			ElapsedMs: outcome.Elapsed.Milliseconds(),
		}
		if outcome.Failed() {
			msg.Error = outcome.Err.Error()
		}
		r.report(msg, outcome.Failed(), outcome.Elapsed)
	}
}

func (r *Reporter) report(msg *Message, failed bool, elapsed time.Duration) {
	if failed {
		r.log.Printf("%s worker %d failed on %s: %s", msg.Pool, msg.Worker, msg.Item, msg.Error)
	} else {
		r.log.Printf("%s", msg.Summary)
	}
	if r.collector != nil {
		r.collector.ItemSettled(msg.Pool, failed, elapsed)
	}
	r.publisher.publish(msg)
}
