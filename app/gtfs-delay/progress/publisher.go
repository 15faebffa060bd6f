package progress

import (
	"encoding/json"
	logger "log"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the NATS subject progress messages are published on
const DefaultSubject = "gtfs-delay.progress"

// Message announces the completion of one work item
type Message struct {
	Pool      string `json:"pool"`
	Item      string `json:"item"`
	Worker    int    `json:"worker"`
	Summary   string `json:"summary"`
	Error     string `json:"error"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// publisher sends progress messages over NATS when a connection is available
type publisher struct {
	log             *logger.Logger
	natsConnection  *nats.Conn
	subject         string
	publishOverNats bool
	collector       *Collector
}

// makePublisher creates publisher, natsConnection may be nil in which case nothing is sent
func makePublisher(log *logger.Logger, natsConnection *nats.Conn, subject string, collector *Collector) *publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &publisher{
		log:             log,
		natsConnection:  natsConnection,
		subject:         subject,
		publishOverNats: natsConnection != nil,
		collector:       collector,
	}
}

func (p *publisher) publish(msg *Message) {
	if !p.publishOverNats {
		return
	}
	jsonData, err := json.Marshal(msg)
	if err != nil {
		p.log.Printf("failed to marshal progress Message, error:%v", err)
		return
	}
	err = p.natsConnection.Publish(p.subject, jsonData)
	if err != nil {
		p.log.Printf("failed to send progress Message on %s, error:%v", p.subject, err)
		if p.collector != nil {
			p.collector.ProgressPublishErrs.Inc()
		}
	}
}
