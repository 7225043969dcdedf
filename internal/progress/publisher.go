// Package progress publishes grid-search lifecycle events to NATS so
// long-running batches can be watched from outside the process. Publishing
// is optional; a nil Publisher drops every event.
package progress

import (
	"encoding/json"
	"net/netip"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"
)

// Event kinds.
const (
	KindProgress      = "progress"
	KindBatchComplete = "batch_complete"
	KindBatchFailed   = "batch_failed"
)

// Event describes the state of one (location, destination, bandwidth) batch.
type Event struct {
	Kind        string       `json:"kind"`
	Location    string       `json:"location"`
	DstNetwork  netip.Prefix `json:"iprange_dst"`
	AttackerBPS uint64       `json:"attacker_bps"`
	Completed   int64        `json:"completed"`
	Total       int64        `json:"total"`
	Elapsed     string       `json:"elapsed"`
	Error       string       `json:"error,omitempty"`
}

// Publisher sends events to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher connects to the NATS server.
func NewPublisher(url, subject string) (*Publisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	log.Info("connected to NATS server", "url", url, "subject", subject)
	return &Publisher{nc: nc, subject: subject}, nil
}

// Publish serializes the event to JSON and publishes it. Safe on a nil
// receiver.
func (p *Publisher) Publish(ev Event) error {
	if p == nil {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

// Close drains and closes the NATS connection. Safe on a nil receiver.
func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	p.nc.Drain()
	log.Info("NATS connection drained and closed")
}
