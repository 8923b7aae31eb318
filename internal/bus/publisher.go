package bus

import (
	"encoding/json"
	"fmt"
	"log"

	"trafficscope/internal/config"
	"trafficscope/internal/model"

	"github.com/nats-io/nats.go"
)

// envelope is the wire format of a published alert: the variant tag plus the
// JSON encoding of the variant itself.
type envelope struct {
	Kind  string                   `json:"kind"`
	Alert model.LoggedNotification `json:"alert"`
}

// Publisher forwards logged notifications to a NATS subject so external
// consumers (dashboards, pagers) can react to alerts without polling the API.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher connects to the configured NATS server.
func NewPublisher(cfg config.AlertBusConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Printf("Connected to NATS server at %s", cfg.NATSURL)
	return &Publisher{nc: nc, subject: cfg.Subject}, nil
}

// Publish serializes a notification to JSON and publishes it on the
// configured subject.
func (p *Publisher) Publish(n model.LoggedNotification) error {
	data, err := json.Marshal(envelope{Kind: n.Kind(), Alert: n})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return p.nc.Publish(p.subject, data)
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
}
