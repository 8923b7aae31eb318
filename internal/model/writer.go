package model

import "time"

// Writer persists aggregator snapshots to an external store. Each writer
// runs on its own snapshot cadence, driven by the exporter.
type Writer interface {
	// Write persists one snapshot. The payload is the concrete snapshot
	// type the writer was built for; anything else is an error.
	Write(payload interface{}, timestamp string) error

	// GetInterval returns how often this writer wants a snapshot taken.
	GetInterval() time.Duration
}
