package export

import (
	"fmt"
	"log"
	"sync"
	"time"

	"trafficscope/internal/config"
	"trafficscope/internal/model"
	"trafficscope/internal/traffic"
)

// NewWriters builds all enabled snapshot writers from the export config.
func NewWriters(cfg config.ExportConfig) ([]model.Writer, error) {
	writers := make([]model.Writer, 0, len(cfg.Writers))
	for _, writerDef := range cfg.Writers {
		if !writerDef.Enabled {
			continue
		}

		interval, err := time.ParseDuration(writerDef.SnapshotInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid snapshot_interval for writer type '%s': %w", writerDef.Type, err)
		}

		switch writerDef.Type {
		case "gob":
			writers = append(writers, NewGobWriter(writerDef.Gob.RootPath, interval))
		case "clickhouse":
			writer, err := NewClickHouseWriter(writerDef.ClickHouse, interval)
			if err != nil {
				return nil, fmt.Errorf("failed to create clickhouse writer: %w", err)
			}
			writers = append(writers, writer)
		default:
			return nil, fmt.Errorf("unknown writer type '%s' in config", writerDef.Type)
		}
	}
	return writers, nil
}

// Exporter periodically snapshots the shared aggregator and hands the
// snapshot to each writer on its own interval.
type Exporter struct {
	traffic *traffic.InfoTraffic
	writers []model.Writer

	done chan struct{}
	wg   sync.WaitGroup
}

// NewExporter creates an Exporter over the shared aggregator.
func NewExporter(t *traffic.InfoTraffic, writers []model.Writer) *Exporter {
	return &Exporter{
		traffic: t,
		writers: writers,
		done:    make(chan struct{}),
	}
}

// Start launches one snapshotter goroutine per writer.
func (e *Exporter) Start() {
	for _, writer := range e.writers {
		e.wg.Add(1)
		go e.runSnapshotter(writer)
		log.Printf("Started snapshotter for a writer with interval %s.", writer.GetInterval())
	}
}

// Stop signals all snapshotters to take a final snapshot and exit.
func (e *Exporter) Stop() {
	close(e.done)
	e.wg.Wait()
}

// runSnapshotter runs a dedicated snapshot loop for a single writer.
func (e *Exporter) runSnapshotter(writer model.Writer) {
	defer e.wg.Done()
	interval := writer.GetInterval()
	if interval <= 0 {
		log.Printf("Invalid interval %s for writer, snapshotter will not run.", interval)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.takeSnapshot(writer)
		case <-e.done:
			e.takeSnapshot(writer)
			return
		}
	}
}

func (e *Exporter) takeSnapshot(writer model.Writer) {
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	if err := writer.Write(e.traffic.Snapshot(), timestamp); err != nil {
		log.Printf("Error writing snapshot: %v", err)
	}
}
