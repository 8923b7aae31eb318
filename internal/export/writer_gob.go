package export

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"trafficscope/internal/traffic"
)

// SummaryData holds the metadata written next to each on-disk snapshot.
type SummaryData struct {
	TotalConnections int    `json:"total_connections"`
	AllPackets       uint64 `json:"all_packets"`
	AllBytes         uint64 `json:"all_bytes"`
	Timestamp        string `json:"timestamp"`
}

// GobWriter implements the model.Writer interface with gob files on disk.
// Each snapshot lands in a timestamped directory holding the encoded
// connection entries plus a JSON summary.
type GobWriter struct {
	rootPath string
	interval time.Duration
}

// NewGobWriter creates a new on-disk snapshot writer.
func NewGobWriter(rootPath string, interval time.Duration) *GobWriter {
	return &GobWriter{rootPath: rootPath, interval: interval}
}

// GetInterval returns the configured snapshot interval for this writer.
func (w *GobWriter) GetInterval() time.Duration {
	return w.interval
}

// Write serializes the snapshot's connection entries to disk.
func (w *GobWriter) Write(payload interface{}, timestamp string) error {
	snapshot, ok := payload.(traffic.Snapshot)
	if !ok {
		return fmt.Errorf("invalid payload type for Gob Writer: expected traffic.Snapshot, got %T", payload)
	}
	if len(snapshot.Entries) == 0 {
		return nil
	}

	snapshotDir := filepath.Join(w.rootPath, timestamp)
	if err := os.MkdirAll(snapshotDir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	dataPath := filepath.Join(snapshotDir, "connections.dat")
	file, err := os.Create(dataPath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file '%s': %w", dataPath, err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(snapshot.Entries); err != nil {
		return fmt.Errorf("failed to encode connections to gob: %w", err)
	}

	summary := SummaryData{
		TotalConnections: len(snapshot.Entries),
		AllPackets:       snapshot.Totals.AllPackets,
		AllBytes:         snapshot.Totals.AllBytes,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	}
	summaryPath := filepath.Join(snapshotDir, "summary.json")
	summaryFile, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer summaryFile.Close()

	encoder := json.NewEncoder(summaryFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}

	return nil
}
