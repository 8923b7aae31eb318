package export

import (
	"context"
	"fmt"
	"log"
	"time"

	"trafficscope/internal/config"
	"trafficscope/internal/traffic"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS traffic_connections (
    Timestamp          DateTime,
    Address1           String,
    Port1              UInt16,
    Address2           String,
    Port2              UInt16,
    TransProtocol      String,
    AppProtocol        String,
    TrafficDirection   String,
    Country            String,
    TransmittedBytes   UInt64,
    TransmittedPackets UInt64,
    InitialTimestamp   DateTime,
    FinalTimestamp     DateTime,
    ConnectionIndex    UInt32,
    IsFavorite         UInt8
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Timestamp, ConnectionIndex);
`

// ClickHouseWriter implements the model.Writer interface for ClickHouse.
type ClickHouseWriter struct {
	conn     driver.Conn
	interval time.Duration
}

// NewClickHouseWriter creates a new ClickHouse writer.
func NewClickHouseWriter(cfg config.ClickHouseConfig, interval time.Duration) (*ClickHouseWriter, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Println("Successfully connected to ClickHouse and ensured table exists.")

	return &ClickHouseWriter{conn: conn, interval: interval}, nil
}

// GetInterval returns the configured snapshot interval for this writer.
func (w *ClickHouseWriter) GetInterval() time.Duration {
	return w.interval
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: false,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})

	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return conn, nil
}

// Write inserts the connection records of a snapshot into the
// traffic_connections table.
func (w *ClickHouseWriter) Write(payload interface{}, timestamp string) error {
	snapshot, ok := payload.(traffic.Snapshot)
	if !ok {
		return fmt.Errorf("invalid payload type for ClickHouse Writer: expected traffic.Snapshot, got %T", payload)
	}
	if len(snapshot.Entries) == 0 {
		return nil // Nothing to write
	}

	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO traffic_connections")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	snapshotTime, _ := time.Parse("2006-01-02_15-04-05", timestamp)

	for _, entry := range snapshot.Entries {
		favorite := uint8(0)
		if entry.Info.IsFavorite {
			favorite = 1
		}
		err = batch.Append(
			snapshotTime,
			entry.Key.Address1,
			entry.Key.Port1,
			entry.Key.Address2,
			entry.Key.Port2,
			entry.Key.Protocol.String(),
			entry.Info.AppProtocol.String(),
			entry.Info.TrafficDirection.String(),
			entry.Info.Country,
			entry.Info.TransmittedBytes,
			entry.Info.TransmittedPackets,
			entry.Info.InitialTimestamp,
			entry.Info.FinalTimestamp,
			uint32(entry.Info.Index),
			favorite,
		)
		if err != nil {
			return fmt.Errorf("failed to append connection to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Printf("Wrote %d connections to ClickHouse", len(snapshot.Entries))
	return nil
}
