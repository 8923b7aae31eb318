package config

import (
	"fmt"
	"os"

	"trafficscope/internal/model"

	"gopkg.in/yaml.v3"
)

// CaptureConfig describes the live capture source.
type CaptureConfig struct {
	Interface   string `yaml:"interface"`
	SnapshotLen int32  `yaml:"snapshot_len"`
	Promiscuous bool   `yaml:"promiscuous"`
	BPFFilter   string `yaml:"bpf_filter"`
}

// FiltersConfig holds the three optional equality filters. Empty or "Other"
// means unset (wildcard).
type FiltersConfig struct {
	IPVersion   string `yaml:"ip_version"`
	Transport   string `yaml:"transport"`
	Application string `yaml:"application"`
}

// Parse converts the textual filter config into the closed filter variants.
func (f FiltersConfig) Parse() (model.Filters, error) {
	var filters model.Filters
	var err error
	if filters.IP, err = model.ParseIPVersion(f.IPVersion); err != nil {
		return filters, fmt.Errorf("invalid ip filter: %w", err)
	}
	if filters.Transport, err = model.ParseTransProtocol(f.Transport); err != nil {
		return filters, fmt.Errorf("invalid transport filter: %w", err)
	}
	if filters.Application, err = model.ParseAppProtocol(f.Application); err != nil {
		return filters, fmt.Errorf("invalid application filter: %w", err)
	}
	return filters, nil
}

// ThresholdNotification configures one numeric threshold alert.
// A nil Threshold disables the check. PreviousThreshold is the value shown in
// logged entries even after the live threshold changes.
type ThresholdNotification struct {
	Threshold         *uint64     `yaml:"threshold"`
	PreviousThreshold uint64      `yaml:"previous_threshold"`
	Sound             model.Sound `yaml:"sound"`
}

// BytesNotification is a threshold alert on the byte delta; ByteMultiple is
// the display unit the threshold was entered in (e.g. "KB", "MB").
type BytesNotification struct {
	Threshold         *uint64     `yaml:"threshold"`
	PreviousThreshold uint64      `yaml:"previous_threshold"`
	ByteMultiple      string      `yaml:"byte_multiple"`
	Sound             model.Sound `yaml:"sound"`
}

// FavoriteNotification configures alerts for favorited connections.
type FavoriteNotification struct {
	NotifyOnFavorite bool        `yaml:"notify_on_favorite"`
	Sound            model.Sound `yaml:"sound"`
}

// NotificationsConfig is the full notification engine configuration.
type NotificationsConfig struct {
	TickInterval string                `yaml:"tick_interval"`
	Volume       int                   `yaml:"volume"`
	Packets      ThresholdNotification `yaml:"packets"`
	Bytes        BytesNotification     `yaml:"bytes"`
	Favorites    FavoriteNotification  `yaml:"favorites"`
	// Sounds maps sound names to wav file paths.
	Sounds map[model.Sound]string `yaml:"sounds"`
}

// GeoIPConfig points at the MMDB country database. An empty path disables
// geolocation; connections then carry an empty country code.
type GeoIPConfig struct {
	MMDBPath string `yaml:"mmdb_path"`
}

// APIConfig configures the read-only HTTP API.
type APIConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// AlertBusConfig configures NATS publishing of logged notifications.
type AlertBusConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// SMTPConfig holds the connection details for the email alert sink.
type SMTPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// GobConfig configures the on-disk snapshot writer.
type GobConfig struct {
	RootPath string `yaml:"root_path"`
}

// ClickHouseConfig holds the connection details for the ClickHouse writer.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// WriterDef defines a single snapshot writer from the config file.
type WriterDef struct {
	Type             string           `yaml:"type"`
	Enabled          bool             `yaml:"enabled"`
	SnapshotInterval string           `yaml:"snapshot_interval"`
	Gob              GobConfig        `yaml:"gob"`
	ClickHouse       ClickHouseConfig `yaml:"clickhouse"`
}

// ExportConfig holds the snapshot persistence configuration.
type ExportConfig struct {
	Writers []WriterDef `yaml:"writers"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Capture       CaptureConfig       `yaml:"capture"`
	Filters       FiltersConfig       `yaml:"filters"`
	Notifications NotificationsConfig `yaml:"notifications"`
	GeoIP         GeoIPConfig         `yaml:"geoip"`
	API           APIConfig           `yaml:"api"`
	AlertBus      AlertBusConfig      `yaml:"alert_bus"`
	SMTP          SMTPConfig          `yaml:"smtp"`
	Export        ExportConfig        `yaml:"export"`
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	return &cfg, nil
}
