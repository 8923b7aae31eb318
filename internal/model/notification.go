package model

// Sound names a notification sound from the configured sound table.
// SoundNone disables playback for the alert kind that carries it.
type Sound string

const SoundNone Sound = ""

// Player is the fire-and-forget sound playback service. Implementations must
// not block the notification tick and must swallow playback failures.
type Player interface {
	Play(sound Sound, volume int)
}

// LoggedNotification is a tagged variant over the three alert kinds kept in
// the bounded notification log.
type LoggedNotification interface {
	// Kind returns the stable tag of the variant.
	Kind() string
	// Timestamp returns the HH:MM:SS time-of-day string recorded when the
	// alert was raised.
	Timestamp() string
}

// PacketsThresholdExceeded is logged when the per-interval packet delta
// exceeds the configured threshold.
type PacketsThresholdExceeded struct {
	Threshold uint64 `json:"threshold"`
	Incoming  uint64 `json:"incoming"`
	Outgoing  uint64 `json:"outgoing"`
	When      string `json:"timestamp"`
}

func (PacketsThresholdExceeded) Kind() string        { return "packets_threshold_exceeded" }
func (n PacketsThresholdExceeded) Timestamp() string { return n.When }

// BytesThresholdExceeded is logged when the per-interval byte delta exceeds
// the configured threshold. ByteMultiple is the display unit the threshold
// was configured in.
type BytesThresholdExceeded struct {
	Threshold    uint64 `json:"threshold"`
	ByteMultiple string `json:"byte_multiple"`
	Incoming     uint64 `json:"incoming"`
	Outgoing     uint64 `json:"outgoing"`
	When         string `json:"timestamp"`
}

func (BytesThresholdExceeded) Kind() string        { return "bytes_threshold_exceeded" }
func (n BytesThresholdExceeded) Timestamp() string { return n.When }

// FavoriteTransmitted is logged when a favorited connection exchanged data
// during the last interval. Connection and Info are snapshots taken under the
// aggregator lock.
type FavoriteTransmitted struct {
	Connection AddressPortPair     `json:"connection"`
	Info       InfoAddressPortPair `json:"info"`
	When       string              `json:"timestamp"`
}

func (FavoriteTransmitted) Kind() string        { return "favorite_transmitted" }
func (n FavoriteTransmitted) Timestamp() string { return n.When }

// AlertPublisher forwards logged notifications to an external sink
// (message bus, email, ...). Publish failures must not stop the tick.
type AlertPublisher interface {
	Publish(n LoggedNotification) error
}
