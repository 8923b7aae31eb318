package notify

import (
	"fmt"
	"log"
	"sync"
	"time"

	"trafficscope/internal/config"
	"trafficscope/internal/model"
	"trafficscope/internal/traffic"
)

const defaultTickInterval = time.Second

// NotifyAndLog runs one notification tick: it compares the current totals in
// rt against the previous-tick totals, logs threshold-exceeded and
// favorite-transmitted events, and plays at most one sound. Checks run in
// fixed order (packets, bytes, favorites), which decides the winner of the
// single-sound-per-tick slot. The aggregator is only read, never written.
func NotifyAndLog(rt *RunTimeData, cfg config.NotificationsConfig, t *traffic.InfoTraffic, player model.Player, publishers []model.AlertPublisher) {
	emittedSound := false

	if cfg.Packets.Threshold != nil {
		sent := delta(rt.TotSentPackets, rt.TotSentPacketsPrev)
		received := delta(rt.TotReceivedPackets, rt.TotReceivedPacketsPrev)
		if sent+received > *cfg.Packets.Threshold {
			push(rt, publishers, model.PacketsThresholdExceeded{
				Threshold: cfg.Packets.PreviousThreshold,
				Incoming:  received,
				Outgoing:  sent,
				When:      clockTime(),
			})
			if cfg.Packets.Sound != model.SoundNone {
				play(player, cfg.Packets.Sound, cfg.Volume)
				emittedSound = true
			}
		}
	}

	if cfg.Bytes.Threshold != nil {
		sent := delta(rt.TotSentBytes, rt.TotSentBytesPrev)
		received := delta(rt.TotReceivedBytes, rt.TotReceivedBytesPrev)
		if sent+received > *cfg.Bytes.Threshold {
			push(rt, publishers, model.BytesThresholdExceeded{
				Threshold:    cfg.Bytes.PreviousThreshold,
				ByteMultiple: cfg.Bytes.ByteMultiple,
				Incoming:     received,
				Outgoing:     sent,
				When:         clockTime(),
			})
			if !emittedSound && cfg.Bytes.Sound != model.SoundNone {
				play(player, cfg.Bytes.Sound, cfg.Volume)
				emittedSound = true
			}
		}
	}

	if cfg.Favorites.NotifyOnFavorite {
		for _, index := range t.FavoritesLastInterval() {
			entry, ok := t.EntryAt(index)
			if !ok {
				continue
			}
			push(rt, publishers, model.FavoriteTransmitted{
				Connection: entry.Key,
				Info:       entry.Info,
				When:       clockTime(),
			})
			if !emittedSound && cfg.Favorites.Sound != model.SoundNone {
				play(player, cfg.Favorites.Sound, cfg.Volume)
				emittedSound = true
			}
		}
	}
}

// delta returns the per-tick increase of a counter. A current value below
// the previous one means the aggregator was reset between ticks; the delta
// is then zero, not an underflowed difference.
func delta(current, prev uint64) uint64 {
	if current < prev {
		return 0
	}
	return current - prev
}

// push logs the notification and forwards it to the configured sinks.
// Publishing happens off the tick goroutine so a slow sink cannot stall the
// next tick or readers of the notification log.
func push(rt *RunTimeData, publishers []model.AlertPublisher, n model.LoggedNotification) {
	rt.Push(n)
	if len(publishers) == 0 {
		return
	}
	go func() {
		for _, pub := range publishers {
			if err := pub.Publish(n); err != nil {
				log.Printf("Failed to publish %s notification: %v", n.Kind(), err)
			}
		}
	}()
}

func play(player model.Player, sound model.Sound, volume int) {
	if player != nil {
		player.Play(sound, volume)
	}
}

// clockTime returns the truncated HH:MM:SS time-of-day string stored in
// logged notifications.
func clockTime() string {
	return time.Now().Format("15:04:05")
}

// Engine drives NotifyAndLog on a periodic tick and performs the interval
// driver duties around it: refreshing the runtime totals before the tick,
// rolling them into the previous-tick slots after it, and draining the
// aggregator's interval sets.
type Engine struct {
	mu         sync.Mutex
	rt         RunTimeData
	cfg        config.NotificationsConfig
	traffic    *traffic.InfoTraffic
	player     model.Player
	publishers []model.AlertPublisher

	interval time.Duration
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewEngine creates a notification engine around the shared aggregator.
// Player and publishers are optional.
func NewEngine(cfg config.NotificationsConfig, t *traffic.InfoTraffic, player model.Player, publishers []model.AlertPublisher) (*Engine, error) {
	interval := defaultTickInterval
	if cfg.TickInterval != "" {
		parsed, err := time.ParseDuration(cfg.TickInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid notification tick_interval: %w", err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("notification tick_interval must be positive")
		}
		interval = parsed
	}

	return &Engine{
		cfg:        cfg,
		traffic:    t,
		player:     player,
		publishers: publishers,
		interval:   interval,
		done:       make(chan struct{}),
	}, nil
}

// Start begins the periodic tick loop.
func (e *Engine) Start() {
	log.Printf("Notification engine started with tick interval %s", e.interval)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.Tick()
			case <-e.done:
				return
			}
		}
	}()
}

// Stop shuts down the tick loop.
func (e *Engine) Stop() {
	log.Println("Stopping notification engine...")
	close(e.done)
	e.wg.Wait()
}

// Tick runs one full notification interval: totals refresh, NotifyAndLog,
// previous-totals roll, interval set drain.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	totals := e.traffic.Totals()
	e.rt.TotSentPackets = totals.SentPackets
	e.rt.TotReceivedPackets = totals.ReceivedPackets
	e.rt.TotSentBytes = totals.SentBytes
	e.rt.TotReceivedBytes = totals.ReceivedBytes

	NotifyAndLog(&e.rt, e.cfg, e.traffic, e.player, e.publishers)

	e.rt.RollPrevTotals()
	e.traffic.DrainIntervalSets()
}

// Reset discards the runtime state for a session restart: current totals,
// previous-tick totals, and the notification log all start fresh with the
// new capture. Must be called alongside the aggregator reset, or the first
// tick of the new session would compute deltas against the old session's
// totals.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rt = RunTimeData{}
}

// Notifications returns a copy of the bounded log, newest first.
func (e *Engine) Notifications() []model.LoggedNotification {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rt.Notifications()
}
