package traffic

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"trafficscope/internal/model"
)

// Addresses longer than this are flagged so the presentation layer can decide
// to truncate them.
const veryLongAddressLen = 25

// ResolveFunc resolves the country code for a connection key. It is invoked
// only when the key is first inserted.
type ResolveFunc func(model.TrafficDirection, model.AddressPortPair) string

// Totals are the global counters of an aggregator. AllPackets and AllBytes
// count every captured packet; the sent/received split only counts packets
// that passed the user filters.
type Totals struct {
	AllPackets      uint64 `json:"all_packets"`
	AllBytes        uint64 `json:"all_bytes"`
	SentPackets     uint64 `json:"tot_sent_packets"`
	SentBytes       uint64 `json:"tot_sent_bytes"`
	ReceivedPackets uint64 `json:"tot_received_packets"`
	ReceivedBytes   uint64 `json:"tot_received_bytes"`
}

// Entry pairs a connection key with a copy of its record.
type Entry struct {
	Key  model.AddressPortPair     `json:"key"`
	Info model.InfoAddressPortPair `json:"info"`
}

// Snapshot is a consistent copy of the aggregator state, taken under the lock.
type Snapshot struct {
	Totals       Totals
	AppProtocols map[model.AppProtocol]uint64
	Entries      []Entry
}

// InfoTraffic is the shared aggregate view of all observed connections.
// A single mutex covers the whole structure: the insertion-ordered connection
// map, the global counters, the per-app-protocol histogram, and the two
// "touched this interval" index sets. One aggregator lives per capture
// session; Reset prepares it for a restart.
type InfoTraffic struct {
	mu sync.Mutex

	conns map[model.AddressPortPair]*model.InfoAddressPortPair
	order []model.AddressPortPair

	totals       Totals
	appProtocols map[model.AppProtocol]uint64

	addressesLastInterval map[int]struct{}
	favoritesLastInterval map[int]struct{}
}

// New creates an empty aggregator.
func New() *InfoTraffic {
	return &InfoTraffic{
		conns:                 make(map[model.AddressPortPair]*model.InfoAddressPortPair),
		appProtocols:          make(map[model.AppProtocol]uint64),
		addressesLastInterval: make(map[int]struct{}),
		favoritesLastInterval: make(map[int]struct{}),
	}
}

// RegisterPacket folds one filtered-in packet into the per-connection state.
// On first insertion of the key, the record's index is fixed to the current
// map length and the country code is resolved; both never change afterwards.
// The touched index always lands in the addresses interval set, and in the
// favorites interval set when the record is favorited and not yet featured
// this interval.
func (t *InfoTraffic) RegisterPacket(key model.AddressPortPair, bytes uint64, app model.AppProtocol, direction model.TrafficDirection, now time.Time, resolve ResolveFunc) {
	veryLongAddress := len(key.Address1) > veryLongAddressLen || len(key.Address2) > veryLongAddressLen

	t.mu.Lock()
	defer t.mu.Unlock()

	var index int
	if info, ok := t.conns[key]; ok {
		index = info.Index
		info.TransmittedBytes += bytes
		info.TransmittedPackets++
		info.FinalTimestamp = now
		if info.IsFavorite {
			if _, featured := t.favoritesLastInterval[index]; !featured {
				t.favoritesLastInterval[index] = struct{}{}
			}
		}
	} else {
		index = len(t.order)
		country := ""
		if resolve != nil {
			country = resolve(direction, key)
		}
		t.conns[key] = &model.InfoAddressPortPair{
			TransmittedBytes:   bytes,
			TransmittedPackets: 1,
			InitialTimestamp:   now,
			FinalTimestamp:     now,
			AppProtocol:        app,
			VeryLongAddress:    veryLongAddress,
			TrafficDirection:   direction,
			Country:            country,
			Index:              index,
		}
		t.order = append(t.order, key)
	}

	t.addressesLastInterval[index] = struct{}{}
}

// CountPacket updates the global counters for one captured packet. It is
// called for every packet, including filtered-out ones; the histogram and the
// direction split are only touched for reported packets.
func (t *InfoTraffic) CountPacket(bytes uint64, reported bool, app model.AppProtocol, direction model.TrafficDirection) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totals.AllPackets++
	t.totals.AllBytes += bytes
	if !reported {
		return
	}

	t.appProtocols[app]++
	if direction == model.Outgoing {
		t.totals.SentPackets++
		t.totals.SentBytes += bytes
	} else {
		t.totals.ReceivedPackets++
		t.totals.ReceivedBytes += bytes
	}
}

// SetFavorite flags or unflags the connection at the given stable index.
// Newly favorited connections that were already touched this interval are
// featured immediately; unfavoriting withdraws them.
func (t *InfoTraffic) SetFavorite(index int, favorite bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= len(t.order) {
		return fmt.Errorf("no connection at index %d", index)
	}
	info := t.conns[t.order[index]]
	info.IsFavorite = favorite

	if favorite {
		if _, touched := t.addressesLastInterval[index]; touched {
			t.favoritesLastInterval[index] = struct{}{}
		}
	} else {
		delete(t.favoritesLastInterval, index)
	}
	return nil
}

// FavoritesLastInterval returns the favorited indices touched since the last
// drain, in ascending order.
func (t *InfoTraffic) FavoritesLastInterval() []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	indices := make([]int, 0, len(t.favoritesLastInterval))
	for index := range t.favoritesLastInterval {
		indices = append(indices, index)
	}
	sort.Ints(indices)
	return indices
}

// DrainIntervalSets resets both "touched this interval" sets. The external
// interval driver calls this after each notification tick.
func (t *InfoTraffic) DrainIntervalSets() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.addressesLastInterval = make(map[int]struct{})
	t.favoritesLastInterval = make(map[int]struct{})
}

// EntryAt returns a copy of the connection at the given stable index.
func (t *InfoTraffic) EntryAt(index int) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= len(t.order) {
		return Entry{}, false
	}
	key := t.order[index]
	return Entry{Key: key, Info: *t.conns[key]}, true
}

// Len returns the number of distinct connections observed.
func (t *InfoTraffic) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}

// Totals returns a copy of the global counters.
func (t *InfoTraffic) Totals() Totals {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totals
}

// Snapshot returns a deep copy of the aggregator state: totals, histogram,
// and all connection entries in insertion order.
func (t *InfoTraffic) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	protocols := make(map[model.AppProtocol]uint64, len(t.appProtocols))
	for proto, count := range t.appProtocols {
		protocols[proto] = count
	}

	entries := make([]Entry, 0, len(t.order))
	for _, key := range t.order {
		entries = append(entries, Entry{Key: key, Info: *t.conns[key]})
	}

	return Snapshot{Totals: t.totals, AppProtocols: protocols, Entries: entries}
}

// Reset clears the whole aggregator for a session restart.
func (t *InfoTraffic) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.conns = make(map[model.AddressPortPair]*model.InfoAddressPortPair)
	t.order = nil
	t.totals = Totals{}
	t.appProtocols = make(map[model.AppProtocol]uint64)
	t.addressesLastInterval = make(map[int]struct{})
	t.favoritesLastInterval = make(map[int]struct{})
}
