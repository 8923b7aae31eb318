package sniffer

import (
	"fmt"
	"sync"
	"time"

	"trafficscope/internal/engine/protocol"
	"trafficscope/internal/geo"
	"trafficscope/internal/model"
	"trafficscope/internal/traffic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// Device is the capturing interface as the capture loop sees it: its name and
// the textual form of its bound addresses, used for direction classification.
type Device struct {
	Name      string
	Addresses []string
}

// DeviceFromPcap converts a pcap interface description into a Device.
func DeviceFromPcap(iface pcap.Interface) Device {
	dev := Device{Name: iface.Name}
	for _, addr := range iface.Addresses {
		dev.Addresses = append(dev.Addresses, addr.IP.String())
	}
	return dev
}

// FindDevice looks up a capture interface by name.
func FindDevice(name string) (Device, error) {
	ifaces, err := pcap.FindAllDevs()
	if err != nil {
		return Device{}, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Name == name {
			return DeviceFromPcap(iface), nil
		}
	}
	return Device{}, fmt.Errorf("capture device %q not found", name)
}

// Sniffer owns the capture epoch counter and the shared traffic aggregator.
// Starting a new session bumps the epoch under the lock; a session whose
// epoch no longer matches is stale and exits at its next check point, so at
// most one capture worker is ever feeding the aggregator.
type Sniffer struct {
	mu       sync.Mutex
	epoch    uint64
	traffic  *traffic.InfoTraffic
	resolver *geo.Resolver
}

// New creates a Sniffer around the given aggregator and country resolver.
// The resolver may be nil; connections then carry an empty country code.
func New(t *traffic.InfoTraffic, resolver *geo.Resolver) *Sniffer {
	return &Sniffer{traffic: t, resolver: resolver}
}

// Traffic returns the shared aggregator.
func (s *Sniffer) Traffic() *traffic.InfoTraffic {
	return s.traffic
}

// CurrentEpoch returns the epoch of the currently valid capture session.
func (s *Sniffer) CurrentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Stop invalidates the current session without starting a new one. The
// running worker observes the mismatch at its next check point and exits.
func (s *Sniffer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
}

// NewSession bumps the epoch, resets the aggregator for the new capture, and
// returns the session bound to the fresh epoch. Any previously running
// session becomes stale as part of the same critical section.
func (s *Sniffer) NewSession(device Device, filters model.Filters) *Session {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()

	s.traffic.Reset()

	return &Session{
		sniffer: s,
		epoch:   epoch,
		device:  device,
		filters: filters,
	}
}

// Session is one capture generation: the epoch it was started under, the
// device whose addresses drive direction classification, and the user
// filters.
type Session struct {
	sniffer *Sniffer
	epoch   uint64
	device  Device
	filters model.Filters
}

// Stale reports whether a newer session has been started since this one.
func (ss *Session) Stale() bool {
	return ss.sniffer.CurrentEpoch() != ss.epoch
}

// Run pulls packets from the source until the session goes stale. Transient
// read errors and undecodable frames are absorbed silently; they are expected
// on live links. The epoch is re-checked on every read error and after every
// successful read, so cancellation latency is bounded by one read attempt.
func (ss *Session) Run(src gopacket.PacketDataSource) {
	for {
		data, _, err := src.ReadPacketData()
		if err != nil {
			if ss.Stale() {
				return
			}
			continue
		}
		if ss.Stale() {
			return
		}
		ss.processPacket(data)
	}
}

// processPacket classifies one raw frame and folds it into the aggregator.
//
// Two separate critical sections are taken on purpose: the per-connection
// update only happens for packets that pass the user filters, while the
// global counters must reflect every captured packet.
func (ss *Session) processPacket(data []byte) {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)
	fields := protocol.Classify(packet)
	if fields.Skip {
		return
	}

	direction := protocol.Direction(fields.Address1, fields.Address2, ss.device.Addresses)
	key := model.AddressPortPair{
		Address1: fields.Address1,
		Port1:    fields.Port1,
		Address2: fields.Address2,
		Port2:    fields.Port2,
		Protocol: fields.TransProtocol,
	}

	reported := ss.filters.Match(fields)
	if reported {
		ss.sniffer.traffic.RegisterPacket(key, fields.ExchangedBytes, fields.AppProtocol, direction, time.Now(), ss.sniffer.resolver.Resolve)
	}
	ss.sniffer.traffic.CountPacket(fields.ExchangedBytes, reported, fields.AppProtocol, direction)
}
