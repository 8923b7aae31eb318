package sniffer

import (
	"errors"
	"net"
	"testing"

	"trafficscope/internal/model"
	"trafficscope/internal/traffic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// fakeSource yields a fixed list of frames and then keeps failing reads,
// invoking onDrained once when the frames run out.
type fakeSource struct {
	frames    [][]byte
	pos       int
	onDrained func()
	drained   bool
}

func (s *fakeSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	if s.pos < len(s.frames) {
		frame := s.frames[s.pos]
		s.pos++
		return frame, gopacket.CaptureInfo{}, nil
	}
	if !s.drained {
		s.drained = true
		if s.onDrained != nil {
			s.onDrained()
		}
	}
	return nil, gopacket.CaptureInfo{}, errors.New("no packet available")
}

func buildTCPFrame(t *testing.T, src, dst string, sport, dport uint16) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.ParseIP(src),
		DstIP:    net.ParseIP(dst),
	}
	tcp := &layers.TCP{SrcPort: layers.TCPPort(sport), DstPort: layers.TCPPort(dport)}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("Failed to set network layer for checksum: %v", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload([]byte("data"))); err != nil {
		t.Fatalf("Failed to serialize packet: %v", err)
	}
	return buf.Bytes()
}

func TestSessionAggregatesPackets(t *testing.T) {
	it := traffic.New()
	snf := New(it, nil)
	device := Device{Name: "test0", Addresses: []string{"10.0.0.5"}}

	frame := buildTCPFrame(t, "10.0.0.5", "203.0.113.9", 443, 51000)
	src := &fakeSource{
		// Two packets of the same flow plus one undecodable frame.
		frames:    [][]byte{frame, frame, {0xde, 0xad, 0xbe, 0xef}},
		onDrained: snf.Stop,
	}

	session := snf.NewSession(device, model.Filters{})
	session.Run(src)

	totals := it.Totals()
	if totals.AllPackets != 2 {
		t.Errorf("Expected 2 counted packets (garbage frame skipped), got %d", totals.AllPackets)
	}
	if totals.SentPackets != 2 || totals.ReceivedPackets != 0 {
		t.Errorf("Expected 2 sent / 0 received, got %d / %d", totals.SentPackets, totals.ReceivedPackets)
	}
	if it.Len() != 1 {
		t.Fatalf("Expected 1 connection, got %d", it.Len())
	}

	entry, _ := it.EntryAt(0)
	if entry.Info.TrafficDirection != model.Outgoing {
		t.Errorf("Expected Outgoing, got %s", entry.Info.TrafficDirection)
	}
	if entry.Info.AppProtocol != model.HTTPS {
		t.Errorf("Expected HTTPS, got %s", entry.Info.AppProtocol)
	}
	if entry.Info.TransmittedPackets != 2 {
		t.Errorf("Expected 2 transmitted packets, got %d", entry.Info.TransmittedPackets)
	}
}

func TestFilteredOutPacketsCountGloballyOnly(t *testing.T) {
	it := traffic.New()
	snf := New(it, nil)
	device := Device{Name: "test0", Addresses: []string{"10.0.0.5"}}

	frame := buildTCPFrame(t, "10.0.0.5", "203.0.113.9", 443, 51000)
	src := &fakeSource{frames: [][]byte{frame}, onDrained: snf.Stop}

	// A UDP-only filter rejects the TCP packet.
	session := snf.NewSession(device, model.Filters{Transport: model.UDP})
	session.Run(src)

	totals := it.Totals()
	if totals.AllPackets != 1 {
		t.Errorf("Filtered-out packet must still count globally, got %d", totals.AllPackets)
	}
	if totals.SentPackets != 0 || totals.ReceivedPackets != 0 {
		t.Errorf("Filtered-out packet must not count in the direction split, got %d / %d", totals.SentPackets, totals.ReceivedPackets)
	}
	if it.Len() != 0 {
		t.Errorf("Filtered-out packet must not create a connection, got %d", it.Len())
	}
}

// stoppingSource bumps the epoch after a fixed number of reads, then keeps
// yielding frames. The worker must not process anything past the bump.
type stoppingSource struct {
	frame     []byte
	reads     int
	stopAfter int
	stop      func()
}

func (s *stoppingSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	s.reads++
	if s.reads == s.stopAfter+1 {
		s.stop()
	}
	return s.frame, gopacket.CaptureInfo{}, nil
}

func TestEpochBumpStopsWorker(t *testing.T) {
	it := traffic.New()
	snf := New(it, nil)
	device := Device{Name: "test0", Addresses: []string{"10.0.0.5"}}

	session := snf.NewSession(device, model.Filters{})
	src := &stoppingSource{
		frame:     buildTCPFrame(t, "10.0.0.5", "203.0.113.9", 443, 51000),
		stopAfter: 2,
		stop:      snf.Stop,
	}

	session.Run(src)

	if totals := it.Totals(); totals.AllPackets != 2 {
		t.Errorf("Expected no aggregator mutation after the epoch bump, got %d packets", totals.AllPackets)
	}
}

func TestNewSessionInvalidatesPrevious(t *testing.T) {
	it := traffic.New()
	snf := New(it, nil)
	device := Device{Name: "test0"}

	first := snf.NewSession(device, model.Filters{})
	if first.Stale() {
		t.Fatal("Fresh session must not be stale")
	}

	second := snf.NewSession(device, model.Filters{})
	if !first.Stale() {
		t.Error("Previous session must be stale after a restart")
	}
	if second.Stale() {
		t.Error("New session must not be stale")
	}
}
