package protocol

import (
	"net"
	"testing"

	"trafficscope/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var (
	srcMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	dstMAC = net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb}
)

func buildTCP4Frame(t *testing.T, src, dst string, sport, dport uint16, payload []byte) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
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
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)); err != nil {
		t.Fatalf("Failed to serialize packet: %v", err)
	}
	return buf.Bytes()
}

func buildUDP6Frame(t *testing.T, src, dst string, sport, dport uint16, payload []byte) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv6}
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolUDP,
		SrcIP:      net.ParseIP(src),
		DstIP:      net.ParseIP(dst),
	}
	udp := &layers.UDP{SrcPort: layers.UDPPort(sport), DstPort: layers.UDPPort(dport)}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("Failed to set network layer for checksum: %v", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
		t.Fatalf("Failed to serialize packet: %v", err)
	}
	return buf.Bytes()
}

func decode(data []byte) gopacket.Packet {
	return gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
}

func TestClassifyTCPv4(t *testing.T) {
	payload := []byte("hello")
	data := buildTCP4Frame(t, "10.0.0.5", "203.0.113.9", 443, 51000, payload)

	fields := Classify(decode(data))

	if fields.Skip {
		t.Fatal("Packet should not be skipped")
	}
	if fields.IPVersion != model.IPv4 {
		t.Errorf("Expected IPv4, got %s", fields.IPVersion)
	}
	if fields.TransProtocol != model.TCP {
		t.Errorf("Expected TCP, got %s", fields.TransProtocol)
	}
	if fields.AppProtocol != model.HTTPS {
		t.Errorf("Expected HTTPS, got %s", fields.AppProtocol)
	}
	if fields.Address1 != "10.0.0.5" || fields.Address2 != "203.0.113.9" {
		t.Errorf("Unexpected addresses: %s / %s", fields.Address1, fields.Address2)
	}
	if fields.Port1 != 443 || fields.Port2 != 51000 {
		t.Errorf("Unexpected ports: %d / %d", fields.Port1, fields.Port2)
	}
	// IPv4 total length: 20 (IP) + 20 (TCP) + payload.
	want := uint64(40 + len(payload))
	if fields.ExchangedBytes != want {
		t.Errorf("Expected %d exchanged bytes, got %d", want, fields.ExchangedBytes)
	}
}

func TestClassifyUDPv6(t *testing.T) {
	payload := []byte("query")
	data := buildUDP6Frame(t, "2001:db8::1", "2001:db8::2", 51000, 53, payload)

	fields := Classify(decode(data))

	if fields.Skip {
		t.Fatal("Packet should not be skipped")
	}
	if fields.IPVersion != model.IPv6 {
		t.Errorf("Expected IPv6, got %s", fields.IPVersion)
	}
	if fields.TransProtocol != model.UDP {
		t.Errorf("Expected UDP, got %s", fields.TransProtocol)
	}
	if fields.AppProtocol != model.DNS {
		t.Errorf("Expected DNS, got %s", fields.AppProtocol)
	}
	// 40 (IPv6 header) + 8 (UDP) + payload.
	want := uint64(48 + len(payload))
	if fields.ExchangedBytes != want {
		t.Errorf("Expected %d exchanged bytes, got %d", want, fields.ExchangedBytes)
	}
}

func TestClassifySkipsNonIP(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeARP}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, eth, gopacket.Payload([]byte{0x00, 0x01})); err != nil {
		t.Fatalf("Failed to serialize packet: %v", err)
	}

	if fields := Classify(decode(buf.Bytes())); !fields.Skip {
		t.Errorf("Non-IP packet should be skipped, got %+v", fields)
	}
}

func TestClassifySkipsNonTCPUDP(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    net.ParseIP("10.0.0.5"),
		DstIP:    net.ParseIP("10.0.0.6"),
	}
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, icmp); err != nil {
		t.Fatalf("Failed to serialize packet: %v", err)
	}

	if fields := Classify(decode(buf.Bytes())); !fields.Skip {
		t.Errorf("ICMP packet should be skipped, got %+v", fields)
	}
}

func TestAppProtocolFromPorts(t *testing.T) {
	cases := []struct {
		port1, port2 uint16
		want         model.AppProtocol
	}{
		{51000, 443, model.HTTPS},
		{22, 51000, model.SSH},
		{443, 80, model.HTTPS}, // first port wins
		{51000, 51001, model.AppOther},
	}
	for _, c := range cases {
		if got := AppProtocolFromPorts(c.port1, c.port2); got != c.want {
			t.Errorf("AppProtocolFromPorts(%d, %d) = %s, want %s", c.port1, c.port2, got, c.want)
		}
	}
}

func TestDirectionRuleOrder(t *testing.T) {
	local := []string{"10.0.0.5", "fe80::1"}

	cases := []struct {
		name     string
		address1 string
		address2 string
		want     model.TrafficDirection
	}{
		{"outgoing", "10.0.0.5", "203.0.113.9", model.Outgoing},
		{"incoming", "203.0.113.9", "10.0.0.5", model.Incoming},
		{"multicast v4", "192.168.1.9", "224.0.0.251", model.Multicast},
		{"multicast v6", "2001:db8::1", "ff02::fb", model.Multicast},
		{"broadcast", "192.168.1.9", "255.255.255.255", model.Broadcast},
		{"other", "198.51.100.1", "203.0.113.9", model.DirectionOther},
		// Locality wins over the multicast/broadcast checks.
		{"outgoing to multicast", "10.0.0.5", "224.0.0.251", model.Outgoing},
		{"outgoing to broadcast", "10.0.0.5", "255.255.255.255", model.Outgoing},
	}
	for _, c := range cases {
		if got := Direction(c.address1, c.address2, local); got != c.want {
			t.Errorf("%s: Direction(%s, %s) = %s, want %s", c.name, c.address1, c.address2, got, c.want)
		}
	}
}
