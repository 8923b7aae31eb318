package protocol

import (
	"net"

	"trafficscope/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const ipv6HeaderLen = 40

// wellKnownPorts maps registered ports to the application protocol usually
// spoken on them. Inference is independent of direction: either port of the
// pair may match.
var wellKnownPorts = map[uint16]model.AppProtocol{
	20:   model.FTP,
	21:   model.FTP,
	22:   model.SSH,
	23:   model.Telnet,
	25:   model.SMTP,
	53:   model.DNS,
	67:   model.DHCP,
	68:   model.DHCP,
	69:   model.TFTP,
	80:   model.HTTP,
	109:  model.POP,
	110:  model.POP,
	123:  model.NTP,
	137:  model.NetBIOS,
	138:  model.NetBIOS,
	139:  model.NetBIOS,
	143:  model.IMAP,
	161:  model.SNMP,
	162:  model.SNMP,
	179:  model.BGP,
	389:  model.LDAP,
	443:  model.HTTPS,
	445:  model.SMB,
	465:  model.SMTP,
	587:  model.SMTP,
	636:  model.LDAPS,
	989:  model.FTPS,
	990:  model.FTPS,
	993:  model.IMAPS,
	995:  model.POP3S,
	1900: model.SSDP,
	5222: model.XMPP,
	5353: model.MDNS,
}

// Classify interprets the network- and transport-layer headers of a decoded
// packet into normalized classification fields. It performs no I/O and no
// locking. Packets without a usable IP or TCP/UDP header come back with Skip
// set and must not reach the aggregator.
func Classify(packet gopacket.Packet) model.PacketFields {
	fields := model.PacketFields{Skip: true}

	switch {
	case packet.Layer(layers.LayerTypeIPv4) != nil:
		ip := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		fields.IPVersion = model.IPv4
		fields.Address1 = ip.SrcIP.String()
		fields.Address2 = ip.DstIP.String()
		fields.ExchangedBytes = uint64(ip.Length)
	case packet.Layer(layers.LayerTypeIPv6) != nil:
		ip := packet.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
		fields.IPVersion = model.IPv6
		fields.Address1 = ip.SrcIP.String()
		fields.Address2 = ip.DstIP.String()
		fields.ExchangedBytes = uint64(ip.Length) + ipv6HeaderLen
	default:
		return fields
	}

	switch {
	case packet.Layer(layers.LayerTypeTCP) != nil:
		tcp := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
		fields.TransProtocol = model.TCP
		fields.Port1 = uint16(tcp.SrcPort)
		fields.Port2 = uint16(tcp.DstPort)
	case packet.Layer(layers.LayerTypeUDP) != nil:
		udp := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		fields.TransProtocol = model.UDP
		fields.Port1 = uint16(udp.SrcPort)
		fields.Port2 = uint16(udp.DstPort)
	default:
		return fields
	}

	fields.AppProtocol = AppProtocolFromPorts(fields.Port1, fields.Port2)
	fields.Skip = false
	return fields
}

// AppProtocolFromPorts infers the application protocol from the first of the
// two ports that is well known.
func AppProtocolFromPorts(port1, port2 uint16) model.AppProtocol {
	if proto, ok := wellKnownPorts[port1]; ok {
		return proto
	}
	if proto, ok := wellKnownPorts[port2]; ok {
		return proto
	}
	return model.AppOther
}

// Direction classifies a packet relative to the capturing interface.
// Rule order is significant: locality is ruled out before the multicast and
// broadcast checks apply.
func Direction(address1, address2 string, interfaceAddresses []string) model.TrafficDirection {
	for _, addr := range interfaceAddresses {
		if addr == address1 {
			return model.Outgoing
		}
	}
	for _, addr := range interfaceAddresses {
		if addr == address2 {
			return model.Incoming
		}
	}
	if IsMulticastAddress(address2) {
		return model.Multicast
	}
	if IsBroadcastAddress(address2) {
		return model.Broadcast
	}
	return model.DirectionOther
}

// IsMulticastAddress reports whether the textual address is an IPv4 or IPv6
// multicast address.
func IsMulticastAddress(address string) bool {
	ip := net.ParseIP(address)
	return ip != nil && ip.IsMulticast()
}

// IsBroadcastAddress reports whether the textual address is the IPv4 limited
// broadcast address.
func IsBroadcastAddress(address string) bool {
	return address == "255.255.255.255"
}
