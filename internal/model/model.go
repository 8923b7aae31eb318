package model

import (
	"fmt"
	"time"
)

// IPVersion identifies the network-layer protocol of a packet.
// IPOther doubles as the wildcard value in filters.
type IPVersion uint8

const (
	IPOther IPVersion = iota
	IPv4
	IPv6
)

func (v IPVersion) String() string {
	switch v {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	default:
		return "Other"
	}
}

// ParseIPVersion converts a config string into an IPVersion.
// An empty string or "Other" selects the wildcard.
func ParseIPVersion(s string) (IPVersion, error) {
	switch s {
	case "", "Other":
		return IPOther, nil
	case "IPv4":
		return IPv4, nil
	case "IPv6":
		return IPv6, nil
	default:
		return IPOther, fmt.Errorf("unknown ip version: %q", s)
	}
}

// TransProtocol identifies the transport-layer protocol of a packet.
// TransOther doubles as the wildcard value in filters.
type TransProtocol uint8

const (
	TransOther TransProtocol = iota
	TCP
	UDP
)

func (p TransProtocol) String() string {
	switch p {
	case TCP:
		return "TCP"
	case UDP:
		return "UDP"
	default:
		return "Other"
	}
}

// ParseTransProtocol converts a config string into a TransProtocol.
func ParseTransProtocol(s string) (TransProtocol, error) {
	switch s {
	case "", "Other":
		return TransOther, nil
	case "TCP":
		return TCP, nil
	case "UDP":
		return UDP, nil
	default:
		return TransOther, fmt.Errorf("unknown transport protocol: %q", s)
	}
}

// AppProtocol is the application protocol inferred from a well-known port.
// AppOther doubles as the wildcard value in filters.
type AppProtocol uint8

const (
	AppOther AppProtocol = iota
	FTP
	SSH
	Telnet
	SMTP
	DNS
	DHCP
	TFTP
	HTTP
	POP
	NTP
	NetBIOS
	IMAP
	SNMP
	BGP
	LDAP
	HTTPS
	SMB
	LDAPS
	FTPS
	IMAPS
	POP3S
	SSDP
	XMPP
	MDNS
)

var appProtocolNames = map[AppProtocol]string{
	FTP:     "FTP",
	SSH:     "SSH",
	Telnet:  "Telnet",
	SMTP:    "SMTP",
	DNS:     "DNS",
	DHCP:    "DHCP",
	TFTP:    "TFTP",
	HTTP:    "HTTP",
	POP:     "POP",
	NTP:     "NTP",
	NetBIOS: "NetBIOS",
	IMAP:    "IMAP",
	SNMP:    "SNMP",
	BGP:     "BGP",
	LDAP:    "LDAP",
	HTTPS:   "HTTPS",
	SMB:     "SMB",
	LDAPS:   "LDAPS",
	FTPS:    "FTPS",
	IMAPS:   "IMAPS",
	POP3S:   "POP3S",
	SSDP:    "SSDP",
	XMPP:    "XMPP",
	MDNS:    "mDNS",
}

func (p AppProtocol) String() string {
	if name, ok := appProtocolNames[p]; ok {
		return name
	}
	return "Other"
}

// ParseAppProtocol converts a config string into an AppProtocol.
func ParseAppProtocol(s string) (AppProtocol, error) {
	if s == "" || s == "Other" {
		return AppOther, nil
	}
	for proto, name := range appProtocolNames {
		if name == s {
			return proto, nil
		}
	}
	return AppOther, fmt.Errorf("unknown application protocol: %q", s)
}

// TrafficDirection classifies a packet relative to the capturing interface.
type TrafficDirection uint8

const (
	DirectionOther TrafficDirection = iota
	Outgoing
	Incoming
	Multicast
	Broadcast
)

func (d TrafficDirection) String() string {
	switch d {
	case Outgoing:
		return "Outgoing"
	case Incoming:
		return "Incoming"
	case Multicast:
		return "Multicast"
	case Broadcast:
		return "Broadcast"
	default:
		return "Other"
	}
}

// AddressPortPair identifies a connection. Address and port extraction order
// is fixed by the header parser, so the same flow always produces the same
// key regardless of which endpoint sent a given packet.
type AddressPortPair struct {
	Address1 string        `json:"address1"`
	Port1    uint16        `json:"port1"`
	Address2 string        `json:"address2"`
	Port2    uint16        `json:"port2"`
	Protocol TransProtocol `json:"protocol"`
}

func (k AddressPortPair) String() string {
	return fmt.Sprintf("%s:%d <-> %s:%d (%s)", k.Address1, k.Port1, k.Address2, k.Port2, k.Protocol)
}

// InfoAddressPortPair is the aggregated state for one connection key.
//
// Index is the record's position in the aggregator's insertion order at the
// moment it was first inserted; it never changes afterwards and is the handle
// the favorites/notification subsystem uses to reference the connection.
type InfoAddressPortPair struct {
	TransmittedBytes   uint64           `json:"transmitted_bytes"`
	TransmittedPackets uint64           `json:"transmitted_packets"`
	InitialTimestamp   time.Time        `json:"initial_timestamp"`
	FinalTimestamp     time.Time        `json:"final_timestamp"`
	AppProtocol        AppProtocol      `json:"app_protocol"`
	VeryLongAddress    bool             `json:"very_long_address"`
	TrafficDirection   TrafficDirection `json:"traffic_direction"`
	Country            string           `json:"country"`
	Index              int              `json:"index"`
	IsFavorite         bool             `json:"is_favorite"`
}

// PacketFields is the output of the header classifier: the normalized
// network- and transport-layer view of a single packet. Skip marks packets
// carrying no usable header data; they must be discarded before aggregation.
type PacketFields struct {
	ExchangedBytes uint64
	IPVersion      IPVersion
	TransProtocol  TransProtocol
	AppProtocol    AppProtocol
	Address1       string
	Address2       string
	Port1          uint16
	Port2          uint16
	Skip           bool
}

// Filters holds the three independent equality filters applied to each
// packet. The zero value of each field is the wildcard, so the zero Filters
// matches everything.
type Filters struct {
	IP          IPVersion
	Transport   TransProtocol
	Application AppProtocol
}

// Match reports whether a classified packet passes all three filters.
func (f Filters) Match(fields PacketFields) bool {
	return (f.IP == IPOther || f.IP == fields.IPVersion) &&
		(f.Transport == TransOther || f.Transport == fields.TransProtocol) &&
		(f.Application == AppOther || f.Application == fields.AppProtocol)
}
