package geo

import (
	"testing"

	"trafficscope/internal/model"
)

func TestLookupAddressPicksRemoteEndpoint(t *testing.T) {
	key := model.AddressPortPair{
		Address1: "10.0.0.5",
		Port1:    443,
		Address2: "203.0.113.9",
		Port2:    51000,
		Protocol: model.TCP,
	}

	// For outgoing traffic the remote endpoint is address2; for everything
	// else it is address1.
	if addr := LookupAddress(model.Outgoing, key); addr != "203.0.113.9" {
		t.Errorf("Expected address2 for outgoing traffic, got %s", addr)
	}
	for _, direction := range []model.TrafficDirection{model.Incoming, model.Multicast, model.Broadcast, model.DirectionOther} {
		if addr := LookupAddress(direction, key); addr != "10.0.0.5" {
			t.Errorf("Expected address1 for %s traffic, got %s", direction, addr)
		}
	}
}

func TestNilResolverResolvesEmpty(t *testing.T) {
	var resolver *Resolver
	key := model.AddressPortPair{Address1: "10.0.0.5", Address2: "203.0.113.9"}

	if code := resolver.Resolve(model.Outgoing, key); code != "" {
		t.Errorf("Nil resolver must return the empty code, got %q", code)
	}
}

func TestUnparsableAddressResolvesEmpty(t *testing.T) {
	resolver := &Resolver{}
	key := model.AddressPortPair{Address1: "not-an-address", Address2: "also-bad"}

	if code := resolver.Resolve(model.Incoming, key); code != "" {
		t.Errorf("Unparsable address must return the empty code, got %q", code)
	}
}
