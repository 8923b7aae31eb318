package geo

import (
	"fmt"
	"net"

	"trafficscope/internal/model"

	"github.com/oschwald/maxminddb-golang"
)

// Resolver wraps a read-only MMDB country database. A nil Resolver is valid
// and resolves every address to the empty country code, so geolocation can be
// disabled without touching the capture path.
type Resolver struct {
	reader *maxminddb.Reader
}

// Open loads the country database at the given path.
func Open(path string) (*Resolver, error) {
	reader, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open country database: %w", err)
	}
	return &Resolver{reader: reader}, nil
}

// Close releases the underlying database.
func (r *Resolver) Close() {
	if r != nil && r.reader != nil {
		r.reader.Close()
	}
}

// LookupAddress selects which endpoint of a connection to geolocate: the
// remote one, i.e. address2 for outgoing traffic and address1 otherwise.
func LookupAddress(direction model.TrafficDirection, key model.AddressPortPair) string {
	if direction == model.Outgoing {
		return key.Address2
	}
	return key.Address1
}

// Resolve returns the ISO country code for the connection's remote endpoint,
// or the empty string if the database has no entry for it. It is meant to be
// called only when a connection key is first inserted into the aggregator.
func (r *Resolver) Resolve(direction model.TrafficDirection, key model.AddressPortPair) string {
	if r == nil || r.reader == nil {
		return ""
	}
	ip := net.ParseIP(LookupAddress(direction, key))
	if ip == nil {
		return ""
	}

	var record struct {
		Country struct {
			ISOCode string `maxminddb:"iso_code"`
		} `maxminddb:"country"`
	}
	if err := r.reader.Lookup(ip, &record); err != nil {
		return ""
	}
	return record.Country.ISOCode
}
