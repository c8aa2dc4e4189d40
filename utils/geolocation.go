package utils

import (
	"fmt"
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

type GeoLocation struct {
	Country string
	City    string
	Lat     float64
	Lon     float64
}

// GeoResolver maps node IPs to a rough location using a local MaxMind
// database. Lookups are memoized; without a database every lookup
// returns empty values.
type GeoResolver struct {
	db    *geoip2.Reader
	cache sync.Map // map[string]GeoLocation
}

// NewGeoResolver never fails: with no usable database it degrades to a
// resolver that answers empty.
func NewGeoResolver(dbPath string) *GeoResolver {
	var db *geoip2.Reader

	if dbPath != "" {
		var err error
		db, err = geoip2.Open(dbPath)
		if err != nil {
			fmt.Printf("Warning: Could not open GeoIP database at %s: %v\n", dbPath, err)
			db = nil
		}
	}

	return &GeoResolver{db: db}
}

func (g *GeoResolver) Close() {
	if g != nil && g.db != nil {
		g.db.Close()
	}
}

// Lookup is safe on a nil receiver and on a resolver without a
// database.
func (g *GeoResolver) Lookup(ipStr string) (string, string, float64, float64) {
	if g == nil || g.db == nil {
		return "", "", 0, 0
	}

	if val, ok := g.cache.Load(ipStr); ok {
		loc := val.(GeoLocation)
		return loc.Country, loc.City, loc.Lat, loc.Lon
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return "", "", 0, 0
	}

	record, err := g.db.City(ip)
	if err != nil {
		return "", "", 0, 0
	}

	loc := GeoLocation{
		Country: record.Country.Names["en"],
		City:    record.City.Names["en"],
		Lat:     record.Location.Latitude,
		Lon:     record.Location.Longitude,
	}
	g.cache.Store(ipStr, loc)

	return loc.Country, loc.City, loc.Lat, loc.Lon
}
