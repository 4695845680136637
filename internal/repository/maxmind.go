package repository

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/oschwald/maxminddb-golang"
	"go.uber.org/zap"

	"geogate/internal/model"
)

type cityRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	Subdivisions []struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"subdivisions"`
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Location struct {
		Latitude  *float64 `maxminddb:"latitude"`
		Longitude *float64 `maxminddb:"longitude"`
	} `maxminddb:"location"`
}

type asnRecord struct {
	AutonomousSystemNumber       uint   `maxminddb:"autonomous_system_number"`
	AutonomousSystemOrganization string `maxminddb:"autonomous_system_organization"`
}

// mmdb holds a reader that can be swapped while lookups are in flight.
// Lookups hold the read lock for as long as they touch the mapped file, so a
// replaced reader is only unmapped once they have drained.
type mmdb struct {
	name   string
	path   string
	mu     sync.RWMutex
	reader *maxminddb.Reader
	logger *zap.Logger
}

// Reload opens the database file and swaps it in. On failure the previous
// reader, if any, stays in service.
func (m *mmdb) Reload() error {
	r, err := maxminddb.Open(m.path)
	if err != nil {
		return fmt.Errorf("opening %s database %s: %w", m.name, m.path, err)
	}

	m.mu.Lock()
	old := m.reader
	m.reader = r
	m.mu.Unlock()

	// no lookup can reach old once the write lock has been released
	if old != nil {
		if err := old.Close(); err != nil {
			m.logger.Warn("failed to close replaced database",
				zap.String("database", m.name),
				zap.Error(err))
		}
	}

	m.logger.Info("Loaded database",
		zap.String("database", m.name),
		zap.String("path", m.path),
		zap.String("type", r.Metadata.DatabaseType),
		zap.Uint("build_epoch", r.Metadata.BuildEpoch))
	return nil
}

func (m *mmdb) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.reader == nil {
		return nil
	}
	err := m.reader.Close()
	m.reader = nil
	return err
}

// lookup decodes the record for ip into result. It reports false when the
// database is not loaded or holds no record for ip.
func (m *mmdb) lookup(ip net.IP, result any) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.reader == nil {
		return false, nil
	}
	_, ok, err := m.reader.LookupNetwork(ip, result)
	if err != nil {
		return false, fmt.Errorf("%s lookup for %s: %w", m.name, ip, err)
	}
	return ok, nil
}

type GeoRepository struct {
	mmdb
}

func NewGeoRepository(path string, logger *zap.Logger) *GeoRepository {
	r := &GeoRepository{}
	r.name, r.path, r.logger = "geo", path, logger
	return r
}

func (r *GeoRepository) LookupGeo(_ context.Context, ip net.IP) (*model.GeoRecord, error) {
	var rec cityRecord
	found, err := r.lookup(ip, &rec)
	if err != nil || !found {
		return nil, err
	}

	geo := &model.GeoRecord{
		CountryCode: orUnknown(rec.Country.ISOCode),
		Region:      model.Unknown,
		City:        orUnknown(rec.City.Names["en"]),
		Latitude:    rec.Location.Latitude,
		Longitude:   rec.Location.Longitude,
	}
	if len(rec.Subdivisions) > 0 {
		geo.Region = orUnknown(rec.Subdivisions[0].Names["en"])
	}
	return geo, nil
}

type ASNRepository struct {
	mmdb
}

func NewASNRepository(path string, logger *zap.Logger) *ASNRepository {
	r := &ASNRepository{}
	r.name, r.path, r.logger = "asn", path, logger
	return r
}

func (r *ASNRepository) LookupASN(_ context.Context, ip net.IP) (*model.AsnRecord, error) {
	var rec asnRecord
	found, err := r.lookup(ip, &rec)
	if err != nil || !found {
		return nil, err
	}
	return &model.AsnRecord{
		Number:       rec.AutonomousSystemNumber,
		Organization: rec.AutonomousSystemOrganization,
	}, nil
}

func orUnknown(s string) string {
	if s == "" {
		return model.Unknown
	}
	return s
}
