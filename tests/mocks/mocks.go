package mocks

import (
	"context"
	"net"

	"geogate/internal/model"
)

type MockGeoLookup struct {
	LookupGeoFunc func(ctx context.Context, ip net.IP) (*model.GeoRecord, error)
	Calls         int
}

func (m *MockGeoLookup) LookupGeo(ctx context.Context, ip net.IP) (*model.GeoRecord, error) {
	m.Calls++
	return m.LookupGeoFunc(ctx, ip)
}

type MockASNLookup struct {
	LookupASNFunc func(ctx context.Context, ip net.IP) (*model.AsnRecord, error)
	Calls         int
}

func (m *MockASNLookup) LookupASN(ctx context.Context, ip net.IP) (*model.AsnRecord, error) {
	m.Calls++
	return m.LookupASNFunc(ctx, ip)
}

type MockCache struct {
	GetRecordsFunc func(ctx context.Context, ip string) (*model.LookupRecords, error)
	SetRecordsFunc func(ctx context.Context, ip string, records *model.LookupRecords) error
}

func (m *MockCache) GetRecords(ctx context.Context, ip string) (*model.LookupRecords, error) {
	return m.GetRecordsFunc(ctx, ip)
}

func (m *MockCache) SetRecords(ctx context.Context, ip string, records *model.LookupRecords) error {
	return m.SetRecordsFunc(ctx, ip, records)
}

type MockAuditLog struct {
	SaveDecisionFunc func(ctx context.Context, d *model.AccessDecision) error
}

func (m *MockAuditLog) SaveDecision(ctx context.Context, d *model.AccessDecision) error {
	return m.SaveDecisionFunc(ctx, d)
}
