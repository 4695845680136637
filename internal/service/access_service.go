package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"geogate/internal/classifier"
	"geogate/internal/model"
	"geogate/internal/policy"
)

var ErrInvalidIP = errors.New("invalid IP address")

type GeoLookup interface {
	LookupGeo(ctx context.Context, ip net.IP) (*model.GeoRecord, error)
}

type ASNLookup interface {
	LookupASN(ctx context.Context, ip net.IP) (*model.AsnRecord, error)
}

type Cache interface {
	GetRecords(ctx context.Context, ip string) (*model.LookupRecords, error)
	SetRecords(ctx context.Context, ip string, records *model.LookupRecords) error
}

type AuditLog interface {
	SaveDecision(ctx context.Context, d *model.AccessDecision) error
}

type AccessService struct {
	geo    GeoLookup
	asn    ASNLookup
	cache  Cache
	audit  AuditLog
	policy policy.Policy
	logger *zap.Logger
}

// NewAccessService wires the decision pipeline. asn, cache and audit are
// optional and may be nil; without an ASN lookup every address is
// classified as having no ASN data.
func NewAccessService(
	geo GeoLookup,
	asn ASNLookup,
	cache Cache,
	audit AuditLog,
	p policy.Policy,
	logger *zap.Logger,
) *AccessService {
	return &AccessService{
		geo:    geo,
		asn:    asn,
		cache:  cache,
		audit:  audit,
		policy: p,
		logger: logger,
	}
}

func (s *AccessService) ASNAvailable() bool {
	return s.asn != nil
}

func (s *AccessService) Decide(ctx context.Context, ipStr string) (*model.AccessDecision, error) {
	ipStr = strings.TrimSpace(ipStr)

	if policy.IsLoopback(ipStr) {
		d := s.policy.Evaluate(ipStr, nil, nil, model.Verdict{})
		return s.record(ctx, &d), nil
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidIP, ipStr)
	}

	records, err := s.resolve(ctx, ipStr, ip)
	if err != nil {
		return nil, err
	}

	var d model.AccessDecision
	if records.Geo == nil {
		d = s.policy.Evaluate(ipStr, nil, nil, model.Verdict{})
	} else {
		d = s.policy.Evaluate(ipStr, records.Geo, records.ASN, classifier.Classify(records.ASN))
	}
	return s.record(ctx, &d), nil
}

// resolve returns the lookup records for ip, from the cache when possible.
// ASN failures degrade to "no ASN data"; geo failures are returned. Only
// geolocated addresses are cached, keyed by their canonical form.
func (s *AccessService) resolve(ctx context.Context, ipStr string, ip net.IP) (*model.LookupRecords, error) {
	key := ip.String()
	if s.cache != nil {
		if records, err := s.cache.GetRecords(ctx, key); err == nil && records != nil {
			return records, nil
		}
	}

	geo, err := s.geo.LookupGeo(ctx, ip)
	if err != nil {
		s.logger.Error("geo lookup failed",
			zap.String("ip", ipStr),
			zap.Error(err))
		return nil, fmt.Errorf("geo lookup: %w", err)
	}

	records := &model.LookupRecords{Geo: geo}
	if geo == nil {
		return records, nil
	}
	records.ASN = s.lookupASN(ctx, ipStr, ip)

	if s.cache != nil {
		if err := s.cache.SetRecords(ctx, key, records); err != nil {
			s.logger.Warn("failed to cache lookup records",
				zap.String("ip", ipStr),
				zap.Error(err))
		}
	}

	return records, nil
}

func (s *AccessService) lookupASN(ctx context.Context, ipStr string, ip net.IP) *model.AsnRecord {
	if s.asn == nil {
		return nil
	}
	asn, err := s.asn.LookupASN(ctx, ip)
	if err != nil {
		s.logger.Warn("asn lookup failed, continuing without asn data",
			zap.String("ip", ipStr),
			zap.Error(err))
		return nil
	}
	return asn
}

func (s *AccessService) record(ctx context.Context, d *model.AccessDecision) *model.AccessDecision {
	d.ID = uuid.NewString()

	if s.audit != nil {
		if err := s.audit.SaveDecision(ctx, d); err != nil {
			s.logger.Warn("failed to save access decision",
				zap.String("id", d.ID),
				zap.String("ip", d.IP),
				zap.Error(err))
		}
	}

	s.logger.Debug("access decision",
		zap.String("id", d.ID),
		zap.String("ip", d.IP),
		zap.Bool("allowed", d.Allowed),
		zap.Stringp("block_reason", d.BlockReason),
		zap.String("country", d.Country))

	return d
}
