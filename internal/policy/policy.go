package policy

import (
	"net"
	"sort"
	"strings"

	"geogate/internal/model"
)

const (
	ReasonGeographic = "Geographic restriction"
	ReasonVPN        = "VPN/Proxy detected"

	ErrorNotGeolocatable = "Localhost address cannot be geolocated"
	ErrorNotFound        = "IP address not found in geo database"
)

var loopbackAddrs = map[string]struct{}{
	"127.0.0.1": {},
	"::1":       {},
	"localhost": {},
}

// Policy is the static allow-list configuration. It is read-only once built
// and safe for concurrent use.
type Policy struct {
	allowedIPs       map[string]struct{}
	allowedCountries map[string]struct{}
}

// New builds a Policy. Country codes are upper-cased, IP literals are
// canonicalized when they parse, and blank entries are dropped.
func New(ips, countries []string) Policy {
	p := Policy{
		allowedIPs:       make(map[string]struct{}, len(ips)),
		allowedCountries: make(map[string]struct{}, len(countries)),
	}
	for _, ip := range ips {
		if ip = canonicalIP(ip); ip != "" {
			p.allowedIPs[ip] = struct{}{}
		}
	}
	for _, c := range countries {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			p.allowedCountries[c] = struct{}{}
		}
	}
	return p
}

func (p Policy) AllowedIPs() []string {
	return sortedKeys(p.allowedIPs)
}

func (p Policy) AllowedCountries() []string {
	return sortedKeys(p.allowedCountries)
}

// IsLoopback reports whether ip is one of the loopback literals that can
// never be geolocated.
func IsLoopback(ip string) bool {
	_, ok := loopbackAddrs[strings.TrimSpace(ip)]
	return ok
}

// Evaluate renders the access decision for ip. geo and asn may be nil.
// Geographic restriction always wins the reported reason over VPN detection.
func (p Policy) Evaluate(ip string, geo *model.GeoRecord, asn *model.AsnRecord, v model.Verdict) model.AccessDecision {
	if IsLoopback(ip) {
		return model.AccessDecision{
			IP:      ip,
			Allowed: false,
			Error:   ErrorNotGeolocatable,
		}
	}

	if geo == nil {
		return model.AccessDecision{
			IP:      ip,
			Allowed: false,
			Country: model.Unknown,
			Region:  model.Unknown,
			City:    model.Unknown,
			Error:   ErrorNotFound,
		}
	}

	_, ipAllowed := p.allowedIPs[canonicalIP(ip)]
	_, countryAllowed := p.allowedCountries[geo.CountryCode]
	isGeoAllowed := ipAllowed || countryAllowed
	isVPNBlocked := v.IsVPN || v.IsProxy

	d := model.AccessDecision{
		IP:             ip,
		Allowed:        isGeoAllowed && !isVPNBlocked,
		Country:        geo.CountryCode,
		Region:         geo.Region,
		City:           geo.City,
		Latitude:       geo.Latitude,
		Longitude:      geo.Longitude,
		Classification: &v,
	}
	if asn != nil {
		number, org := asn.Number, asn.Organization
		d.ASN = &number
		d.Organization = &org
	}

	switch {
	case !isGeoAllowed:
		d.BlockReason = reason(ReasonGeographic)
	case isVPNBlocked:
		d.BlockReason = reason(ReasonVPN)
	}

	return d
}

func reason(s string) *string {
	return &s
}

func canonicalIP(s string) string {
	s = strings.TrimSpace(s)
	if ip := net.ParseIP(s); ip != nil {
		return ip.String()
	}
	return s
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
