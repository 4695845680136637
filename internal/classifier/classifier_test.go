package classifier

import (
	"reflect"
	"testing"

	"geogate/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		asn        *model.AsnRecord
		vpn        bool
		hosting    bool
		tor        bool
		confidence model.Confidence
		reasons    []string
	}{
		{
			name:       "asn data absent",
			asn:        nil,
			confidence: model.ConfidenceLow,
			reasons:    []string{"ASN data unavailable"},
		},
		{
			name:       "residential network",
			asn:        &model.AsnRecord{Number: 55836, Organization: "Reliance Jio Infocomm Limited"},
			confidence: model.ConfidenceLow,
			reasons:    []string{},
		},
		{
			name:       "known asn",
			asn:        &model.AsnRecord{Number: 16509, Organization: ""},
			vpn:        true,
			hosting:    true,
			confidence: model.ConfidenceHigh,
			reasons:    []string{"Known VPN/hosting ASN: 16509"},
		},
		{
			name:       "hosting keyword is case insensitive",
			asn:        &model.AsnRecord{Number: 64512, Organization: "AMAZON.COM INC"},
			hosting:    true,
			confidence: model.ConfidenceMedium,
			reasons:    []string{"Hosting provider detected: amazon"},
		},
		{
			name:       "surrounding whitespace ignored",
			asn:        &model.AsnRecord{Number: 64512, Organization: "  DigitalOcean LLC  "},
			hosting:    true,
			confidence: model.ConfidenceMedium,
			reasons:    []string{"Hosting provider detected: digitalocean"},
		},
		{
			name:       "first vpn keyword wins",
			asn:        &model.AsnRecord{Number: 64512, Organization: "Acme Proxy VPN"},
			vpn:        true,
			confidence: model.ConfidenceHigh,
			reasons:    []string{"VPN keyword detected: vpn"},
		},
		{
			name:       "substring match without word boundary",
			asn:        &model.AsnRecord{Number: 64512, Organization: "iVirtualNet"},
			vpn:        true,
			confidence: model.ConfidenceHigh,
			reasons:    []string{"VPN keyword detected: virtual"},
		},
		{
			name:       "hosting does not downgrade vpn confidence",
			asn:        &model.AsnRecord{Number: 64512, Organization: "NordVPN on Hetzner"},
			vpn:        true,
			hosting:    true,
			confidence: model.ConfidenceHigh,
			reasons: []string{
				"VPN keyword detected: vpn",
				"Hosting provider detected: hetzner",
			},
		},
		{
			name:       "hosting does not downgrade known asn confidence",
			asn:        &model.AsnRecord{Number: 16509, Organization: "Amazon.com, Inc."},
			vpn:        true,
			hosting:    true,
			confidence: model.ConfidenceHigh,
			reasons: []string{
				"Known VPN/hosting ASN: 16509",
				"Hosting provider detected: amazon",
			},
		},
		{
			name:       "tor keyword",
			asn:        &model.AsnRecord{Number: 64512, Organization: "Tor Exit Relay Foundation"},
			tor:        true,
			confidence: model.ConfidenceHigh,
			reasons:    []string{"Tor exit node detected"},
		},
		{
			name:       "tor raises hosting confidence",
			asn:        &model.AsnRecord{Number: 64512, Organization: "Hetzner exit node"},
			hosting:    true,
			tor:        true,
			confidence: model.ConfidenceHigh,
			reasons: []string{
				"Hosting provider detected: hetzner",
				"Tor exit node detected",
			},
		},
		{
			name:       "empty organization",
			asn:        &model.AsnRecord{Number: 64512},
			confidence: model.ConfidenceLow,
			reasons:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Classify(tt.asn)

			if v.IsVPN != tt.vpn || v.IsHosting != tt.hosting || v.IsTor != tt.tor {
				t.Errorf("expected vpn=%v hosting=%v tor=%v, got vpn=%v hosting=%v tor=%v",
					tt.vpn, tt.hosting, tt.tor, v.IsVPN, v.IsHosting, v.IsTor)
			}
			if v.IsProxy != (tt.vpn || tt.hosting || tt.tor) {
				t.Errorf("unexpected is_proxy %v", v.IsProxy)
			}
			if v.Confidence != tt.confidence {
				t.Errorf("expected confidence %q, got %q", tt.confidence, v.Confidence)
			}
			if !reflect.DeepEqual(v.Reasons, tt.reasons) {
				t.Errorf("expected reasons %q, got %q", tt.reasons, v.Reasons)
			}
		})
	}
}

func TestClassify_KnownASNIgnoresOrganization(t *testing.T) {
	orgs := []string{"", "Residential Broadband", "Home ISP", "12345"}

	for number := range knownASNs {
		for _, org := range orgs {
			v := Classify(&model.AsnRecord{Number: number, Organization: org})
			if !v.IsVPN || !v.IsHosting || v.Confidence != model.ConfidenceHigh {
				t.Errorf("asn %d org %q: expected vpn+hosting with high confidence, got %+v", number, org, v)
			}
		}
	}
}

func TestClassify_ProxyIsDerived(t *testing.T) {
	orgs := []string{
		"", "Comcast Cable", "Mullvad", "OVH SAS", "exit relay", "Google LLC",
		"Private Internet Access", "Deutsche Telekom AG", "cloudflare",
	}
	numbers := []uint{0, 3320, 16509, 13335, 7922}

	for _, org := range orgs {
		for _, n := range numbers {
			v := Classify(&model.AsnRecord{Number: n, Organization: org})
			if v.IsProxy != (v.IsVPN || v.IsHosting || v.IsTor) {
				t.Errorf("asn %d org %q: is_proxy=%v not derived from flags %+v", n, org, v.IsProxy, v)
			}
			if v.IsProxy && len(v.Reasons) == 0 {
				t.Errorf("asn %d org %q: flags set without reasons", n, org)
			}
		}
	}
}

func TestIsKnownASN(t *testing.T) {
	if !IsKnownASN(14061) {
		t.Error("expected DigitalOcean ASN to be known")
	}
	if IsKnownASN(55836) {
		t.Error("expected residential ASN to be unknown")
	}
}
