// Package classifier infers how likely an address is to sit behind an
// anonymizing network (VPN, proxy, hosting provider or Tor) from the
// autonomous system that announces it.
package classifier

import (
	"fmt"
	"strings"

	"geogate/internal/model"
)

const ReasonASNUnavailable = "ASN data unavailable"

// Keyword matching is plain substring containment on the lower-cased
// organization name, so "virtual" also hits "Virtualization Ltd" and "tor"
// hits "Victoria Networks". Verdicts depend on this; keep it.

var knownASNs = map[uint]struct{}{
	16509:  {}, // Amazon AWS
	14618:  {}, // Amazon AES
	15169:  {}, // Google
	396982: {}, // Google Cloud
	8075:   {}, // Microsoft Azure
	14061:  {}, // DigitalOcean
	24940:  {}, // Hetzner
	16276:  {}, // OVH
	20473:  {}, // Choopa / Vultr
	63949:  {}, // Linode / Akamai
	13335:  {}, // Cloudflare
	9009:   {}, // M247
	60068:  {}, // Datacamp / CDN77
	212238: {}, // Datacamp
	51167:  {}, // Contabo
	12876:  {}, // Scaleway
	45102:  {}, // Alibaba Cloud
	132203: {}, // Tencent Cloud
	31898:  {}, // Oracle Cloud
	60781:  {}, // Leaseweb
	136787: {}, // TEFINCOM (NordVPN)
	209854: {}, // Surfshark
	39351:  {}, // 31173 Services (Mullvad)
}

var vpnKeywords = []string{
	"vpn",
	"proxy",
	"hosting",
	"datacenter",
	"data center",
	"cloud",
	"virtual",
	"vps",
	"nordvpn",
	"expressvpn",
	"surfshark",
	"cyberghost",
	"private internet access",
	"protonvpn",
	"mullvad",
	"windscribe",
	"tunnelbear",
	"hotspot shield",
	"ipvanish",
	"purevpn",
}

var hostingKeywords = []string{
	"amazon",
	"aws",
	"google",
	"microsoft",
	"azure",
	"digitalocean",
	"linode",
	"vultr",
	"choopa",
	"ovh",
	"hetzner",
	"contabo",
	"scaleway",
	"leaseweb",
	"alibaba",
	"tencent",
	"oracle",
	"m247",
	"akamai",
	"fastly",
}

var torKeywords = []string{
	"tor",
	"exit node",
	"exit relay",
}

// IsKnownASN reports whether number belongs to a known VPN or hosting network.
func IsKnownASN(number uint) bool {
	_, ok := knownASNs[number]
	return ok
}

// Classify never fails: a nil record yields a low-confidence verdict with
// every flag cleared.
func Classify(asn *model.AsnRecord) model.Verdict {
	if asn == nil {
		return model.Verdict{
			Confidence: model.ConfidenceLow,
			Reasons:    []string{ReasonASNUnavailable},
		}
	}

	v := model.Verdict{
		Confidence: model.ConfidenceLow,
		Reasons:    []string{},
	}
	org := strings.ToLower(strings.TrimSpace(asn.Organization))

	if IsKnownASN(asn.Number) {
		v.IsVPN = true
		v.IsHosting = true
		v.Confidence = model.ConfidenceHigh
		v.Reasons = append(v.Reasons, fmt.Sprintf("Known VPN/hosting ASN: %d", asn.Number))
	}

	if kw, ok := firstMatch(org, vpnKeywords); ok {
		v.IsVPN = true
		v.Confidence = model.ConfidenceHigh
		v.Reasons = append(v.Reasons, "VPN keyword detected: "+kw)
	}

	if kw, ok := firstMatch(org, hostingKeywords); ok {
		v.IsHosting = true
		// never downgrade a high confidence set above
		if !v.IsVPN {
			v.Confidence = model.ConfidenceMedium
		}
		v.Reasons = append(v.Reasons, "Hosting provider detected: "+kw)
	}

	if _, ok := firstMatch(org, torKeywords); ok {
		v.IsTor = true
		v.Confidence = model.ConfidenceHigh
		v.Reasons = append(v.Reasons, "Tor exit node detected")
	}

	v.IsProxy = v.IsVPN || v.IsHosting || v.IsTor

	return v
}

func firstMatch(org string, keywords []string) (string, bool) {
	if org == "" {
		return "", false
	}
	for _, kw := range keywords {
		if strings.Contains(org, kw) {
			return kw, true
		}
	}
	return "", false
}
