package model

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

const Unknown = "Unknown"

type GeoRecord struct {
	CountryCode string   `json:"country"`
	Region      string   `json:"region"`
	City        string   `json:"city"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

type AsnRecord struct {
	Number       uint   `json:"asn"`
	Organization string `json:"organization"`
}

// Verdict is the anonymization assessment for one ASN record.
// IsProxy is derived: it is set iff any of IsVPN, IsHosting or IsTor is set.
type Verdict struct {
	IsVPN      bool       `json:"is_vpn"`
	IsProxy    bool       `json:"is_proxy"`
	IsHosting  bool       `json:"is_hosting"`
	IsTor      bool       `json:"is_tor"`
	Confidence Confidence `json:"confidence"`
	Reasons    []string   `json:"reasons"`
}

// LookupRecords is what the lookup collaborators resolved for an address.
// A nil Geo or ASN means the address was not found.
type LookupRecords struct {
	Geo *GeoRecord `json:"geo"`
	ASN *AsnRecord `json:"asn"`
}

type AccessDecision struct {
	ID             string   `json:"id,omitempty"`
	IP             string   `json:"ip"`
	Allowed        bool     `json:"allowed"`
	BlockReason    *string  `json:"block_reason"`
	Country        string   `json:"country,omitempty"`
	Region         string   `json:"region,omitempty"`
	City           string   `json:"city,omitempty"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	ASN            *uint    `json:"asn"`
	Organization   *string  `json:"organization"`
	Classification *Verdict `json:"vpn_detection,omitempty"`
	Error          string   `json:"error,omitempty"`
}

type Error struct {
	Message string `json:"message"`
}
