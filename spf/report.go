package spf

import "encoding/json"

// AllowedIPs holds the accumulated sender addresses authorized by the
// policy, in discovery order and deduplicated.
type AllowedIPs struct {
	IPv4 []string `json:"ipv4"`
	IPv6 []string `json:"ipv6"`
}

// Report is the result of analyzing a domain's SPF policy.
//
// A Report is always complete and well-formed, even for a domain with a
// hopelessly broken policy: anomalies are recorded in Issues and Warnings
// rather than aborting the analysis.
type Report struct {
	// Domain is the domain that was analyzed.
	Domain string `json:"domain"`

	// Record is the raw top-level SPF TXT record. Empty when no record
	// was found.
	Record string `json:"record,omitempty"`

	// Mechanisms are all mechanism terms encountered, across the whole
	// recursive include/redirect tree, in discovery order.
	Mechanisms []Mechanism `json:"mechanisms"`

	// Modifiers maps modifier names (redirect, exp) to their values,
	// last write wins.
	Modifiers map[string]string `json:"modifiers"`

	// AllowedIPs are the accumulated authorized sender addresses.
	AllowedIPs AllowedIPs `json:"allowedIPs"`

	// DNSLookups is the number of DNS lookups consumed by the analysis.
	// RFC 7208 Section 4.6.4 caps this at 10.
	DNSLookups int `json:"dnsLookups"`

	// Issues are findings that affect the validity of the policy.
	Issues []Issue `json:"issues"`

	// Warnings are findings that do not invalidate the policy.
	Warnings []Issue `json:"warnings"`

	// Valid is true iff no critical issue was recorded.
	Valid bool `json:"valid"`
}

// ToJSON serializes the report to JSON bytes.
func (r *Report) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// ToJSONIndent serializes the report to pretty-printed JSON bytes.
func (r *Report) ToJSONIndent() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ToMessagePack serializes the report to MessagePack bytes.
func (r *Report) ToMessagePack() ([]byte, error) {
	return r.MarshalMsg(nil)
}

// FromMessagePack deserializes a report from MessagePack bytes.
func FromMessagePack(data []byte) (*Report, error) {
	var r Report
	if _, err := r.UnmarshalMsg(data); err != nil {
		return nil, err
	}
	return &r, nil
}
