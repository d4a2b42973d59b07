package spf

import (
	"net"
	"strings"
)

// Version is the tag every SPF record must begin with.
const Version = "v=spf1"

// Qualifier is the prefix character on a mechanism determining its effect
// when matched, per RFC 7208 Section 4.6.2.
type Qualifier string

const (
	QualifierPass     Qualifier = "+"
	QualifierFail     Qualifier = "-"
	QualifierSoftFail Qualifier = "~"
	QualifierNeutral  Qualifier = "?"
)

// Name returns the human-readable name for the qualifier.
// Every qualifier maps to exactly one name; the default is Pass.
func (q Qualifier) Name() string {
	switch q {
	case QualifierFail:
		return "Fail"
	case QualifierSoftFail:
		return "SoftFail"
	case QualifierNeutral:
		return "Neutral"
	default:
		return "Pass"
	}
}

// MechanismType is the closed set of SPF mechanism kinds.
type MechanismType string

const (
	TypeAll     MechanismType = "all"
	TypeA       MechanismType = "a"
	TypeMX      MechanismType = "mx"
	TypeIP4     MechanismType = "ip4"
	TypeIP6     MechanismType = "ip6"
	TypeInclude MechanismType = "include"
	TypeExists  MechanismType = "exists"
	TypePTR     MechanismType = "ptr"

	// TypeUnknown is the fallback for unrecognized mechanism names.
	// The raw name is kept in the Mechanism's Value field.
	TypeUnknown MechanismType = "unknown"
)

// Mechanism is a single parsed SPF mechanism term.
type Mechanism struct {
	// Type is the mechanism kind.
	Type MechanismType `json:"type"`

	// Value is the mechanism argument: a domain-spec for include, a, mx,
	// ptr and exists, an address with optional prefix for ip4 and ip6.
	// For TypeUnknown it holds the unrecognized mechanism name.
	Value string `json:"value,omitempty"`

	// Qualifier is the parsed qualifier character. Defaults to "+".
	Qualifier Qualifier `json:"qualifier"`

	// QualifierName is the human-readable qualifier name.
	QualifierName string `json:"qualifierName"`

	// Original is the raw term text as it appeared in the record.
	Original string `json:"original"`
}

// String returns the mechanism in record term form.
func (m Mechanism) String() string {
	var b strings.Builder
	if m.Qualifier != QualifierPass {
		b.WriteString(string(m.Qualifier))
	}
	b.WriteString(string(m.Type))
	if m.Value != "" && m.Type != TypeUnknown {
		b.WriteByte(':')
		b.WriteString(m.Value)
	}
	return b.String()
}

// splitQualifier strips a leading qualifier character from a term.
// Absent qualifier means Pass.
func splitQualifier(term string) (Qualifier, string) {
	if len(term) > 0 {
		switch term[0] {
		case '+':
			return QualifierPass, term[1:]
		case '-':
			return QualifierFail, term[1:]
		case '~':
			return QualifierSoftFail, term[1:]
		case '?':
			return QualifierNeutral, term[1:]
		}
	}
	return QualifierPass, term
}

// isModifierTerm reports whether a qualifier-stripped term is a modifier.
// A term containing "=" is a modifier unless it is an ip4/ip6 mechanism,
// whose values can never contain "=" but are excluded defensively the same
// way the macro-capable mechanisms are not.
func isModifierTerm(s string) bool {
	if !strings.Contains(s, "=") {
		return false
	}
	lower := strings.ToLower(s)
	return !strings.HasPrefix(lower, "ip4:") && !strings.HasPrefix(lower, "ip6:")
}

// parseMechanism parses a qualifier-stripped mechanism term.
// The mechanism name is the text before the first ":" or "/".
func parseMechanism(q Qualifier, s, original string) Mechanism {
	mech := Mechanism{
		Qualifier:     q,
		QualifierName: q.Name(),
		Original:      original,
	}

	name := s
	value := ""
	if idx := strings.IndexAny(s, ":/"); idx != -1 {
		name = s[:idx]
		if s[idx] == ':' {
			value = s[idx+1:]
		} else {
			// A bare CIDR suffix, e.g. "a/24"; keep it as the value so the
			// prefix length is preserved in the report.
			value = s[idx:]
		}
	}

	switch strings.ToLower(name) {
	case "all":
		mech.Type = TypeAll
	case "a":
		mech.Type = TypeA
		mech.Value = value
	case "mx":
		mech.Type = TypeMX
		mech.Value = value
	case "ip4":
		mech.Type = TypeIP4
		mech.Value = value
	case "ip6":
		mech.Type = TypeIP6
		mech.Value = value
	case "include":
		mech.Type = TypeInclude
		mech.Value = value
	case "exists":
		mech.Type = TypeExists
		mech.Value = value
	case "ptr":
		mech.Type = TypePTR
		mech.Value = value
	default:
		mech.Type = TypeUnknown
		mech.Value = strings.ToLower(name)
	}

	return mech
}

// hostFromValue returns the lookup target for an a or mx mechanism:
// the domain-spec without any CIDR suffix, or the current domain when
// the mechanism has no domain-spec.
func hostFromValue(value, domain string) string {
	host, _, _ := strings.Cut(value, "/")
	if host == "" {
		return domain
	}
	return host
}

// validIPv4Value reports whether the value is a dotted-quad IPv4 address
// with an optional /prefix.
func validIPv4Value(value string) bool {
	if strings.Contains(value, "/") {
		ip, _, err := net.ParseCIDR(value)
		return err == nil && ip.To4() != nil
	}
	ip := net.ParseIP(value)
	return ip != nil && ip.To4() != nil && strings.Contains(value, ".")
}

// validIPv6Value reports whether the value is a hex-colon IPv6 address
// with an optional /prefix.
func validIPv6Value(value string) bool {
	if !strings.Contains(value, ":") {
		return false
	}
	if strings.Contains(value, "/") {
		_, _, err := net.ParseCIDR(value)
		return err == nil
	}
	return net.ParseIP(value) != nil
}

// isSPFRecord reports whether the TXT record begins with the SPF version
// tag, per RFC 7208 Section 4.5: exactly "v=spf1" followed by a space or
// the end of the record.
func isSPFRecord(txt string) bool {
	return txt == Version || strings.HasPrefix(txt, Version+" ")
}

// normalizeDomain lower-cases a domain and strips surrounding whitespace
// and any trailing dot.
func normalizeDomain(domain string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
}
