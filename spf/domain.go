package spf

import (
	"golang.org/x/net/publicsuffix"
)

// OrganizationalDomain returns the organizational domain for the given
// domain: the domain directly under the public suffix, per the ICANN
// section of the Public Suffix List.
//
//	example.com        -> example.com
//	sub.example.com    -> example.com
//	sub.example.co.uk  -> example.co.uk
func OrganizationalDomain(domain string) string {
	domain = normalizeDomain(domain)
	if domain == "" {
		return ""
	}

	etld1, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		// Handles cases like "localhost" or bare TLDs.
		return domain
	}
	return etld1
}

// isThirdParty reports whether target belongs to a different organizational
// domain than domain, meaning an include/redirect to it delegates sending
// authority to a third party.
func isThirdParty(domain, target string) bool {
	return OrganizationalDomain(domain) != OrganizationalDomain(target)
}
