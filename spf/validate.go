package spf

import "fmt"

// validate runs the post-parse structural checks. It is called once, after
// the full recursive parse completes, with the raw top-level record text.
func (e *evaluation) validate(raw string) {
	e.validateLookupBudget()
	e.validateTerminalMechanism()
	e.validateRecordLength(raw)
	e.validateIncludeFanOut()
}

// validateLookupBudget checks the consumed lookups against the RFC 7208
// Section 4.6.4 limit.
func (e *evaluation) validateLookupBudget() {
	switch {
	case e.lookups > DNSLookupsMax:
		e.issue(SeverityCritical,
			fmt.Sprintf("policy requires %d DNS lookups, exceeding the RFC 7208 limit of %d", e.lookups, DNSLookupsMax),
			"Reduce the number of include, a, mx, ptr, exists and redirect terms; receivers return a permanent error past the limit.")
	case e.lookups == DNSLookupsMax:
		e.warn(SeverityHigh,
			fmt.Sprintf("policy uses exactly %d DNS lookups, the RFC 7208 maximum", DNSLookupsMax),
			"Leave headroom below the lookup limit; any added include or mx will break the policy.")
	}
}

// validateTerminalMechanism warns when no all mechanism appears anywhere in
// the evaluated tree.
func (e *evaluation) validateTerminalMechanism() {
	for _, m := range e.report.Mechanisms {
		if m.Type == TypeAll {
			return
		}
	}
	e.warn(SeverityMedium,
		"no all mechanism found; the policy has no explicit default",
		"End the record with \"-all\" (or \"~all\" during rollout) to state how unlisted senders are handled.")
}

// validateRecordLength warns when the raw top-level record exceeds the
// single TXT character-string limit.
func (e *evaluation) validateRecordLength(raw string) {
	if len(raw) > txtStringMax {
		e.warn(SeverityHigh,
			fmt.Sprintf("record is %d characters, exceeding the %d-character DNS TXT string limit", len(raw), txtStringMax),
			"Shorten the record or split authorized senders into an included policy; long records may be truncated or rejected.")
	}
}

// validateIncludeFanOut warns when the policy fans out into an excessive
// number of includes across all levels.
func (e *evaluation) validateIncludeFanOut() {
	includes := 0
	for _, m := range e.report.Mechanisms {
		if m.Type == TypeInclude {
			includes++
		}
	}
	if includes > includeFanOutMax {
		e.warn(SeverityMedium,
			fmt.Sprintf("policy contains %d include mechanisms, more than the recommended maximum of %d", includes, includeFanOutMax),
			"Flatten rarely-changing includes into ip4/ip6 mechanisms to reduce evaluation cost and fragility.")
	}
}
