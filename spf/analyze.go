package spf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/synqronlabs/spfaudit/dns"
)

var (
	// ErrNoResolver is returned when Analyze is called without a resolver.
	ErrNoResolver = errors.New("spf: nil resolver")
)

// DNSLookupsMax is the maximum number of DNS-querying mechanisms and
// modifiers per evaluation: include, a, mx, ptr, exists and redirect,
// per RFC 7208 Section 4.6.4.
const DNSLookupsMax = 10

const (
	// includeFanOutMax is the number of include mechanisms above which the
	// policy is flagged for complexity.
	includeFanOutMax = 5

	// txtStringMax is the maximum length of a single DNS TXT character
	// string, per RFC 1035 Section 3.3.14.
	txtStringMax = 255
)

// Options configures an analysis.
type Options struct {
	// MaxLookups overrides the DNS lookup budget. Default is DNSLookupsMax.
	// Values above DNSLookupsMax still trigger the budget findings at the
	// RFC limit during validation.
	MaxLookups int

	// Logger receives debug-level progress events. Nil means silent.
	Logger *slog.Logger
}

// DefaultOptions returns Options with RFC 7208 defaults.
func DefaultOptions() *Options {
	return &Options{
		MaxLookups: DNSLookupsMax,
	}
}

// evaluation is the mutable state threaded through one analysis: the lookup
// budget, the visited-domain set for cycle detection, and the report being
// assembled. It is created fresh per Analyze call and never shared, so
// independent analyses can run in parallel.
type evaluation struct {
	resolver dns.Resolver
	opts     *Options
	report   *Report

	lookups  int
	visited  map[string]struct{}
	seenIPv4 map[string]struct{}
	seenIPv6 map[string]struct{}
}

func newEvaluation(resolver dns.Resolver, domain string, opts *Options) *evaluation {
	return &evaluation{
		resolver: resolver,
		opts:     opts,
		visited:  make(map[string]struct{}),
		seenIPv4: make(map[string]struct{}),
		seenIPv6: make(map[string]struct{}),
		report: &Report{
			Domain:     domain,
			Mechanisms: []Mechanism{},
			Modifiers:  make(map[string]string),
			AllowedIPs: AllowedIPs{IPv4: []string{}, IPv6: []string{}},
			Issues:     []Issue{},
			Warnings:   []Issue{},
		},
	}
}

// Analyze fetches and audits the SPF policy of a domain.
//
// The returned error is non-nil only for a nil resolver or a cancelled
// context; every RFC-anticipated anomaly is recorded on the Report instead.
func Analyze(ctx context.Context, resolver dns.Resolver, domain string, opts *Options) (*Report, error) {
	if resolver == nil {
		return nil, ErrNoResolver
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.MaxLookups <= 0 {
		opts.MaxLookups = DNSLookupsMax
	}

	domain = normalizeDomain(domain)
	e := newEvaluation(resolver, domain, opts)
	e.visit(domain)

	e.log("analyzing domain", "domain", domain)

	record, found, err := e.fetchRecord(ctx, domain)
	if err != nil {
		return nil, err
	}
	if found {
		e.report.Record = record
		if err := e.parseRecord(ctx, domain, record, true); err != nil {
			return nil, err
		}
		e.validate(record)
	}

	return e.finish(), nil
}

// AnalyzeRecord audits a record string as if it were published at domain,
// skipping the initial TXT fetch. Nested include and redirect references
// are still resolved through the resolver, so drafts referencing live
// domains are audited end to end.
func AnalyzeRecord(ctx context.Context, resolver dns.Resolver, domain, record string, opts *Options) (*Report, error) {
	if resolver == nil {
		return nil, ErrNoResolver
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.MaxLookups <= 0 {
		opts.MaxLookups = DNSLookupsMax
	}

	domain = normalizeDomain(domain)
	e := newEvaluation(resolver, domain, opts)
	e.visit(domain)

	if !isSPFRecord(record) {
		e.issue(SeverityCritical,
			fmt.Sprintf("record does not start with %q version tag", Version),
			"Begin the record with \"v=spf1\" followed by a space.")
		return e.finish(), nil
	}

	e.report.Record = record
	if err := e.parseRecord(ctx, domain, record, true); err != nil {
		return nil, err
	}
	e.validate(record)

	return e.finish(), nil
}

// finish computes the validity verdict and returns the report.
func (e *evaluation) finish() *Report {
	e.report.DNSLookups = e.lookups
	e.report.Valid = true
	for _, issue := range e.report.Issues {
		if issue.Severity == SeverityCritical {
			e.report.Valid = false
			break
		}
	}
	return e.report
}

// fetchRecord performs the TXT lookup for domain and applies the
// "exactly one SPF record" constraint of RFC 7208 Section 4.5.
//
// found is false when the domain has no analyzable SPF record; the cause
// has then already been recorded as a warning. The returned error is
// non-nil only on context cancellation.
func (e *evaluation) fetchRecord(ctx context.Context, domain string) (record string, found bool, err error) {
	result, lookupErr := e.resolver.LookupTXT(ctx, domain)
	if lookupErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", false, ctxErr
		}
		e.warnLookupFailure(domain, lookupErr)
		return "", false, nil
	}

	var records []string
	for _, txt := range result.Records {
		if isSPFRecord(txt) {
			records = append(records, txt)
		}
	}

	switch {
	case len(records) == 0:
		e.warn(SeverityHigh,
			fmt.Sprintf("no SPF record found for %s", domain),
			"Publish a TXT record starting with \"v=spf1\" to declare which hosts may send mail for this domain.")
		return "", false, nil
	case len(records) > 1:
		// Continue with the first record so the rest of the policy can
		// still be audited.
		e.issue(SeverityCritical,
			fmt.Sprintf("multiple SPF records found for %s; receivers will treat this as a permanent error", domain),
			"Merge the records into a single TXT record starting with \"v=spf1\".")
	}

	return records[0], true, nil
}

// warnLookupFailure maps a TXT lookup failure to a distinguishable,
// actionable warning.
func (e *evaluation) warnLookupFailure(domain string, err error) {
	switch {
	case dns.IsNotFound(err):
		e.warn(SeverityHigh,
			fmt.Sprintf("domain %s does not exist", domain),
			"Verify the domain name; NXDOMAIN responses mean no SPF policy can be published there.")
	case dns.IsNoData(err):
		e.warn(SeverityHigh,
			fmt.Sprintf("no TXT records found for %s", domain),
			"Publish a TXT record starting with \"v=spf1\" to declare which hosts may send mail for this domain.")
	case dns.IsTimeout(err):
		e.warn(SeverityMedium,
			fmt.Sprintf("DNS lookup for %s timed out", domain),
			"Retry the analysis; persistent timeouts indicate an unhealthy nameserver.")
	default:
		e.warn(SeverityMedium,
			fmt.Sprintf("DNS lookup for %s failed: %v", domain, err),
			"Retry the analysis; check the domain's nameservers if the failure persists.")
	}
}

// parseRecord tokenizes a record into terms and evaluates them left to
// right. Later terms depend on the lookup budget and visited-domain state
// left by earlier ones, so evaluation order is strictly textual.
func (e *evaluation) parseRecord(ctx context.Context, domain, record string, topLevel bool) error {
	terms := strings.Fields(record)
	if len(terms) == 0 {
		return nil
	}

	// The record's own redirect target; followed after all terms are
	// processed.
	redirect := ""

	for _, term := range terms[1:] { // terms[0] is the version tag
		qualifier, rest := splitQualifier(term)

		if isModifierTerm(rest) {
			name, value, _ := strings.Cut(rest, "=")
			switch strings.ToLower(name) {
			case "redirect":
				e.report.Modifiers["redirect"] = value
				redirect = value
			case "exp":
				// Stored only; the explanation text is never resolved.
				e.report.Modifiers["exp"] = value
			default:
				e.warn(SeverityLow,
					fmt.Sprintf("unknown modifier %q in record for %s", name, domain),
					"Remove the modifier or check its spelling; receivers ignore unknown modifiers.")
			}
			continue
		}

		mech := parseMechanism(qualifier, rest, term)
		e.report.Mechanisms = append(e.report.Mechanisms, mech)

		if err := e.dispatch(ctx, domain, mech); err != nil {
			return err
		}
	}

	if redirect != "" {
		// RFC 7208 Section 6.1 applies redirect only when no mechanism
		// matched. An auditor has no connecting IP to match against, so the
		// redirect target is always followed and included in the report.
		if err := e.evalRedirect(ctx, domain, redirect); err != nil {
			return err
		}
	}

	return nil
}

// dispatch evaluates a single mechanism. The switch is exhaustive over
// MechanismType; unknown mechanisms fall through to a low warning.
func (e *evaluation) dispatch(ctx context.Context, domain string, m Mechanism) error {
	switch m.Type {
	case TypeAll:
		e.evalAll(m)
	case TypeA:
		return e.evalA(ctx, domain, m)
	case TypeMX:
		return e.evalMX(ctx, domain, m)
	case TypeIP4:
		e.evalIP4(domain, m)
	case TypeIP6:
		e.evalIP6(domain, m)
	case TypeInclude:
		return e.evalInclude(ctx, domain, m)
	case TypeExists:
		e.evalExists(domain, m)
	case TypePTR:
		e.evalPTR(domain, m)
	case TypeUnknown:
		e.warn(SeverityLow,
			fmt.Sprintf("unknown mechanism %q in record for %s", m.Value, domain),
			"Remove the mechanism or check its spelling; receivers treat unknown mechanisms as permanent errors.")
	}
	return nil
}

// budgetExhausted reports whether another DNS lookup would exceed the
// budget. Once exhausted, DNS-dependent mechanisms are skipped entirely,
// never partially attempted.
func (e *evaluation) budgetExhausted() bool {
	return e.lookups >= e.opts.MaxLookups
}

// evalAll audits the terminal all mechanism. It costs no DNS lookup.
func (e *evaluation) evalAll(m Mechanism) {
	switch m.Qualifier {
	case QualifierPass:
		e.issue(SeverityCritical,
			"+all allows all senders: any host on the internet may send mail as this domain",
			"Use \"-all\" (or \"~all\" during rollout) so unauthorized senders fail SPF.")
	case QualifierNeutral:
		e.warn(SeverityMedium,
			"?all is neutral and provides no protection against spoofed senders",
			"Use \"-all\" (or \"~all\" during rollout) so unauthorized senders fail SPF.")
	case QualifierFail, QualifierSoftFail:
		// The recommended terminal forms.
	}
}

// evalA resolves the a mechanism: A and, best-effort, AAAA records for the
// domain-spec or the current domain. Costs one lookup.
func (e *evaluation) evalA(ctx context.Context, domain string, m Mechanism) error {
	if e.budgetExhausted() {
		e.log("lookup budget exhausted, skipping mechanism", "mechanism", m.Original, "domain", domain)
		return nil
	}
	e.lookups++

	host := hostFromValue(m.Value, domain)
	result, err := e.resolver.LookupIP(ctx, host)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		e.warn(SeverityMedium,
			fmt.Sprintf("could not resolve addresses for a:%s", host),
			"Ensure the host has A or AAAA records; mechanisms that never match only waste lookups.")
		return nil
	}

	for _, ip := range result.Records {
		e.addIP(ip)
	}
	return nil
}

// evalMX resolves the mx mechanism: one lookup for the MX RRset, then one
// per exchange host for its addresses, each bounded by the shared budget.
func (e *evaluation) evalMX(ctx context.Context, domain string, m Mechanism) error {
	if e.budgetExhausted() {
		e.log("lookup budget exhausted, skipping mechanism", "mechanism", m.Original, "domain", domain)
		return nil
	}
	e.lookups++

	host := hostFromValue(m.Value, domain)
	result, err := e.resolver.LookupMX(ctx, host)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		e.warn(SeverityMedium,
			fmt.Sprintf("could not resolve MX records for mx:%s", host),
			"Ensure the domain has MX records; mechanisms that never match only waste lookups.")
		return nil
	}

	for _, mx := range result.Records {
		if e.budgetExhausted() {
			e.log("lookup budget exhausted, skipping MX host", "host", mx.Host)
			break
		}
		e.lookups++

		exchange := strings.TrimSuffix(mx.Host, ".")
		ips, err := e.resolver.LookupIP(ctx, exchange)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			e.warn(SeverityMedium,
				fmt.Sprintf("could not resolve addresses for MX host %s of mx:%s", exchange, host),
				"Ensure every MX host has A or AAAA records.")
			continue
		}
		for _, ip := range ips.Records {
			e.addIP(ip)
		}
	}
	return nil
}

// evalIP4 validates and records an ip4 mechanism. No DNS cost.
func (e *evaluation) evalIP4(domain string, m Mechanism) {
	if m.Value == "" {
		e.warn(SeverityMedium,
			fmt.Sprintf("ip4 mechanism without an address in record for %s", domain),
			"Provide a dotted-quad address or network, e.g. \"ip4:192.0.2.0/24\".")
		return
	}
	if !validIPv4Value(m.Value) {
		e.warn(SeverityMedium,
			fmt.Sprintf("malformed ip4 value %q in record for %s", m.Value, domain),
			"Use a dotted-quad address with an optional /prefix, e.g. \"ip4:192.0.2.0/24\".")
		return
	}
	e.addIPv4(m.Value)
}

// evalIP6 validates and records an ip6 mechanism. No DNS cost.
func (e *evaluation) evalIP6(domain string, m Mechanism) {
	if m.Value == "" {
		e.warn(SeverityMedium,
			fmt.Sprintf("ip6 mechanism without an address in record for %s", domain),
			"Provide a hex-colon address or network, e.g. \"ip6:2001:db8::/32\".")
		return
	}
	if !validIPv6Value(m.Value) {
		e.warn(SeverityMedium,
			fmt.Sprintf("malformed ip6 value %q in record for %s", m.Value, domain),
			"Use a hex-colon address with an optional /prefix, e.g. \"ip6:2001:db8::/32\".")
		return
	}
	e.addIPv6(m.Value)
}

// evalInclude recursively audits an included policy. Costs one lookup for
// the include itself plus whatever the included record consumes.
func (e *evaluation) evalInclude(ctx context.Context, domain string, m Mechanism) error {
	if m.Value == "" {
		e.warn(SeverityHigh,
			fmt.Sprintf("include mechanism without a domain in record for %s", domain),
			"Provide the domain whose policy should be included, e.g. \"include:_spf.example.com\".")
		return nil
	}

	target := normalizeDomain(m.Value)

	if e.visitedDomain(target) {
		e.warn(SeverityMedium,
			fmt.Sprintf("circular reference: include:%s was already evaluated", target),
			"Remove the include loop; receivers abort evaluation on circular references.")
		return nil
	}

	if isThirdParty(e.report.Domain, target) {
		e.note(fmt.Sprintf("include:%s delegates sending authority to a third party (%s)",
			target, OrganizationalDomain(target)))
	}

	if e.budgetExhausted() {
		e.issue(SeverityHigh,
			fmt.Sprintf("DNS lookup limit of %d reached before include:%s could be evaluated", e.opts.MaxLookups, target),
			"Reduce the number of DNS-querying terms; receivers return a permanent error past the limit.")
		return nil
	}
	e.lookups++
	e.visit(target)

	e.log("following include", "target", target, "lookups", e.lookups)

	record, found, err := e.fetchRecord(ctx, target)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	return e.parseRecord(ctx, target, record, false)
}

// evalRedirect follows a redirect modifier target as a substitute
// top-level record.
func (e *evaluation) evalRedirect(ctx context.Context, domain, value string) error {
	target := normalizeDomain(value)
	if target == "" {
		e.warn(SeverityHigh,
			fmt.Sprintf("redirect modifier without a domain in record for %s", domain),
			"Provide the domain whose policy should replace this one, e.g. \"redirect=_spf.example.com\".")
		return nil
	}

	if e.visitedDomain(target) {
		e.warn(SeverityMedium,
			fmt.Sprintf("circular reference: redirect=%s was already evaluated", target),
			"Remove the redirect loop; receivers abort evaluation on circular references.")
		return nil
	}

	if isThirdParty(e.report.Domain, target) {
		e.note(fmt.Sprintf("redirect=%s delegates sending authority to a third party (%s)",
			target, OrganizationalDomain(target)))
	}

	if e.budgetExhausted() {
		e.issue(SeverityHigh,
			fmt.Sprintf("DNS lookup limit of %d reached before redirect=%s could be evaluated", e.opts.MaxLookups, target),
			"Reduce the number of DNS-querying terms; receivers return a permanent error past the limit.")
		return nil
	}
	e.lookups++
	e.visit(target)

	e.log("following redirect", "target", target, "lookups", e.lookups)

	record, found, err := e.fetchRecord(ctx, target)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	return e.parseRecord(ctx, target, record, true)
}

// evalExists records the presence of an exists mechanism. Macro expansion
// is not evaluated, so no query is issued, but the mechanism still counts
// against the lookup budget the way receivers count it.
func (e *evaluation) evalExists(domain string, m Mechanism) {
	if m.Value == "" {
		e.warn(SeverityMedium,
			fmt.Sprintf("exists mechanism without a domain-spec in record for %s", domain),
			"Provide a domain-spec, e.g. \"exists:%{i}._spf.example.com\".")
		return
	}
	if !e.budgetExhausted() {
		e.lookups++
	}
	e.note(fmt.Sprintf("exists:%s present; macro expansion is not evaluated by this audit", m.Value))
}

// evalPTR flags the deprecated ptr mechanism. The deprecation warning is
// emitted regardless of the lookup budget; the budget is only charged when
// a receiver would still have been able to resolve it.
func (e *evaluation) evalPTR(domain string, m Mechanism) {
	e.warn(SeverityMedium,
		fmt.Sprintf("ptr mechanism in record for %s is deprecated per RFC 7208", domain),
		"Replace ptr with a, mx or ip4/ip6 mechanisms; ptr is slow, unreliable and must not be used.")
	if !e.budgetExhausted() {
		e.lookups++
	}
}

// visit marks a domain as entered. Insertion-only; the set is never
// cleared mid-analysis, so a record that includes itself is caught on the
// first re-entry attempt.
func (e *evaluation) visit(domain string) {
	e.visited[domain] = struct{}{}
}

func (e *evaluation) visitedDomain(domain string) bool {
	_, ok := e.visited[domain]
	return ok
}

// addIP records a resolved address in the appropriate allow-list.
func (e *evaluation) addIP(ip net.IP) {
	if ip == nil {
		return
	}
	if ip.To4() != nil {
		e.addIPv4(ip.String())
	} else {
		e.addIPv6(ip.String())
	}
}

func (e *evaluation) addIPv4(value string) {
	if _, ok := e.seenIPv4[value]; ok {
		return
	}
	e.seenIPv4[value] = struct{}{}
	e.report.AllowedIPs.IPv4 = append(e.report.AllowedIPs.IPv4, value)
}

func (e *evaluation) addIPv6(value string) {
	if _, ok := e.seenIPv6[value]; ok {
		return
	}
	e.seenIPv6[value] = struct{}{}
	e.report.AllowedIPs.IPv6 = append(e.report.AllowedIPs.IPv6, value)
}

func (e *evaluation) issue(severity Severity, message, recommendation string) {
	e.report.Issues = append(e.report.Issues, Issue{
		Severity:       severity,
		Message:        message,
		Recommendation: recommendation,
	})
}

func (e *evaluation) warn(severity Severity, message, recommendation string) {
	e.report.Warnings = append(e.report.Warnings, Issue{
		Severity:       severity,
		Message:        message,
		Recommendation: recommendation,
	})
}

// note records an info-severity observation.
func (e *evaluation) note(message string) {
	e.report.Warnings = append(e.report.Warnings, Issue{
		Severity: SeverityInfo,
		Message:  message,
	})
}

func (e *evaluation) log(msg string, args ...any) {
	if e.opts.Logger != nil {
		e.opts.Logger.Debug(msg, args...)
	}
}
