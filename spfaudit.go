// Package spfaudit analyzes and audits published SPF policies (RFC 7208).
//
// # Analyzer
//
// Create an analyzer using the fluent builder API:
//
//	analyzer, err := spfaudit.New().
//	    Nameservers("8.8.8.8:53", "1.1.1.1:53").
//	    Timeout(10 * time.Second).
//	    Logger(logger).
//	    Build()
//
//	audit, err := analyzer.Analyze(ctx, "example.com")
//	if !audit.Valid {
//	    for _, issue := range audit.Issues {
//	        log.Printf("[%s] %s", issue.Severity, issue.Message)
//	    }
//	}
//
// Each audit carries a unique ID and timing metadata on top of the
// underlying policy report.
//
// # Draft records
//
// Audit an unpublished record as if it were live:
//
//	audit, err := analyzer.AnalyzeRecord(ctx, "example.com",
//	    "v=spf1 include:_spf.example.net ip4:192.0.2.0/24 -all")
//
// # Configuration
//
// Load analyzer settings from a YAML file:
//
//	cfg, err := spfaudit.LoadConfig("spfaudit.yaml")
//	analyzer, err := spfaudit.NewFromConfig(cfg).Build()
//
// # Serialization
//
// Reports serialize to JSON and MessagePack:
//
//	jsonData, err := audit.Report.ToJSON()
//	msgpackData, err := audit.Report.ToMessagePack()
//
// For direct access to the policy evaluator and resolver, use the spf and
// dns subpackages.
package spfaudit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/synqronlabs/spfaudit/dns"
	"github.com/synqronlabs/spfaudit/spf"
)

// DefaultTimeout bounds a whole analysis, including every recursive
// include and redirect lookup.
const DefaultTimeout = 10 * time.Second

// ErrConflictingResolver is returned by Build when both a custom resolver
// and nameservers are configured.
var ErrConflictingResolver = errors.New("spfaudit: Resolver and Nameservers are mutually exclusive")

// Audit is the outcome of one analysis run: the policy report plus
// identity and timing metadata.
type Audit struct {
	// ID is a unique, lexicographically sortable identifier for this run.
	ID string `json:"id"`

	// CheckedAt is the UTC time the analysis started.
	CheckedAt time.Time `json:"checkedAt"`

	// Duration is the wall-clock time the analysis took.
	Duration time.Duration `json:"duration"`

	*spf.Report
}

// Analyzer audits SPF policies. It is safe for concurrent use.
type Analyzer struct {
	resolver dns.Resolver
	opts     *spf.Options
	timeout  time.Duration
}

// Builder provides a fluent API for configuring an Analyzer.
type Builder struct {
	resolver    dns.Resolver
	nameservers []string
	dnssec      bool
	retries     int
	logger      *slog.Logger
	timeout     time.Duration
	maxLookups  int
}

// New creates a new Builder with default settings.
func New() *Builder {
	return &Builder{
		timeout:    DefaultTimeout,
		maxLookups: spf.DNSLookupsMax,
	}
}

// Resolver sets a custom DNS resolver. Mutually exclusive with Nameservers.
func (b *Builder) Resolver(r dns.Resolver) *Builder {
	b.resolver = r
	return b
}

// Nameservers sets the DNS servers to query, e.g. "8.8.8.8:53".
// Default is the system resolver configuration.
func (b *Builder) Nameservers(servers ...string) *Builder {
	b.nameservers = servers
	return b
}

// DNSSEC enables the DO bit on queries so responses report upstream
// validation status.
func (b *Builder) DNSSEC() *Builder {
	b.dnssec = true
	return b
}

// Retries sets the number of retries for failed DNS queries.
func (b *Builder) Retries(n int) *Builder {
	b.retries = n
	return b
}

// Logger sets the logger for debug-level analysis progress events.
func (b *Builder) Logger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Timeout bounds a whole analysis run. Default is DefaultTimeout.
func (b *Builder) Timeout(d time.Duration) *Builder {
	b.timeout = d
	return b
}

// MaxLookups overrides the DNS lookup budget. Default is spf.DNSLookupsMax.
func (b *Builder) MaxLookups(n int) *Builder {
	b.maxLookups = n
	return b
}

// Build validates the configuration and creates the Analyzer.
func (b *Builder) Build() (*Analyzer, error) {
	resolver := b.resolver
	if resolver == nil {
		resolver = dns.NewResolver(dns.ResolverConfig{
			Nameservers: b.nameservers,
			DNSSEC:      b.dnssec,
			Retries:     b.retries,
		})
	} else if len(b.nameservers) > 0 {
		return nil, ErrConflictingResolver
	}

	maxLookups := b.maxLookups
	if maxLookups <= 0 {
		maxLookups = spf.DNSLookupsMax
	}

	return &Analyzer{
		resolver: resolver,
		timeout:  b.timeout,
		opts: &spf.Options{
			MaxLookups: maxLookups,
			Logger:     b.logger,
		},
	}, nil
}

// Analyze fetches and audits the SPF policy of a domain.
func (a *Analyzer) Analyze(ctx context.Context, domain string) (*Audit, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()

	start := time.Now()
	report, err := spf.Analyze(ctx, a.resolver, domain, a.opts)
	if err != nil {
		return nil, err
	}
	return a.audit(start, report), nil
}

// AnalyzeRecord audits a record string as if it were published at domain,
// skipping the initial TXT fetch.
func (a *Analyzer) AnalyzeRecord(ctx context.Context, domain, record string) (*Audit, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()

	start := time.Now()
	report, err := spf.AnalyzeRecord(ctx, a.resolver, domain, record, a.opts)
	if err != nil {
		return nil, err
	}
	return a.audit(start, report), nil
}

func (a *Analyzer) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}

func (a *Analyzer) audit(start time.Time, report *spf.Report) *Audit {
	return &Audit{
		ID:        ulid.Make().String(),
		CheckedAt: start.UTC(),
		Duration:  time.Since(start),
		Report:    report,
	}
}
