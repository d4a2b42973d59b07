// Package spf implements an SPF (Sender Policy Framework, RFC 7208) record
// analyzer.
//
// The analyzer fetches a domain's SPF TXT record, parses its mechanisms and
// modifiers, recursively resolves include and redirect references as well as
// a and mx lookups, accumulates the set of authorized sender addresses, and
// reports structural and security issues. It is a record auditor, not a
// mail-time authenticator: it never matches a connecting IP against the
// policy, it only inspects the policy itself.
//
// Evaluation is bounded by the RFC 7208 limit of 10 DNS lookups and guarded
// against circular include/redirect chains. Every RFC-anticipated anomaly
// (missing record, syntax problems, DNS failures, exhausted lookup budget,
// cycles) is recorded as an issue or warning on the report instead of being
// returned as an error; the caller always receives a complete Report.
//
// Basic usage:
//
//	resolver := dns.NewResolver(dns.ResolverConfig{
//	    Nameservers: []string{"8.8.8.8:53"},
//	})
//
//	report, err := spf.Analyze(ctx, resolver, "example.com", nil)
//	if err != nil {
//	    // Only context cancellation or a nil resolver end up here.
//	}
//
//	if !report.Valid {
//	    for _, issue := range report.Issues {
//	        fmt.Println(issue.Severity, issue.Message)
//	    }
//	}
//
// A record that has not been published yet can be audited with
// AnalyzeRecord, which runs the same pipeline on a provided record string.
//
// References:
//   - RFC 7208: Sender Policy Framework (SPF)
package spf
