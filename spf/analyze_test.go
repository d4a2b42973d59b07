package spf

import (
	"context"
	"errors"
	"fmt"
	"net"
	"reflect"
	"strings"
	"testing"

	"github.com/synqronlabs/spfaudit/dns"
)

func countSeverity(findings []Issue, severity Severity) int {
	n := 0
	for _, f := range findings {
		if f.Severity == severity {
			n++
		}
	}
	return n
}

func findMessage(findings []Issue, substr string) *Issue {
	for i, f := range findings {
		if strings.Contains(f.Message, substr) {
			return &findings[i]
		}
	}
	return nil
}

func TestAnalyzeDashAll(t *testing.T) {
	resolver := dns.MockResolver{
		TXT: map[string][]string{
			"example.com.": {"v=spf1 -all"},
		},
	}

	report, err := Analyze(context.Background(), resolver, "example.com", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(report.Mechanisms) != 1 {
		t.Fatalf("got %d mechanisms, want 1", len(report.Mechanisms))
	}
	m := report.Mechanisms[0]
	if m.Type != TypeAll || m.Qualifier != QualifierFail || m.QualifierName != "Fail" {
		t.Errorf("unexpected mechanism: %+v", m)
	}
	if report.DNSLookups != 0 {
		t.Errorf("got %d lookups, want 0", report.DNSLookups)
	}
	if len(report.Issues) != 0 {
		t.Errorf("unexpected issues: %+v", report.Issues)
	}
	if !report.Valid {
		t.Error("report should be valid")
	}
}

func TestAnalyzePlusAll(t *testing.T) {
	resolver := dns.MockResolver{
		TXT: map[string][]string{
			"example.com.": {"v=spf1 +all"},
		},
	}

	report, err := Analyze(context.Background(), resolver, "example.com", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if report.Valid {
		t.Error("report should be invalid")
	}
	issue := findMessage(report.Issues, "+all allows all senders")
	if issue == nil {
		t.Fatalf("missing +all issue, got %+v", report.Issues)
	}
	if issue.Severity != SeverityCritical {
		t.Errorf("got severity %s, want critical", issue.Severity)
	}
}

func TestAnalyzeLookupBudget(t *testing.T) {
	// Eleven includes: the eleventh must be blocked before fetching.
	letters := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"}

	txt := map[string][]string{}
	record := "v=spf1"
	for _, l := range letters {
		record += fmt.Sprintf(" include:%s.com", l)
		txt[l+".com."] = []string{"v=spf1 -all"}
	}
	record += " -all"
	txt["example.com."] = []string{record}

	report, err := Analyze(context.Background(), dns.MockResolver{TXT: txt}, "example.com", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if report.DNSLookups != 10 {
		t.Errorf("got %d lookups, want 10", report.DNSLookups)
	}
	issue := findMessage(report.Issues, "include:k.com")
	if issue == nil {
		t.Fatalf("missing blocked-include issue, got %+v", report.Issues)
	}
	if issue.Severity != SeverityHigh {
		t.Errorf("got severity %s, want high", issue.Severity)
	}
	// At the edge of the budget: a high warning, not a critical issue.
	if countSeverity(report.Issues, SeverityCritical) != 0 {
		t.Errorf("unexpected critical issues: %+v", report.Issues)
	}
	if findMessage(report.Warnings, "exactly 10 DNS lookups") == nil {
		t.Errorf("missing budget-edge warning, got %+v", report.Warnings)
	}
	if !report.Valid {
		t.Error("report should still be valid")
	}
}

func TestAnalyzeCircularInclude(t *testing.T) {
	resolver := dns.MockResolver{
		TXT: map[string][]string{
			"x.com.": {"v=spf1 include:x.com -all"},
		},
	}

	report, err := Analyze(context.Background(), resolver, "x.com", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	warning := findMessage(report.Warnings, "circular reference")
	if warning == nil {
		t.Fatalf("missing circular-reference warning, got %+v", report.Warnings)
	}
	if warning.Severity != SeverityMedium {
		t.Errorf("got severity %s, want medium", warning.Severity)
	}
	// The rest of the record still evaluates: the -all must be recorded.
	if len(report.Mechanisms) != 2 || report.Mechanisms[1].Type != TypeAll {
		t.Errorf("unexpected mechanisms: %+v", report.Mechanisms)
	}
	// The cycle is caught before any DNS is spent on the include.
	if report.DNSLookups != 0 {
		t.Errorf("got %d lookups, want 0", report.DNSLookups)
	}
}

func TestAnalyzeTransitiveCycle(t *testing.T) {
	resolver := dns.MockResolver{
		TXT: map[string][]string{
			"a.com.": {"v=spf1 include:b.com -all"},
			"b.com.": {"v=spf1 include:a.com -all"},
		},
	}

	report, err := Analyze(context.Background(), resolver, "a.com", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if findMessage(report.Warnings, "circular reference") == nil {
		t.Fatalf("missing circular-reference warning, got %+v", report.Warnings)
	}
	// One real include lookup (a.com -> b.com); the back-reference is blocked.
	if report.DNSLookups != 1 {
		t.Errorf("got %d lookups, want 1", report.DNSLookups)
	}
}

func TestAnalyzeMalformedIP4(t *testing.T) {
	resolver := dns.MockResolver{
		TXT: map[string][]string{
			"example.com.": {"v=spf1 ip4:192.0.2.0/24 ip4:not-an-ip -all"},
		},
	}

	report, err := Analyze(context.Background(), resolver, "example.com", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if !reflect.DeepEqual(report.AllowedIPs.IPv4, []string{"192.0.2.0/24"}) {
		t.Errorf("unexpected IPv4 allow-list: %+v", report.AllowedIPs.IPv4)
	}
	warning := findMessage(report.Warnings, "malformed ip4")
	if warning == nil || warning.Severity != SeverityMedium {
		t.Fatalf("missing malformed-ip4 warning, got %+v", report.Warnings)
	}
	if report.DNSLookups != 0 {
		t.Errorf("got %d lookups, want 0", report.DNSLookups)
	}
}

func TestAnalyzeMultipleRecords(t *testing.T) {
	resolver := dns.MockResolver{
		TXT: map[string][]string{
			"example.com.": {"v=spf1 ip4:192.0.2.1 -all", "v=spf1 -all"},
		},
	}

	report, err := Analyze(context.Background(), resolver, "example.com", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	issue := findMessage(report.Issues, "multiple SPF records")
	if issue == nil || issue.Severity != SeverityCritical {
		t.Fatalf("missing multiple-records issue, got %+v", report.Issues)
	}
	if report.Valid {
		t.Error("report should be invalid")
	}
	// Analysis proceeds using the first record.
	if report.Record != "v=spf1 ip4:192.0.2.1 -all" {
		t.Errorf("unexpected record: %q", report.Record)
	}
	if !reflect.DeepEqual(report.AllowedIPs.IPv4, []string{"192.0.2.1"}) {
		t.Errorf("unexpected IPv4 allow-list: %+v", report.AllowedIPs.IPv4)
	}
}

func TestAnalyzeRecordMissingVersionTag(t *testing.T) {
	report, err := AnalyzeRecord(context.Background(), dns.MockResolver{}, "example.com", "spf1 -all", nil)
	if err != nil {
		t.Fatalf("AnalyzeRecord: %v", err)
	}

	if report.Valid {
		t.Error("report should be invalid")
	}
	if len(report.Mechanisms) != 0 {
		t.Errorf("unexpected mechanisms: %+v", report.Mechanisms)
	}
	if len(report.Issues) != 1 || report.Issues[0].Severity != SeverityCritical {
		t.Fatalf("want exactly one critical issue, got %+v", report.Issues)
	}
}

func TestAnalyzeNoRecord(t *testing.T) {
	resolver := dns.MockResolver{
		TXT: map[string][]string{
			"example.com.": {"some other txt"},
		},
	}

	report, err := Analyze(context.Background(), resolver, "example.com", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if report.Record != "" {
		t.Errorf("unexpected record: %q", report.Record)
	}
	warning := findMessage(report.Warnings, "no SPF record found")
	if warning == nil || warning.Severity != SeverityHigh {
		t.Fatalf("missing no-record warning, got %+v", report.Warnings)
	}
	// Absence of a policy is not a critical issue.
	if !report.Valid {
		t.Error("report should be valid")
	}
}

func TestAnalyzeDNSFailures(t *testing.T) {
	tests := []struct {
		name     string
		resolver dns.MockResolver
		substr   string
		severity Severity
	}{
		{
			name:     "nxdomain",
			resolver: dns.MockResolver{},
			substr:   "does not exist",
			severity: SeverityHigh,
		},
		{
			name: "no data",
			resolver: dns.MockResolver{
				TXT: map[string][]string{"example.com.": {}},
			},
			substr:   "no TXT records",
			severity: SeverityHigh,
		},
		{
			name: "timeout",
			resolver: dns.MockResolver{
				Timeout: []string{"txt example.com."},
			},
			substr:   "timed out",
			severity: SeverityMedium,
		},
		{
			name: "servfail",
			resolver: dns.MockResolver{
				Fail: []string{"txt example.com."},
			},
			substr:   "failed",
			severity: SeverityMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := Analyze(context.Background(), tt.resolver, "example.com", nil)
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			warning := findMessage(report.Warnings, tt.substr)
			if warning == nil {
				t.Fatalf("missing %q warning, got %+v", tt.substr, report.Warnings)
			}
			if warning.Severity != tt.severity {
				t.Errorf("got severity %s, want %s", warning.Severity, tt.severity)
			}
			if warning.Recommendation == "" {
				t.Error("warning should carry a recommendation")
			}
		})
	}
}

func TestAnalyzeAMechanism(t *testing.T) {
	resolver := dns.MockResolver{
		TXT: map[string][]string{
			"example.com.": {"v=spf1 a a:mail.example.com -all"},
		},
		A: map[string][]string{
			"example.com.":      {"192.0.2.1"},
			"mail.example.com.": {"192.0.2.2"},
		},
		AAAA: map[string][]string{
			"example.com.": {"2001:db8::1"},
		},
	}

	report, err := Analyze(context.Background(), resolver, "example.com", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if report.DNSLookups != 2 {
		t.Errorf("got %d lookups, want 2", report.DNSLookups)
	}
	if !reflect.DeepEqual(report.AllowedIPs.IPv4, []string{"192.0.2.1", "192.0.2.2"}) {
		t.Errorf("unexpected IPv4 allow-list: %+v", report.AllowedIPs.IPv4)
	}
	if !reflect.DeepEqual(report.AllowedIPs.IPv6, []string{"2001:db8::1"}) {
		t.Errorf("unexpected IPv6 allow-list: %+v", report.AllowedIPs.IPv6)
	}
}

func TestAnalyzeAMechanismFailureIsNonFatal(t *testing.T) {
	resolver := dns.MockResolver{
		TXT: map[string][]string{
			"example.com.": {"v=spf1 a:missing.example.com ip4:192.0.2.9 -all"},
		},
	}

	report, err := Analyze(context.Background(), resolver, "example.com", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if findMessage(report.Warnings, "a:missing.example.com") == nil {
		t.Fatalf("missing resolution warning, got %+v", report.Warnings)
	}
	// Evaluation continues past the failure.
	if !reflect.DeepEqual(report.AllowedIPs.IPv4, []string{"192.0.2.9"}) {
		t.Errorf("unexpected IPv4 allow-list: %+v", report.AllowedIPs.IPv4)
	}
	if !report.Valid {
		t.Error("report should be valid")
	}
}

func TestAnalyzeMXMechanism(t *testing.T) {
	resolver := dns.MockResolver{
		TXT: map[string][]string{
			"example.com.": {"v=spf1 mx -all"},
		},
		MX: map[string][]*net.MX{
			"example.com.": {
				{Host: "mx1.example.com.", Pref: 10},
				{Host: "mx2.example.com.", Pref: 20},
			},
		},
		A: map[string][]string{
			"mx1.example.com.": {"192.0.2.10"},
			"mx2.example.com.": {"192.0.2.20"},
		},
	}

	report, err := Analyze(context.Background(), resolver, "example.com", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	// One lookup for the MX RRset, one per exchange host.
	if report.DNSLookups != 3 {
		t.Errorf("got %d lookups, want 3", report.DNSLookups)
	}
	if !reflect.DeepEqual(report.AllowedIPs.IPv4, []string{"192.0.2.10", "192.0.2.20"}) {
		t.Errorf("unexpected IPv4 allow-list: %+v", report.AllowedIPs.IPv4)
	}
}

func TestAnalyzeRedirect(t *testing.T) {
	resolver := dns.MockResolver{
		TXT: map[string][]string{
			"example.com.":      {"v=spf1 redirect=_spf.example.com"},
			"_spf.example.com.": {"v=spf1 ip4:192.0.2.0/24 -all"},
		},
	}

	report, err := Analyze(context.Background(), resolver, "example.com", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if report.Modifiers["redirect"] != "_spf.example.com" {
		t.Errorf("unexpected modifiers: %+v", report.Modifiers)
	}
	if report.DNSLookups != 1 {
		t.Errorf("got %d lookups, want 1", report.DNSLookups)
	}
	if !reflect.DeepEqual(report.AllowedIPs.IPv4, []string{"192.0.2.0/24"}) {
		t.Errorf("unexpected IPv4 allow-list: %+v", report.AllowedIPs.IPv4)
	}
	// The redirect target's all mechanism satisfies the terminal check.
	if findMessage(report.Warnings, "no all mechanism") != nil {
		t.Errorf("unexpected terminal warning: %+v", report.Warnings)
	}
}

func TestAnalyzePTRDeprecated(t *testing.T) {
	resolver := dns.MockResolver{
		TXT: map[string][]string{
			"example.com.": {"v=spf1 ptr -all"},
		},
	}

	report, err := Analyze(context.Background(), resolver, "example.com", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	warning := findMessage(report.Warnings, "deprecated")
	if warning == nil || warning.Severity != SeverityMedium {
		t.Fatalf("missing ptr deprecation warning, got %+v", report.Warnings)
	}
	if report.DNSLookups != 1 {
		t.Errorf("got %d lookups, want 1", report.DNSLookups)
	}
}

func TestAnalyzeExists(t *testing.T) {
	resolver := dns.MockResolver{
		TXT: map[string][]string{
			"example.com.": {"v=spf1 exists:%{i}.spf.example.com -all"},
		},
	}

	report, err := Analyze(context.Background(), resolver, "example.com", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	note := findMessage(report.Warnings, "macro expansion is not evaluated")
	if note == nil || note.Severity != SeverityInfo {
		t.Fatalf("missing exists note, got %+v", report.Warnings)
	}
	if report.DNSLookups != 1 {
		t.Errorf("got %d lookups, want 1", report.DNSLookups)
	}
}

func TestAnalyzeUnknownTerms(t *testing.T) {
	resolver := dns.MockResolver{
		TXT: map[string][]string{
			"example.com.": {"v=spf1 foobar unknown=thing exp=explain.example.com -all"},
		},
	}

	report, err := Analyze(context.Background(), resolver, "example.com", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	// Unknown mechanisms are recorded and tagged, not dropped.
	mech := report.Mechanisms[0]
	if mech.Type != TypeUnknown || mech.Value != "foobar" {
		t.Errorf("unexpected mechanism: %+v", mech)
	}
	if findMessage(report.Warnings, `unknown mechanism "foobar"`) == nil {
		t.Errorf("missing unknown-mechanism warning, got %+v", report.Warnings)
	}
	if findMessage(report.Warnings, `unknown modifier "unknown"`) == nil {
		t.Errorf("missing unknown-modifier warning, got %+v", report.Warnings)
	}
	if report.Modifiers["exp"] != "explain.example.com" {
		t.Errorf("unexpected modifiers: %+v", report.Modifiers)
	}
	if !report.Valid {
		t.Error("report should be valid")
	}
}

func TestAnalyzeNeutralAll(t *testing.T) {
	resolver := dns.MockResolver{
		TXT: map[string][]string{
			"example.com.": {"v=spf1 ?all"},
		},
	}

	report, err := Analyze(context.Background(), resolver, "example.com", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	warning := findMessage(report.Warnings, "?all")
	if warning == nil || warning.Severity != SeverityMedium {
		t.Fatalf("missing ?all warning, got %+v", report.Warnings)
	}
	if !report.Valid {
		t.Error("report should be valid")
	}
}

func TestAnalyzeThirdPartyInclude(t *testing.T) {
	resolver := dns.MockResolver{
		TXT: map[string][]string{
			"example.com.":          {"v=spf1 include:spf.mailprovider.net -all"},
			"spf.mailprovider.net.": {"v=spf1 ip4:198.51.100.0/24 -all"},
		},
	}

	report, err := Analyze(context.Background(), resolver, "example.com", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	note := findMessage(report.Warnings, "third party")
	if note == nil || note.Severity != SeverityInfo {
		t.Fatalf("missing third-party note, got %+v", report.Warnings)
	}
	if !strings.Contains(note.Message, "mailprovider.net") {
		t.Errorf("note should name the third party: %q", note.Message)
	}
}

func TestAnalyzeValidatorFindings(t *testing.T) {
	t.Run("missing all", func(t *testing.T) {
		resolver := dns.MockResolver{
			TXT: map[string][]string{"example.com.": {"v=spf1 ip4:192.0.2.1"}},
		}
		report, err := Analyze(context.Background(), resolver, "example.com", nil)
		if err != nil {
			t.Fatalf("Analyze: %v", err)
		}
		warning := findMessage(report.Warnings, "no all mechanism")
		if warning == nil || warning.Severity != SeverityMedium {
			t.Fatalf("missing terminal warning, got %+v", report.Warnings)
		}
	})

	t.Run("record too long", func(t *testing.T) {
		record := "v=spf1"
		for i := 0; i < 32; i++ {
			record += fmt.Sprintf(" ip4:192.0.2.%d", i)
		}
		record += " -all"
		resolver := dns.MockResolver{
			TXT: map[string][]string{"example.com.": {record}},
		}
		report, err := Analyze(context.Background(), resolver, "example.com", nil)
		if err != nil {
			t.Fatalf("Analyze: %v", err)
		}
		warning := findMessage(report.Warnings, "TXT string limit")
		if warning == nil || warning.Severity != SeverityHigh {
			t.Fatalf("missing length warning, got %+v", report.Warnings)
		}
	})

	t.Run("include fan-out", func(t *testing.T) {
		txt := map[string][]string{}
		record := "v=spf1"
		for _, l := range []string{"a", "b", "c", "d", "e", "f"} {
			record += fmt.Sprintf(" include:%s.org", l)
			txt[l+".org."] = []string{"v=spf1 -all"}
		}
		record += " -all"
		txt["example.com."] = []string{record}

		report, err := Analyze(context.Background(), dns.MockResolver{TXT: txt}, "example.com", nil)
		if err != nil {
			t.Fatalf("Analyze: %v", err)
		}
		warning := findMessage(report.Warnings, "include mechanisms")
		if warning == nil || warning.Severity != SeverityMedium {
			t.Fatalf("missing fan-out warning, got %+v", report.Warnings)
		}
	})
}

func TestAnalyzeIdempotent(t *testing.T) {
	resolver := dns.MockResolver{
		TXT: map[string][]string{
			"example.com.":          {"v=spf1 a mx include:spf.mailprovider.net ip4:192.0.2.0/24 ~all"},
			"spf.mailprovider.net.": {"v=spf1 ip4:198.51.100.0/24 -all"},
		},
		A: map[string][]string{
			"example.com.": {"192.0.2.1"},
		},
		MX: map[string][]*net.MX{
			"example.com.": {{Host: "mx.example.com.", Pref: 10}},
		},
	}

	first, err := Analyze(context.Background(), resolver, "example.com", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	second, err := Analyze(context.Background(), resolver, "example.com", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("reports differ:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestAnalyzeNilResolver(t *testing.T) {
	_, err := Analyze(context.Background(), nil, "example.com", nil)
	if !errors.Is(err, ErrNoResolver) {
		t.Errorf("got %v, want ErrNoResolver", err)
	}
}

func TestAnalyzeCancelledContext(t *testing.T) {
	resolver := dns.MockResolver{
		TXT: map[string][]string{"example.com.": {"v=spf1 -all"}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Analyze(ctx, resolver, "example.com", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}
