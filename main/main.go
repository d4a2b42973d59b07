// Command spfaudit analyzes the SPF policy of a domain and prints the
// findings. Exit status is 1 when the policy has critical issues.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/synqronlabs/spfaudit"
	"github.com/synqronlabs/spfaudit/spf"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file")
		asJSON     = flag.Bool("json", false, "print the audit as JSON")
		timeout    = flag.Duration("timeout", spfaudit.DefaultTimeout, "overall analysis timeout")
		record     = flag.String("record", "", "audit this record instead of the published one")
		verbose    = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <domain>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	domain := flag.Arg(0)

	builder := spfaudit.New()
	if *configPath != "" {
		cfg, err := spfaudit.LoadConfig(*configPath)
		if err != nil {
			log.Fatal(err)
		}
		builder = spfaudit.NewFromConfig(cfg)
	}
	builder.Timeout(*timeout)
	if *verbose {
		builder.Logger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	analyzer, err := builder.Build()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	var audit *spfaudit.Audit
	if *record != "" {
		audit, err = analyzer.AnalyzeRecord(ctx, domain, *record)
	} else {
		audit, err = analyzer.Analyze(ctx, domain)
	}
	if err != nil {
		log.Fatal(err)
	}

	if *asJSON {
		printJSON(audit)
	} else {
		printText(audit)
	}

	if !audit.Valid {
		os.Exit(1)
	}
}

func printJSON(audit *spfaudit.Audit) {
	data, err := audit.Report.ToJSONIndent()
	if err != nil {
		log.Fatal(err)
	}
	os.Stdout.Write(append(data, '\n'))
}

func printText(audit *spfaudit.Audit) {
	fmt.Printf("audit %s for %s (%s)\n", audit.ID, audit.Domain, audit.Duration.Round(time.Millisecond))
	if audit.Record != "" {
		fmt.Printf("record: %s\n", audit.Record)
	}
	fmt.Printf("dns lookups: %d/%d\n", audit.DNSLookups, spf.DNSLookupsMax)

	for _, issue := range audit.Issues {
		fmt.Printf("[%s] %s\n", strings.ToUpper(string(issue.Severity)), issue.Message)
		if issue.Recommendation != "" {
			fmt.Printf("  fix: %s\n", issue.Recommendation)
		}
	}
	for _, warning := range audit.Warnings {
		fmt.Printf("[%s] %s\n", strings.ToUpper(string(warning.Severity)), warning.Message)
		if warning.Recommendation != "" {
			fmt.Printf("  fix: %s\n", warning.Recommendation)
		}
	}

	if len(audit.AllowedIPs.IPv4) > 0 {
		fmt.Printf("allowed ipv4: %s\n", strings.Join(audit.AllowedIPs.IPv4, ", "))
	}
	if len(audit.AllowedIPs.IPv6) > 0 {
		fmt.Printf("allowed ipv6: %s\n", strings.Join(audit.AllowedIPs.IPv6, ", "))
	}

	if audit.Valid {
		fmt.Println("result: valid")
	} else {
		fmt.Println("result: invalid")
	}
}
