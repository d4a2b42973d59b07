// Package dns provides the DNS lookup capability consumed by the SPF analyzer.
//
// The Resolver interface abstracts the queries the analyzer needs: TXT, A/AAAA
// and MX. Two production implementations are provided: DNSResolver, backed by
// github.com/miekg/dns with configurable nameservers and optional DNSSEC
// reporting, and StdResolver, backed by the standard library net.Resolver.
// MockResolver is a deterministic map-backed implementation for tests.
package dns

import (
	"context"
	"errors"
	"net"
)

// DNS lookup errors. Every failed lookup maps to one of these so callers can
// classify the cause with errors.Is.
var (
	// ErrNotFound means the queried name does not exist (NXDOMAIN).
	ErrNotFound = errors.New("dns: domain not found")

	// ErrNoData means the name exists but has no records of the requested type.
	ErrNoData = errors.New("dns: no records of requested type")

	// ErrRefused means the nameserver refused the query.
	ErrRefused = errors.New("dns: query refused")

	// ErrTimeout means the query did not complete in time.
	ErrTimeout = errors.New("dns: query timeout")

	// ErrServFail covers server failures and other generic lookup errors.
	ErrServFail = errors.New("dns: server failure")
)

// IsNotFound reports whether the error indicates a nonexistent domain.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsNoData reports whether the error indicates a domain without records of
// the requested type.
func IsNoData(err error) bool {
	return errors.Is(err, ErrNoData)
}

// IsTimeout reports whether the error indicates a DNS timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsTemporary reports whether the error is likely transient and the lookup
// may succeed on retry.
func IsTemporary(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrServFail) || errors.Is(err, ErrRefused)
}

// Result contains the records returned by a DNS lookup.
type Result[T any] struct {
	// Records are the records in DNS response order.
	Records []T

	// Authentic indicates the response carried the DNSSEC AD bit.
	// This is reported as-is; validation is never enforced.
	Authentic bool
}

// Resolver is the DNS capability required by the SPF analyzer.
type Resolver interface {
	// LookupTXT retrieves TXT records for the given domain.
	LookupTXT(ctx context.Context, name string) (Result[string], error)

	// LookupIP retrieves A and AAAA records for the given domain.
	LookupIP(ctx context.Context, name string) (Result[net.IP], error)

	// LookupMX retrieves MX records for the given domain.
	LookupMX(ctx context.Context, name string) (Result[*net.MX], error)
}
