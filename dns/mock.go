package dns

import (
	"context"
	"net"
	"slices"
)

// MockResolver is a Resolver used for testing.
// Set DNS records in the fields, which map FQDNs (with trailing dot) to values.
//
// A missing entry yields ErrNotFound. An entry that is present but empty
// yields ErrNoData, so tests can exercise both failure classes.
type MockResolver struct {
	TXT  map[string][]string
	A    map[string][]string
	AAAA map[string][]string
	MX   map[string][]*net.MX

	// Fail contains records that will return ErrServFail.
	// Format: "type name", e.g. "txt example.com." where type is lowercase.
	Fail []string

	// Timeout contains records that will return ErrTimeout. Same format as Fail.
	Timeout []string

	// AllAuthentic sets the Authentic field on all successful responses.
	AllAuthentic bool
}

var _ Resolver = MockResolver{}

// mockReq represents a mock DNS request.
type mockReq struct {
	Type string // E.g. "txt", "a", "aaaa", "mx"
	Name string // FQDN with trailing dot
}

func (mr mockReq) String() string {
	return mr.Type + " " + mr.Name
}

// ensureFQDN ensures the name ends with a dot.
func ensureFQDN(name string) string {
	if len(name) == 0 || name[len(name)-1] != '.' {
		return name + "."
	}
	return name
}

// fails returns the configured error for the request, if any.
func (r MockResolver) fails(ctx context.Context, mr mockReq) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if slices.Contains(r.Fail, mr.String()) {
		return ErrServFail
	}
	if slices.Contains(r.Timeout, mr.String()) {
		return ErrTimeout
	}
	return nil
}

// LookupTXT returns TXT records for the given domain.
func (r MockResolver) LookupTXT(ctx context.Context, name string) (Result[string], error) {
	fqdn := ensureFQDN(name)

	if err := r.fails(ctx, mockReq{"txt", fqdn}); err != nil {
		return Result[string]{}, err
	}

	records, ok := r.TXT[fqdn]
	if !ok {
		return Result[string]{}, ErrNotFound
	}
	if len(records) == 0 {
		return Result[string]{}, ErrNoData
	}

	return Result[string]{Records: records, Authentic: r.AllAuthentic}, nil
}

// LookupIP returns A and AAAA records for the given domain.
func (r MockResolver) LookupIP(ctx context.Context, name string) (Result[net.IP], error) {
	fqdn := ensureFQDN(name)

	if err := r.fails(ctx, mockReq{"a", fqdn}); err != nil {
		return Result[net.IP]{}, err
	}
	if err := r.fails(ctx, mockReq{"aaaa", fqdn}); err != nil {
		return Result[net.IP]{}, err
	}

	var ips []net.IP
	for _, ip := range r.A[fqdn] {
		ips = append(ips, net.ParseIP(ip))
	}
	for _, ip := range r.AAAA[fqdn] {
		ips = append(ips, net.ParseIP(ip))
	}

	_, haveA := r.A[fqdn]
	_, haveAAAA := r.AAAA[fqdn]
	if len(ips) == 0 {
		if haveA || haveAAAA {
			return Result[net.IP]{}, ErrNoData
		}
		return Result[net.IP]{}, ErrNotFound
	}

	return Result[net.IP]{Records: ips, Authentic: r.AllAuthentic}, nil
}

// LookupMX returns MX records for the given domain.
func (r MockResolver) LookupMX(ctx context.Context, name string) (Result[*net.MX], error) {
	fqdn := ensureFQDN(name)

	if err := r.fails(ctx, mockReq{"mx", fqdn}); err != nil {
		return Result[*net.MX]{}, err
	}

	records, ok := r.MX[fqdn]
	if !ok {
		return Result[*net.MX]{}, ErrNotFound
	}
	if len(records) == 0 {
		return Result[*net.MX]{}, ErrNoData
	}

	return Result[*net.MX]{Records: records, Authentic: r.AllAuthentic}, nil
}
