package spf

// Hand-written MessagePack codecs implementing the msgp interfaces
// (Marshaler, Unmarshaler, Sizer) for the report types. Field names match
// the JSON encoding so both serializations stay interchangeable.

import (
	"github.com/tinylib/msgp/msgp"
)

var (
	_ msgp.Marshaler   = (*Report)(nil)
	_ msgp.Unmarshaler = (*Report)(nil)
	_ msgp.Sizer       = (*Report)(nil)
)

// MarshalMsg appends the issue to b in MessagePack format.
func (i *Issue) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.Require(b, i.Msgsize())
	o = msgp.AppendMapHeader(o, 3)
	o = msgp.AppendString(o, "severity")
	o = msgp.AppendString(o, string(i.Severity))
	o = msgp.AppendString(o, "message")
	o = msgp.AppendString(o, i.Message)
	o = msgp.AppendString(o, "recommendation")
	o = msgp.AppendString(o, i.Recommendation)
	return o, nil
}

// UnmarshalMsg decodes the issue from MessagePack bytes, returning the
// remainder.
func (i *Issue) UnmarshalMsg(b []byte) ([]byte, error) {
	fields, o, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return o, msgp.WrapError(err)
	}
	for n := uint32(0); n < fields; n++ {
		var key []byte
		key, o, err = msgp.ReadMapKeyZC(o)
		if err != nil {
			return o, msgp.WrapError(err)
		}
		switch string(key) {
		case "severity":
			var s string
			s, o, err = msgp.ReadStringBytes(o)
			i.Severity = Severity(s)
		case "message":
			i.Message, o, err = msgp.ReadStringBytes(o)
		case "recommendation":
			i.Recommendation, o, err = msgp.ReadStringBytes(o)
		default:
			o, err = msgp.Skip(o)
		}
		if err != nil {
			return o, msgp.WrapError(err, string(key))
		}
	}
	return o, nil
}

// Msgsize returns an upper bound on the encoded size of the issue.
func (i *Issue) Msgsize() int {
	return msgp.MapHeaderSize +
		6*msgp.StringPrefixSize + len("recommendation")*3 +
		len(i.Severity) + len(i.Message) + len(i.Recommendation)
}

// MarshalMsg appends the mechanism to b in MessagePack format.
func (m *Mechanism) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.Require(b, m.Msgsize())
	o = msgp.AppendMapHeader(o, 5)
	o = msgp.AppendString(o, "type")
	o = msgp.AppendString(o, string(m.Type))
	o = msgp.AppendString(o, "value")
	o = msgp.AppendString(o, m.Value)
	o = msgp.AppendString(o, "qualifier")
	o = msgp.AppendString(o, string(m.Qualifier))
	o = msgp.AppendString(o, "qualifierName")
	o = msgp.AppendString(o, m.QualifierName)
	o = msgp.AppendString(o, "original")
	o = msgp.AppendString(o, m.Original)
	return o, nil
}

// UnmarshalMsg decodes the mechanism from MessagePack bytes, returning the
// remainder.
func (m *Mechanism) UnmarshalMsg(b []byte) ([]byte, error) {
	fields, o, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return o, msgp.WrapError(err)
	}
	for n := uint32(0); n < fields; n++ {
		var key []byte
		key, o, err = msgp.ReadMapKeyZC(o)
		if err != nil {
			return o, msgp.WrapError(err)
		}
		switch string(key) {
		case "type":
			var s string
			s, o, err = msgp.ReadStringBytes(o)
			m.Type = MechanismType(s)
		case "value":
			m.Value, o, err = msgp.ReadStringBytes(o)
		case "qualifier":
			var s string
			s, o, err = msgp.ReadStringBytes(o)
			m.Qualifier = Qualifier(s)
		case "qualifierName":
			m.QualifierName, o, err = msgp.ReadStringBytes(o)
		case "original":
			m.Original, o, err = msgp.ReadStringBytes(o)
		default:
			o, err = msgp.Skip(o)
		}
		if err != nil {
			return o, msgp.WrapError(err, string(key))
		}
	}
	return o, nil
}

// Msgsize returns an upper bound on the encoded size of the mechanism.
func (m *Mechanism) Msgsize() int {
	return msgp.MapHeaderSize +
		10*msgp.StringPrefixSize + len("qualifierName")*5 +
		len(m.Type) + len(m.Value) + len(m.Qualifier) + len(m.QualifierName) + len(m.Original)
}

// MarshalMsg appends the allow-lists to b in MessagePack format.
func (a *AllowedIPs) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.Require(b, a.Msgsize())
	o = msgp.AppendMapHeader(o, 2)
	o = msgp.AppendString(o, "ipv4")
	o = msgp.AppendArrayHeader(o, uint32(len(a.IPv4)))
	for _, v := range a.IPv4 {
		o = msgp.AppendString(o, v)
	}
	o = msgp.AppendString(o, "ipv6")
	o = msgp.AppendArrayHeader(o, uint32(len(a.IPv6)))
	for _, v := range a.IPv6 {
		o = msgp.AppendString(o, v)
	}
	return o, nil
}

// UnmarshalMsg decodes the allow-lists from MessagePack bytes, returning
// the remainder.
func (a *AllowedIPs) UnmarshalMsg(b []byte) ([]byte, error) {
	fields, o, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return o, msgp.WrapError(err)
	}
	for n := uint32(0); n < fields; n++ {
		var key []byte
		key, o, err = msgp.ReadMapKeyZC(o)
		if err != nil {
			return o, msgp.WrapError(err)
		}
		switch string(key) {
		case "ipv4":
			a.IPv4, o, err = readStringSlice(o)
		case "ipv6":
			a.IPv6, o, err = readStringSlice(o)
		default:
			o, err = msgp.Skip(o)
		}
		if err != nil {
			return o, msgp.WrapError(err, string(key))
		}
	}
	return o, nil
}

// Msgsize returns an upper bound on the encoded size of the allow-lists.
func (a *AllowedIPs) Msgsize() int {
	size := msgp.MapHeaderSize + 2*msgp.StringPrefixSize + len("ipv4")*2 + 2*msgp.ArrayHeaderSize
	for _, v := range a.IPv4 {
		size += msgp.StringPrefixSize + len(v)
	}
	for _, v := range a.IPv6 {
		size += msgp.StringPrefixSize + len(v)
	}
	return size
}

// MarshalMsg appends the report to b in MessagePack format.
func (r *Report) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.Require(b, r.Msgsize())
	o = msgp.AppendMapHeader(o, 9)
	o = msgp.AppendString(o, "domain")
	o = msgp.AppendString(o, r.Domain)
	o = msgp.AppendString(o, "record")
	o = msgp.AppendString(o, r.Record)
	o = msgp.AppendString(o, "mechanisms")
	o = msgp.AppendArrayHeader(o, uint32(len(r.Mechanisms)))
	var err error
	for idx := range r.Mechanisms {
		if o, err = r.Mechanisms[idx].MarshalMsg(o); err != nil {
			return o, msgp.WrapError(err, "mechanisms")
		}
	}
	o = msgp.AppendString(o, "modifiers")
	o = msgp.AppendMapStrStr(o, r.Modifiers)
	o = msgp.AppendString(o, "allowedIPs")
	if o, err = r.AllowedIPs.MarshalMsg(o); err != nil {
		return o, msgp.WrapError(err, "allowedIPs")
	}
	o = msgp.AppendString(o, "dnsLookups")
	o = msgp.AppendInt(o, r.DNSLookups)
	o = msgp.AppendString(o, "issues")
	o = msgp.AppendArrayHeader(o, uint32(len(r.Issues)))
	for idx := range r.Issues {
		if o, err = r.Issues[idx].MarshalMsg(o); err != nil {
			return o, msgp.WrapError(err, "issues")
		}
	}
	o = msgp.AppendString(o, "warnings")
	o = msgp.AppendArrayHeader(o, uint32(len(r.Warnings)))
	for idx := range r.Warnings {
		if o, err = r.Warnings[idx].MarshalMsg(o); err != nil {
			return o, msgp.WrapError(err, "warnings")
		}
	}
	o = msgp.AppendString(o, "valid")
	o = msgp.AppendBool(o, r.Valid)
	return o, nil
}

// UnmarshalMsg decodes the report from MessagePack bytes, returning the
// remainder.
func (r *Report) UnmarshalMsg(b []byte) ([]byte, error) {
	fields, o, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return o, msgp.WrapError(err)
	}
	for n := uint32(0); n < fields; n++ {
		var key []byte
		key, o, err = msgp.ReadMapKeyZC(o)
		if err != nil {
			return o, msgp.WrapError(err)
		}
		switch string(key) {
		case "domain":
			r.Domain, o, err = msgp.ReadStringBytes(o)
		case "record":
			r.Record, o, err = msgp.ReadStringBytes(o)
		case "mechanisms":
			var sz uint32
			sz, o, err = msgp.ReadArrayHeaderBytes(o)
			if err != nil {
				break
			}
			r.Mechanisms = make([]Mechanism, sz)
			for idx := uint32(0); idx < sz; idx++ {
				if o, err = r.Mechanisms[idx].UnmarshalMsg(o); err != nil {
					break
				}
			}
		case "modifiers":
			r.Modifiers, o, err = readMapStrStr(o, r.Modifiers)
		case "allowedIPs":
			o, err = r.AllowedIPs.UnmarshalMsg(o)
		case "dnsLookups":
			r.DNSLookups, o, err = msgp.ReadIntBytes(o)
		case "issues":
			r.Issues, o, err = readIssueSlice(o)
		case "warnings":
			r.Warnings, o, err = readIssueSlice(o)
		case "valid":
			r.Valid, o, err = msgp.ReadBoolBytes(o)
		default:
			o, err = msgp.Skip(o)
		}
		if err != nil {
			return o, msgp.WrapError(err, string(key))
		}
	}
	return o, nil
}

// Msgsize returns an upper bound on the encoded size of the report.
func (r *Report) Msgsize() int {
	size := msgp.MapHeaderSize +
		9*msgp.StringPrefixSize + len("dnsLookups")*9 +
		msgp.StringPrefixSize + len(r.Domain) +
		msgp.StringPrefixSize + len(r.Record) +
		msgp.ArrayHeaderSize + msgp.MapHeaderSize +
		msgp.IntSize + msgp.BoolSize +
		2*msgp.ArrayHeaderSize +
		r.AllowedIPs.Msgsize()
	for idx := range r.Mechanisms {
		size += r.Mechanisms[idx].Msgsize()
	}
	for k, v := range r.Modifiers {
		size += 2*msgp.StringPrefixSize + len(k) + len(v)
	}
	for idx := range r.Issues {
		size += r.Issues[idx].Msgsize()
	}
	for idx := range r.Warnings {
		size += r.Warnings[idx].Msgsize()
	}
	return size
}

func readStringSlice(b []byte) ([]string, []byte, error) {
	sz, o, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, o, err
	}
	out := make([]string, sz)
	for idx := uint32(0); idx < sz; idx++ {
		if out[idx], o, err = msgp.ReadStringBytes(o); err != nil {
			return nil, o, err
		}
	}
	return out, o, nil
}

func readMapStrStr(b []byte, old map[string]string) (map[string]string, []byte, error) {
	sz, o, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return old, o, err
	}
	if old != nil {
		for k := range old {
			delete(old, k)
		}
	} else {
		old = make(map[string]string, sz)
	}
	for idx := uint32(0); idx < sz; idx++ {
		var k, v string
		if k, o, err = msgp.ReadStringBytes(o); err != nil {
			return old, o, err
		}
		if v, o, err = msgp.ReadStringBytes(o); err != nil {
			return old, o, err
		}
		old[k] = v
	}
	return old, o, nil
}

func readIssueSlice(b []byte) ([]Issue, []byte, error) {
	sz, o, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, o, err
	}
	out := make([]Issue, sz)
	for idx := uint32(0); idx < sz; idx++ {
		if o, err = out[idx].UnmarshalMsg(o); err != nil {
			return nil, o, err
		}
	}
	return out, o, nil
}
