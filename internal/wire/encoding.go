package wire

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Message is implemented by every request and response type.
type Message interface {
	MarshalWire() ([]byte, error)
	UnmarshalWire(b []byte) error
}

// encoder appends proto3 fields. Scalars equal to their zero value are
// omitted, as proto3 does.
type encoder struct {
	b   []byte
	err error
}

func (e *encoder) string(num protowire.Number, v string) {
	if v == "" {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendString(e.b, v)
}

func (e *encoder) bytes(num protowire.Number, v []byte) {
	if len(v) == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, v)
}

// repeatedBytes keeps empty elements so indexes line up on both sides.
func (e *encoder) repeatedBytes(num protowire.Number, vs [][]byte) {
	for _, v := range vs {
		e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
		e.b = protowire.AppendBytes(e.b, v)
	}
}

func (e *encoder) uint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.VarintType)
	e.b = protowire.AppendVarint(e.b, v)
}

func (e *encoder) bool(num protowire.Number, v bool) {
	if v {
		e.uint(num, 1)
	}
}

func (e *encoder) message(num protowire.Number, m Message) {
	if e.err != nil {
		return
	}
	data, err := m.MarshalWire()
	if err != nil {
		e.err = err
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, data)
}

func (e *encoder) time(num protowire.Number, t time.Time) {
	if t.IsZero() || e.err != nil {
		return
	}
	data, err := proto.Marshal(timestamppb.New(t))
	if err != nil {
		e.err = fmt.Errorf("marshal timestamp: %w", err)
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, data)
}

// stringMap writes map<string, string> as repeated entry messages, sorted
// by key so output is deterministic.
func (e *encoder) stringMap(num protowire.Number, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var entry encoder
		entry.string(1, k)
		entry.string(2, m[k])
		e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
		e.b = protowire.AppendBytes(e.b, entry.b)
	}
}

func (e *encoder) result() ([]byte, error) {
	return e.b, e.err
}

// field is one decoded field. For BytesType, data aliases the input and
// must be copied before it is retained.
type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	data   []byte
}

func (f field) expect(typ protowire.Type) error {
	if f.typ != typ {
		return fmt.Errorf("wire: field %d has type %d, want %d", f.num, f.typ, typ)
	}
	return nil
}

func (f field) str() (string, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return "", err
	}
	return string(f.data), nil
}

func (f field) bytes() ([]byte, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return nil, err
	}
	return bytes.Clone(f.data), nil
}

func (f field) uint() (uint64, error) {
	if err := f.expect(protowire.VarintType); err != nil {
		return 0, err
	}
	return f.varint, nil
}

func (f field) time() (time.Time, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return time.Time{}, err
	}
	var ts timestamppb.Timestamp
	if err := proto.Unmarshal(f.data, &ts); err != nil {
		return time.Time{}, fmt.Errorf("wire: timestamp: %w", err)
	}
	return ts.AsTime(), nil
}

func (f field) message(m Message) error {
	if err := f.expect(protowire.BytesType); err != nil {
		return err
	}
	return m.UnmarshalWire(f.data)
}

func (f field) mapEntry(m *map[string]string) error {
	if err := f.expect(protowire.BytesType); err != nil {
		return err
	}
	var k, v string
	err := walk(f.data, func(sub field) error {
		var err error
		switch sub.num {
		case 1:
			k, err = sub.str()
		case 2:
			v, err = sub.str()
		}
		return err
	})
	if err != nil {
		return err
	}
	if *m == nil {
		*m = make(map[string]string)
	}
	(*m)[k] = v
	return nil
}

// walk calls fn for every field in b. Unknown wire types are skipped.
func walk(b []byte, fn func(field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("wire: %w", protowire.ParseError(n))
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.data, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("wire: field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.VarintType && typ != protowire.BytesType {
			continue
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}
