// Package jsonvalue provides an order-preserving representation of arbitrary
// JSON documents.
//
// Remote resources return payloads whose schema is unknown ahead of time, and
// presentation depends on the order in which an object's keys appear on the
// wire. Decoding into map[string]any loses that order, so [Value] models a JSON
// document as a small tagged union with structural probe helpers such as
// [Value.Field], [Value.Has] and [Value.Path].
//
// A zero Value is JSON null. Values are immutable after construction; slices
// returned by [Value.Elements] and [Value.Members] must not be modified.
package jsonvalue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Kind identifies which variant a [Value] holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the JSON name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Member is a single key/value pair of a JSON object.
type Member struct {
	Key   string
	Value Value
}

// Value is a JSON value: null, boolean, number, string, array or object.
//
// Numbers keep their literal text so that large integers and decimal
// formatting survive a round trip. Object members keep document order; when a
// key repeats, the later value replaces the earlier one at its first position.
type Value struct {
	kind    Kind
	boolean bool
	text    string
	elems   []Value
	members []Member
}

// NewBool returns a boolean value.
func NewBool(b bool) Value {
	return Value{kind: KindBool, boolean: b}
}

// NewString returns a string value.
func NewString(s string) Value {
	return Value{kind: KindString, text: s}
}

// NewNumber returns a number value from its JSON literal.
func NewNumber(n json.Number) Value {
	return Value{kind: KindNumber, text: string(n)}
}

// NewFloat returns a number value from a float64.
func NewFloat(f float64) Value {
	return Value{kind: KindNumber, text: strconv.FormatFloat(f, 'f', -1, 64)}
}

// NewArray returns an array holding elems in order.
func NewArray(elems ...Value) Value {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Value{kind: KindArray, elems: cp}
}

// NewObject returns an object holding members in order. Repeated keys keep
// the first position and the last value.
func NewObject(members ...Member) Value {
	b := newObjectBuilder(len(members))
	for _, m := range members {
		b.set(m.Key, m.Value)
	}
	return b.value()
}

// Parse decodes a single JSON document. Trailing non-whitespace data is an
// error.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decode(dec)
	if err != nil {
		return Value{}, err
	}

	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			return Value{}, errors.New("jsonvalue: unexpected data after top-level value")
		}
		return Value{}, err
	}
	return v, nil
}

func decode(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Value{}, err
	}

	switch t := tok.(type) {
	case nil:
		return Value{}, nil
	case bool:
		return NewBool(t), nil
	case json.Number:
		return NewNumber(t), nil
	case string:
		return NewString(t), nil
	case json.Delim:
		switch t {
		case '[':
			return decodeArray(dec)
		case '{':
			return decodeObject(dec)
		}
	}
	return Value{}, fmt.Errorf("jsonvalue: unexpected token %v", tok)
}

func decodeArray(dec *json.Decoder) (Value, error) {
	arr := Value{kind: KindArray, elems: []Value{}}
	for dec.More() {
		v, err := decode(dec)
		if err != nil {
			return Value{}, err
		}
		arr.elems = append(arr.elems, v)
	}
	// closing ']'
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return arr, nil
}

func decodeObject(dec *json.Decoder) (Value, error) {
	b := newObjectBuilder(0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("jsonvalue: object key must be a string, got %v", tok)
		}
		v, err := decode(dec)
		if err != nil {
			return Value{}, err
		}
		b.set(key, v)
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return b.value(), nil
}

// objectBuilder collects members in first-seen order. A repeated key keeps
// its first position and takes the last value. The index lives only while
// the object is being built.
type objectBuilder struct {
	members []Member
	index   map[string]int
}

func newObjectBuilder(size int) *objectBuilder {
	return &objectBuilder{
		members: make([]Member, 0, size),
		index:   make(map[string]int, size),
	}
}

func (b *objectBuilder) set(key string, val Value) {
	if i, ok := b.index[key]; ok {
		b.members[i].Value = val
		return
	}
	b.index[key] = len(b.members)
	b.members = append(b.members, Member{Key: key, Value: val})
}

func (b *objectBuilder) value() Value {
	return Value{kind: KindObject, members: b.members}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether v is JSON null.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) {
	return v.boolean, v.kind == KindBool
}

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.text, true
}

// AsFloat returns the number held by v as a float64.
func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.text, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Len returns the number of elements of an array or members of an object,
// and zero for every other kind.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.elems)
	case KindObject:
		return len(v.members)
	default:
		return 0
	}
}

// Elements returns the elements of an array, or nil for other kinds.
func (v Value) Elements() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.elems
}

// Members returns the members of an object in document order, or nil for
// other kinds.
func (v Value) Members() []Member {
	if v.kind != KindObject {
		return nil
	}
	return v.members
}

// Keys returns the keys of an object in document order.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, len(v.members))
	for i, m := range v.members {
		keys[i] = m.Key
	}
	return keys
}

// Field returns the member named key when v is an object containing it.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Has reports whether v is an object with a member named key. When kinds are
// given, the member must also hold one of them.
func (v Value) Has(key string, kinds ...Kind) bool {
	field, ok := v.Field(key)
	if !ok {
		return false
	}
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if field.kind == k {
			return true
		}
	}
	return false
}

// Path walks nested objects by key, e.g. Path("formats", "thumbnail", "url").
func (v Value) Path(keys ...string) (Value, bool) {
	current := v
	for _, key := range keys {
		next, ok := current.Field(key)
		if !ok {
			return Value{}, false
		}
		current = next
	}
	return current, true
}

// Truthy applies the usual JSON truthiness rules: null, false, 0 and "" are
// falsy; arrays and objects are always truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.boolean
	case KindNumber:
		f, ok := v.AsFloat()
		return ok && f != 0
	case KindString:
		return v.text != ""
	case KindArray, KindObject:
		return true
	default:
		return false
	}
}

// String returns a display form: strings unquoted, numbers as their literal,
// everything else as compact JSON.
func (v Value) String() string {
	switch v.kind {
	case KindString, KindNumber:
		return v.text
	default:
		return string(v.appendJSON(nil))
	}
}

// MarshalJSON encodes v, preserving object member order.
func (v Value) MarshalJSON() ([]byte, error) {
	return v.appendJSON(nil), nil
}

// UnmarshalJSON decodes data into v, preserving object member order.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) appendJSON(buf []byte) []byte {
	switch v.kind {
	case KindBool:
		return strconv.AppendBool(buf, v.boolean)
	case KindNumber:
		return append(buf, v.text...)
	case KindString:
		return appendQuoted(buf, v.text)
	case KindArray:
		buf = append(buf, '[')
		for i, e := range v.elems {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = e.appendJSON(buf)
		}
		return append(buf, ']')
	case KindObject:
		buf = append(buf, '{')
		for i, m := range v.members {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendQuoted(buf, m.Key)
			buf = append(buf, ':')
			buf = m.Value.appendJSON(buf)
		}
		return append(buf, '}')
	default:
		return append(buf, "null"...)
	}
}

func appendQuoted(buf []byte, s string) []byte {
	// json.Marshal on a string cannot fail
	quoted, _ := json.Marshal(s)
	return append(buf, quoted...)
}

// Equal reports whether a and b hold the same JSON value. Object members must
// appear in the same order; numbers compare by literal text.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.boolean == b.boolean
	case KindNumber, KindString:
		return a.text == b.text
	case KindArray:
		if len(a.elems) != len(b.elems) {
			return false
		}
		for i := range a.elems {
			if !Equal(a.elems[i], b.elems[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.members) != len(b.members) {
			return false
		}
		for i := range a.members {
			if a.members[i].Key != b.members[i].Key || !Equal(a.members[i].Value, b.members[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}
