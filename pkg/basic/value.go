package basic

import (
	"math"
	"strconv"
	"strings"
)

// ValueKind tags the variants of a Value.
type ValueKind int

const (
	KindInteger ValueKind = iota // 16-bit integer, suffix %
	KindLong                     // 32-bit integer, suffix &
	KindSingle                   // 32-bit float, suffix !
	KindDouble                   // 64-bit float, suffix # and default numeric
	KindString                   // suffix $
	KindArray
	KindRecord
)

func (k ValueKind) isNumeric() bool {
	return k == KindInteger || k == KindLong || k == KindSingle || k == KindDouble
}

// Value is the tagged variant the interpreter computes with. Numeric kinds
// share the Num field; the kind controls rounding and range on assignment,
// not storage.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
	Arr  *Array
	Rec  *Record
}

// NumberValue builds a double value.
func NumberValue(n float64) Value { return Value{Kind: KindDouble, Num: n} }

// IntegerValue builds a 16-bit integer value.
func IntegerValue(n int) Value { return Value{Kind: KindInteger, Num: float64(n)} }

// StringValue builds a string value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// BoolValue builds the dialect's truth values: -1 for true, 0 for false.
func BoolValue(b bool) Value {
	if b {
		return IntegerValue(-1)
	}
	return IntegerValue(0)
}

// IsNumeric reports whether the value carries a number.
func (v Value) IsNumeric() bool { return v.Kind.isNumeric() }

// IsTrue applies the dialect's truthiness: any nonzero number.
func (v Value) IsTrue() bool { return v.IsNumeric() && v.Num != 0 }

// Number returns the numeric content, faulting on strings.
func (v Value) Number() (float64, error) {
	if !v.IsNumeric() {
		return 0, NewBasicError(FaultType, ErrCodeTypeMismatch)
	}
	return v.Num, nil
}

// Text returns the string content, faulting on non-strings.
func (v Value) Text() (string, error) {
	if v.Kind != KindString {
		return "", NewBasicError(FaultType, ErrCodeTypeMismatch)
	}
	return v.Str, nil
}

// roundHalfEven rounds the way the dialect's CINT does: ties go to even.
func roundHalfEven(f float64) float64 {
	return math.RoundToEven(f)
}

// coerceKind converts a value to the target kind, rounding integers and
// range-checking. String/number crossings are a type mismatch.
func coerceKind(v Value, kind ValueKind) (Value, error) {
	switch kind {
	case KindString:
		if v.Kind != KindString {
			return Value{}, NewBasicError(FaultType, ErrCodeTypeMismatch)
		}
		return v, nil
	case KindInteger:
		n, err := v.Number()
		if err != nil {
			return Value{}, err
		}
		n = roundHalfEven(n)
		if n < math.MinInt16 || n > math.MaxInt16 {
			return Value{}, NewBasicError(FaultRuntime, ErrCodeOverflow)
		}
		return Value{Kind: KindInteger, Num: n}, nil
	case KindLong:
		n, err := v.Number()
		if err != nil {
			return Value{}, err
		}
		n = roundHalfEven(n)
		if n < math.MinInt32 || n > math.MaxInt32 {
			return Value{}, NewBasicError(FaultRuntime, ErrCodeOverflow)
		}
		return Value{Kind: KindLong, Num: n}, nil
	case KindSingle:
		n, err := v.Number()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindSingle, Num: float64(float32(n))}, nil
	case KindDouble:
		n, err := v.Number()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindDouble, Num: n}, nil
	}
	return v, nil
}

// kindForName derives the value kind a canonical variable name stores,
// from its folded type suffix.
func kindForName(name string) ValueKind {
	if name == "" {
		return KindDouble
	}
	switch name[len(name)-1] {
	case '$':
		return KindString
	case '%':
		return KindInteger
	case '&':
		return KindLong
	case '!':
		return KindSingle
	case '#':
		return KindDouble
	}
	return KindDouble
}

// zeroValueForName is the total-lookup default: empty string for $ names,
// numeric zero for everything else.
func zeroValueForName(name string) Value {
	kind := kindForName(name)
	if kind == KindString {
		return StringValue("")
	}
	return Value{Kind: kind, Num: 0}
}

// Format renders a value the way PRINT does: numbers get a leading space
// when non-negative and drop a trailing ".0".
func (v Value) Format() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindArray:
		return "<array>"
	case KindRecord:
		return "<record>"
	}
	var s string
	if v.Num == math.Trunc(v.Num) && math.Abs(v.Num) < 1e15 {
		s = strconv.FormatFloat(v.Num, 'f', -1, 64)
	} else {
		s = strconv.FormatFloat(v.Num, 'g', -1, 64)
		s = strings.ToUpper(s)
	}
	if v.Num >= 0 {
		return " " + s
	}
	return s
}

// Array is an N-dimensional array with per-dimension lower bounds and a
// flat element store in row-major order.
type Array struct {
	ElemKind ValueKind
	RecType  string // record type name when ElemKind == KindRecord
	Lower    []int
	Upper    []int
	Elems    []Value
}

// NewArray allocates an array with all elements at their zero value.
func NewArray(elemKind ValueKind, recType string, lower, upper []int) (*Array, error) {
	size := 1
	for i := range lower {
		if upper[i] < lower[i] {
			return nil, NewBasicError(FaultRuntime, ErrCodeSubscript)
		}
		size *= upper[i] - lower[i] + 1
	}
	a := &Array{ElemKind: elemKind, RecType: recType, Lower: lower, Upper: upper, Elems: make([]Value, size)}
	for i := range a.Elems {
		a.Elems[i] = a.zeroElem()
	}
	return a, nil
}

func (a *Array) zeroElem() Value {
	switch a.ElemKind {
	case KindString:
		return StringValue("")
	case KindRecord:
		return Value{Kind: KindRecord, Rec: &Record{TypeName: a.RecType, Fields: map[string]Value{}}}
	default:
		return Value{Kind: a.ElemKind, Num: 0}
	}
}

func (a *Array) offset(indices []int) (int, error) {
	if len(indices) != len(a.Lower) {
		return 0, NewBasicError(FaultType, ErrCodeSubscript)
	}
	off := 0
	for i, idx := range indices {
		if idx < a.Lower[i] || idx > a.Upper[i] {
			return 0, NewBasicError(FaultRuntime, ErrCodeSubscript)
		}
		off = off*(a.Upper[i]-a.Lower[i]+1) + (idx - a.Lower[i])
	}
	return off, nil
}

// Get returns the element at the given indices.
func (a *Array) Get(indices []int) (Value, error) {
	off, err := a.offset(indices)
	if err != nil {
		return Value{}, err
	}
	return a.Elems[off], nil
}

// Set stores the element at the given indices, coercing to the element kind.
func (a *Array) Set(indices []int, v Value) error {
	off, err := a.offset(indices)
	if err != nil {
		return err
	}
	if a.ElemKind == KindRecord {
		if v.Kind != KindRecord {
			return NewBasicError(FaultType, ErrCodeTypeMismatch)
		}
		a.Elems[off] = v
		return nil
	}
	cv, err := coerceKind(v, a.ElemKind)
	if err != nil {
		return err
	}
	a.Elems[off] = cv
	return nil
}

// RecordField describes one field of a user-declared record type.
type RecordField struct {
	Name string
	Kind ValueKind
}

// RecordType is a TYPE ... END TYPE declaration.
type RecordType struct {
	Name   string
	Fields []RecordField
}

func (t *RecordType) field(name string) (RecordField, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return RecordField{}, false
}

// Record is an instance of a record type. Fields are stored sparsely;
// a missing field reads as its zero value.
type Record struct {
	TypeName string
	Fields   map[string]Value
}

// GetField reads a record field by canonical name against its declared type.
func (r *Record) GetField(types map[string]*RecordType, name string) (Value, error) {
	rt := types[r.TypeName]
	if rt == nil {
		return Value{}, NewBasicError(FaultType, ErrCodeTypeMismatch)
	}
	f, ok := rt.field(name)
	if !ok {
		return Value{}, NewBasicErrorf(FaultType, ErrCodeTypeMismatch, "no field %s in TYPE %s", name, r.TypeName)
	}
	if v, ok := r.Fields[name]; ok {
		return v, nil
	}
	if f.Kind == KindString {
		return StringValue(""), nil
	}
	return Value{Kind: f.Kind, Num: 0}, nil
}

// SetField writes a record field, coercing to the declared field kind.
func (r *Record) SetField(types map[string]*RecordType, name string, v Value) error {
	rt := types[r.TypeName]
	if rt == nil {
		return NewBasicError(FaultType, ErrCodeTypeMismatch)
	}
	f, ok := rt.field(name)
	if !ok {
		return NewBasicErrorf(FaultType, ErrCodeTypeMismatch, "no field %s in TYPE %s", name, r.TypeName)
	}
	cv, err := coerceKind(v, f.Kind)
	if err != nil {
		return err
	}
	if r.Fields == nil {
		r.Fields = map[string]Value{}
	}
	r.Fields[name] = cv
	return nil
}
