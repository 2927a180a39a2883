// Copyright (c) 2026 Alexander G.
// Author: Alexander G. (Samsonix)
// License: MIT
// Project: EyesOn SIM Management System

package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ValueKind tags the JSON kind a FieldValue was decoded from.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindInt
	KindFloat
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindFloat:
		return "number"
	default:
		return "null"
	}
}

// FieldValue is a tagged scalar: string, integer, float or null.
// Subscriber records are open maps of these, since the field set is server-defined.
type FieldValue struct {
	kind ValueKind
	s    string
	i    int64
	f    float64
}

func NullValue() FieldValue { return FieldValue{} }
func StringValue(s string) FieldValue { return FieldValue{kind: KindString, s: s} }
func IntValue(i int64) FieldValue { return FieldValue{kind: KindInt, i: i} }
func FloatValue(f float64) FieldValue { return FieldValue{kind: KindFloat, f: f} }
func (v FieldValue) Kind() ValueKind { return v.kind }
func (v FieldValue) IsNull() bool { return v.kind == KindNull }
func (v FieldValue) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Float returns the numeric value for both integer and float kinds.
func (v FieldValue) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// String renders the value the way the API would compare it in a search filter.
// Null renders as the empty string.
func (v FieldValue) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	default:
		return ""
	}
}

// Time interprets integer values as unix seconds (or milliseconds when large)
// and strings in the API's "2006-01-02 15:04:05" layout.
func (v FieldValue) Time() (time.Time, bool) {
	switch v.kind {
	case KindInt:
		if v.i > 1e12 {
			return time.UnixMilli(v.i), true
		}
		return time.Unix(v.i, 0), true
	case KindString:
		for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
			if t, err := time.Parse(layout, v.s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.s)
	case KindInt:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil, fmt.Errorf("unsupported float field value %v", v.f)
		}
		out := strconv.FormatFloat(v.f, 'f', -1, 64)
		if !strings.ContainsAny(out, ".e") {
			// keep the float kind across a round trip
			out += ".0"
		}
		return []byte(out), nil
	default:
		return []byte("null"), nil
	}
}

func (v *FieldValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = NullValue()
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = StringValue(strconv.FormatBool(b))
	case '{', '[':
		return fmt.Errorf("unsupported field value %s", string(data))
	default:
		num := json.Number(data)
		if !bytes.ContainsAny(data, ".eE") {
			if i, err := num.Int64(); err == nil {
				*v = IntValue(i)
				return nil
			}
		}
		f, err := num.Float64()
		if err != nil {
			return fmt.Errorf("invalid numeric field value %q: %w", string(data), err)
		}
		*v = FloatValue(f)
	}
	return nil
}

// Record is one subscriber row keyed by field name.
type Record map[string]FieldValue

// Keys returns the record's field names, sorted.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r Record) Get(field string) string {
	return r[field].String()
}

func (r Record) CLI() string { return r.Get(FieldCLI) }

func (r Record) Status() SimStatus { return SimStatus(r.Get(FieldSimStatus)) }
