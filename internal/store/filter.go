package store

import (
	"regexp"
	"time"
)

// Op enumerates the predicate operators both adapters understand.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpIn
	OpNin
	OpRegex
	OpLT
	OpLTE
	OpGT
	OpGTE
	OpExists
)

// Kind identifies which value slot of a Cond is populated.
type Kind int

const (
	KindString Kind = iota
	KindStrings
	KindInt
	KindBool
	KindTime
	KindRegex
)

// Cond is a single-field predicate. Adapters render it into their native
// query form; the engine never sees store-specific query syntax.
type Cond struct {
	Field string
	Op    Op
	Kind  Kind

	Str   string
	Strs  []string
	Int   int64
	Bool  bool
	Time  time.Time
	Regex []*regexp.Regexp
}

// Eq matches records whose field equals value.
func Eq(field, value string) Cond {
	return Cond{Field: field, Op: OpEq, Kind: KindString, Str: value}
}

// Ne matches records whose field differs from value or is absent.
func Ne(field, value string) Cond {
	return Cond{Field: field, Op: OpNe, Kind: KindString, Str: value}
}

// In matches records whose field equals any of the values.
func In(field string, values []string) Cond {
	return Cond{Field: field, Op: OpIn, Kind: KindStrings, Strs: values}
}

// Nin matches records whose field equals none of the values or is absent.
func Nin(field string, values []string) Cond {
	return Cond{Field: field, Op: OpNin, Kind: KindStrings, Strs: values}
}

// EqInt matches records whose integer field equals v.
func EqInt(field string, v int64) Cond {
	return Cond{Field: field, Op: OpEq, Kind: KindInt, Int: v}
}

// EqBool matches records whose boolean field is present and equals v.
func EqBool(field string, v bool) Cond {
	return Cond{Field: field, Op: OpEq, Kind: KindBool, Bool: v}
}

// CmpTime compares a time-valued field with t; op must be one of
// OpLT, OpLTE, OpGT, OpGTE. Records without the field never match.
func CmpTime(field string, op Op, t time.Time) Cond {
	return Cond{Field: field, Op: op, Kind: KindTime, Time: t}
}

// Match matches records whose field matches at least one of the regexps.
func Match(field string, res ...*regexp.Regexp) Cond {
	return Cond{Field: field, Op: OpRegex, Kind: KindRegex, Regex: res}
}

// Exists matches records where the field presence equals want.
func Exists(field string, want bool) Cond {
	return Cond{Field: field, Op: OpExists, Kind: KindBool, Bool: want}
}

// Filter is a conjunction of conditions over one collection.
type Filter struct {
	Conds []Cond

	// WildtypeDefault additionally requires wildtype = false or absent.
	// Genomic criteria receive this implicit clause whenever the trial
	// does not constrain wildtype explicitly.
	WildtypeDefault bool
}

// Empty reports whether the filter constrains nothing.
func (f Filter) Empty() bool {
	return len(f.Conds) == 0 && !f.WildtypeDefault
}

// Cond returns the first condition on the given field, if any.
func (f Filter) Cond(field string) (Cond, bool) {
	for _, c := range f.Conds {
		if c.Field == field {
			return c, true
		}
	}
	return Cond{}, false
}
