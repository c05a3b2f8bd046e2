package criteria

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oncomatch/matchengine/internal/normalize"
	"github.com/oncomatch/matchengine/internal/store"
)

// birthDateCond translates an age restriction such as ">=18" or "<0.5" into
// a birth date comparison relative to today. The operator inverts: a lower
// bound on age is an upper bound on birth date.
func birthDateCond(expr string, today time.Time) (store.Cond, error) {
	txt := strings.TrimLeft(expr, " \t")

	var op store.Op
	var rest string
	switch {
	case strings.HasPrefix(txt, ">="):
		op, rest = store.OpLTE, txt[2:]
	case strings.HasPrefix(txt, "<="):
		op, rest = store.OpGTE, txt[2:]
	case strings.HasPrefix(txt, ">"):
		op, rest = store.OpLT, txt[1:]
	case strings.HasPrefix(txt, "<"):
		op, rest = store.OpGT, txt[1:]
	default:
		return store.Cond{}, fmt.Errorf("age restriction %q: missing comparator", expr)
	}

	cutoff, err := subtractAge(rest, today)
	if err != nil {
		return store.Cond{}, fmt.Errorf("age restriction %q: %w", expr, err)
	}
	return store.CmpTime(normalize.FieldBirthDate, op, cutoff), nil
}

// subtractAge computes today minus an age given in years, where a fractional
// part encodes months over a power of ten (".5" is six months, ".25" three).
func subtractAge(age string, today time.Time) (time.Time, error) {
	if !strings.Contains(age, ".") {
		years, err := strconv.Atoi(age)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse years: %w", err)
		}
		return today.AddDate(-years, 0, 0), nil
	}

	parts := strings.SplitN(age, ".", 2)
	years := 0
	if parts[0] != "" {
		var err error
		years, err = strconv.Atoi(parts[0])
		if err != nil {
			return time.Time{}, fmt.Errorf("parse years: %w", err)
		}
	}
	frac := parts[1]
	fracInt, err := strconv.Atoi(frac)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse months fraction: %w", err)
	}
	pow := 1
	for range frac {
		pow *= 10
	}
	months := fracInt * 12 / pow

	// Subtracting the months may cross a year boundary, in which case one
	// extra year comes off.
	month := int(today.Month()) - months
	if month <= 0 {
		month = 12 - (months - int(today.Month()))
		years++
	}
	if month == 0 {
		month = 1
	}
	return time.Date(today.Year()-years, time.Month(month), today.Day(),
		today.Hour(), today.Minute(), today.Second(), today.Nanosecond(), today.Location()), nil
}
