package intervals

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/forPelevin/promptcut/internal/types"
)

var (
	// ErrExtraction means the model reply holds no usable list of intervals.
	ErrExtraction = errors.New("no interval list in model response")
	// ErrNoValidIntervals means every interval fell outside the media.
	ErrNoValidIntervals = errors.New("no valid intervals within media bounds")
)

var (
	startKeys = []string{"start", "start_sec", "start_time"}
	endKeys   = []string{"end", "end_sec", "end_time"}

	nsPerSecond = decimal.NewFromInt(int64(time.Second))
	maxSeconds  = decimal.NewFromInt(math.MaxInt64 / int64(time.Second))
	sixty       = decimal.NewFromInt(60)
)

// Bounds on numbers read from a model reply. Comparing decimals rescales them
// to a common exponent, so an unbounded exponent costs unbounded time and memory.
const (
	maxNumberLen = 32
	minExponent  = -18
	maxExponent  = 12
)

var errNumberRange = errors.New("number out of range")

// parseDecimal parses s, refusing long mantissas and exponents outside
// [minExponent, maxExponent] before any arithmetic touches the value.
func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimPrefix(s, "+")
	if len(s) > maxNumberLen {
		return decimal.Decimal{}, errNumberRange
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if e := d.Exponent(); e < minExponent || e > maxExponent {
		return decimal.Decimal{}, errNumberRange
	}
	return d, nil
}

// Extract finds the first list of {start, end} objects in a free-form model
// reply and returns its valid entries in the order they were written.
//
// Entries with a negative start, an end not after the start, or a non-numeric
// field are dropped. A reply with no parsable list, or whose list has no valid
// entry, returns ErrExtraction.
func Extract(raw string) ([]types.Interval, error) {
	for i := 0; i < len(raw); i++ {
		if raw[i] != '[' || !opensObjectList(raw, i) {
			continue
		}
		end, ok := matchList(raw, i)
		if !ok {
			continue
		}
		lit, err := parseLiteral(raw[i : end+1])
		if err != nil {
			continue
		}

		out := make([]types.Interval, 0, len(lit.list))
		for _, el := range lit.list {
			if iv, ok := entryInterval(el); ok {
				out = append(out, iv)
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: %d entries, none with a valid start/end", ErrExtraction, len(lit.list))
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %d bytes scanned", ErrExtraction, len(raw))
}

func opensObjectList(s string, open int) bool {
	for j := open + 1; j < len(s); j++ {
		switch s[j] {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}

// matchList returns the index of the ']' closing the list opened at s[open].
// Brackets inside quoted strings are ignored.
func matchList(s string, open int) (int, bool) {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return i, c == ']'
			}
		}
	}
	return 0, false
}

func entryInterval(v value) (types.Interval, bool) {
	if v.kind != kindObject {
		return types.Interval{}, false
	}
	st, ok := field(v.obj, startKeys)
	if !ok {
		return types.Interval{}, false
	}
	en, ok := field(v.obj, endKeys)
	if !ok {
		return types.Interval{}, false
	}
	if st.IsNegative() || !en.GreaterThan(st) || en.GreaterThan(maxSeconds) {
		return types.Interval{}, false
	}
	iv := types.Interval{Start: toDuration(st), End: toDuration(en)}
	if iv.End <= iv.Start {
		return types.Interval{}, false
	}
	return iv, true
}

func field(obj map[string]value, keys []string) (decimal.Decimal, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return seconds(v)
		}
	}
	return decimal.Decimal{}, false
}

func seconds(v value) (decimal.Decimal, bool) {
	switch v.kind {
	case kindNumber:
		return v.num, true
	case kindString:
		s := strings.TrimSpace(v.str)
		d, err := parseDecimal(s)
		switch {
		case err == nil:
			return d, true
		case errors.Is(err, errNumberRange):
			return decimal.Decimal{}, false
		}
		return parseClock(s)
	default:
		return decimal.Decimal{}, false
	}
}

// parseClock reads "MM:SS" or "HH:MM:SS" with an optional fraction, using
// either '.' or ',' as the decimal separator.
func parseClock(s string) (decimal.Decimal, bool) {
	parts := strings.Split(strings.ReplaceAll(s, ",", "."), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return decimal.Decimal{}, false
	}
	sec, err := parseDecimal(parts[len(parts)-1])
	if err != nil || sec.IsNegative() || !sec.LessThan(sixty) {
		return decimal.Decimal{}, false
	}
	total := sec
	unit := sixty
	for i := len(parts) - 2; i >= 0; i-- {
		n, err := parseDecimal(parts[i])
		if err != nil || n.IsNegative() || !n.Equal(n.Truncate(0)) {
			return decimal.Decimal{}, false
		}
		if i > 0 && !n.LessThan(sixty) {
			return decimal.Decimal{}, false
		}
		total = total.Add(n.Mul(unit))
		unit = unit.Mul(sixty)
	}
	return total, true
}

func toDuration(sec decimal.Decimal) time.Duration {
	return time.Duration(sec.Mul(nsPerSecond).Round(0).IntPart())
}
