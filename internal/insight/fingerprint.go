package insight

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Canonicalize renders a snapshot as deterministic JSON. Object keys are
// sorted, arrays made only of strings are treated as sets and sorted, and
// numbers are rewritten to one spelling per value, so the same logical
// state always yields the same bytes.
func Canonicalize(snapshot map[string]any) ([]byte, error) {
	// Round-trip through JSON so typed Go values (ints, []string, structs)
	// and decoded request bodies end up in the same shape.
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	normalized, err := normalize(generic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	// encoding/json writes map keys in sorted order.
	out, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return out, nil
}

func normalize(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			n, err := normalize(child)
			if err != nil {
				return nil, err
			}
			t[k] = n
		}
		return t, nil
	case []any:
		strs := make([]string, 0, len(t))
		for i, child := range t {
			n, err := normalize(child)
			if err != nil {
				return nil, err
			}
			t[i] = n
			if s, ok := n.(string); ok {
				strs = append(strs, s)
			}
		}
		if len(strs) == len(t) {
			sort.Strings(strs)
			for i, s := range strs {
				t[i] = s
			}
		}
		return t, nil
	case json.Number:
		return canonicalNumber(t)
	default:
		return v, nil
	}
}

// canonicalNumber spells a JSON number exactly, without going through
// float64: 40, 40.0 and 4e1 all become 40, while integers past 2^53 keep
// every digit.
func canonicalNumber(n json.Number) (json.Number, error) {
	s := string(n)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	exp := 0
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		e, err := strconv.Atoi(s[i+1:])
		if err != nil {
			return "", fmt.Errorf("number %q: %w", n, err)
		}
		exp, s = e, s[:i]
	}
	digits := s
	if i := strings.IndexByte(s, '.'); i >= 0 {
		digits = s[:i] + s[i+1:]
		exp -= len(s) - i - 1
	}

	// value is digits * 10^exp
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return "0", nil
	}
	trimmed := strings.TrimRight(digits, "0")
	exp += len(digits) - len(trimmed)
	digits = trimmed

	var out string
	switch {
	case exp >= 0 && exp <= 21:
		out = digits + strings.Repeat("0", exp)
	case exp < 0 && -exp < len(digits):
		out = digits[:len(digits)+exp] + "." + digits[len(digits)+exp:]
	case exp < 0 && -exp-len(digits) <= 6:
		out = "0." + strings.Repeat("0", -exp-len(digits)) + digits
	default:
		out = digits + "e" + strconv.Itoa(exp)
	}
	if neg {
		out = "-" + out
	}
	return json.Number(out), nil
}

// Fingerprint is the cache key for a canonical snapshot in a category.
func Fingerprint(canonical []byte, category Category) string {
	h := sha256.New()
	h.Write(canonical)
	h.Write([]byte(category))
	return hex.EncodeToString(h.Sum(nil))
}
