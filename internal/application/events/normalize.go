package events

import (
	"encoding/json"
	"math/big"
	"strconv"
)

// maxSafeInteger is the largest integer a JSON consumer can decode into an
// IEEE-754 double without losing precision (2^53 - 1).
const maxSafeInteger = 1<<53 - 1

// Normalize returns a deep copy of payload that is safe to encode as JSON for
// any consumer: int64, uint64 and *big.Int values become decimal strings, as
// does any other integer outside the safe range, including json.Number
// integer literals decoded with UseNumber. Maps and slices are walked
// recursively; every other value passes through unchanged.
func Normalize(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return Normalize(x)
	case []map[string]any:
		out := make([]any, len(x))
		for i, m := range x {
			out[i] = Normalize(m)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeValue(e)
		}
		return out
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case *big.Int:
		if x == nil {
			return nil
		}
		return x.String()
	case big.Int:
		return x.String()
	case int:
		if x > maxSafeInteger || x < -maxSafeInteger {
			return strconv.Itoa(x)
		}
		return x
	case uint:
		if x > maxSafeInteger {
			return strconv.FormatUint(uint64(x), 10)
		}
		return x
	case json.Number:
		return normalizeNumber(x)
	default:
		return v
	}
}

var (
	maxSafe = big.NewInt(maxSafeInteger)
	minSafe = big.NewInt(-maxSafeInteger)
)

// normalizeNumber turns an integer literal outside the safe range into its
// decimal string. Fractions, exponents and safe integers stay numbers.
func normalizeNumber(n json.Number) any {
	i, ok := new(big.Int).SetString(n.String(), 10)
	if !ok {
		return n
	}
	if i.Cmp(maxSafe) > 0 || i.Cmp(minSafe) < 0 {
		return i.String()
	}
	return n
}
