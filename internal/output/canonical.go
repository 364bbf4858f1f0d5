package output

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// floatDigits is the number of decimals kept for non-integral numbers.
const floatDigits = 6

// DeterministicEncode renders v as compact canonical JSON.
func DeterministicEncode(v interface{}) ([]byte, error) {
	return encodeCanonical(v, "")
}

// DeterministicEncodeIndented renders v as canonical JSON, one member per line.
func DeterministicEncodeIndented(v interface{}, indent string) ([]byte, error) {
	return encodeCanonical(v, indent)
}

// RoundFloat rounds f to floatDigits decimals.
func RoundFloat(f float64) float64 {
	scale := math.Pow10(floatDigits)
	return math.Round(f*scale) / scale
}

// encodeCanonical marshals v with its own json tags and marshalers, then
// re-encodes the generic tree: objects come out with sorted keys, null members
// are dropped and fractional numbers are rounded.
func encodeCanonical(v interface{}, indent string) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	tree, err := decodeTree(raw)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(canonicalize(tree)); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// decodeTree parses JSON keeping numbers exact until canonicalize sees them.
func decodeTree(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree interface{}
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func canonicalize(node interface{}) interface{} {
	switch n := node.(type) {
	case map[string]interface{}:
		for k, child := range n {
			if child == nil {
				delete(n, k)
				continue
			}
			n[k] = canonicalize(child)
		}
		return n
	case []interface{}:
		for i, child := range n {
			n[i] = canonicalize(child)
		}
		return n
	case json.Number:
		return canonicalNumber(n)
	default:
		return n
	}
}

// canonicalNumber leaves integers untouched so large counts keep full precision.
func canonicalNumber(n json.Number) interface{} {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return n
	}
	return RoundFloat(f)
}
