package sitecfg

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// numericPattern matches integer or decimal literals, optionally signed.
// Exponent forms are deliberately excluded: "1e5" stays a string.
var numericPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// Coerce turns a stored value into its semantic type. Strings are parsed in
// priority order: JSON object/array, boolean, number, raw string. Malformed
// JSON-looking strings fall back to the raw string. Non-string values and
// nil pass through unchanged.
func Coerce(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	trimmed := strings.TrimSpace(s)
	if (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")) {
		var parsed any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
			return parsed
		}
		return s
	}
	if strings.EqualFold(trimmed, "true") {
		return true
	}
	if strings.EqualFold(trimmed, "false") {
		return false
	}
	if numericPattern.MatchString(trimmed) {
		if n, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsInf(n, 0) && !math.IsNaN(n) {
			return n
		}
	}
	return s
}

// Serialize converts a value to its stored string form: objects and arrays
// become JSON, everything else becomes its plain string representation.
func Serialize(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		// Structs and other composites marshal to JSON when possible.
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		s := string(b)
		if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
			return s
		}
		return fmt.Sprint(t)
	}
}
