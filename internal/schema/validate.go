package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidationError describes the first place a value disagrees with its schema
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validate checks value (as decoded by encoding/json) against s. References
// are resolved through defs.
func Validate(s Schema, defs Definitions, value any) error {
	v := &validator{defs: defs}
	return v.validate(s, value, "$", nil)
}

type validator struct {
	defs Definitions
}

// active holds the references entered since the last descent into a child
// value; re-entering one of them means the schema loops on the same value.
func (v *validator) validate(s Schema, value any, path string, active map[string]bool) error {
	if s == nil {
		return nil
	}
	if ref, ok := s.(*Ref); ok {
		if active[ref.Name] {
			return &ValidationError{Path: path, Message: fmt.Sprintf("schema %q refers to itself", ref.Name)}
		}
		resolved, err := v.defs.Resolve(ref)
		if err != nil {
			return &ValidationError{Path: path, Message: err.Error()}
		}
		next := make(map[string]bool, len(active)+1)
		for k := range active {
			next[k] = true
		}
		next[ref.Name] = true
		if value == nil && ref.Nullable {
			return nil
		}
		return v.validate(resolved, value, path, next)
	}

	if value == nil {
		switch s.(type) {
		case *Any:
			return nil
		case *AllOf, *AnyOf:
			if s.IsNullable() {
				return nil
			}
			// members decide
		case *Enum:
			if s.IsNullable() || containsValue(s.(*Enum).Values, nil) {
				return nil
			}
			return &ValidationError{Path: path, Message: "null is not an allowed value"}
		default:
			if s.IsNullable() {
				return nil
			}
			return &ValidationError{Path: path, Message: fmt.Sprintf("expected %s, got null", s.Kind())}
		}
	}

	switch n := s.(type) {
	case *Any:
		return nil
	case *Object:
		return v.validateObject(n, value, path)
	case *Array:
		return v.validateArray(n, value, path)
	case *String:
		return validateString(n, value, path)
	case *Number:
		return validateNumber(n, value, path)
	case *Boolean:
		if _, ok := value.(bool); !ok {
			return mismatch(path, "boolean", value)
		}
		return nil
	case *Enum:
		if !containsValue(n.Values, value) {
			return &ValidationError{Path: path, Message: fmt.Sprintf("value %v is not one of %v", value, n.Values)}
		}
		return nil
	case *AllOf:
		for _, m := range n.Schemas {
			if err := v.validate(m, value, path, active); err != nil {
				return err
			}
		}
		return nil
	case *AnyOf:
		matched := 0
		var firstErr error
		for _, m := range n.Schemas {
			if err := v.validate(m, value, path, active); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			matched++
		}
		switch {
		case matched == 0 && firstErr != nil:
			return &ValidationError{Path: path, Message: "value matches none of the alternatives: " + firstErr.Error()}
		case n.Exclusive && matched > 1:
			return &ValidationError{Path: path, Message: fmt.Sprintf("value matches %d alternatives, expected exactly one", matched)}
		}
		return nil
	default:
		return &ValidationError{Path: path, Message: fmt.Sprintf("unsupported schema node %T", s)}
	}
}

func (v *validator) validateObject(n *Object, value any, path string) error {
	obj, ok := value.(map[string]any)
	if !ok {
		return mismatch(path, "object", value)
	}
	for _, name := range n.Required {
		if _, ok := obj[name]; !ok {
			return &ValidationError{Path: path, Message: fmt.Sprintf("missing required property %q", name)}
		}
	}
	for _, name := range n.PropertyNames() {
		pv, ok := obj[name]
		if !ok {
			continue
		}
		if err := v.validate(n.Properties[name], pv, path+"."+name, nil); err != nil {
			return err
		}
	}
	for _, key := range sortedKeys(obj) {
		if _, declared := n.Properties[key]; declared {
			continue
		}
		if n.NoAdditional {
			return &ValidationError{Path: path, Message: fmt.Sprintf("property %q is not allowed", key)}
		}
		if n.AdditionalProperties != nil {
			if err := v.validate(n.AdditionalProperties, obj[key], path+"."+key, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *validator) validateArray(n *Array, value any, path string) error {
	items, ok := value.([]any)
	if !ok {
		return mismatch(path, "array", value)
	}
	if uint64(len(items)) < n.MinItems {
		return &ValidationError{Path: path, Message: fmt.Sprintf("expected at least %d items, got %d", n.MinItems, len(items))}
	}
	if n.MaxItems != nil && uint64(len(items)) > *n.MaxItems {
		return &ValidationError{Path: path, Message: fmt.Sprintf("expected at most %d items, got %d", *n.MaxItems, len(items))}
	}
	if n.UniqueItems {
		seen := make(map[string]bool, len(items))
		for i, item := range items {
			key, _ := json.Marshal(item)
			if seen[string(key)] {
				return &ValidationError{Path: fmt.Sprintf("%s[%d]", path, i), Message: "duplicate item"}
			}
			seen[string(key)] = true
		}
	}
	for i, item := range items {
		if err := v.validate(n.Items, item, fmt.Sprintf("%s[%d]", path, i), nil); err != nil {
			return err
		}
	}
	return nil
}

func validateString(n *String, value any, path string) error {
	str, ok := value.(string)
	if !ok {
		return mismatch(path, "string", value)
	}
	length := uint64(utf8.RuneCountInString(str))
	if length < n.MinLength {
		return &ValidationError{Path: path, Message: fmt.Sprintf("string shorter than %d", n.MinLength)}
	}
	if n.MaxLength != nil && length > *n.MaxLength {
		return &ValidationError{Path: path, Message: fmt.Sprintf("string longer than %d", *n.MaxLength)}
	}
	if n.Pattern != "" {
		re, err := regexp.Compile(n.Pattern)
		if err != nil {
			return &ValidationError{Path: path, Message: fmt.Sprintf("invalid pattern %q: %v", n.Pattern, err)}
		}
		if !re.MatchString(str) {
			return &ValidationError{Path: path, Message: fmt.Sprintf("%q does not match pattern %q", str, n.Pattern)}
		}
	}
	if err := checkFormat(n.Format, str); err != nil {
		return &ValidationError{Path: path, Message: err.Error()}
	}
	return nil
}

func checkFormat(format, str string) error {
	var err error
	switch format {
	case "date-time":
		_, err = time.Parse(time.RFC3339, str)
	case "date":
		_, err = time.Parse("2006-01-02", str)
	case "uuid":
		_, err = uuid.Parse(str)
	case "email":
		_, err = mail.ParseAddress(str)
	case "uri":
		var u *url.URL
		u, err = url.Parse(str)
		if err == nil && u.Scheme == "" {
			err = fmt.Errorf("missing scheme")
		}
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("%q is not a valid %s", str, format)
	}
	return nil
}

func validateNumber(n *Number, value any, path string) error {
	f, ok := toFloat(value)
	if !ok {
		return mismatch(path, string(n.Kind()), value)
	}
	if n.Integer && f != math.Trunc(f) {
		return &ValidationError{Path: path, Message: fmt.Sprintf("%v is not an integer", f)}
	}
	if n.Minimum != nil {
		if f < *n.Minimum || (n.ExclusiveMinimum && f == *n.Minimum) {
			return &ValidationError{Path: path, Message: fmt.Sprintf("%v is below the minimum %v", f, *n.Minimum)}
		}
	}
	if n.Maximum != nil {
		if f > *n.Maximum || (n.ExclusiveMaximum && f == *n.Maximum) {
			return &ValidationError{Path: path, Message: fmt.Sprintf("%v is above the maximum %v", f, *n.Maximum)}
		}
	}
	if n.MultipleOf != nil && *n.MultipleOf > 0 {
		q := f / *n.MultipleOf
		if math.Abs(q-math.Round(q)) > 1e-9 {
			return &ValidationError{Path: path, Message: fmt.Sprintf("%v is not a multiple of %v", f, *n.MultipleOf)}
		}
	}
	return nil
}

func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	}
	return 0, false
}

func containsValue(values []any, value any) bool {
	for _, candidate := range values {
		if equalJSON(candidate, value) {
			return true
		}
	}
	return false
}

func equalJSON(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func mismatch(path, want string, value any) error {
	got := "null"
	switch value.(type) {
	case nil:
	case map[string]any:
		got = "object"
	case []any:
		got = "array"
	case string:
		got = "string"
	case bool:
		got = "boolean"
	default:
		if _, ok := toFloat(value); ok {
			got = "number"
		} else {
			got = fmt.Sprintf("%T", value)
		}
	}
	return &ValidationError{Path: path, Message: fmt.Sprintf("expected %s, got %s", want, got)}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
