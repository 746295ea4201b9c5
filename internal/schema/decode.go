package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

var refPrefixes = []string{
	"#/components/schemas/",
	"#/definitions/",
	"#/$defs/",
}

// RefName extracts the definition name from a local schema reference
func RefName(ref string) (string, error) {
	for _, prefix := range refPrefixes {
		if strings.HasPrefix(ref, prefix) {
			name := strings.TrimPrefix(ref, prefix)
			if name == "" || strings.Contains(name, "/") {
				break
			}
			return unescapePointer(name), nil
		}
	}
	return "", fmt.Errorf("unsupported schema reference %q", ref)
}

func unescapePointer(s string) string {
	s = strings.ReplaceAll(s, "~1", "/")
	return strings.ReplaceAll(s, "~0", "~")
}

func escapePointer(s string) string {
	s = strings.ReplaceAll(s, "~", "~0")
	return strings.ReplaceAll(s, "/", "~1")
}

// FromOpenAPI converts a kin-openapi schema reference into a Schema. A set
// Ref always yields a *Ref node, so recursive component schemas never expand
// here.
func FromOpenAPI(ref *openapi3.SchemaRef) (Schema, error) {
	if ref == nil {
		return nil, nil
	}
	if ref.Ref != "" {
		name, err := RefName(ref.Ref)
		if err != nil {
			return nil, err
		}
		return &Ref{Name: name}, nil
	}
	if ref.Value == nil {
		return &Any{}, nil
	}

	data, err := json.Marshal(ref.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	return Decode(raw)
}

// Decode converts a JSON Schema document (as produced by encoding/json) into a Schema
func Decode(raw map[string]any) (Schema, error) {
	if raw == nil {
		return &Any{}, nil
	}

	common := Common{}
	common.Description, _ = raw["description"].(string)
	common.Nullable, _ = raw["nullable"].(bool)

	if ref, ok := raw["$ref"].(string); ok {
		name, err := RefName(ref)
		if err != nil {
			return nil, err
		}
		return &Ref{Common: common, Name: name}, nil
	}

	if values, ok := raw["enum"].([]any); ok {
		for _, v := range values {
			if v == nil {
				common.Nullable = true
			}
		}
		return &Enum{Common: common, Values: values}, nil
	}

	if members, ok := raw["allOf"].([]any); ok {
		schemas, err := decodeList(members)
		if err != nil {
			return nil, fmt.Errorf("allOf: %w", err)
		}
		if own := withoutKeys(raw, "allOf", "description", "nullable"); hasShape(own) {
			s, err := Decode(own)
			if err != nil {
				return nil, err
			}
			schemas = append(schemas, s)
		}
		return &AllOf{Common: common, Schemas: schemas}, nil
	}

	for _, key := range []string{"oneOf", "anyOf"} {
		if members, ok := raw[key].([]any); ok {
			schemas, err := decodeList(members)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			return &AnyOf{Common: common, Schemas: schemas, Exclusive: key == "oneOf"}, nil
		}
	}

	types, err := decodeTypes(raw["type"])
	if err != nil {
		return nil, err
	}
	var concrete []string
	for _, t := range types {
		if t == "null" {
			common.Nullable = true
			continue
		}
		concrete = append(concrete, t)
	}

	switch len(concrete) {
	case 0:
		switch {
		case raw["properties"] != nil || raw["additionalProperties"] != nil:
			return decodeTyped("object", raw, common)
		case raw["items"] != nil:
			return decodeTyped("array", raw, common)
		}
		return &Any{Common: common}, nil
	case 1:
		return decodeTyped(concrete[0], raw, common)
	default:
		alternatives := make([]Schema, 0, len(concrete))
		for _, t := range concrete {
			s, err := decodeTyped(t, raw, Common{})
			if err != nil {
				return nil, err
			}
			alternatives = append(alternatives, s)
		}
		return &AnyOf{Common: common, Schemas: alternatives}, nil
	}
}

func decodeTyped(typ string, raw map[string]any, common Common) (Schema, error) {
	switch typ {
	case "object":
		obj := &Object{Common: common, Properties: map[string]Schema{}}
		if props, ok := raw["properties"].(map[string]any); ok {
			for name, p := range props {
				pm, ok := p.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("property %q: expected an object", name)
				}
				s, err := Decode(pm)
				if err != nil {
					return nil, fmt.Errorf("property %q: %w", name, err)
				}
				obj.Properties[name] = s
			}
		}
		if required, ok := raw["required"].([]any); ok {
			for _, r := range required {
				if name, ok := r.(string); ok {
					obj.Required = append(obj.Required, name)
				}
			}
		}
		switch ap := raw["additionalProperties"].(type) {
		case bool:
			obj.NoAdditional = !ap
		case map[string]any:
			s, err := Decode(ap)
			if err != nil {
				return nil, fmt.Errorf("additionalProperties: %w", err)
			}
			obj.AdditionalProperties = s
		}
		return obj, nil
	case "array":
		arr := &Array{Common: common, Items: &Any{}}
		if items, ok := raw["items"].(map[string]any); ok {
			s, err := Decode(items)
			if err != nil {
				return nil, fmt.Errorf("items: %w", err)
			}
			arr.Items = s
		}
		arr.MinItems = uintField(raw, "minItems")
		arr.MaxItems = uintPtr(raw, "maxItems")
		arr.UniqueItems, _ = raw["uniqueItems"].(bool)
		return arr, nil
	case "string":
		str := &String{Common: common}
		str.Format, _ = raw["format"].(string)
		str.Pattern, _ = raw["pattern"].(string)
		str.MinLength = uintField(raw, "minLength")
		str.MaxLength = uintPtr(raw, "maxLength")
		return str, nil
	case "number", "integer":
		num := &Number{Common: common, Integer: typ == "integer"}
		num.Format, _ = raw["format"].(string)
		num.Minimum = floatPtr(raw, "minimum")
		num.Maximum = floatPtr(raw, "maximum")
		num.MultipleOf = floatPtr(raw, "multipleOf")
		// 3.0 uses booleans, 3.1 carries the bound itself
		switch v := raw["exclusiveMinimum"].(type) {
		case bool:
			num.ExclusiveMinimum = v
		case float64:
			num.Minimum, num.ExclusiveMinimum = &v, true
		}
		switch v := raw["exclusiveMaximum"].(type) {
		case bool:
			num.ExclusiveMaximum = v
		case float64:
			num.Maximum, num.ExclusiveMaximum = &v, true
		}
		return num, nil
	case "boolean":
		return &Boolean{Common: common}, nil
	default:
		return nil, fmt.Errorf("unsupported schema type %q", typ)
	}
}

func decodeTypes(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{t}, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("invalid schema type %v", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("invalid schema type %v", v)
	}
}

func decodeList(members []any) ([]Schema, error) {
	out := make([]Schema, 0, len(members))
	for i, m := range members {
		mm, ok := m.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("member %d: expected an object", i)
		}
		s, err := Decode(mm)
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func withoutKeys(raw map[string]any, keys ...string) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

func hasShape(raw map[string]any) bool {
	for _, k := range []string{"type", "properties", "items", "enum", "required"} {
		if _, ok := raw[k]; ok {
			return true
		}
	}
	return false
}

func floatPtr(raw map[string]any, key string) *float64 {
	if v, ok := raw[key].(float64); ok {
		return &v
	}
	return nil
}

func uintField(raw map[string]any, key string) uint64 {
	if v, ok := raw[key].(float64); ok && v > 0 {
		return uint64(v)
	}
	return 0
}

func uintPtr(raw map[string]any, key string) *uint64 {
	if v, ok := raw[key].(float64); ok && v >= 0 && v < math.MaxUint32 {
		u := uint64(v)
		return &u
	}
	return nil
}
