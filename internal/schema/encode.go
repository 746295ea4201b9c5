package schema

import (
	"encoding/json"
	"fmt"
)

// Encode renders s back into a JSON Schema document
func Encode(s Schema) map[string]any {
	if s == nil {
		return nil
	}
	out := map[string]any{}
	if d := s.Doc(); d != "" {
		out["description"] = d
	}
	if s.IsNullable() {
		out["nullable"] = true
	}

	switch n := s.(type) {
	case *Any:
	case *Ref:
		out["$ref"] = "#/components/schemas/" + escapePointer(n.Name)
	case *Enum:
		out["enum"] = n.Values
	case *AllOf:
		out["allOf"] = encodeList(n.Schemas)
	case *AnyOf:
		key := "anyOf"
		if n.Exclusive {
			key = "oneOf"
		}
		out[key] = encodeList(n.Schemas)
	case *Object:
		out["type"] = "object"
		if len(n.Properties) > 0 {
			props := make(map[string]any, len(n.Properties))
			for name, p := range n.Properties {
				props[name] = Encode(p)
			}
			out["properties"] = props
		}
		if len(n.Required) > 0 {
			out["required"] = n.Required
		}
		switch {
		case n.NoAdditional:
			out["additionalProperties"] = false
		case n.AdditionalProperties != nil:
			out["additionalProperties"] = Encode(n.AdditionalProperties)
		}
	case *Array:
		out["type"] = "array"
		if n.Items != nil {
			out["items"] = Encode(n.Items)
		}
		if n.MinItems > 0 {
			out["minItems"] = n.MinItems
		}
		if n.MaxItems != nil {
			out["maxItems"] = *n.MaxItems
		}
		if n.UniqueItems {
			out["uniqueItems"] = true
		}
	case *String:
		out["type"] = "string"
		if n.Format != "" {
			out["format"] = n.Format
		}
		if n.Pattern != "" {
			out["pattern"] = n.Pattern
		}
		if n.MinLength > 0 {
			out["minLength"] = n.MinLength
		}
		if n.MaxLength != nil {
			out["maxLength"] = *n.MaxLength
		}
	case *Number:
		out["type"] = string(n.Kind())
		if n.Format != "" {
			out["format"] = n.Format
		}
		if n.Minimum != nil {
			out["minimum"] = *n.Minimum
		}
		if n.Maximum != nil {
			out["maximum"] = *n.Maximum
		}
		if n.ExclusiveMinimum {
			out["exclusiveMinimum"] = true
		}
		if n.ExclusiveMaximum {
			out["exclusiveMaximum"] = true
		}
		if n.MultipleOf != nil {
			out["multipleOf"] = *n.MultipleOf
		}
	case *Boolean:
		out["type"] = "boolean"
	}
	return out
}

func encodeList(in []Schema) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = Encode(s)
	}
	return out
}

// JSON carries a Schema through encoding/json as a plain JSON Schema document
type JSON struct {
	Schema Schema
}

// MarshalJSON implements json.Marshaler
func (j JSON) MarshalJSON() ([]byte, error) {
	if j.Schema == nil {
		return []byte("null"), nil
	}
	return json.Marshal(Encode(j.Schema))
}

// UnmarshalJSON implements json.Unmarshaler
func (j *JSON) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		j.Schema = nil
		return nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("schema must be a JSON object, got %T", raw)
	}
	s, err := Decode(m)
	if err != nil {
		return err
	}
	j.Schema = s
	return nil
}
