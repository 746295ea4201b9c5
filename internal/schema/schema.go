package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies the variant of a Schema node
type Kind string

const (
	KindAny     Kind = "any"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindEnum    Kind = "enum"
	KindRef     Kind = "reference"
	KindAllOf   Kind = "allOf"
	KindAnyOf   Kind = "anyOf"
)

// Schema is a node of the closed set of JSON Schema shapes the fuzzer understands.
// Concrete types are *Any, *Object, *Array, *String, *Number, *Boolean, *Enum,
// *Ref, *AllOf and *AnyOf.
type Schema interface {
	Kind() Kind
	IsNullable() bool
	Doc() string
}

// Common holds the annotations every node carries
type Common struct {
	Description string
	Nullable    bool
}

func (c Common) IsNullable() bool { return c.Nullable }
func (c Common) Doc() string      { return c.Description }

// Any accepts every value
type Any struct {
	Common
}

// Object describes a JSON object
type Object struct {
	Common
	Properties map[string]Schema
	Required   []string
	// AdditionalProperties validates keys not listed in Properties when set
	AdditionalProperties Schema
	// NoAdditional rejects keys not listed in Properties
	NoAdditional bool
}

// Array describes a JSON array
type Array struct {
	Common
	Items       Schema
	MinItems    uint64
	MaxItems    *uint64
	UniqueItems bool
}

// String describes a JSON string
type String struct {
	Common
	Format    string
	Pattern   string
	MinLength uint64
	MaxLength *uint64
}

// Number describes a JSON number; Integer restricts it to whole values
type Number struct {
	Common
	Integer          bool
	Format           string
	Minimum          *float64
	Maximum          *float64
	ExclusiveMinimum bool
	ExclusiveMaximum bool
	MultipleOf       *float64
}

// Boolean describes a JSON boolean
type Boolean struct {
	Common
}

// Enum restricts a value to a fixed list
type Enum struct {
	Common
	Values []any
}

// Ref points at a named entry of Definitions
type Ref struct {
	Common
	Name string
}

// AllOf requires every member to hold
type AllOf struct {
	Common
	Schemas []Schema
}

// AnyOf requires at least one member to hold, or exactly one when Exclusive (oneOf)
type AnyOf struct {
	Common
	Schemas   []Schema
	Exclusive bool
}

func (*Any) Kind() Kind     { return KindAny }
func (*Object) Kind() Kind  { return KindObject }
func (*Array) Kind() Kind   { return KindArray }
func (*String) Kind() Kind  { return KindString }
func (*Boolean) Kind() Kind { return KindBoolean }
func (*Enum) Kind() Kind    { return KindEnum }
func (*Ref) Kind() Kind     { return KindRef }
func (*AllOf) Kind() Kind   { return KindAllOf }
func (*AnyOf) Kind() Kind   { return KindAnyOf }

func (n *Number) Kind() Kind {
	if n.Integer {
		return KindInteger
	}
	return KindNumber
}

// IsRequired reports whether name is listed as a required property
func (o *Object) IsRequired(name string) bool {
	for _, r := range o.Required {
		if r == name {
			return true
		}
	}
	return false
}

// PropertyNames returns the declared property names in sorted order
func (o *Object) PropertyNames() []string {
	names := make([]string, 0, len(o.Properties))
	for name := range o.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CycleError reports a chain of references that never reaches a concrete node
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular schema reference: %s", strings.Join(e.Chain, " -> "))
}

// MissingRefError reports a reference to an undefined schema
type MissingRefError struct {
	Name string
}

func (e *MissingRefError) Error() string {
	return fmt.Sprintf("schema %q is not defined", e.Name)
}
