package schema

import "sort"

// Definitions holds named schemas, typically components.schemas
type Definitions map[string]Schema

// Resolve follows s through any chain of references and returns the first
// non-reference node.
func (d Definitions) Resolve(s Schema) (Schema, error) {
	var chain []string
	seen := make(map[string]bool)
	for {
		ref, ok := s.(*Ref)
		if !ok {
			return s, nil
		}
		chain = append(chain, ref.Name)
		if seen[ref.Name] {
			return nil, &CycleError{Chain: chain}
		}
		seen[ref.Name] = true

		next, ok := d[ref.Name]
		if !ok || next == nil {
			return nil, &MissingRefError{Name: ref.Name}
		}
		s = next
	}
}

// Names returns the definition names in sorted order
func (d Definitions) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check verifies that every reference inside the definitions points at an
// existing entry and that no definition can reach itself without passing
// through an object property or array item first. Such a loop could never be
// validated or sampled.
func (d Definitions) Check() error {
	for _, name := range d.Names() {
		for _, ref := range Refs(d[name]) {
			if _, ok := d[ref]; !ok {
				return &MissingRefError{Name: ref}
			}
		}
	}

	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(d))

	type frame struct {
		name  string
		edges []string
		next  int
	}

	for _, root := range d.Names() {
		if color[root] != white {
			continue
		}
		stack := []*frame{{name: root, edges: shallowRefs(d[root])}}
		color[root] = grey
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if top.next == len(top.edges) {
				color[top.name] = black
				stack = stack[:len(stack)-1]
				continue
			}
			target := top.edges[top.next]
			top.next++
			switch color[target] {
			case grey:
				chain := make([]string, 0, len(stack)+1)
				started := false
				for _, f := range stack {
					if f.name == target {
						started = true
					}
					if started {
						chain = append(chain, f.name)
					}
				}
				return &CycleError{Chain: append(chain, target)}
			case white:
				color[target] = grey
				stack = append(stack, &frame{name: target, edges: shallowRefs(d[target])})
			}
		}
	}
	return nil
}

// Refs lists every definition name referenced anywhere inside s
func Refs(s Schema) []string {
	var out []string
	walk(s, true, func(name string) { out = append(out, name) })
	return out
}

// shallowRefs lists the references reachable from s without descending into
// object properties or array items
func shallowRefs(s Schema) []string {
	var out []string
	walk(s, false, func(name string) { out = append(out, name) })
	return out
}

func walk(s Schema, deep bool, visit func(string)) {
	switch n := s.(type) {
	case *Ref:
		visit(n.Name)
	case *AllOf:
		for _, m := range n.Schemas {
			walk(m, deep, visit)
		}
	case *AnyOf:
		for _, m := range n.Schemas {
			walk(m, deep, visit)
		}
	case *Object:
		if !deep {
			return
		}
		for _, name := range n.PropertyNames() {
			walk(n.Properties[name], deep, visit)
		}
		if n.AdditionalProperties != nil {
			walk(n.AdditionalProperties, deep, visit)
		}
	case *Array:
		if deep && n.Items != nil {
			walk(n.Items, deep, visit)
		}
	}
}

// Inline replaces references with their definitions up to maxDepth levels of
// nesting. Anything deeper, or unresolvable, becomes Any so the result is
// self-contained.
func Inline(s Schema, defs Definitions, maxDepth int) Schema {
	return inline(s, defs, maxDepth)
}

func inline(s Schema, defs Definitions, depth int) Schema {
	if s == nil {
		return nil
	}
	if depth < 0 {
		return &Any{Common: Common{Description: s.Doc()}}
	}
	switch n := s.(type) {
	case *Ref:
		resolved, err := defs.Resolve(n)
		if err != nil {
			return &Any{Common: n.Common}
		}
		return inline(resolved, defs, depth-1)
	case *Object:
		out := *n
		out.Properties = make(map[string]Schema, len(n.Properties))
		for name, p := range n.Properties {
			out.Properties[name] = inline(p, defs, depth-1)
		}
		if n.AdditionalProperties != nil {
			out.AdditionalProperties = inline(n.AdditionalProperties, defs, depth-1)
		}
		return &out
	case *Array:
		out := *n
		out.Items = inline(n.Items, defs, depth-1)
		return &out
	case *AllOf:
		out := *n
		out.Schemas = inlineAll(n.Schemas, defs, depth-1)
		return &out
	case *AnyOf:
		out := *n
		out.Schemas = inlineAll(n.Schemas, defs, depth-1)
		return &out
	default:
		return s
	}
}

func inlineAll(in []Schema, defs Definitions, depth int) []Schema {
	out := make([]Schema, len(in))
	for i, s := range in {
		out[i] = inline(s, defs, depth)
	}
	return out
}
