package spec

import (
	"fmt"
	"strings"
)

// MalformedSpecError reports a field required for normalization that is
// missing or unusable
type MalformedSpecError struct {
	Path   string
	Method string
	Field  string
	Reason string
}

func (e *MalformedSpecError) Error() string {
	var where []string
	if e.Method != "" {
		where = append(where, strings.ToUpper(e.Method))
	}
	if e.Path != "" {
		where = append(where, e.Path)
	}
	reason := e.Reason
	if reason == "" {
		reason = "missing required field"
	}
	if len(where) == 0 {
		return fmt.Sprintf("malformed spec: %s %q", reason, e.Field)
	}
	return fmt.Sprintf("malformed spec: %s: %s %q", strings.Join(where, " "), reason, e.Field)
}

// CircularReferenceError reports a reference chain that revisits a reference
// already on the active resolution path
type CircularReferenceError struct {
	Chain []string
}

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("circular reference: %s", strings.Join(e.Chain, " -> "))
}
