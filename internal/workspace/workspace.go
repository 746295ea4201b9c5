package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Artifact file names inside a spec directory
const (
	SpecFile       = "spec.json"
	TokensFile     = "tokens.json"
	MethodsFile    = "methods.json"
	TestCasesFile  = "test-cases.json"
	ResultsFile    = "results.json"
	EvaluationFile = "evaluation.json"
)

// ErrNoSpecs is returned by Choose when nothing has been saved yet
var ErrNoSpecs = errors.New("no saved specs; run save first")

// Workspace is the directory holding one subdirectory per saved spec
type Workspace struct {
	root string
}

// New creates a workspace rooted at dir
func New(dir string) *Workspace {
	return &Workspace{root: dir}
}

// Root returns the workspace directory
func (w *Workspace) Root() string { return w.root }

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._ -]+`)

// Name turns an API title into a directory name
func Name(title string) string {
	name := strings.TrimSpace(unsafeChars.ReplaceAllString(title, "_"))
	name = strings.Trim(name, ".")
	if name == "" {
		return "untitled"
	}
	return name
}

// Dir returns the directory of the named spec
func (w *Workspace) Dir(spec string) string {
	return filepath.Join(w.root, spec)
}

// Path returns the location of an artifact of the named spec
func (w *Workspace) Path(spec, file string) string {
	return filepath.Join(w.root, spec, file)
}

// Create makes the directory for the named spec
func (w *Workspace) Create(spec string) error {
	if err := os.MkdirAll(w.Dir(spec), 0755); err != nil {
		return fmt.Errorf("failed to create spec directory: %w", err)
	}
	return nil
}

// List returns the saved specs in name order. A missing workspace is empty.
func (w *Workspace) List() ([]string, error) {
	entries, err := os.ReadDir(w.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list specs: %w", err)
	}
	var specs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(w.Path(e.Name(), SpecFile)); err == nil {
			specs = append(specs, e.Name())
		}
	}
	sort.Strings(specs)
	return specs, nil
}

// Exists reports whether the named spec has been saved
func (w *Workspace) Exists(spec string) bool {
	_, err := os.Stat(w.Path(spec, SpecFile))
	return err == nil
}

// Has reports whether the named spec has the artifact file
func (w *Workspace) Has(spec, file string) bool {
	_, err := os.Stat(w.Path(spec, file))
	return err == nil
}

// WriteRaw stores data as an artifact of the named spec
func (w *Workspace) WriteRaw(spec, file string, data []byte) error {
	if err := w.Create(spec); err != nil {
		return err
	}
	if err := os.WriteFile(w.Path(spec, file), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", file, err)
	}
	return nil
}

// ReadRaw loads an artifact of the named spec
func (w *Workspace) ReadRaw(spec, file string) ([]byte, error) {
	data, err := os.ReadFile(w.Path(spec, file))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s has no %s yet", spec, file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	return data, nil
}

// WriteJSON stores v, indented, as an artifact of the named spec
func (w *Workspace) WriteJSON(spec, file string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", file, err)
	}
	return w.WriteRaw(spec, file, data)
}

// ReadJSON decodes an artifact of the named spec into v
func (w *Workspace) ReadJSON(spec, file string, v any) error {
	data, err := w.ReadRaw(spec, file)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", file, err)
	}
	return nil
}
