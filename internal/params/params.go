// Package params loads and validates the declarative parameter
// specification that a batch is generated from.
//
// A spec file is YAML:
//
//	experiment: angio_sweep
//	steps: 200
//	write_frequency: 10
//	replicates: 3
//	parameters:
//	  jee: "2,4"        # comma list ⇒ swept parameter
//	  jem: 2            # scalar ⇒ fixed parameter
//	  lchem: [0.5, 1.0] # YAML list ⇒ swept parameter
//
// Parameter order is significant: the cartesian product that assigns combo
// indices enumerates swept parameters in declared order, so the file is
// decoded through yaml.Node rather than a map.
package params

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Replicate count bounds accepted by a spec.
const (
	MinReplicates = 1
	MaxReplicates = 100
)

// Param is one named parameter with its declared values.
// A fixed parameter has exactly one value; a swept parameter has several.
type Param struct {
	Name   string
	Values []any // int64, float64, or string scalars
}

// Swept reports whether the parameter contributes to the sweep product.
func (p Param) Swept() bool { return len(p.Values) > 1 }

// Spec is a parsed parameter specification: execution controls plus the
// ordered parameter list.
type Spec struct {
	Experiment     string
	Steps          int
	WriteFrequency int
	Replicates     int
	Params         []Param
}

// SweepSize returns the number of parameter combinations: the product of
// swept value counts, 1 if nothing is swept.
func (s *Spec) SweepSize() int {
	n := 1
	for _, p := range s.Params {
		if p.Swept() {
			n *= len(p.Values)
		}
	}
	return n
}

// HasSweep reports whether any parameter is swept.
func (s *Spec) HasSweep() bool {
	for _, p := range s.Params {
		if p.Swept() {
			return true
		}
	}
	return false
}

// SpecError reports a malformed parameter specification. It is surfaced
// before any task exists and blocks generation entirely.
type SpecError struct {
	Field   string
	Message string
}

func (e *SpecError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid parameter spec: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid parameter spec: %s", e.Message)
}

// specFile mirrors the YAML document. Parameters stays a yaml.Node so the
// declared order survives decoding.
type specFile struct {
	Experiment     string    `yaml:"experiment"`
	Steps          int       `yaml:"steps"`
	WriteFrequency int       `yaml:"write_frequency"`
	Replicates     int       `yaml:"replicates"`
	Parameters     yaml.Node `yaml:"parameters"`
}

// Load reads, schema-checks, and parses a spec file.
// Returns *SpecError for anything a user can fix in the file.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates spec file contents.
func Parse(data []byte) (*Spec, error) {
	// Structural validation first: the CUE schema rejects unknown fields,
	// wrong types, and out-of-range controls with positioned messages.
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var file specFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &SpecError{Message: fmt.Sprintf("parse yaml: %v", err)}
	}

	spec := &Spec{
		Experiment:     strings.TrimSpace(file.Experiment),
		Steps:          file.Steps,
		WriteFrequency: file.WriteFrequency,
		Replicates:     file.Replicates,
	}
	if spec.Replicates == 0 {
		spec.Replicates = 1
	}

	if err := decodeParameters(&file.Parameters, spec); err != nil {
		return nil, err
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// Validate enforces the semantic invariants the schema cannot express on
// already-parsed values. It is also the guard for specs built in code.
func (s *Spec) Validate() error {
	if s.Experiment == "" {
		return &SpecError{Field: "experiment", Message: "must not be empty"}
	}
	if s.Steps <= 0 {
		return &SpecError{Field: "steps", Message: fmt.Sprintf("must be > 0, got %d", s.Steps)}
	}
	if s.WriteFrequency <= 0 {
		return &SpecError{Field: "write_frequency", Message: fmt.Sprintf("must be > 0, got %d", s.WriteFrequency)}
	}
	if s.Replicates < MinReplicates || s.Replicates > MaxReplicates {
		return &SpecError{
			Field:   "replicates",
			Message: fmt.Sprintf("must be in [%d,%d], got %d", MinReplicates, MaxReplicates, s.Replicates),
		}
	}
	seen := make(map[string]bool, len(s.Params))
	for _, p := range s.Params {
		if p.Name == "" {
			return &SpecError{Field: "parameters", Message: "parameter with empty name"}
		}
		if seen[p.Name] {
			return &SpecError{Field: "parameters." + p.Name, Message: "declared twice"}
		}
		seen[p.Name] = true
		if len(p.Values) == 0 {
			return &SpecError{Field: "parameters." + p.Name, Message: "sweep list is empty"}
		}
	}
	return nil
}

// decodeParameters walks the parameters mapping node in document order.
func decodeParameters(node *yaml.Node, spec *Spec) error {
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return &SpecError{Field: "parameters", Message: "must be a mapping"}
	}

	// Mapping node content alternates key, value.
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		values, err := decodeValues(node.Content[i+1])
		if err != nil {
			return &SpecError{Field: "parameters." + key, Message: err.Error()}
		}
		spec.Params = append(spec.Params, Param{Name: key, Values: values})
	}
	return nil
}

// decodeValues interprets one parameter value node: a scalar, a comma list
// inside a string, or a YAML sequence.
func decodeValues(node *yaml.Node) ([]any, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!str" && strings.Contains(node.Value, ",") {
			return parseCommaList(node.Value)
		}
		return []any{coerceScalar(node.Value)}, nil
	case yaml.SequenceNode:
		values := make([]any, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("sweep list items must be scalars")
			}
			values = append(values, coerceScalar(item.Value))
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("sweep list is empty")
		}
		return values, nil
	default:
		return nil, fmt.Errorf("must be a scalar, comma list, or sequence")
	}
}

// parseCommaList splits "2,4,6" into coerced scalars.
// An empty element (trailing comma, "2,,4") invalidates the whole list.
func parseCommaList(raw string) ([]any, error) {
	parts := strings.Split(raw, ",")
	values := make([]any, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			return nil, fmt.Errorf("empty value in sweep list %q", raw)
		}
		values = append(values, coerceScalar(trimmed))
	}
	return values, nil
}

// coerceScalar converts a textual value to int64 when it has no decimal
// point, float64 when it does, and leaves anything non-numeric a string.
func coerceScalar(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if !strings.Contains(trimmed, ".") {
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return n
		}
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return trimmed
}
