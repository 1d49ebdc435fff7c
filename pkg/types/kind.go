package types

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Kind names an entity type. Each kind has its own field list, instance-unique
// fields and match criteria, described by a KindSpec.
type Kind string

// Standard entity kinds.
const (
	KindEquipment     Kind = "equipment"
	KindVehicle       Kind = "vehicle"
	KindPersonnel     Kind = "personnel"
	KindClient        Kind = "client"
	KindContract      Kind = "contract"
	KindSupplier      Kind = "supplier"
	KindServiceTicket Kind = "service_ticket"
)

// StandardKinds lists the standard kinds for enumeration.
var StandardKinds = []Kind{
	KindEquipment,
	KindVehicle,
	KindPersonnel,
	KindClient,
	KindContract,
	KindSupplier,
	KindServiceTicket,
}

// FieldType determines how edit input for a field is coerced.
type FieldType string

// Field types.
const (
	FieldText    FieldType = "text"
	FieldInteger FieldType = "integer"
	FieldDecimal FieldType = "decimal"
	FieldBoolean FieldType = "boolean"
	FieldDate    FieldType = "date"
	FieldChoice  FieldType = "choice"
)

var validFieldTypes = map[FieldType]bool{
	FieldText:    true,
	FieldInteger: true,
	FieldDecimal: true,
	FieldBoolean: true,
	FieldDate:    true,
	FieldChoice:  true,
}

// DefaultIDField is used when a KindSpec leaves IDField empty.
const DefaultIDField = "id"

// FieldSpec describes one field of a kind.
type FieldSpec struct {
	Name     string    `yaml:"name" json:"name"`
	Type     FieldType `yaml:"type" json:"type"`
	Choices  []string  `yaml:"choices,omitempty" json:"choices,omitempty"`
	ReadOnly bool      `yaml:"read_only,omitempty" json:"read_only,omitempty"`
}

// Coerce converts edit input into a typed value. It reports false when the
// input cannot be read as the field's type; callers keep the prior value.
// Empty input only counts for text fields.
func (f FieldSpec) Coerce(input string) (Value, bool) {
	input = strings.TrimSpace(input)
	if f.Type == FieldText || f.Type == "" {
		return String(input), true
	}
	if input == "" {
		return nil, false
	}
	switch f.Type {
	case FieldInteger:
		if n, ok := ParseInteger(input); ok {
			return Int(n), true
		}
	case FieldDecimal:
		if n, ok := ParseDecimal(input); ok {
			return Float(n), true
		}
	case FieldBoolean:
		if b, ok := ParseBool(input); ok {
			return Bool(b), true
		}
	case FieldDate:
		if d, ok := ParseDate(input); ok {
			return d, true
		}
	case FieldChoice:
		for _, c := range f.Choices {
			if strings.EqualFold(c, input) {
				return String(c), true
			}
		}
	}
	return nil, false
}

// FormatInput renders a stored value as edit input for this field.
func (f FieldSpec) FormatInput(v Value) string {
	switch x := v.(type) {
	case Float:
		return strconv.FormatFloat(float64(x), 'f', -1, 64)
	case String:
		if f.Type == FieldDate {
			if d, ok := ParseDate(string(x)); ok {
				return d.String()
			}
		}
	}
	s, _ := FormatValue(v)
	return s
}

// CriterionSpec names a way of finding similar records. Fields are tried in
// order; the first one with a non-empty value on the edited record is used.
type CriterionSpec struct {
	Name   string   `yaml:"name" json:"name"`
	Fields []string `yaml:"fields" json:"fields"`
}

// KindSpec describes an entity kind.
type KindSpec struct {
	Name           Kind            `yaml:"name" json:"name"`
	IDField        string          `yaml:"id_field,omitempty" json:"id_field,omitempty"`
	Fields         []FieldSpec     `yaml:"fields" json:"fields"`
	InstanceUnique []string        `yaml:"instance_unique" json:"instance_unique"`
	Criteria       []CriterionSpec `yaml:"criteria,omitempty" json:"criteria,omitempty"`
	SharedArtifact string          `yaml:"shared_artifact,omitempty" json:"shared_artifact,omitempty"`
}

// ID returns the name of the identifier field.
func (k KindSpec) ID() string {
	if k.IDField == "" {
		return DefaultIDField
	}
	return k.IDField
}

// Field returns the definition of the named field.
func (k KindSpec) Field(name string) (FieldSpec, bool) {
	for _, f := range k.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Editable returns the fields that take edit input, in declaration order.
func (k KindSpec) Editable() []FieldSpec {
	out := make([]FieldSpec, 0, len(k.Fields))
	for _, f := range k.Fields {
		if !f.ReadOnly && f.Name != k.ID() {
			out = append(out, f)
		}
	}
	return out
}

// UniqueFields returns the instance-unique fields, always including the
// identifier field.
func (k KindSpec) UniqueFields() []string {
	out := slices.Clone(k.InstanceUnique)
	if !slices.Contains(out, k.ID()) {
		out = append(out, k.ID())
	}
	return out
}

// Criterion builds the named match criterion from rec. If every candidate
// field is empty the criterion comes back with the first field and an empty
// value, which the propagation engine refuses.
func (k KindSpec) Criterion(name string, rec Record) (MatchCriterion, error) {
	for _, c := range k.Criteria {
		if c.Name != name {
			continue
		}
		for _, field := range c.Fields {
			if v, ok := rec.GetString(field); ok && strings.TrimSpace(v) != "" {
				return MatchCriterion{Field: field, Value: v}, nil
			}
		}
		return MatchCriterion{Field: c.Fields[0]}, nil
	}
	return MatchCriterion{}, fmt.Errorf("%w: %s has no criterion %q", ErrUnknownCriterion, k.Name, name)
}

// Validate checks the kind definition for structural errors. Errors wrap ErrInvalidKind.
func (k KindSpec) Validate() error {
	if k.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidKind)
	}
	seen := make(map[string]bool, len(k.Fields))
	for _, f := range k.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: %s has a field without a name", ErrInvalidKind, k.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("%w: %s declares field %q twice", ErrInvalidKind, k.Name, f.Name)
		}
		seen[f.Name] = true
		if !validFieldTypes[f.Type] {
			return fmt.Errorf("%w: %s.%s has unknown type %q", ErrInvalidKind, k.Name, f.Name, f.Type)
		}
		if f.Type == FieldChoice && len(f.Choices) == 0 {
			return fmt.Errorf("%w: %s.%s is a choice without choices", ErrInvalidKind, k.Name, f.Name)
		}
	}
	for _, u := range k.InstanceUnique {
		if u == "" {
			return fmt.Errorf("%w: %s has an empty instance-unique field", ErrInvalidKind, k.Name)
		}
	}
	names := make(map[string]bool, len(k.Criteria))
	for _, c := range k.Criteria {
		if c.Name == "" || names[c.Name] {
			return fmt.Errorf("%w: %s has a missing or duplicate criterion name %q", ErrInvalidKind, k.Name, c.Name)
		}
		names[c.Name] = true
		if len(c.Fields) == 0 {
			return fmt.Errorf("%w: %s criterion %q has no fields", ErrInvalidKind, k.Name, c.Name)
		}
		for _, f := range c.Fields {
			if !seen[f] {
				return fmt.Errorf("%w: %s criterion %q uses undeclared field %q", ErrInvalidKind, k.Name, c.Name, f)
			}
		}
	}
	if k.SharedArtifact != "" && !seen[k.SharedArtifact] {
		return fmt.Errorf("%w: %s shared artifact %q is not a declared field", ErrInvalidKind, k.Name, k.SharedArtifact)
	}
	return nil
}

// Registry holds the KindSpecs known to the application.
type Registry struct {
	specs map[Kind]KindSpec
	order []Kind
}

// NewRegistry validates specs and indexes them by kind.
func NewRegistry(specs ...KindSpec) (*Registry, error) {
	r := &Registry{specs: make(map[Kind]KindSpec, len(specs))}
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.specs[s.Name]; dup {
			return nil, fmt.Errorf("%w: kind %q defined twice", ErrInvalidKind, s.Name)
		}
		r.specs[s.Name] = s
		r.order = append(r.order, s.Name)
	}
	return r, nil
}

// Lookup returns the definition of kind. Errors wrap ErrUnknownKind.
func (r *Registry) Lookup(kind Kind) (KindSpec, error) {
	s, ok := r.specs[kind]
	if !ok {
		return KindSpec{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return s, nil
}

// Has reports whether kind is registered.
func (r *Registry) Has(kind Kind) bool {
	_, ok := r.specs[kind]
	return ok
}

// Kinds returns the registered kinds in definition order.
func (r *Registry) Kinds() []Kind {
	return slices.Clone(r.order)
}
