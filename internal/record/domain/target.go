package domain

import (
	"fmt"
	"strings"

	validation "github.com/jellydator/validation"

	appvalidation "github.com/allisson/fieldcrypt/internal/validation"
)

// FieldSpec describes one encrypted column.
type FieldSpec struct {
	EntityType string
	Field      string
	Searchable bool
}

// Validate checks that entity and field are plain SQL identifiers.
func (f FieldSpec) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.EntityType, validation.Required, appvalidation.Identifier),
		validation.Field(&f.Field, validation.Required, appvalidation.Identifier),
	)
}

// String renders the target as "table.column", with ":search" when searchable.
func (f FieldSpec) String() string {
	s := f.EntityType + "." + f.Field
	if f.Searchable {
		s += ":search"
	}
	return s
}

// FieldRegistry lists the encrypted fields per entity type.
type FieldRegistry struct {
	specs    []FieldSpec
	position map[string]int
}

// NewFieldRegistry builds a registry from validated specs. Duplicate entries are merged,
// a field is searchable when any entry says so.
func NewFieldRegistry(specs ...FieldSpec) (*FieldRegistry, error) {
	r := &FieldRegistry{position: make(map[string]int)}
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTarget, spec.String(), err)
		}
		key := spec.EntityType + "." + spec.Field
		if i, ok := r.position[key]; ok {
			r.specs[i].Searchable = r.specs[i].Searchable || spec.Searchable
			continue
		}
		r.position[key] = len(r.specs)
		r.specs = append(r.specs, spec)
	}
	return r, nil
}

// ParseTargets parses a comma separated list such as
// "users.national_id:search,users.phone_number:search,messages.body".
func ParseTargets(raw string) (*FieldRegistry, error) {
	var specs []FieldSpec
	for part := range strings.SplitSeq(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		target, option, hasOption := strings.Cut(part, ":")
		if hasOption && option != "search" {
			return nil, fmt.Errorf("%w: unknown option %q in %q", ErrInvalidTarget, option, part)
		}

		entity, field, ok := strings.Cut(target, ".")
		if !ok {
			return nil, fmt.Errorf("%w: %q must be table.column", ErrInvalidTarget, part)
		}
		specs = append(specs, FieldSpec{EntityType: entity, Field: field, Searchable: hasOption})
	}
	return NewFieldRegistry(specs...)
}

// Targets returns every registered field in registration order.
func (r *FieldRegistry) Targets() []FieldSpec {
	out := make([]FieldSpec, len(r.specs))
	copy(out, r.specs)
	return out
}

// Fields returns the encrypted field names of an entity type.
func (r *FieldRegistry) Fields(entityType string) []string {
	var fields []string
	for _, spec := range r.specs {
		if spec.EntityType == entityType {
			fields = append(fields, spec.Field)
		}
	}
	return fields
}

// Searchable reports whether a field carries a search hash.
func (r *FieldRegistry) Searchable(entityType, field string) bool {
	i, ok := r.position[entityType+"."+field]
	return ok && r.specs[i].Searchable
}
