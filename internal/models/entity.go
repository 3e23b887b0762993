package models

import "strings"

// ResponseShape identifies how a listing endpoint paginates.
type ResponseShape string

const (
	// ShapePaged endpoints paginate server-side and return {data, total, ...}.
	ShapePaged ResponseShape = "paged"
	// ShapeArray endpoints return the whole filtered set as a bare array.
	ShapeArray ResponseShape = "array"
)

// DeleteStyle selects the verb and path used to delete a row.
type DeleteStyle string

const (
	DeleteREST       DeleteStyle = "rest"
	DeleteLegacyPost DeleteStyle = "legacy_post"
)

// Common filter keys.
const (
	FilterStatus         = "status"
	FilterSchoolID       = "school_id"
	FilterBoard          = "board"
	FilterRole           = "role"
	FilterEmail          = "email"
	FilterPhone          = "phone"
	FilterClassID        = "class_id"
	FilterSectionID      = "section_id"
	FilterAcademicYearID = "academic_year_id"
	FilterFromDate       = "from_date"
	FilterToDate         = "to_date"
)

// EntityDefinition parameterises the generic listing controller for one entity.
type EntityDefinition struct {
	Name          string
	Label         string
	Endpoint      string
	Singular      string
	Shape         ResponseShape
	FilterKeys    []string
	RowKey        string
	DisplayField  string
	IDPrefix      string
	IDSuffix      string
	SchoolScoped  bool
	DeleteStyle   DeleteStyle
	ExportColumns []string
}

// Obfuscated reports whether edit routes carry an obfuscated id.
func (d EntityDefinition) Obfuscated() bool {
	return d.IDPrefix != "" && d.IDSuffix != ""
}

// AllowsFilter reports whether key is one of the entity's filter keys.
func (d EntityDefinition) AllowsFilter(key string) bool {
	for _, k := range d.FilterKeys {
		if k == key {
			return true
		}
	}
	return false
}

// DefaultEntities returns the listing screens of the school console.
func DefaultEntities() []EntityDefinition {
	return []EntityDefinition{
		{
			Name:          "schools",
			Label:         "Schools",
			Endpoint:      "schools",
			Singular:      "school",
			Shape:         ShapePaged,
			FilterKeys:    []string{FilterStatus, FilterBoard},
			DisplayField:  "name",
			IDPrefix:      "sc",
			IDSuffix:      "x9",
			ExportColumns: []string{"id", "name", "email", "phone", "board", "status"},
		},
		{
			Name:          "classes",
			Label:         "Classes",
			Endpoint:      "classes",
			Singular:      "class",
			Shape:         ShapePaged,
			FilterKeys:    []string{FilterStatus, FilterSchoolID},
			DisplayField:  "name",
			IDPrefix:      "cl",
			IDSuffix:      "k4",
			SchoolScoped:  true,
			ExportColumns: []string{"id", "name", "school_name", "status"},
		},
		{
			Name:          "sections",
			Label:         "Sections",
			Endpoint:      "sections",
			Singular:      "section",
			Shape:         ShapeArray,
			FilterKeys:    []string{FilterStatus, FilterSchoolID, FilterClassID},
			DisplayField:  "name",
			IDPrefix:      "se",
			IDSuffix:      "k5",
			SchoolScoped:  true,
			ExportColumns: []string{"id", "name", "class_name", "school_name", "status"},
		},
		{
			Name:          "staff",
			Label:         "Staff",
			Endpoint:      "staff",
			Singular:      "staff",
			Shape:         ShapePaged,
			FilterKeys:    []string{FilterStatus, FilterSchoolID, FilterRole, FilterEmail, FilterPhone},
			DisplayField:  "name",
			IDPrefix:      "st",
			IDSuffix:      "z1",
			SchoolScoped:  true,
			ExportColumns: []string{"id", "name", "email", "phone", "role", "school_name", "status"},
		},
		{
			Name:          "teachers",
			Label:         "Teachers",
			Endpoint:      "teachers",
			Singular:      "teacher",
			Shape:         ShapePaged,
			FilterKeys:    []string{FilterStatus, FilterSchoolID, FilterEmail, FilterPhone},
			DisplayField:  "name",
			IDPrefix:      "te",
			IDSuffix:      "z3",
			SchoolScoped:  true,
			ExportColumns: []string{"id", "name", "email", "phone", "school_name", "status"},
		},
		{
			Name:          "students",
			Label:         "Students",
			Endpoint:      "students",
			Singular:      "student",
			Shape:         ShapePaged,
			FilterKeys:    []string{FilterStatus, FilterSchoolID, FilterClassID, FilterSectionID},
			DisplayField:  "name",
			IDPrefix:      "su",
			IDSuffix:      "z4",
			SchoolScoped:  true,
			ExportColumns: []string{"id", "name", "class_name", "section_name", "school_name", "status"},
		},
		{
			Name:          "parents",
			Label:         "Parents",
			Endpoint:      "parents",
			Singular:      "parent",
			Shape:         ShapeArray,
			FilterKeys:    []string{FilterStatus, FilterSchoolID, FilterEmail, FilterPhone},
			DisplayField:  "name",
			IDPrefix:      "pa",
			IDSuffix:      "z5",
			SchoolScoped:  true,
			ExportColumns: []string{"id", "name", "email", "phone", "status"},
		},
		{
			Name:          "academic-years",
			Label:         "Academic Years",
			Endpoint:      "academic-years",
			Singular:      "academic-year",
			Shape:         ShapePaged,
			FilterKeys:    []string{FilterStatus, FilterSchoolID},
			DisplayField:  "name",
			IDPrefix:      "ay",
			IDSuffix:      "z2",
			SchoolScoped:  true,
			ExportColumns: []string{"id", "name", "start_date", "end_date", "status"},
		},
		{
			Name:          "discounts",
			Label:         "Discounts",
			Endpoint:      "discounts",
			Singular:      "discount",
			Shape:         ShapePaged,
			FilterKeys:    []string{FilterStatus, FilterSchoolID},
			DisplayField:  "name",
			IDPrefix:      "di",
			IDSuffix:      "q1",
			SchoolScoped:  true,
			ExportColumns: []string{"id", "name", "type", "value", "status"},
		},
		{
			Name:          "fee-structures",
			Label:         "Fee Structures",
			Endpoint:      "fee-structures",
			Singular:      "fee-structure",
			Shape:         ShapePaged,
			FilterKeys:    []string{FilterStatus, FilterSchoolID, FilterAcademicYearID, FilterFromDate, FilterToDate},
			DisplayField:  "name",
			IDPrefix:      "fs",
			IDSuffix:      "q2",
			SchoolScoped:  true,
			ExportColumns: []string{"id", "name", "class_name", "amount", "due_date", "status"},
		},
		{
			Name:          "penalty-rules",
			Label:         "Penalty Rules",
			Endpoint:      "penalty-rules",
			Singular:      "penalty-rule",
			Shape:         ShapePaged,
			FilterKeys:    []string{FilterStatus, FilterSchoolID},
			DisplayField:  "name",
			IDPrefix:      "pr",
			IDSuffix:      "q3",
			SchoolScoped:  true,
			ExportColumns: []string{"id", "name", "grace_days", "amount", "status"},
		},
		{
			Name:          "users",
			Label:         "Users",
			Endpoint:      "users",
			Singular:      "user",
			Shape:         ShapeArray,
			FilterKeys:    []string{FilterStatus, FilterRole, FilterEmail},
			DisplayField:  "name",
			IDPrefix:      "us",
			IDSuffix:      "q4",
			ExportColumns: []string{"id", "name", "email", "role", "status"},
		},
		{
			Name:          "families",
			Label:         "Families",
			Endpoint:      "families",
			Singular:      "family",
			Shape:         ShapePaged,
			FilterKeys:    []string{FilterStatus, FilterSchoolID},
			DisplayField:  "family_name",
			IDPrefix:      "fa",
			IDSuffix:      "q5",
			SchoolScoped:  true,
			ExportColumns: []string{"id", "family_name", "primary_contact", "phone", "status"},
		},
	}
}

// EntityRegistry indexes entity definitions by route name.
type EntityRegistry struct {
	byName map[string]EntityDefinition
	order  []string
}

// NewEntityRegistry builds a registry, applying defaults and the legacy delete list.
func NewEntityRegistry(defs []EntityDefinition, legacyDelete []string) *EntityRegistry {
	legacy := make(map[string]bool, len(legacyDelete))
	for _, name := range legacyDelete {
		legacy[strings.ToLower(strings.TrimSpace(name))] = true
	}
	reg := &EntityRegistry{byName: make(map[string]EntityDefinition, len(defs))}
	for _, def := range defs {
		if def.RowKey == "" {
			def.RowKey = "id"
		}
		if def.DisplayField == "" {
			def.DisplayField = "name"
		}
		if def.DeleteStyle == "" {
			def.DeleteStyle = DeleteREST
		}
		if legacy[def.Name] {
			def.DeleteStyle = DeleteLegacyPost
		}
		if _, dup := reg.byName[def.Name]; !dup {
			reg.order = append(reg.order, def.Name)
		}
		reg.byName[def.Name] = def
	}
	return reg
}

// Lookup returns the definition registered under name.
func (r *EntityRegistry) Lookup(name string) (EntityDefinition, bool) {
	if r == nil {
		return EntityDefinition{}, false
	}
	def, ok := r.byName[name]
	return def, ok
}

// All returns the definitions in registration order.
func (r *EntityRegistry) All() []EntityDefinition {
	if r == nil {
		return nil
	}
	out := make([]EntityDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}
