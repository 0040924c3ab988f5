// Package mapping declares how MIS records translate into accounting-platform
// payloads. The translation is data: ordered field tables per entity kind,
// interpreted by the builders in payload.go. Changing what lands in a payload
// means editing a table, not control flow.
package mapping

import (
	"strings"

	"github.com/eaur/qbsync/internal/enrich"
	"github.com/eaur/qbsync/internal/records"
)

// TransformKind selects how a mapping produces its value.
type TransformKind int

const (
	// Identity copies a single source field.
	Identity TransformKind = iota

	// Lookup resolves a lookup dimension to its display name.
	Lookup

	// Concat joins several source fields with a separator, skipping blanks.
	Concat

	// Literal emits a fixed value.
	Literal
)

// FieldMapping maps one payload destination to its source. Dest is either a
// top-level payload key or "custom:<definitionId>" for the provider's custom
// field list.
type FieldMapping struct {
	Dest      string
	Transform TransformKind

	Source  string      // Identity
	Sources []string    // Concat
	Sep     string      // Concat
	Lookup  enrich.Kind // Lookup
	Value   string      // Literal
}

// customPrefix marks destinations that land in the CustomField list.
const customPrefix = "custom:"

// Source field names usable in Identity and Concat mappings.
const (
	SrcTrackingID = "tracking_id"
	SrcRegNo      = "reg_no"
	SrcFirstName  = "first_name"
	SrcMiddleName = "middle_name"
	SrcLastName   = "last_name"
	SrcSex        = "sex"
	SrcNationalID = "national_id"
	SrcPhone      = "phone"
	SrcEmail      = "email"
)

// ApplicantCustomerMappings translates an applicant into a customer payload.
// DisplayName carries the tracking id so remote lookups by applicant are
// exact-match.
var ApplicantCustomerMappings = []FieldMapping{
	{Dest: "DisplayName", Transform: Identity, Source: SrcTrackingID},
	{Dest: "GivenName", Transform: Identity, Source: SrcFirstName},
	{Dest: "MiddleName", Transform: Identity, Source: SrcMiddleName},
	{Dest: "FamilyName", Transform: Identity, Source: SrcLastName},
	{Dest: "CompanyName", Transform: Concat, Sources: []string{SrcFirstName, SrcLastName}, Sep: " "},
	{Dest: customPrefix + "1000000001", Transform: Literal, Value: "Applicant"},
	{Dest: customPrefix + "1000000002", Transform: Identity, Source: SrcTrackingID},
	{Dest: customPrefix + "1000000003", Transform: Identity, Source: SrcSex},
	{Dest: customPrefix + "1000000005", Transform: Lookup, Lookup: enrich.KindCampus},
	{Dest: customPrefix + "1000000006", Transform: Lookup, Lookup: enrich.KindIntake},
	{Dest: customPrefix + "1000000008", Transform: Identity, Source: SrcNationalID},
	{Dest: customPrefix + "1000000009", Transform: Lookup, Lookup: enrich.KindProgramMode},
}

// StudentCustomerMappings translates a student into a customer payload.
// DisplayName carries the registration number.
var StudentCustomerMappings = []FieldMapping{
	{Dest: "DisplayName", Transform: Identity, Source: SrcRegNo},
	{Dest: "GivenName", Transform: Identity, Source: SrcFirstName},
	{Dest: "MiddleName", Transform: Identity, Source: SrcMiddleName},
	{Dest: "FamilyName", Transform: Identity, Source: SrcLastName},
	{Dest: "CompanyName", Transform: Concat, Sources: []string{SrcFirstName, SrcLastName}, Sep: " "},
	{Dest: customPrefix + "1000000001", Transform: Literal, Value: "Student"},
	{Dest: customPrefix + "1000000002", Transform: Identity, Source: SrcRegNo},
	{Dest: customPrefix + "1000000003", Transform: Identity, Source: SrcSex},
	{Dest: customPrefix + "1000000004", Transform: Lookup, Lookup: enrich.KindLevel},
	{Dest: customPrefix + "1000000005", Transform: Lookup, Lookup: enrich.KindCampus},
	{Dest: customPrefix + "1000000006", Transform: Lookup, Lookup: enrich.KindIntake},
	{Dest: customPrefix + "1000000007", Transform: Lookup, Lookup: enrich.KindProgram},
	{Dest: customPrefix + "1000000008", Transform: Identity, Source: SrcNationalID},
	{Dest: customPrefix + "1000000009", Transform: Lookup, Lookup: enrich.KindProgramMode},
}

// MappingsFor returns the customer mapping table for a person entity kind,
// or nil for transaction kinds.
func MappingsFor(kind records.EntityKind) []FieldMapping {
	switch kind {
	case records.KindApplicant:
		return ApplicantCustomerMappings
	case records.KindStudent:
		return StudentCustomerMappings
	default:
		return nil
	}
}

// Evaluate produces the mapping's value from an enriched record. Blank
// sources yield blank values; the builders decide whether blanks are emitted.
func (m *FieldMapping) Evaluate(e *enrich.Enriched) string {
	switch m.Transform {
	case Identity:
		return sourceValue(&e.Record, m.Source)
	case Lookup:
		return e.Name(m.Lookup)
	case Concat:
		parts := make([]string, 0, len(m.Sources))
		for _, src := range m.Sources {
			if v := sourceValue(&e.Record, src); v != "" {
				parts = append(parts, v)
			}
		}
		return strings.Join(parts, m.Sep)
	case Literal:
		return m.Value
	default:
		return ""
	}
}

// IsCustomField reports whether the mapping lands in the CustomField list.
func (m *FieldMapping) IsCustomField() bool {
	return strings.HasPrefix(m.Dest, customPrefix)
}

// DefinitionID returns the custom field definition id, or empty for top-level
// destinations.
func (m *FieldMapping) DefinitionID() string {
	if !m.IsCustomField() {
		return ""
	}
	return strings.TrimPrefix(m.Dest, customPrefix)
}

func sourceValue(rec *records.Record, source string) string {
	switch source {
	case SrcTrackingID:
		return rec.TrackingID
	case SrcRegNo:
		return rec.RegNo
	case SrcFirstName:
		return rec.FirstName
	case SrcMiddleName:
		return rec.MiddleName
	case SrcLastName:
		return rec.LastName
	case SrcSex:
		return rec.Sex
	case SrcNationalID:
		return rec.NationalID
	case SrcPhone:
		return rec.Phone
	case SrcEmail:
		return rec.Email
	default:
		return ""
	}
}
