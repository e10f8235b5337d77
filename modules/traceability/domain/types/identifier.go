package types

// EntityKind tags the five numbered compliance entities.
type EntityKind string

const (
	KindAudit               EntityKind = "audit"
	KindFinding             EntityKind = "finding"
	KindAction              EntityKind = "action"
	KindEmployeeDeclaration EntityKind = "employee_declaration"
	KindCustomerSurvey      EntityKind = "customer_survey"
)

// FindingSource is the origin category of a finding. It decides which
// identifier prefix and counter scope the finding draws from.
type FindingSource string

const (
	SourceAudit      FindingSource = "audit"
	SourceEmployee   FindingSource = "employee"
	SourceCustomer   FindingSource = "customer"
	SourceInspection FindingSource = "inspection"
	SourceSupplier   FindingSource = "supplier"
)

// Prefix returns the identifier prefix for a non-audit source. Audit-sourced
// findings carry the full audit number instead of a prefix, so SourceAudit
// reports ok=false.
func (s FindingSource) Prefix() (prefix string, ok bool) {
	switch s {
	case SourceEmployee:
		return "EMP", true
	case SourceCustomer:
		return "CLI", true
	case SourceInspection:
		return "INS", true
	case SourceSupplier:
		return "SUP", true
	default:
		return "", false
	}
}

// Known reports whether s is one of the five recognized sources.
func (s FindingSource) Known() bool {
	switch s {
	case SourceAudit, SourceEmployee, SourceCustomer, SourceInspection, SourceSupplier:
		return true
	default:
		return false
	}
}

// StructuredIdentifier is the decomposed form of a rendered number.
// Year is zero for actions, whose format embeds a parent number instead of a
// year of their own; ParentNumber is set for actions and for findings that
// embed a full parent number (audit, declaration or survey); Source is set
// for findings only.
type StructuredIdentifier struct {
	Kind         EntityKind
	Year         int
	Sequence     int64
	Source       FindingSource
	ParentNumber string
}
