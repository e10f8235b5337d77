// Package numbering holds the pure string side of entity numbering: counter
// scope keys, rendered identifiers, and the inverse parse. No I/O happens
// here; sequence issuance lives behind ports.CounterStore.
package numbering

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/mbellanger/Audits-And-Actions/modules/traceability/domain/types"
)

// Context carries the caller-side facts a format needs: the year for
// top-level kinds, the parent number for actions and audit-sourced findings,
// or the source prefix (EMP/CLI/INS/SUP) for other findings.
type Context struct {
	Year         int
	ParentNumber string
	SourcePrefix string
}

// ScopeKey builds the counter key for one sequence. The organization id is
// folded into the key so two tenants can never share a counter row.
func ScopeKey(org string, kind types.EntityKind, c Context) (string, error) {
	if org == "" {
		return "", types.NewInvalidKey("scope key requires an organization id")
	}
	switch kind {
	case types.KindAudit:
		return fmt.Sprintf("%s:audit_%d", org, c.Year), nil
	case types.KindFinding:
		if c.ParentNumber != "" {
			return fmt.Sprintf("%s:finding_%s", org, c.ParentNumber), nil
		}
		if c.SourcePrefix != "" {
			return fmt.Sprintf("%s:finding_%s-%d", org, c.SourcePrefix, c.Year), nil
		}
		return "", types.NewMissingParent("finding scope requires an audit number or a source prefix")
	case types.KindAction:
		if c.ParentNumber == "" {
			return "", types.NewMissingParent("action scope requires the finding number")
		}
		return fmt.Sprintf("%s:action_%s", org, c.ParentNumber), nil
	case types.KindEmployeeDeclaration:
		return fmt.Sprintf("%s:employee_%d", org, c.Year), nil
	case types.KindCustomerSurvey:
		return fmt.Sprintf("%s:customer_%d", org, c.Year), nil
	default:
		return "", errors.New("numbering: unknown entity kind " + string(kind))
	}
}

// Render produces the final identifier. Sequences below 1000 are zero-padded
// to three digits; larger sequences keep their natural width, padding is
// cosmetic, not a cap.
func Render(kind types.EntityKind, c Context, sequence int64) string {
	switch kind {
	case types.KindAudit:
		return fmt.Sprintf("AUDIT-%04d-%03d", c.Year, sequence)
	case types.KindFinding:
		if c.ParentNumber != "" {
			return fmt.Sprintf("%s-HALL-%03d", c.ParentNumber, sequence)
		}
		return fmt.Sprintf("%s-%04d-HALL-%03d", c.SourcePrefix, c.Year, sequence)
	case types.KindAction:
		return fmt.Sprintf("%s-ACC-%03d", c.ParentNumber, sequence)
	case types.KindEmployeeDeclaration:
		return fmt.Sprintf("EMP-%04d-%03d", c.Year, sequence)
	case types.KindCustomerSurvey:
		return fmt.Sprintf("CLI-%04d-%03d", c.Year, sequence)
	default:
		return ""
	}
}

// Anchored patterns, most specific first. Exactly one matches any well-formed
// identifier: the ACC suffix only ever terminates an action, a HALL suffix
// only ever terminates a finding, and the three top-level shapes are disjoint
// by prefix. A finding embeds either a full top-level parent number
// (AUDIT/EMP/CLI) or a bare source prefix plus year; the two shapes differ by
// the sequence sitting between the year and the HALL suffix. Sequence runs are
// capped at 18 digits so a matched run always fits in int64.
var (
	actionPattern        = regexp.MustCompile(`^(.+-HALL-\d{3,18})-ACC-(\d{3,18})$`)
	parentFindingPattern = regexp.MustCompile(`^((AUDIT|EMP|CLI)-(\d{4})-\d{3,18})-HALL-(\d{3,18})$`)
	sourceFindingPattern = regexp.MustCompile(`^(EMP|CLI|INS|SUP)-(\d{4})-HALL-(\d{3,18})$`)
	auditPattern         = regexp.MustCompile(`^AUDIT-(\d{4})-(\d{3,18})$`)
	employeePattern      = regexp.MustCompile(`^EMP-(\d{4})-(\d{3,18})$`)
	customerPattern      = regexp.MustCompile(`^CLI-(\d{4})-(\d{3,18})$`)
)

// Parse decomposes a rendered identifier. ok is false for anything that does
// not match one of the five formats; a false return carries a zero value,
// never a partial decomposition.
func Parse(identifier string) (types.StructuredIdentifier, bool) {
	if m := actionPattern.FindStringSubmatch(identifier); m != nil {
		return types.StructuredIdentifier{
			Kind:         types.KindAction,
			Sequence:     mustSeq(m[2]),
			ParentNumber: m[1],
		}, true
	}
	if m := parentFindingPattern.FindStringSubmatch(identifier); m != nil {
		return types.StructuredIdentifier{
			Kind:         types.KindFinding,
			Year:         mustYear(m[3]),
			Sequence:     mustSeq(m[4]),
			Source:       sourceForParentPrefix(m[2]),
			ParentNumber: m[1],
		}, true
	}
	if m := sourceFindingPattern.FindStringSubmatch(identifier); m != nil {
		return types.StructuredIdentifier{
			Kind:     types.KindFinding,
			Year:     mustYear(m[2]),
			Sequence: mustSeq(m[3]),
			Source:   sourceForPrefix(m[1]),
		}, true
	}
	if m := auditPattern.FindStringSubmatch(identifier); m != nil {
		return types.StructuredIdentifier{
			Kind:     types.KindAudit,
			Year:     mustYear(m[1]),
			Sequence: mustSeq(m[2]),
		}, true
	}
	if m := employeePattern.FindStringSubmatch(identifier); m != nil {
		return types.StructuredIdentifier{
			Kind:     types.KindEmployeeDeclaration,
			Year:     mustYear(m[1]),
			Sequence: mustSeq(m[2]),
		}, true
	}
	if m := customerPattern.FindStringSubmatch(identifier); m != nil {
		return types.StructuredIdentifier{
			Kind:     types.KindCustomerSurvey,
			Year:     mustYear(m[1]),
			Sequence: mustSeq(m[2]),
		}, true
	}
	return types.StructuredIdentifier{}, false
}

// sourceForParentPrefix maps a full embedded parent number to the finding
// source it implies: an audit number means an audit-sourced finding, a
// declaration or survey number means the matching non-audit origin.
func sourceForParentPrefix(prefix string) types.FindingSource {
	switch prefix {
	case "AUDIT":
		return types.SourceAudit
	case "EMP":
		return types.SourceEmployee
	default:
		return types.SourceCustomer
	}
}

func sourceForPrefix(prefix string) types.FindingSource {
	switch prefix {
	case "EMP":
		return types.SourceEmployee
	case "CLI":
		return types.SourceCustomer
	case "INS":
		return types.SourceInspection
	default:
		return types.SourceSupplier
	}
}

func mustSeq(digits string) int64 {
	var n int64
	for _, ch := range digits {
		n = n*10 + int64(ch-'0')
	}
	return n
}

func mustYear(digits string) int {
	return int(mustSeq(digits))
}
