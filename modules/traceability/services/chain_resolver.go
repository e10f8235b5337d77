package services

import (
	"github.com/mbellanger/Audits-And-Actions/modules/traceability/domain/numbering"
	"github.com/mbellanger/Audits-And-Actions/modules/traceability/domain/types"
)

// ResolveChain reconstructs the root-first ancestor list of an identifier
// from its string structure alone: actions resolve through their finding,
// audit-sourced findings through their audit, and every other kind is its
// own one-element chain. A finding whose embedded parent is a declaration or
// survey number has no ancestor either; only audits open a sub-series that
// counts as lineage. The store is never consulted.
//
// ok is false when the identifier (or any embedded ancestor) does not match
// a known format; a false return never carries a partial chain.
func ResolveChain(identifier string) ([]string, bool) {
	id, ok := numbering.Parse(identifier)
	if !ok {
		return nil, false
	}

	switch id.Kind {
	case types.KindAction:
		parents, ok := ResolveChain(id.ParentNumber)
		if !ok {
			return nil, false
		}
		return append(parents, identifier), true
	case types.KindFinding:
		if id.Source == types.SourceAudit && id.ParentNumber != "" {
			return []string{id.ParentNumber, identifier}, true
		}
		return []string{identifier}, true
	default:
		return []string{identifier}, true
	}
}
