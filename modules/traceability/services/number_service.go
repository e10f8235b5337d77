package services

import (
	"context"
	"strings"
	"time"

	"github.com/mbellanger/Audits-And-Actions/modules/traceability/domain/numbering"
	"github.com/mbellanger/Audits-And-Actions/modules/traceability/domain/ports"
	"github.com/mbellanger/Audits-And-Actions/modules/traceability/domain/types"
)

// NumberService mints identifiers for the compliance entities. Every
// operation is scope key → atomic increment → render; no retries happen here.
// If the caller's entity-save fails after a number was issued, that number is
// burned: sequences stay monotonic but may show gaps.
//
// The year is taken from the service clock (UTC) so concurrent creation flows
// cannot disagree about which yearly counter they draw from.
type NumberService struct {
	counters ports.CounterStore
	now      func() time.Time
}

func NewNumberService(counters ports.CounterStore) NumberService {
	return NumberService{counters: counters, now: time.Now}
}

// NewNumberServiceWithClock exists for tests and backfills.
func NewNumberServiceWithClock(counters ports.CounterStore, now func() time.Time) NumberService {
	return NumberService{counters: counters, now: now}
}

func (s NumberService) NextAuditNumber(ctx context.Context, orgID string) (string, error) {
	return s.mint(ctx, orgID, types.KindAudit, numbering.Context{Year: s.year()})
}

// NextFindingNumber scopes the finding under its source audit when the source
// is an audit, and under a per-source yearly counter otherwise.
func (s NumberService) NextFindingNumber(ctx context.Context, orgID string, source types.FindingSource, sourceAuditNumber string) (string, error) {
	var c numbering.Context
	switch {
	case source == types.SourceAudit:
		if strings.TrimSpace(sourceAuditNumber) == "" {
			return "", types.NewMissingParent("finding from an audit requires the audit number")
		}
		c.ParentNumber = sourceAuditNumber
	case source.Known():
		prefix, _ := source.Prefix()
		c.SourcePrefix = prefix
		c.Year = s.year()
	default:
		return "", types.NewInvalidSource(string(source))
	}
	return s.mint(ctx, orgID, types.KindFinding, c)
}

func (s NumberService) NextActionNumber(ctx context.Context, orgID string, findingNumber string) (string, error) {
	if strings.TrimSpace(findingNumber) == "" {
		return "", types.NewMissingParent("action requires the finding number")
	}
	return s.mint(ctx, orgID, types.KindAction, numbering.Context{ParentNumber: findingNumber})
}

func (s NumberService) NextEmployeeDeclarationNumber(ctx context.Context, orgID string) (string, error) {
	return s.mint(ctx, orgID, types.KindEmployeeDeclaration, numbering.Context{Year: s.year()})
}

func (s NumberService) NextCustomerSurveyNumber(ctx context.Context, orgID string) (string, error) {
	return s.mint(ctx, orgID, types.KindCustomerSurvey, numbering.Context{Year: s.year()})
}

func (s NumberService) mint(ctx context.Context, orgID string, kind types.EntityKind, c numbering.Context) (string, error) {
	key, err := numbering.ScopeKey(orgID, kind, c)
	if err != nil {
		return "", err
	}
	sequence, err := s.counters.IncrementAndGet(ctx, key)
	if err != nil {
		// Propagated unchanged; the caller owns the retry decision for the
		// whole creation workflow.
		return "", err
	}
	return numbering.Render(kind, c, sequence), nil
}

func (s NumberService) year() int {
	return s.now().UTC().Year()
}
