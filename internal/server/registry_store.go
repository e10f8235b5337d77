package server

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mbellanger/Audits-And-Actions/modules/traceability/domain/types"
	"github.com/mbellanger/Audits-And-Actions/pkg/httperr"
	"github.com/mbellanger/Audits-And-Actions/pkg/uuidv7"
)

// ComplianceEntity is a registry row: the minted number persisted verbatim on
// the business entity, plus the denormalized chain computed once at creation.
// The string-parsing path stays the authoritative source; the stored chain is
// the O(1) display copy.
type ComplianceEntity struct {
	ID                string           `json:"id"`
	OrganizationID    string           `json:"organization_id"`
	Kind              types.EntityKind `json:"kind"`
	Number            string           `json:"number"`
	Title             string           `json:"title"`
	TraceabilityChain []string         `json:"traceability_chain"`
	CreatedAt         time.Time        `json:"created_at"`
}

type registryStore interface {
	Insert(ctx context.Context, e ComplianceEntity) error
	GetByNumber(ctx context.Context, orgID string, number string) (ComplianceEntity, bool, error)
	ListByKind(ctx context.Context, orgID string, kind types.EntityKind) ([]ComplianceEntity, error)
}

func newComplianceEntity(orgID string, kind types.EntityKind, number string, title string, chain []string) (ComplianceEntity, error) {
	if strings.TrimSpace(title) == "" {
		return ComplianceEntity{}, httperr.NewBadRequest("title is required")
	}
	id, err := uuidv7.NewString()
	if err != nil {
		return ComplianceEntity{}, err
	}
	return ComplianceEntity{
		ID:                id,
		OrganizationID:    orgID,
		Kind:              kind,
		Number:            number,
		Title:             strings.TrimSpace(title),
		TraceabilityChain: chain,
		CreatedAt:         time.Now().UTC(),
	}, nil
}

type memoryRegistry struct {
	mu       sync.RWMutex
	byNumber map[string]ComplianceEntity // key: orgID + "\x00" + number
}

func newMemoryRegistry() *memoryRegistry {
	return &memoryRegistry{byNumber: make(map[string]ComplianceEntity)}
}

func registryKey(orgID string, number string) string {
	return orgID + "\x00" + number
}

func (s *memoryRegistry) Insert(_ context.Context, e ComplianceEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byNumber[registryKey(e.OrganizationID, e.Number)] = e
	return nil
}

func (s *memoryRegistry) GetByNumber(_ context.Context, orgID string, number string) (ComplianceEntity, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byNumber[registryKey(orgID, number)]
	return e, ok, nil
}

func (s *memoryRegistry) ListByKind(_ context.Context, orgID string, kind types.EntityKind) ([]ComplianceEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ComplianceEntity
	for _, e := range s.byNumber {
		if e.OrganizationID == orgID && e.Kind == kind {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
