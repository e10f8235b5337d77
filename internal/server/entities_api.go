package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/mbellanger/Audits-And-Actions/internal/routing"
	"github.com/mbellanger/Audits-And-Actions/modules/traceability/domain/numbering"
	"github.com/mbellanger/Audits-And-Actions/modules/traceability/domain/types"
	"github.com/mbellanger/Audits-And-Actions/modules/traceability/services"
	"github.com/mbellanger/Audits-And-Actions/pkg/httperr"
)

// The creation flows below own the retry decision: a number minted here is
// burned if the registry insert fails, and the client retries the whole
// request for a fresh one. Sequence gaps are expected, not errors.

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case types.IsStoreUnavailable(err):
		routing.WriteError(w, r, http.StatusServiceUnavailable, "store_unavailable", "counter store unavailable")
	case types.IsMissingParent(err):
		routing.WriteError(w, r, http.StatusBadRequest, "missing_parent", err.Error())
	case types.IsInvalidSource(err):
		routing.WriteError(w, r, http.StatusBadRequest, "invalid_source", err.Error())
	case types.IsInvalidKey(err):
		routing.WriteError(w, r, http.StatusBadRequest, "invalid_key", err.Error())
	case httperr.IsBadRequest(err):
		routing.WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error())
	case httperr.IsNotFound(err):
		routing.WriteError(w, r, http.StatusNotFound, "not_found", err.Error())
	default:
		routing.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeEntityCreated(w http.ResponseWriter, e ComplianceEntity) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(e)
}

func persistWithChain(w http.ResponseWriter, r *http.Request, registry registryStore, orgID string, kind types.EntityKind, number string, title string) {
	chain, ok := services.ResolveChain(number)
	if !ok {
		// Freshly minted numbers always resolve; anything else is a bug.
		routing.WriteError(w, r, http.StatusInternalServerError, "internal_error", "minted number did not resolve")
		return
	}
	e, err := newComplianceEntity(orgID, kind, number, title, chain)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := registry.Insert(r.Context(), e); err != nil {
		routing.WriteError(w, r, http.StatusInternalServerError, "registry_error", "registry unavailable; retry the request")
		return
	}
	writeEntityCreated(w, e)
}

func handleCreateAudit(w http.ResponseWriter, r *http.Request, numbers services.NumberService, registry registryStore) {
	tenant, ok := currentTenant(r.Context())
	if !ok {
		routing.WriteError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		routing.WriteError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}

	number, err := numbers.NextAuditNumber(r.Context(), tenant.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	persistWithChain(w, r, registry, tenant.ID, types.KindAudit, number, req.Title)
}

func handleCreateFinding(w http.ResponseWriter, r *http.Request, numbers services.NumberService, registry registryStore) {
	tenant, ok := currentTenant(r.Context())
	if !ok {
		routing.WriteError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}

	var req struct {
		Title             string `json:"title"`
		Source            string `json:"source"`
		SourceAuditNumber string `json:"source_audit_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		routing.WriteError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}

	source := types.FindingSource(strings.ToLower(strings.TrimSpace(req.Source)))
	req.SourceAuditNumber = strings.TrimSpace(req.SourceAuditNumber)
	if source == types.SourceAudit && req.SourceAuditNumber != "" {
		_, found, err := registry.GetByNumber(r.Context(), tenant.ID, req.SourceAuditNumber)
		if err != nil {
			routing.WriteError(w, r, http.StatusInternalServerError, "registry_error", "registry unavailable")
			return
		}
		if !found {
			routing.WriteError(w, r, http.StatusUnprocessableEntity, "unknown_audit", "source audit not found")
			return
		}
	}

	number, err := numbers.NextFindingNumber(r.Context(), tenant.ID, source, req.SourceAuditNumber)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	persistWithChain(w, r, registry, tenant.ID, types.KindFinding, number, req.Title)
}

func handleCreateAction(w http.ResponseWriter, r *http.Request, numbers services.NumberService, registry registryStore, rules *ActionRulebook) {
	tenant, ok := currentTenant(r.Context())
	if !ok {
		routing.WriteError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}

	var req struct {
		Title         string `json:"title"`
		FindingNumber string `json:"finding_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		routing.WriteError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	req.FindingNumber = strings.TrimSpace(req.FindingNumber)
	if req.FindingNumber == "" {
		routing.WriteError(w, r, http.StatusBadRequest, "missing_parent", "finding_number required")
		return
	}

	finding, found, err := registry.GetByNumber(r.Context(), tenant.ID, req.FindingNumber)
	if err != nil {
		routing.WriteError(w, r, http.StatusInternalServerError, "registry_error", "registry unavailable")
		return
	}
	if !found || finding.Kind != types.KindFinding {
		routing.WriteError(w, r, http.StatusUnprocessableEntity, "unknown_finding", "finding not found")
		return
	}

	outcome, err := rules.Evaluate(actionRuleContext(tenant, finding))
	if err != nil {
		routing.WriteError(w, r, http.StatusInternalServerError, "rules_error", "action rules evaluation failed")
		return
	}
	if outcome.Decision != actionRuleDecisionAllow {
		routing.WriteError(w, r, http.StatusForbidden, "action_not_eligible", outcome.ReasonCode)
		return
	}

	number, err := numbers.NextActionNumber(r.Context(), tenant.ID, req.FindingNumber)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	persistWithChain(w, r, registry, tenant.ID, types.KindAction, number, req.Title)
}

func actionRuleContext(tenant Tenant, finding ComplianceEntity) map[string]string {
	ctxMap := map[string]string{
		"organization_id": tenant.ID,
		"actor_role":      tenant.RoleSlug,
		"finding_number":  finding.Number,
		"finding_source":  "",
		"chain_depth":     strconv.Itoa(len(finding.TraceabilityChain)),
	}
	if id, ok := numbering.Parse(finding.Number); ok {
		ctxMap["finding_source"] = string(id.Source)
	}
	return ctxMap
}

func handleCreateEmployeeDeclaration(w http.ResponseWriter, r *http.Request, numbers services.NumberService, registry registryStore) {
	handleCreateTopLevel(w, r, registry, types.KindEmployeeDeclaration, numbers.NextEmployeeDeclarationNumber)
}

func handleCreateCustomerSurvey(w http.ResponseWriter, r *http.Request, numbers services.NumberService, registry registryStore) {
	handleCreateTopLevel(w, r, registry, types.KindCustomerSurvey, numbers.NextCustomerSurveyNumber)
}

func handleCreateTopLevel(w http.ResponseWriter, r *http.Request, registry registryStore, kind types.EntityKind, next func(ctx context.Context, orgID string) (string, error)) {
	tenant, ok := currentTenant(r.Context())
	if !ok {
		routing.WriteError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		routing.WriteError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}

	number, err := next(r.Context(), tenant.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	persistWithChain(w, r, registry, tenant.ID, kind, number, req.Title)
}

func handleListByKind(w http.ResponseWriter, r *http.Request, registry registryStore, kind types.EntityKind) {
	tenant, ok := currentTenant(r.Context())
	if !ok {
		routing.WriteError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}

	items, err := registry.ListByKind(r.Context(), tenant.ID, kind)
	if err != nil {
		routing.WriteError(w, r, http.StatusInternalServerError, "registry_error", "registry unavailable")
		return
	}
	if items == nil {
		items = []ComplianceEntity{}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(struct {
		Items []ComplianceEntity `json:"items"`
	}{Items: items})
}
