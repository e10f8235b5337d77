package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/mbellanger/Audits-And-Actions/internal/routing"
	"github.com/mbellanger/Audits-And-Actions/modules/traceability/domain/numbering"
	"github.com/mbellanger/Audits-And-Actions/modules/traceability/domain/types"
	"github.com/mbellanger/Audits-And-Actions/modules/traceability/services"
)

type actionEligibilityRequest struct {
	FindingNumber string `json:"finding_number"`
}

type actionEligibilityResponse struct {
	FindingNumber string `json:"finding_number"`
	RuleOutcome
}

// handleActionEligibilityAPI dry-runs the corrective-action rulebook against
// a finding number without minting anything. Used by the admin UI to explain
// why an action would be refused.
func handleActionEligibilityAPI(w http.ResponseWriter, r *http.Request, rules *ActionRulebook) {
	tenant, ok := currentTenant(r.Context())
	if !ok {
		routing.WriteError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}

	var req actionEligibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		routing.WriteError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	req.FindingNumber = strings.TrimSpace(req.FindingNumber)
	if req.FindingNumber == "" {
		routing.WriteError(w, r, http.StatusBadRequest, "invalid_request", "finding_number required")
		return
	}

	id, parsed := numbering.Parse(req.FindingNumber)
	if !parsed || id.Kind != types.KindFinding {
		routing.WriteError(w, r, http.StatusUnprocessableEntity, "not_recognized", "not a finding number")
		return
	}
	chain, _ := services.ResolveChain(req.FindingNumber)

	outcome, err := rules.Evaluate(map[string]string{
		"organization_id": tenant.ID,
		"actor_role":      tenant.RoleSlug,
		"finding_number":  req.FindingNumber,
		"finding_source":  string(id.Source),
		"chain_depth":     strconv.Itoa(len(chain)),
	})
	if err != nil {
		routing.WriteError(w, r, http.StatusInternalServerError, "rules_error", "action rules evaluation failed")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(actionEligibilityResponse{FindingNumber: req.FindingNumber, RuleOutcome: outcome})
}
