package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mbellanger/Audits-And-Actions/internal/routing"
	"github.com/mbellanger/Audits-And-Actions/modules/traceability/services"
)

type traceResolveResponse struct {
	Number string   `json:"number"`
	Chain  []string `json:"traceability_chain"`
}

// handleTraceResolve reconstructs the ancestry of an identifier from its
// string structure alone; it never touches a store, which is the point of
// embedding parents textually.
func handleTraceResolve(w http.ResponseWriter, r *http.Request) {
	number := strings.TrimSpace(r.URL.Query().Get("number"))
	if number == "" {
		routing.WriteError(w, r, http.StatusBadRequest, "number_missing", "number query parameter required")
		return
	}

	chain, ok := services.ResolveChain(number)
	if !ok {
		routing.WriteError(w, r, http.StatusUnprocessableEntity, "not_recognized", "identifier does not match any known format")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(traceResolveResponse{Number: number, Chain: chain})
}
