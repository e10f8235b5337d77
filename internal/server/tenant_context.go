package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/mbellanger/Audits-And-Actions/internal/routing"
)

// Tenant is the per-request organization scope. The service sits behind the
// platform gateway, which authenticates callers and forwards the organization
// and role as headers.
type Tenant struct {
	ID       string
	RoleSlug string
}

type tenantCtxKey struct{}

func withTenant(ctx context.Context, tenant Tenant) context.Context {
	return context.WithValue(ctx, tenantCtxKey{}, tenant)
}

func currentTenant(ctx context.Context) (Tenant, bool) {
	t, ok := ctx.Value(tenantCtxKey{}).(Tenant)
	return t, ok
}

const (
	headerOrgID = "X-Org-ID"
	headerRole  = "X-Role"
)

func withTenancy(classifier *routing.Classifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if classifier.Classify(r.URL.Path) == routing.RouteClassOps {
			next.ServeHTTP(w, r)
			return
		}

		orgID := strings.TrimSpace(r.Header.Get(headerOrgID))
		if orgID == "" {
			routing.WriteError(w, r, http.StatusBadRequest, "org_missing", "X-Org-ID header required")
			return
		}
		t := Tenant{
			ID:       orgID,
			RoleSlug: strings.TrimSpace(strings.ToLower(r.Header.Get(headerRole))),
		}
		next.ServeHTTP(w, r.WithContext(withTenant(r.Context(), t)))
	})
}
