package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mbellanger/Audits-And-Actions/modules/traceability/infrastructure/persistence"
)

const testAllowlistYAML = `
version: 1
entrypoints:
  server:
    routes:
      - path: /healthz
        methods: [GET]
        route_class: ops
      - path: /api/audits
        methods: [GET, POST]
        route_class: public_api
      - path: /api/findings
        methods: [GET, POST]
        route_class: public_api
      - path: /api/actions
        methods: [GET, POST]
        route_class: public_api
      - path: /api/employee-declarations
        methods: [GET, POST]
        route_class: public_api
      - path: /api/customer-surveys
        methods: [GET, POST]
        route_class: public_api
      - path: /api/trace/resolve
        methods: [GET]
        route_class: public_api
      - path: /internal/rules/action-eligibility
        methods: [POST]
        route_class: internal_api
`

const testRulebookYAML = `
version: 1
rules:
  - id: deny-supplier-findings
    priority: 100
    eligibility: 'ctx["finding_source"] == "supplier"'
    decision: '"deny"'
    reason_code: supplier_escalation_process
`

type authorizerStub struct {
	allowed  bool
	enforced bool
	err      error
}

func (a authorizerStub) Authorize(string, string, string, string) (bool, bool, error) {
	return a.allowed, a.enforced, a.err
}

func newTestHandler(t *testing.T, auth authorizer) http.Handler {
	t.Helper()

	allowlistPath := filepath.Join(t.TempDir(), "allowlist.yaml")
	if err := os.WriteFile(allowlistPath, []byte(testAllowlistYAML), 0o600); err != nil {
		t.Fatalf("write allowlist: %v", err)
	}
	rules, err := ParseActionRulebookYAML([]byte(testRulebookYAML))
	if err != nil {
		t.Fatalf("parse rulebook: %v", err)
	}

	h, err := NewHandlerWithOptions(HandlerOptions{
		Counters:      persistence.NewCounterMemoryStore(),
		Registry:      newMemoryRegistry(),
		Rules:         rules,
		Authorizer:    auth,
		Clock:         func() time.Time { return time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC) },
		AllowlistPath: allowlistPath,
	})
	if err != nil {
		t.Fatalf("NewHandlerWithOptions: %v", err)
	}
	return h
}

func doJSON(t *testing.T, h http.Handler, method, path, org, role, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if org != "" {
		req.Header.Set("X-Org-ID", org)
	}
	if role != "" {
		req.Header.Set("X-Role", role)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEntity(t *testing.T, rec *httptest.ResponseRecorder) ComplianceEntity {
	t.Helper()

	var e ComplianceEntity
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatalf("decode entity: %v (body %s)", err, rec.Body.String())
	}
	return e
}

func TestHealthzSkipsTenancy(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, authorizerStub{allowed: true, enforced: true})
	rec := doJSON(t, h, http.MethodGet, "/healthz", "", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestMissingOrgHeaderRejected(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, authorizerStub{allowed: true, enforced: true})
	rec := doJSON(t, h, http.MethodPost, "/api/audits", "", "", `{"title":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "org_missing") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestCreateFullChain(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, authorizerStub{allowed: true, enforced: true})

	rec := doJSON(t, h, http.MethodPost, "/api/audits", "org-a", "quality-manager", `{"title":"Annual supplier audit"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create audit: status = %d body %s", rec.Code, rec.Body.String())
	}
	audit := decodeEntity(t, rec)
	if audit.Number != "AUDIT-2024-001" {
		t.Fatalf("audit number = %q", audit.Number)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/findings", "org-a", "quality-manager",
		`{"title":"Hygiene gap","source":"audit","source_audit_number":"AUDIT-2024-001"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create finding: status = %d body %s", rec.Code, rec.Body.String())
	}
	finding := decodeEntity(t, rec)
	if finding.Number != "AUDIT-2024-001-HALL-001" {
		t.Fatalf("finding number = %q", finding.Number)
	}
	if len(finding.TraceabilityChain) != 2 {
		t.Fatalf("finding chain = %v", finding.TraceabilityChain)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/actions", "org-a", "quality-manager",
		`{"title":"Retrain staff","finding_number":"AUDIT-2024-001-HALL-001"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create action: status = %d body %s", rec.Code, rec.Body.String())
	}
	action := decodeEntity(t, rec)
	if action.Number != "AUDIT-2024-001-HALL-001-ACC-001" {
		t.Fatalf("action number = %q", action.Number)
	}
	want := []string{"AUDIT-2024-001", "AUDIT-2024-001-HALL-001", "AUDIT-2024-001-HALL-001-ACC-001"}
	if len(action.TraceabilityChain) != len(want) {
		t.Fatalf("action chain = %v", action.TraceabilityChain)
	}
	for i := range want {
		if action.TraceabilityChain[i] != want[i] {
			t.Fatalf("action chain = %v, want %v", action.TraceabilityChain, want)
		}
	}
}

func TestCreateFindingUnknownAuditRejected(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, authorizerStub{allowed: true, enforced: true})
	rec := doJSON(t, h, http.MethodPost, "/api/findings", "org-a", "quality-manager",
		`{"title":"x","source":"audit","source_audit_number":"AUDIT-2024-099"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 (body %s)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "unknown_audit") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestCreateActionUnknownFindingRejected(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, authorizerStub{allowed: true, enforced: true})
	rec := doJSON(t, h, http.MethodPost, "/api/actions", "org-a", "quality-manager",
		`{"title":"x","finding_number":"EMP-2024-HALL-001"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestCreateActionDeniedForSupplierFinding(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, authorizerStub{allowed: true, enforced: true})

	rec := doJSON(t, h, http.MethodPost, "/api/findings", "org-a", "quality-manager",
		`{"title":"Late delivery","source":"supplier"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create finding: status = %d body %s", rec.Code, rec.Body.String())
	}
	finding := decodeEntity(t, rec)
	if finding.Number != "SUP-2024-HALL-001" {
		t.Fatalf("finding number = %q", finding.Number)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/actions", "org-a", "quality-manager",
		`{"title":"x","finding_number":"SUP-2024-HALL-001"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 (body %s)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "action_not_eligible") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestTopLevelSeriesAreIndependent(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, authorizerStub{allowed: true, enforced: true})

	rec := doJSON(t, h, http.MethodPost, "/api/employee-declarations", "org-a", "quality-manager", `{"title":"Near miss"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("declaration: status = %d body %s", rec.Code, rec.Body.String())
	}
	if got := decodeEntity(t, rec).Number; got != "EMP-2024-001" {
		t.Fatalf("declaration number = %q", got)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/customer-surveys", "org-a", "quality-manager", `{"title":"Q1 survey"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("survey: status = %d body %s", rec.Code, rec.Body.String())
	}
	if got := decodeEntity(t, rec).Number; got != "CLI-2024-001" {
		t.Fatalf("survey number = %q", got)
	}

	// A second declaration continues its own series.
	rec = doJSON(t, h, http.MethodPost, "/api/employee-declarations", "org-a", "quality-manager", `{"title":"Another"}`)
	if got := decodeEntity(t, rec).Number; got != "EMP-2024-002" {
		t.Fatalf("second declaration number = %q", got)
	}
}

func TestTenantsGetIndependentSequences(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, authorizerStub{allowed: true, enforced: true})

	rec := doJSON(t, h, http.MethodPost, "/api/audits", "org-a", "quality-manager", `{"title":"a"}`)
	if got := decodeEntity(t, rec).Number; got != "AUDIT-2024-001" {
		t.Fatalf("org-a number = %q", got)
	}
	rec = doJSON(t, h, http.MethodPost, "/api/audits", "org-b", "quality-manager", `{"title":"b"}`)
	if got := decodeEntity(t, rec).Number; got != "AUDIT-2024-001" {
		t.Fatalf("org-b number = %q, want its own 001", got)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/audits", "org-a", "viewer", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rec.Code)
	}
	var list struct {
		Items []ComplianceEntity `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].Title != "a" {
		t.Fatalf("org-a items = %v", list.Items)
	}
}

func TestCreateAuditRequiresTitle(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, authorizerStub{allowed: true, enforced: true})
	rec := doJSON(t, h, http.MethodPost, "/api/audits", "org-a", "quality-manager", `{"title":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestTraceResolveEndpoint(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, authorizerStub{allowed: true, enforced: true})

	rec := doJSON(t, h, http.MethodGet, "/api/trace/resolve?number=AUDIT-2024-001-HALL-002-ACC-001", "org-a", "viewer", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	var resp traceResolveResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Chain) != 3 || resp.Chain[0] != "AUDIT-2024-001" {
		t.Fatalf("chain = %v", resp.Chain)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/trace/resolve?number=WAT-001", "org-a", "viewer", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/trace/resolve", "org-a", "viewer", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestActionEligibilityDryRun(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, authorizerStub{allowed: true, enforced: true})

	rec := doJSON(t, h, http.MethodPost, "/internal/rules/action-eligibility", "org-a", "quality-manager",
		`{"finding_number":"SUP-2024-HALL-004"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	var resp actionEligibilityResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Decision != "deny" || resp.ReasonCode != "supplier_escalation_process" {
		t.Fatalf("outcome = %+v", resp.RuleOutcome)
	}

	rec = doJSON(t, h, http.MethodPost, "/internal/rules/action-eligibility", "org-a", "quality-manager",
		`{"finding_number":"AUDIT-2024-001"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 for non-finding", rec.Code)
	}
}

func TestEnforcedDenyReturnsForbidden(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, authorizerStub{allowed: false, enforced: true})
	rec := doJSON(t, h, http.MethodPost, "/api/audits", "org-a", "viewer", `{"title":"x"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestShadowDenyStillServes(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, authorizerStub{allowed: false, enforced: false})
	rec := doJSON(t, h, http.MethodPost, "/api/audits", "org-a", "viewer", `{"title":"x"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 in shadow mode", rec.Code)
	}
}

func TestUnknownRouteReturnsNotFound(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, authorizerStub{allowed: true, enforced: true})
	rec := doJSON(t, h, http.MethodGet, "/api/nope", "org-a", "viewer", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
