package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/mbellanger/Audits-And-Actions/internal/routing"
	"github.com/mbellanger/Audits-And-Actions/pkg/authz"
)

func loadAuthorizer() (*authz.Authorizer, error) {
	modelPath := os.Getenv("AUTHZ_MODEL_PATH")
	if modelPath == "" {
		p, err := defaultConfigPath("config/access/model.conf")
		if err != nil {
			return nil, errors.New("server: authz model not found")
		}
		modelPath = p
	}

	policyPath := os.Getenv("AUTHZ_POLICY_PATH")
	if policyPath == "" {
		p, err := defaultConfigPath("config/access/policy.csv")
		if err != nil {
			return nil, errors.New("server: authz policy not found")
		}
		policyPath = p
	}

	mode, err := authz.ModeFromEnv()
	if err != nil {
		return nil, err
	}

	return authz.NewAuthorizer(modelPath, policyPath, mode)
}

func defaultConfigPath(rel string) (string, error) {
	path := rel
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: config file not found: " + rel)
}

type authorizer interface {
	Authorize(subject string, domain string, object string, action string) (allowed bool, enforced bool, err error)
}

func objectForPath(path string) string {
	switch {
	case path == "/api/audits":
		return authz.ObjectAudits
	case path == "/api/findings":
		return authz.ObjectFindings
	case path == "/api/actions":
		return authz.ObjectActions
	case path == "/api/employee-declarations":
		return authz.ObjectDeclarations
	case path == "/api/customer-surveys":
		return authz.ObjectSurveys
	case strings.HasPrefix(path, "/api/trace"):
		return authz.ObjectTrace
	case strings.HasPrefix(path, "/internal/rules"):
		return authz.ObjectRules
	default:
		return ""
	}
}

func withAuthz(classifier *routing.Classifier, a authorizer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if classifier.Classify(r.URL.Path) == routing.RouteClassOps {
			next.ServeHTTP(w, r)
			return
		}

		tenant, ok := currentTenant(r.Context())
		if !ok {
			routing.WriteError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
			return
		}

		object := objectForPath(r.URL.Path)
		if object == "" {
			// Unknown objects fall through to the router's 404.
			next.ServeHTTP(w, r)
			return
		}
		action := authz.ActionWrite
		if r.Method == http.MethodGet {
			action = authz.ActionRead
		}

		subject := authz.SubjectFromRoleSlug(tenant.RoleSlug)
		domain := authz.DomainFromOrganizationID(tenant.ID)
		allowed, enforced, err := a.Authorize(subject, domain, object, action)
		if err != nil {
			routing.WriteError(w, r, http.StatusInternalServerError, "authz_error", "authorization error")
			return
		}
		if !allowed && enforced {
			routing.WriteError(w, r, http.StatusForbidden, "forbidden", "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}
