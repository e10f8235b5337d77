package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mbellanger/Audits-And-Actions/internal/routing"
	"github.com/mbellanger/Audits-And-Actions/modules/traceability/domain/ports"
	"github.com/mbellanger/Audits-And-Actions/modules/traceability/domain/types"
	"github.com/mbellanger/Audits-And-Actions/modules/traceability/infrastructure/persistence"
	"github.com/mbellanger/Audits-And-Actions/modules/traceability/services"
)

type HandlerOptions struct {
	Counters      ports.CounterStore
	Registry      registryStore
	Rules         *ActionRulebook
	Authorizer    authorizer
	Clock         func() time.Time
	AllowlistPath string
}

func NewHandler() (http.Handler, error) {
	return NewHandlerWithOptions(HandlerOptions{})
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	allowlistPath := opts.AllowlistPath
	if allowlistPath == "" {
		allowlistPath = os.Getenv("ALLOWLIST_PATH")
	}
	if allowlistPath == "" {
		p, err := defaultConfigPath("config/routing/allowlist.yaml")
		if err != nil {
			return nil, errors.New("server: allowlist not found")
		}
		allowlistPath = p
	}
	a, err := routing.LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, err
	}
	classifier, err := routing.NewClassifier(a, "server")
	if err != nil {
		return nil, err
	}

	counters := opts.Counters
	registry := opts.Registry
	if counters == nil || registry == nil {
		switch getenvDefault("REGISTRY_BACKEND", "postgres") {
		case "memory":
			if counters == nil {
				counters = persistence.NewCounterMemoryStore()
			}
			if registry == nil {
				registry = newMemoryRegistry()
			}
		default:
			pool, err := pgxpool.New(context.Background(), dbDSNFromEnv())
			if err != nil {
				return nil, err
			}
			if counters == nil {
				counters = persistence.NewCounterPGStore(pool)
			}
			if registry == nil {
				registry = newPGRegistry(pool)
			}
		}
	}

	rules := opts.Rules
	if rules == nil {
		rulesPath := os.Getenv("ACTION_RULES_PATH")
		if rulesPath == "" {
			p, err := defaultConfigPath("config/rules/action_eligibility.yaml")
			if err != nil {
				return nil, errors.New("server: action rulebook not found")
			}
			rulesPath = p
		}
		rules, err = LoadActionRulebook(rulesPath)
		if err != nil {
			return nil, err
		}
	}

	auth := opts.Authorizer
	if auth == nil {
		loaded, err := loadAuthorizer()
		if err != nil {
			return nil, err
		}
		auth = loaded
	}

	numbers := services.NewNumberService(counters)
	if opts.Clock != nil {
		numbers = services.NewNumberServiceWithClock(counters, opts.Clock)
	}

	router := routing.NewRouter()

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	router.Handle(http.MethodGet, "/health", okHandler)
	router.Handle(http.MethodGet, "/healthz", okHandler)

	router.Handle(http.MethodPost, "/api/audits", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleCreateAudit(w, r, numbers, registry)
	}))
	router.Handle(http.MethodGet, "/api/audits", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleListByKind(w, r, registry, types.KindAudit)
	}))
	router.Handle(http.MethodPost, "/api/findings", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleCreateFinding(w, r, numbers, registry)
	}))
	router.Handle(http.MethodGet, "/api/findings", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleListByKind(w, r, registry, types.KindFinding)
	}))
	router.Handle(http.MethodPost, "/api/actions", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleCreateAction(w, r, numbers, registry, rules)
	}))
	router.Handle(http.MethodGet, "/api/actions", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleListByKind(w, r, registry, types.KindAction)
	}))
	router.Handle(http.MethodPost, "/api/employee-declarations", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleCreateEmployeeDeclaration(w, r, numbers, registry)
	}))
	router.Handle(http.MethodGet, "/api/employee-declarations", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleListByKind(w, r, registry, types.KindEmployeeDeclaration)
	}))
	router.Handle(http.MethodPost, "/api/customer-surveys", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleCreateCustomerSurvey(w, r, numbers, registry)
	}))
	router.Handle(http.MethodGet, "/api/customer-surveys", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleListByKind(w, r, registry, types.KindCustomerSurvey)
	}))
	router.Handle(http.MethodGet, "/api/trace/resolve", http.HandlerFunc(handleTraceResolve))
	router.Handle(http.MethodPost, "/internal/rules/action-eligibility", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleActionEligibilityAPI(w, r, rules)
	}))

	return withTenancy(classifier, withAuthz(classifier, auth, router)), nil
}

func MustNewHandler() http.Handler {
	h, err := NewHandler()
	if err != nil {
		panic(errors.New("server: failed to build handler: " + err.Error()))
	}
	return h
}

func NewMux() http.Handler {
	return MustNewHandler()
}
