package routing

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Allowlist declares the full route surface of one binary. Every route names
// its class up front so tenancy and authorization middleware can tell the
// tenant-facing API paths from ops probes before any handler runs.
type Allowlist struct {
	Version     int                   `yaml:"version"`
	Entrypoints map[string]Entrypoint `yaml:"entrypoints"`
}

type Entrypoint struct {
	Routes []Route `yaml:"routes"`
}

type Route struct {
	Path       string   `yaml:"path"`
	Methods    []string `yaml:"methods"`
	RouteClass string   `yaml:"route_class"`
}

func ParseAllowlistYAML(b []byte) (Allowlist, error) {
	var a Allowlist
	if err := yaml.Unmarshal(b, &a); err != nil {
		return Allowlist{}, err
	}
	if a.Version != 1 {
		return Allowlist{}, fmt.Errorf("allowlist: unsupported version %d", a.Version)
	}
	if len(a.Entrypoints) == 0 {
		return Allowlist{}, errors.New("allowlist: missing entrypoints")
	}
	for name, ep := range a.Entrypoints {
		for _, r := range ep.Routes {
			if err := r.validate(); err != nil {
				return Allowlist{}, fmt.Errorf("allowlist: entrypoint %s: %w", name, err)
			}
		}
	}
	return a, nil
}

func (r Route) validate() error {
	if !strings.HasPrefix(r.Path, "/") {
		return fmt.Errorf("route %q: path must start with /", r.Path)
	}
	if len(r.Methods) == 0 {
		return fmt.Errorf("route %q: methods required", r.Path)
	}
	switch RouteClass(r.RouteClass) {
	case RouteClassPublicAPI, RouteClassInternalAPI, RouteClassOps:
		return nil
	default:
		return fmt.Errorf("route %q: unknown route class %q", r.Path, r.RouteClass)
	}
}

func LoadAllowlist(path string) (Allowlist, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Allowlist{}, err
	}
	return ParseAllowlistYAML(b)
}
