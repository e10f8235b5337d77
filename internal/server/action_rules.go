package server

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"
)

const (
	actionRuleDecisionAllow = "allow"
	actionRuleDecisionDeny  = "deny"
)

// ActionRulebook holds the tenant-agnostic CEL rules deciding whether a
// finding may open a corrective action. Rules see a string map named ctx;
// the highest-priority eligible rule wins, ties broken by rule id. An empty
// rulebook allows everything.
type ActionRulebook struct {
	rules []actionRule
}

type actionRule struct {
	ID          string `yaml:"id"`
	Priority    int    `yaml:"priority"`
	Eligibility string `yaml:"eligibility"`
	Decision    string `yaml:"decision"`
	ReasonCode  string `yaml:"reason_code"`
}

type actionRulebookFile struct {
	Version int          `yaml:"version"`
	Rules   []actionRule `yaml:"rules"`
}

func ParseActionRulebookYAML(b []byte) (*ActionRulebook, error) {
	var f actionRulebookFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	if f.Version != 1 {
		return nil, errors.New("action rules: unsupported version")
	}
	for _, r := range f.Rules {
		if strings.TrimSpace(r.ID) == "" || strings.TrimSpace(r.Eligibility) == "" || strings.TrimSpace(r.Decision) == "" {
			return nil, errors.New("action rules: rule requires id, eligibility and decision")
		}
	}
	return &ActionRulebook{rules: f.Rules}, nil
}

func LoadActionRulebook(path string) (*ActionRulebook, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseActionRulebookYAML(b)
}

// RuleOutcome reports which rule decided and why; rule id is empty when no
// rule was eligible and the default-allow applied.
type RuleOutcome struct {
	Decision   string `json:"decision"`
	ReasonCode string `json:"reason_code"`
	RuleID     string `json:"rule_id,omitempty"`
	Matched    int    `json:"eligibility_matched"`
}

func (rb *ActionRulebook) Evaluate(ctxMap map[string]string) (RuleOutcome, error) {
	matched := 0
	var selected *actionRule
	for i := range rb.rules {
		rule := rb.rules[i]
		eligible, err := evalActionEligibilityExpr(rule.Eligibility, ctxMap)
		if err != nil {
			return RuleOutcome{}, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		if !eligible {
			continue
		}
		matched++
		if selected == nil || rule.Priority > selected.Priority ||
			(rule.Priority == selected.Priority && rule.ID < selected.ID) {
			copied := rule
			selected = &copied
		}
	}
	if selected == nil {
		return RuleOutcome{Decision: actionRuleDecisionAllow, ReasonCode: "no_rule_matched", Matched: matched}, nil
	}

	decision, err := evalActionDecisionExpr(selected.Decision, ctxMap)
	if err != nil {
		return RuleOutcome{}, fmt.Errorf("rule %s: %w", selected.ID, err)
	}
	switch decision {
	case actionRuleDecisionAllow, actionRuleDecisionDeny:
	default:
		decision = actionRuleDecisionDeny
	}
	reasonCode := strings.TrimSpace(selected.ReasonCode)
	if reasonCode == "" {
		reasonCode = "rule_" + decision
	}
	return RuleOutcome{Decision: decision, ReasonCode: reasonCode, RuleID: selected.ID, Matched: matched}, nil
}

var newActionRulesCELEnv = func() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("ctx", cel.MapType(cel.StringType, cel.StringType)))
}

var actionRuleEligibilityProgramCache sync.Map
var actionRuleDecisionProgramCache sync.Map

func evalActionEligibilityExpr(expr string, ctxMap map[string]string) (bool, error) {
	program, err := loadOrCompileActionProgram(expr, cel.BoolType, &actionRuleEligibilityProgramCache)
	if err != nil {
		return false, err
	}
	out, _, err := program.Eval(map[string]any{"ctx": ctxMap})
	if err != nil {
		return false, err
	}
	v, ok := out.Value().(bool)
	if !ok {
		return false, errors.New("eligibility did not evaluate to bool")
	}
	return v, nil
}

func evalActionDecisionExpr(expr string, ctxMap map[string]string) (string, error) {
	program, err := loadOrCompileActionProgram(expr, cel.StringType, &actionRuleDecisionProgramCache)
	if err != nil {
		return "", err
	}
	out, _, err := program.Eval(map[string]any{"ctx": ctxMap})
	if err != nil {
		return "", err
	}
	v, ok := out.Value().(string)
	if !ok {
		return "", errors.New("decision did not evaluate to string")
	}
	return strings.ToLower(strings.TrimSpace(v)), nil
}

func loadOrCompileActionProgram(expr string, outputType *cel.Type, cache *sync.Map) (cel.Program, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("expression required")
	}
	if cached, ok := cache.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	env, err := newActionRulesCELEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if ast.OutputType() != outputType {
		return nil, errors.New("expression output type mismatch")
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	cache.Store(expr, program)
	return program, nil
}
