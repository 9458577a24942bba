package services

import (
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"

	"github.com/jacksonlee411/Roots-And-Branches/modules/organization/domain/types"
)

const (
	policyDecisionAllow = "allow"
	policyDecisionDeny  = "deny"
)

// MutationPolicy gates each mutating command before it reaches the store.
// A nil policy allows everything.
type MutationPolicy interface {
	Resolve(facts PolicyFacts) (PolicyDecision, error)
}

// PolicyFacts is the evaluation context handed to every rule, flattened to
// strings so rule authors work against one stable shape.
type PolicyFacts struct {
	TenantID      string
	Operation     types.OperationType
	Code          string
	UnitType      string
	EffectiveDate string
	ActorID       string
	ActorRole     string
}

type PolicyDecision struct {
	Allowed    bool
	RuleID     string
	ReasonCode string
}

// PolicyRule pairs a CEL eligibility expression (bool) with a CEL decision
// expression ("allow"/"deny"). Among eligible rules the highest priority
// wins; ties break on rule id to stay deterministic.
type PolicyRule struct {
	ID          string `yaml:"id"`
	Priority    int    `yaml:"priority"`
	Eligibility string `yaml:"eligibility"`
	Decision    string `yaml:"decision"`
	ReasonCode  string `yaml:"reason_code"`
}

type policyRuleFile struct {
	Rules []PolicyRule `yaml:"rules"`
}

type celMutationPolicy struct {
	rules []PolicyRule

	eligibilityCache sync.Map
	decisionCache    sync.Map
}

// LoadMutationPolicy reads a YAML rule file. A missing path yields a nil
// policy, which the command service treats as allow-all.
func LoadMutationPolicy(path string) (MutationPolicy, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseMutationPolicy(raw)
}

func ParseMutationPolicy(raw []byte) (MutationPolicy, error) {
	var file policyRuleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, err
	}
	policy := &celMutationPolicy{rules: file.Rules}
	// Compile up front so a malformed rule fails at startup, not on the
	// first command it would have gated.
	for _, rule := range file.Rules {
		if strings.TrimSpace(rule.ID) == "" {
			return nil, errors.New("policy rule without id")
		}
		if _, err := policy.loadOrCompile(rule.Eligibility, cel.BoolType, &policy.eligibilityCache); err != nil {
			return nil, err
		}
		if _, err := policy.loadOrCompile(rule.Decision, cel.StringType, &policy.decisionCache); err != nil {
			return nil, err
		}
	}
	return policy, nil
}

func (p *celMutationPolicy) Resolve(facts PolicyFacts) (PolicyDecision, error) {
	ctxMap := facts.celContextMap()

	var selected *PolicyRule
	for i := range p.rules {
		rule := p.rules[i]
		eligible, err := p.evalEligibility(rule.Eligibility, ctxMap)
		if err != nil {
			return PolicyDecision{}, err
		}
		if !eligible {
			continue
		}
		if selected == nil || rule.Priority > selected.Priority ||
			(rule.Priority == selected.Priority && rule.ID < selected.ID) {
			copyRule := rule
			selected = &copyRule
		}
	}
	if selected == nil {
		// No rule claims this command: allow. Rules narrow, they do
		// not gate-keep by default.
		return PolicyDecision{Allowed: true}, nil
	}

	decision, err := p.evalDecision(selected.Decision, ctxMap)
	if err != nil {
		return PolicyDecision{}, err
	}
	return PolicyDecision{
		Allowed:    decision == policyDecisionAllow,
		RuleID:     selected.ID,
		ReasonCode: selected.ReasonCode,
	}, nil
}

func (f PolicyFacts) celContextMap() map[string]string {
	return map[string]string{
		"tenant_id":      f.TenantID,
		"operation":      string(f.Operation),
		"code":           f.Code,
		"unit_type":      f.UnitType,
		"effective_date": f.EffectiveDate,
		"actor_id":       f.ActorID,
		"actor_role":     f.ActorRole,
	}
}

func newPolicyCELEnv() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("ctx", cel.MapType(cel.StringType, cel.StringType)))
}

func (p *celMutationPolicy) evalEligibility(expr string, ctxMap map[string]string) (bool, error) {
	program, err := p.loadOrCompile(expr, cel.BoolType, &p.eligibilityCache)
	if err != nil {
		return false, err
	}
	out, _, err := program.Eval(map[string]any{"ctx": ctxMap})
	if err != nil {
		return false, err
	}
	v, ok := out.Value().(bool)
	if !ok {
		return false, errors.New("eligibility expression did not yield bool")
	}
	return v, nil
}

func (p *celMutationPolicy) evalDecision(expr string, ctxMap map[string]string) (string, error) {
	program, err := p.loadOrCompile(expr, cel.StringType, &p.decisionCache)
	if err != nil {
		return "", err
	}
	out, _, err := program.Eval(map[string]any{"ctx": ctxMap})
	if err != nil {
		return "", err
	}
	v, ok := out.Value().(string)
	if !ok {
		return "", errors.New("decision expression did not yield string")
	}
	return strings.ToLower(strings.TrimSpace(v)), nil
}

func (p *celMutationPolicy) loadOrCompile(expr string, outputType *cel.Type, cache *sync.Map) (cel.Program, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("policy expression required")
	}
	if cached, ok := cache.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	env, err := newPolicyCELEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if ast.OutputType() != outputType {
		return nil, errors.New("policy expression output type mismatch")
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	cache.Store(expr, program)
	return program, nil
}
