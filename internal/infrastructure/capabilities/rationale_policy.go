package capabilities

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	apperrors "github.com/reglet-dev/rtperm/internal/application/errors"
)

// DefaultRationalePolicy asks for a rationale once the user has declined a
// capability before.
const DefaultRationalePolicy = "denials > 0"

// RationalePolicy decides whether a capability needs a justification before
// the host prompts for it. The expression sees:
//
//	name    string  full capability name
//	kind    string  text before the first ':'
//	denials int     times the user declined the capability
type RationalePolicy struct {
	program *vm.Program
	source  string
}

// NewRationalePolicy compiles a policy expression. An empty expression
// selects DefaultRationalePolicy.
func NewRationalePolicy(expression string) (*RationalePolicy, error) {
	if expression == "" {
		expression = DefaultRationalePolicy
	}

	program, err := expr.Compile(expression, expr.Env(policyEnv("", 0)), expr.AsBool())
	if err != nil {
		return nil, apperrors.NewConfigurationError("rationale policy",
			fmt.Sprintf("invalid expression %q", expression), err)
	}

	return &RationalePolicy{program: program, source: expression}, nil
}

// String returns the policy expression.
func (p *RationalePolicy) String() string {
	return p.source
}

// Evaluate reports whether the capability needs a rationale.
func (p *RationalePolicy) Evaluate(name string, denials int) (bool, error) {
	result, err := expr.Run(p.program, policyEnv(name, denials))
	if err != nil {
		return false, fmt.Errorf("rationale policy %q failed for %s: %w", p.source, name, err)
	}
	needed, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("rationale policy %q returned %T, expected bool", p.source, result)
	}
	return needed, nil
}

func policyEnv(name string, denials int) map[string]interface{} {
	return map[string]interface{}{
		"name":    name,
		"kind":    Kind(name),
		"denials": denials,
	}
}
