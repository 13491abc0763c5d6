package orchestrator

import (
	"errors"
	"strings"

	"github.com/Knetic/govaluate"
)

// EvaluateRuleExpression evaluates an escalation rule expression against
// the handler result parameters. Empty expressions never fire. Supports
// "true"/"false" literals.
func EvaluateRuleExpression(expression string, params map[string]interface{}) (bool, error) {
	expr := strings.TrimSpace(expression)
	if expr == "" {
		return false, nil
	}
	switch strings.ToLower(expr) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}

	parsed, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return false, err
	}
	result, err := parsed.Evaluate(params)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, errors.New("escalation expression did not evaluate to boolean")
	}
	return b, nil
}
