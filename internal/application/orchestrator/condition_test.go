package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateRuleExpression(t *testing.T) {
	params := map[string]interface{}{
		"confidence": 72.5,
		"success":    true,
		"attempts":   2,
		"warnings":   1,
	}

	t.Run("empty expression never fires", func(t *testing.T) {
		hit, err := EvaluateRuleExpression("", params)
		require.NoError(t, err)
		assert.False(t, hit)

		hit, err = EvaluateRuleExpression("   ", params)
		require.NoError(t, err)
		assert.False(t, hit)
	})

	t.Run("boolean literals", func(t *testing.T) {
		hit, err := EvaluateRuleExpression("true", nil)
		require.NoError(t, err)
		assert.True(t, hit)

		hit, err = EvaluateRuleExpression("FALSE", nil)
		require.NoError(t, err)
		assert.False(t, hit)
	})

	t.Run("comparisons against result parameters", func(t *testing.T) {
		hit, err := EvaluateRuleExpression("confidence < 80", params)
		require.NoError(t, err)
		assert.True(t, hit)

		hit, err = EvaluateRuleExpression("confidence < 50", params)
		require.NoError(t, err)
		assert.False(t, hit)

		hit, err = EvaluateRuleExpression("warnings > 0 && attempts >= 2", params)
		require.NoError(t, err)
		assert.True(t, hit)

		hit, err = EvaluateRuleExpression("success == false", params)
		require.NoError(t, err)
		assert.False(t, hit)
	})

	t.Run("malformed expression", func(t *testing.T) {
		_, err := EvaluateRuleExpression("confidence <", params)
		assert.Error(t, err)
	})

	t.Run("non boolean result", func(t *testing.T) {
		_, err := EvaluateRuleExpression("confidence + 1", params)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boolean")
	})

	t.Run("unknown parameter", func(t *testing.T) {
		_, err := EvaluateRuleExpression("savings > 10", params)
		assert.Error(t, err)
	})
}
