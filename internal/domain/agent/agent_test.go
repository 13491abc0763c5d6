package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	got, err := ParseType("RECONCILIATION")
	require.NoError(t, err)
	assert.Equal(t, TypeReconciliation, got)

	_, err = ParseType("reconciliation")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDefinition_ConfidenceThreshold(t *testing.T) {
	def := &Definition{
		Type: TypeTax,
		EscalationRules: []EscalationRule{
			{Condition: ConditionLowConfidence, Threshold: threshold(80)},
		},
	}
	assert.Equal(t, 80.0, def.ConfidenceThreshold())

	bare := &Definition{Type: TypeTax}
	assert.Equal(t, DefaultConfidenceThreshold, bare.ConfidenceThreshold())
}

func TestDefinition_EscalateTarget(t *testing.T) {
	def := &Definition{
		EscalationRules: []EscalationRule{
			{Condition: ConditionLowConfidence, EscalateTo: "tax_reviewer"},
			{Condition: ConditionFailure, EscalateTo: "practice_manager"},
		},
	}
	assert.Equal(t, "practice_manager", def.EscalateTarget(ConditionFailure))
	assert.Equal(t, "", def.EscalateTarget(ConditionManual))
}

func TestCatalog(t *testing.T) {
	c := NewCatalog()
	c.Register(&Definition{Type: TypeDocument, Enabled: true, Timeout: time.Minute})

	def, err := c.Get(TypeDocument)
	require.NoError(t, err)
	assert.True(t, def.Enabled)

	_, err = c.Get(TypeTax)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.SetEnabled(TypeDocument, false))
	def, err = c.Get(TypeDocument)
	require.NoError(t, err)
	assert.False(t, def.Enabled)

	assert.ErrorIs(t, c.SetEnabled(TypeNotification, true), ErrNotFound)
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	assert.Len(t, c.List(), 5)

	for _, typ := range []Type{TypeDocument, TypeTax, TypeReconciliation, TypeTaskAssignment, TypeNotification} {
		def, err := c.Get(typ)
		require.NoError(t, err)
		assert.True(t, def.Enabled, "agent %s must start enabled", typ)
		assert.Positive(t, def.Timeout)
	}

	tax, _ := c.Get(TypeTax)
	assert.Equal(t, 80.0, tax.ConfidenceThreshold())
	assert.Equal(t, "tax_reviewer", tax.EscalateTarget(ConditionFailure))
}
