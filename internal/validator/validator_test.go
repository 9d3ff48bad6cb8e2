package validator

import (
	"testing"

	"github.com/aretw0/pageflow/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateGraph(t *testing.T) {
	// 1. Scenario A: Valid Graph
	// start -> review -> done (final)
	valid := dsl.New("signup")
	valid.Add("start").On("submit", "review")
	valid.Add("review").On("confirm", "done").Go("start")
	valid.Add("done").Terminal()

	assert.NoError(t, ValidateGraph(valid.MustBuild()))

	// 2. Scenario B: Unreachable and dead-end states
	broken := dsl.New("broken")
	broken.Add("start").On("next", "stuck")
	broken.Add("stuck")
	broken.Add("orphan").On("next", "start")

	err := ValidateGraph(broken.MustBuild())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "found 2 errors")
	assert.Contains(t, err.Error(), "Unreachable state: 'orphan'")
	assert.Contains(t, err.Error(), "Dead end (not final, no transitions): 'stuck'")

	// 3. Scenario C: the implicit final marker ends a flow
	implicit := dsl.New("quick")
	implicit.Add("only").On("finish", "FINAL")
	assert.NoError(t, ValidateGraph(implicit.MustBuild()))
}
