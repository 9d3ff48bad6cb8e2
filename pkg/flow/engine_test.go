package flow_test

import (
	"testing"

	"github.com/aretw0/pageflow/pkg/domain"
	"github.com/aretw0/pageflow/pkg/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGraph(t *testing.T) *domain.Graph {
	t.Helper()
	g, err := domain.NewGraph(domain.GraphSpec{
		ID:      "signup",
		Initial: "start",
		States:  []string{"start", "review", "done"},
		Final:   []string{"done"},
		Transitions: []domain.Transition{
			{From: "start", Event: "submit", To: "review"},
			{From: "review", Event: "edit", To: "start"},
			{From: "review", Event: "confirm", To: "done"},
		},
	})
	require.NoError(t, err)
	return g
}

func TestEngine_Start(t *testing.T) {
	e := flow.New(newGraph(t))
	assert.False(t, e.Started())

	require.NoError(t, e.Start())
	assert.Equal(t, "start", e.Current())
	assert.Empty(t, e.Previous())

	err := e.Start()
	var already *domain.AlreadyStartedError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, "start", already.State)
	assert.Equal(t, "start", e.Current(), "second Start must not move the cursor")
	assert.Empty(t, e.Previous())
}

func TestEngine_Trigger_DeclaredTransitions(t *testing.T) {
	g := newGraph(t)

	// Every declared (state, event) pair yields its target and records the prior state.
	for _, tr := range g.Transitions() {
		t.Run(tr.From+"--"+tr.Event, func(t *testing.T) {
			e := flow.New(g)
			require.NoError(t, e.Start())
			require.NoError(t, e.Restore(tr.From, "", nil))

			require.NoError(t, e.Trigger(tr.Event))
			assert.Equal(t, tr.To, e.Current())
			assert.Equal(t, tr.From, e.Previous())
		})
	}
}

func TestEngine_Trigger_Undefined(t *testing.T) {
	e := flow.New(newGraph(t))
	require.NoError(t, e.Start())
	require.NoError(t, e.Trigger("submit"))

	err := e.Trigger("submit")
	var noSuch *domain.NoSuchTransitionError
	require.ErrorAs(t, err, &noSuch)
	assert.Equal(t, "review", noSuch.From)
	assert.Equal(t, "submit", noSuch.Event)

	assert.Equal(t, "review", e.Current())
	assert.Equal(t, "start", e.Previous())
}

func TestEngine_Trigger_NotStarted(t *testing.T) {
	e := flow.New(newGraph(t))
	assert.ErrorIs(t, e.Trigger("submit"), domain.ErrNotStarted)
}

func TestEngine_Trigger_OnFinalStateIsIgnored(t *testing.T) {
	e := flow.New(newGraph(t))
	require.NoError(t, e.Start())
	require.NoError(t, e.Trigger("submit"))
	require.NoError(t, e.Trigger("confirm"))
	require.True(t, e.IsEndState())

	assert.NoError(t, e.Trigger("submit"))
	assert.Equal(t, "done", e.Current())
	assert.Equal(t, "review", e.Previous())
}

func TestEngine_ForcedEnd(t *testing.T) {
	e := flow.New(newGraph(t))
	require.NoError(t, e.Start())
	require.False(t, e.IsEndState())

	require.NoError(t, e.Trigger(domain.StateFinal))
	assert.Equal(t, domain.StateFinal, e.Current())
	assert.Equal(t, "start", e.Previous())
	assert.True(t, e.IsEndState())
	assert.Equal(t, []string{"start", domain.StateFinal}, e.History())
}

func TestEngine_Clone_DoesNotAlias(t *testing.T) {
	template := flow.New(newGraph(t))

	a := template.Clone()
	b := template.Clone()
	require.NoError(t, a.Start())
	require.NoError(t, b.Start())

	require.NoError(t, a.Trigger("submit"))
	assert.Equal(t, "review", a.Current())
	assert.Equal(t, "start", b.Current())
	assert.False(t, template.Started())

	c := a.Clone()
	require.NoError(t, c.Trigger("confirm"))
	assert.Equal(t, "review", a.Current())
	assert.Equal(t, []string{"start", "review"}, a.History())
}

func TestEngine_Restore_UnknownState(t *testing.T) {
	e := flow.New(newGraph(t))

	var unknown *domain.UnknownStateError
	require.ErrorAs(t, e.Restore("ghost", "", nil), &unknown)
	assert.Equal(t, "ghost", unknown.State)

	require.ErrorAs(t, e.Restore("review", "ghost", nil), &unknown)
	assert.False(t, e.Started())
}
