package domain_test

import (
	"testing"

	"github.com/aretw0/pageflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reviewSpec() domain.GraphSpec {
	return domain.GraphSpec{
		ID:      "signup",
		Initial: "start",
		States:  []string{"start", "review", "done"},
		Final:   []string{"done"},
		Transitions: []domain.Transition{
			{From: "start", Event: "submit", To: "review"},
			{From: "review", Event: "confirm", To: "done"},
		},
	}
}

func TestNewGraph(t *testing.T) {
	g, err := domain.NewGraph(reviewSpec())
	require.NoError(t, err)

	assert.Equal(t, "signup", g.ID())
	assert.Equal(t, "start", g.Initial())
	assert.Equal(t, []string{"start", "review", "done"}, g.States())
	assert.Equal(t, []string{"done"}, g.Final())
	assert.True(t, g.IsFinal("done"))
	assert.True(t, g.IsFinal(domain.StateFinal))
	assert.False(t, g.IsFinal("review"))
	assert.True(t, g.HasState(domain.StateFinal))
	assert.False(t, g.HasState("ghost"))

	to, ok := g.Target("start", "submit")
	assert.True(t, ok)
	assert.Equal(t, "review", to)

	_, ok = g.Target("start", "confirm")
	assert.False(t, ok)

	assert.Len(t, g.Outgoing("review"), 1)
}

func TestNewGraph_Immutable(t *testing.T) {
	g, err := domain.NewGraph(reviewSpec())
	require.NoError(t, err)

	states := g.States()
	states[0] = "mutated"
	transitions := g.Transitions()
	transitions[0].To = "mutated"

	assert.Equal(t, "start", g.States()[0])
	assert.Equal(t, "review", g.Transitions()[0].To)
}

func TestNewGraph_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.GraphSpec)
	}{
		{"missing id", func(s *domain.GraphSpec) { s.ID = "" }},
		{"missing initial", func(s *domain.GraphSpec) { s.Initial = "" }},
		{"unknown final", func(s *domain.GraphSpec) { s.Final = []string{"ghost"} }},
		{"incomplete transition", func(s *domain.GraphSpec) {
			s.Transitions = append(s.Transitions, domain.Transition{From: "start", To: "review"})
		}},
		{"duplicate edge", func(s *domain.GraphSpec) {
			s.Transitions = append(s.Transitions, domain.Transition{From: "start", Event: "submit", To: "done"})
		}},
		{"reserved event", func(s *domain.GraphSpec) {
			s.Transitions = append(s.Transitions, domain.Transition{From: "start", Event: domain.StateFinal, To: "done"})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := reviewSpec()
			tt.mutate(&spec)
			_, err := domain.NewGraph(spec)
			assert.ErrorIs(t, err, domain.ErrInvalidGraph)
		})
	}
}

func TestAccessDeniedError_Message(t *testing.T) {
	err := &domain.AccessDeniedError{
		Handler: "*demo.Wizard",
		Action:  "confirm",
		Allowed: []string{"review"},
		Actual:  "start",
	}

	assert.Equal(t,
		`handler "*demo.Wizard::confirm" can be accessed when the current state is one of [ review ], the actual state is "start"`,
		err.Error())
	assert.True(t, domain.IsAccessDenied(err))
}
