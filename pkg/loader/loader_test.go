package loader_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/pageflow/pkg/domain"
	"github.com/aretw0/pageflow/pkg/loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signupYAML = `
id: signup
description: Account creation
states:
  - id: start
    transitions:
      - on: submit
        to: review
  - id: review
    transitions:
      - to: start
      - on: confirm
        to_state: done
  - id: done
    final: true
`

func TestParse(t *testing.T) {
	graphs, err := loader.Parse([]byte(signupYAML))
	require.NoError(t, err)
	require.Len(t, graphs, 1)

	g := graphs[0]
	assert.Equal(t, "signup", g.ID())
	assert.Equal(t, "Account creation", g.Description())
	assert.Equal(t, "start", g.Initial(), "the first state is initial by default")
	assert.Equal(t, []string{"done"}, g.Final())

	to, ok := g.Target("review", "start")
	require.True(t, ok, "event defaults to the target id")
	assert.Equal(t, "start", to)

	to, ok = g.Target("review", "confirm")
	require.True(t, ok)
	assert.Equal(t, "done", to)
}

func TestParse_MultipleDocuments(t *testing.T) {
	data := signupYAML + "\n---\nid: survey\ninitial: q1\nstates:\n  - id: q1\n"
	graphs, err := loader.Parse([]byte(data))
	require.NoError(t, err)
	require.Len(t, graphs, 2)
	assert.Equal(t, "survey", graphs[1].ID())
	assert.Equal(t, "q1", graphs[1].Initial())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown key", "id: x\nstates:\n  - id: a\n    colour: red\n"},
		{"missing id", "states:\n  - id: a\n"},
		{"state without id", "id: x\nstates:\n  - final: true\n"},
		{"not yaml", "id: [unterminated"},
		{"duplicate edge", "id: x\nstates:\n  - id: a\n    transitions:\n      - {on: go, to: b}\n      - {on: go, to: c}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}

	_, err := loader.Parse([]byte("id: x\n"))
	assert.ErrorIs(t, err, domain.ErrInvalidGraph, "a flow needs at least an initial state")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_signup.yaml"), []byte(signupYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_survey.json"),
		[]byte(`{"id": "survey", "states": [{"id": "q1", "transitions": [{"on": "finish", "to": "FINAL"}]}]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	graphs, err := loader.Load(dir)
	require.NoError(t, err)
	require.Len(t, graphs, 2)
	assert.Equal(t, "survey", graphs[0].ID())
	assert.Equal(t, "signup", graphs[1].ID())

	single, err := loader.Load(filepath.Join(dir, "b_signup.yaml"))
	require.NoError(t, err)
	require.Len(t, single, 1)

	_, err = loader.Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
