// Package validator reports structural defects of flow graphs that
// domain.NewGraph accepts but that make a flow unusable.
package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/pageflow/pkg/domain"
)

// ValidateGraph checks for unreachable states and dead ends starting from
// the initial state. A dead end is a non-final state without outgoing
// transitions: a conversation entering it can never finish.
func ValidateGraph(g *domain.Graph) error {
	// 1. Crawl from the initial state
	visited := map[string]bool{}
	queue := []string{g.Initial()}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if visited[current] {
			continue
		}
		visited[current] = true

		for _, t := range g.Outgoing(current) {
			if !visited[t.To] {
				queue = append(queue, t.To)
			}
		}
	}

	// 2. Inspect every declared state
	var errors []string
	for _, id := range g.States() {
		if !visited[id] {
			errors = append(errors, fmt.Sprintf("Unreachable state: '%s'", id))
		}
		if !g.IsFinal(id) && len(g.Outgoing(id)) == 0 {
			errors = append(errors, fmt.Sprintf("Dead end (not final, no transitions): '%s'", id))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("flow '%s': found %d errors:\n- %s", g.ID(), len(errors), strings.Join(errors, "\n- "))
	}
	return nil
}
