package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/pageflow/pkg/domain"
)

// GraphOverlay contains conversation data to visualize on the graph.
type GraphOverlay struct {
	VisitedStates []string
	CurrentState  string
}

// GenerateMermaid produces a Mermaid flowchart of a flow.
// It applies semantic styling:
// - Initial: ((Circle))
// - Final: ([Stadium]) with the "final" class
// - Default: [Rectangle]
// Transitions are labelled with their event. The implicit final marker is
// only drawn when a transition targets it explicitly.
// It also applies overlay styles (Visited/Current) if provided.
func GenerateMermaid(g *domain.Graph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if g.Description() != "" {
		sb.WriteString(fmt.Sprintf("    %%%% %s\n", g.Description()))
	}

	var finals []string
	for _, id := range g.States() {
		safeID := sanitizeMermaidID(id)

		opener, closer := "[", "]"
		switch {
		case id == g.Initial():
			opener, closer = "((", "))"
		case g.IsFinal(id):
			opener, closer = "([", "])"
		}
		if g.IsFinal(id) {
			finals = append(finals, safeID)
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, id, closer))
	}

	drawFinal := false
	for _, t := range g.Transitions() {
		if t.To == domain.StateFinal {
			drawFinal = true
		}
		// Escape double quotes in the event for the Mermaid label
		event := strings.ReplaceAll(t.Event, "\"", "'")
		sb.WriteString(fmt.Sprintf("    %s -- \"%s\" --> %s\n",
			sanitizeMermaidID(t.From), event, sanitizeMermaidID(t.To)))
	}
	if drawFinal {
		sb.WriteString(fmt.Sprintf("    %s(((\"%s\")))\n", domain.StateFinal, domain.StateFinal))
		finals = append(finals, domain.StateFinal)
	}

	if len(finals) > 0 {
		sb.WriteString("    classDef final fill:#e8f5e9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString(fmt.Sprintf("    class %s final;\n", strings.Join(finals, ",")))
	}

	// Apply Overlay Styles
	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedStates {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" && id != overlay.CurrentState {
				visitedSet[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}

		if overlay.CurrentState != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentState)))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
