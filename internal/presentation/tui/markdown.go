package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/pageflow/pkg/domain"
)

// FlowMarkdown describes a flow as a markdown document.
func FlowMarkdown(g *domain.Graph) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Flow `%s`\n\n", g.ID())
	if g.Description() != "" {
		fmt.Fprintf(&sb, "%s\n\n", g.Description())
	}
	fmt.Fprintf(&sb, "- **Initial state:** `%s`\n", g.Initial())
	if final := g.Final(); len(final) > 0 {
		fmt.Fprintf(&sb, "- **Final states:** %s\n", codeList(final))
	}

	sb.WriteString("\n| From | Event | To |\n|------|-------|----|\n")
	for _, t := range g.Transitions() {
		fmt.Fprintf(&sb, "| `%s` | `%s` | `%s` |\n", t.From, t.Event, t.To)
	}
	return sb.String()
}

// RecordMarkdown describes a stored conversation.
func RecordMarkdown(rec domain.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Conversation `%s`\n\n", rec.ID)
	fmt.Fprintf(&sb, "- **Flow:** `%s`\n", rec.FlowID)
	fmt.Fprintf(&sb, "- **Current state:** `%s`\n", rec.Current)
	if rec.Previous != "" {
		fmt.Fprintf(&sb, "- **Previous state:** `%s`\n", rec.Previous)
	}
	if len(rec.History) > 0 {
		fmt.Fprintf(&sb, "- **History:** %s\n", strings.Join(rec.History, " → "))
	}
	if !rec.UpdatedAt.IsZero() {
		fmt.Fprintf(&sb, "- **Updated:** %s\n", rec.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	}

	if len(rec.Attributes) > 0 {
		sb.WriteString("\n| Attribute | Value |\n|-----------|-------|\n")
		keys := make([]string, 0, len(rec.Attributes))
		for k := range rec.Attributes {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "| `%s` | %v |\n", k, rec.Attributes[k])
		}
	}
	return sb.String()
}

func codeList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "`" + s + "`"
	}
	return strings.Join(quoted, ", ")
}
