package cli

import (
	"context"
	"io"
	"strings"

	"github.com/aretw0/pageflow/internal/presentation/graph"
	"github.com/aretw0/pageflow/internal/presentation/tui"
	"github.com/aretw0/pageflow/pkg/domain"
	"github.com/aretw0/pageflow/pkg/ports"
)

// SessionRecords loads every conversation stored for a session.
func SessionRecords(ctx context.Context, store ports.ConversationStore, sessionID string) ([]domain.Record, error) {
	ids, err := store.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	records := make([]domain.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := store.Load(ctx, sessionID, id)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteInspection describes a flow and, optionally, the conversations of a
// session running it. Each conversation gets a Mermaid overlay of its path.
func WriteInspection(w io.Writer, g *domain.Graph, records []domain.Record) error {
	var sb strings.Builder
	sb.WriteString(tui.FlowMarkdown(g))

	for _, rec := range records {
		if rec.FlowID != g.ID() {
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(tui.RecordMarkdown(rec))
		sb.WriteString("\n```mermaid\n")
		sb.WriteString(graph.GenerateMermaid(g, &graph.GraphOverlay{
			VisitedStates: rec.History,
			CurrentState:  rec.Current,
		}))
		sb.WriteString("```\n")
	}
	return tui.WriteMarkdown(w, sb.String())
}
