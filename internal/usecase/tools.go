package usecase

import (
	"context"
	"fmt"
	"strings"

	"incidentkb/internal/domain"
	"incidentkb/internal/port"
)

const (
	ToolSearchIncidents   = "search_incidents"
	ToolSummarizeIncident = "summarize_incident"
	ToolLinkIncidents     = "link_incidents"

	// DefaultPreviewChars bounds the content shown per hit.
	DefaultPreviewChars = 200

	noRelatedIncidents = "No related incidents found"
	separator          = "----------------------------------------"
)

// IncidentTools renders search, summary and link results as plain text for
// the planning service.
type IncidentTools struct {
	memory       *VectorMemory
	topK         int
	previewChars int
}

type ToolsOption func(*IncidentTools)

func WithTopK(k int) ToolsOption {
	return func(t *IncidentTools) {
		if k > 0 {
			t.topK = k
		}
	}
}

func WithPreviewChars(n int) ToolsOption {
	return func(t *IncidentTools) {
		if n > 0 {
			t.previewChars = n
		}
	}
}

func NewIncidentTools(memory *VectorMemory, opts ...ToolsOption) *IncidentTools {
	t := &IncidentTools{
		memory:       memory,
		topK:         DefaultTopK,
		previewChars: DefaultPreviewChars,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SearchIncidents lists the closest incidents to query, separated by blank
// lines. An empty memory yields "".
func (t *IncidentTools) SearchIncidents(ctx context.Context, query string) (string, error) {
	docs, err := t.memory.Search(ctx, query, t.topK)
	if err != nil {
		return "", err
	}

	blocks := make([]string, 0, len(docs))
	for _, doc := range docs {
		blocks = append(blocks, fmt.Sprintf("Source: %s\nURL: %s\nContent: %s...",
			doc.Source, doc.URL, preview(doc.Content, t.previewChars)))
	}
	return strings.Join(blocks, "\n\n"), nil
}

// SummarizeIncident renders one incident with a source-specific body.
func (t *IncidentTools) SummarizeIncident(_ context.Context, id string) (string, error) {
	doc, ok := t.memory.FindByID(id)
	if !ok {
		return NotFoundMessage(id), nil
	}

	return fmt.Sprintf("Incident Summary\n---------------\nSource: %s\nTime: %s\nURL: %s\n\nContent:\n%s",
		doc.Source.Title(), doc.FormattedTime(), doc.URL, domain.FormatBody(doc.Source, doc.Content)), nil
}

// LinkIncidents finds incidents similar to the one stored under id, never
// including that incident itself.
func (t *IncidentTools) LinkIncidents(ctx context.Context, id string) (string, error) {
	doc, ok := t.memory.FindByID(id)
	if !ok {
		return NotFoundMessage(id), nil
	}

	docs, err := t.memory.Search(ctx, doc.Content, t.topK)
	if err != nil {
		return "", err
	}

	lines := []string{"Related Incidents:"}
	for _, related := range docs {
		if related.ID == doc.ID {
			continue
		}
		lines = append(lines,
			"\nSource: "+related.Source.Title(),
			"Time: "+related.FormattedTime(),
			"URL: "+related.URL,
			"Content Preview: "+preview(related.Content, t.previewChars)+"...",
			separator,
		)
	}
	if len(lines) == 1 {
		return noRelatedIncidents, nil
	}
	return strings.Join(lines, "\n"), nil
}

// Tools returns the operations as name, description and callable triples.
func (t *IncidentTools) Tools() []port.Tool {
	return []port.Tool{
		{
			Name:        ToolSearchIncidents,
			Description: "Search for similar incidents in the knowledge base",
			Call:        t.SearchIncidents,
		},
		{
			Name:        ToolSummarizeIncident,
			Description: "Create a summary of a specific incident",
			Call:        t.SummarizeIncident,
		},
		{
			Name:        ToolLinkIncidents,
			Description: "Find related incidents based on content similarity",
			Call:        t.LinkIncidents,
		},
	}
}

// FindTool looks a tool up by name.
func FindTool(tools []port.Tool, name string) (port.Tool, bool) {
	for _, tool := range tools {
		if tool.Name == name {
			return tool, true
		}
	}
	return port.Tool{}, false
}

// NotFoundMessage is returned by the id-based tools for unknown ids.
func NotFoundMessage(id string) string {
	return "Could not find incident with ID: " + id
}

func preview(content string, n int) string {
	runes := []rune(content)
	if len(runes) <= n {
		return content
	}
	return string(runes[:n])
}
