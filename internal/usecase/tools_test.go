package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"incidentkb/internal/domain"
)

const (
	slackThread    = "User1: latency is high\nUser2: it was a connection pool issue"
	confluencePage = "# Title\n## Root Cause:\nPool exhaustion\n## Resolution:\nRaised pool size"
)

func scenario(t *testing.T) (*IncidentTools, domain.IncidentDocument, domain.IncidentDocument) {
	t.Helper()
	m, _ := newHashingMemory(t)
	ctx := context.Background()

	a, err := m.AddDocument(ctx, doc("slack_thread_1", slackThread, domain.SourceSlack, "u1"))
	require.NoError(t, err)
	b, err := m.AddDocument(ctx, doc("confluence_page_1", confluencePage, domain.SourceConfluence, "u2"))
	require.NoError(t, err)

	return NewIncidentTools(m), a, b
}

func TestIncidentTools_Scenario(t *testing.T) {
	tools, a, b := scenario(t)
	ctx := context.Background()

	found, err := tools.SearchIncidents(ctx, "connection pool")
	require.NoError(t, err)
	assert.Contains(t, found, "URL: u1")
	assert.Contains(t, found, "URL: u2")

	summary, err := tools.SummarizeIncident(ctx, b.ID)
	require.NoError(t, err)
	assert.Contains(t, summary, "**Root Cause:**\nPool exhaustion")

	linked, err := tools.LinkIncidents(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(linked, "Related Incidents:\n"))
	assert.Contains(t, linked, "URL: u2")
	assert.NotContains(t, linked, "u1")
}

func TestIncidentTools_SearchFormat(t *testing.T) {
	m, _ := newHashingMemory(t)
	long := strings.Repeat("é", 250)
	_, err := m.AddDocument(context.Background(), doc("inc-1", long, domain.SourceSlack, "https://x/1"))
	require.NoError(t, err)

	got, err := NewIncidentTools(m).SearchIncidents(context.Background(), "anything")
	require.NoError(t, err)

	expected := "Source: slack\nURL: https://x/1\nContent: " + strings.Repeat("é", 200) + "..."
	assert.Equal(t, expected, got)
}

func TestIncidentTools_SearchSeparatesResults(t *testing.T) {
	tools, _, _ := scenario(t)

	got, err := tools.SearchIncidents(context.Background(), "pool")
	require.NoError(t, err)
	assert.Len(t, strings.Split(got, "\n\nSource: "), 2)
}

func TestIncidentTools_EmptyStore(t *testing.T) {
	m, _ := newHashingMemory(t)
	tools := NewIncidentTools(m)

	got, err := tools.SearchIncidents(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestIncidentTools_NotFound(t *testing.T) {
	tools, _, _ := scenario(t)
	ctx := context.Background()

	summary, err := tools.SummarizeIncident(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, "Could not find incident with ID: missing", summary)

	linked, err := tools.LinkIncidents(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, "Could not find incident with ID: missing", linked)
}

func TestIncidentTools_LinkSingleDocument(t *testing.T) {
	m, _ := newHashingMemory(t)
	d, err := m.AddDocument(context.Background(), doc("only", "the only incident", domain.SourceSlack, "u1"))
	require.NoError(t, err)

	got, err := NewIncidentTools(m).LinkIncidents(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, "No related incidents found", got)
}

func TestIncidentTools_LinkNeverIncludesSelf(t *testing.T) {
	m, _ := newHashingMemory(t)
	ctx := context.Background()
	contents := []string{
		"redis failover during deploy",
		"redis memory pressure",
		"kafka consumer lag",
		"redis failover during deploy again",
	}
	for i, c := range contents {
		_, err := m.AddDocument(ctx, doc("inc-"+string(rune('a'+i)), c, domain.SourceSlack, "url-"+string(rune('a'+i))))
		require.NoError(t, err)
	}

	tools := NewIncidentTools(m)
	for i := range contents {
		id := "inc-" + string(rune('a'+i))
		got, err := tools.LinkIncidents(ctx, id)
		require.NoError(t, err)
		assert.NotContains(t, got, "URL: url-"+string(rune('a'+i))+"\n", id)
	}
}

func TestIncidentTools_LinkBlockLayout(t *testing.T) {
	m, _ := newHashingMemory(t)
	ctx := context.Background()
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	_, err := m.AddDocument(ctx, doc("a", "pool exhausted", domain.SourceSlack, "u1"))
	require.NoError(t, err)
	other := doc("b", "pool exhausted again", domain.SourceConfluence, "u2")
	other.Timestamp = ts
	_, err = m.AddDocument(ctx, other)
	require.NoError(t, err)

	got, err := NewIncidentTools(m).LinkIncidents(ctx, "a")
	require.NoError(t, err)

	expected := strings.Join([]string{
		"Related Incidents:",
		"",
		"Source: Confluence",
		"Time: 2024-05-06 07:08:09",
		"URL: u2",
		"Content Preview: pool exhausted again...",
		strings.Repeat("-", 40),
	}, "\n")
	assert.Equal(t, expected, got)
}

func TestIncidentTools_SummaryTemplate(t *testing.T) {
	tools, a, _ := scenario(t)

	got, err := tools.SummarizeIncident(context.Background(), a.ID)
	require.NoError(t, err)

	expected := "Incident Summary\n---------------\nSource: Slack\nTime: 2024-03-01 12:00:00\nURL: u1\n\nContent:\n" +
		"User1: latency is high\nUser2: it was a connection pool issue"
	assert.Equal(t, expected, got)
}

func TestIncidentTools_UnknownSourceFormatsLikeSlack(t *testing.T) {
	m, _ := newHashingMemory(t)
	_, err := m.AddDocument(context.Background(), doc("pd-1", "  line one \n\n line two ", domain.Source("pagerduty"), "u"))
	require.NoError(t, err)

	got, err := NewIncidentTools(m).SummarizeIncident(context.Background(), "pd-1")
	require.NoError(t, err)
	assert.Contains(t, got, "Source: Pagerduty\n")
	assert.True(t, strings.HasSuffix(got, "Content:\nline one\nline two"))
}

func TestIncidentTools_Triples(t *testing.T) {
	tools, a, _ := scenario(t)
	list := tools.Tools()

	require.Len(t, list, 3)
	assert.Equal(t, ToolSearchIncidents, list[0].Name)
	assert.Equal(t, ToolSummarizeIncident, list[1].Name)
	assert.Equal(t, ToolLinkIncidents, list[2].Name)
	for _, tool := range list {
		assert.NotEmpty(t, tool.Description)
	}

	summarize, ok := FindTool(list, ToolSummarizeIncident)
	require.True(t, ok)
	out, err := summarize.Call(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Incident Summary")

	_, ok = FindTool(list, "delete_incident")
	assert.False(t, ok)
}
