package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TimestampLayout renders incident times as YYYY-MM-DD HH:MM:SS.
const TimestampLayout = "2006-01-02 15:04:05"

// Source tags where an incident record was ingested from.
type Source string

const (
	SourceSlack      Source = "slack"
	SourceConfluence Source = "confluence"
)

// ParseSource normalizes a source tag. Unknown tags are kept as-is; they
// format like slack.
func ParseSource(s string) (Source, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("source is required")
	}
	return Source(s), nil
}

// Title returns the source name title-cased, e.g. "Confluence".
func (s Source) Title() string {
	return cases.Title(language.Und).String(string(s))
}

// IncidentDocument is one ingested incident record.
type IncidentDocument struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Source    Source    `json:"source"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// HasEmbedding reports whether the embedding was already computed.
func (d IncidentDocument) HasEmbedding() bool {
	return len(d.Embedding) > 0
}

// FormattedTime renders the timestamp with TimestampLayout.
func (d IncidentDocument) FormattedTime() string {
	return d.Timestamp.Format(TimestampLayout)
}

// Validate checks the fields required at the ingestion boundary.
func (d IncidentDocument) Validate() error {
	switch {
	case strings.TrimSpace(d.ID) == "":
		return fmt.Errorf("id is required")
	case strings.TrimSpace(d.Content) == "":
		return fmt.Errorf("content is required")
	case d.Source == "":
		return fmt.Errorf("source is required")
	case d.URL == "":
		return fmt.Errorf("url is required")
	case d.Timestamp.IsZero():
		return fmt.Errorf("timestamp is required")
	}
	return nil
}

// WithoutEmbedding returns a copy with the vector stripped, for listings.
func (d IncidentDocument) WithoutEmbedding() IncidentDocument {
	d.Embedding = nil
	return d
}

// NewIncidentID derives an id from the source and timestamp, with a random
// suffix so two records ingested within the same second do not collide.
func NewIncidentID(source Source, ts time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%s", idPrefix(source), ts.Format("20060102150405"), suffix)
}

// FileIncidentID derives a stable id from a file's URL and content. An
// unchanged file always maps to the same id; any edit yields a new one.
func FileIncidentID(source Source, url, content string) string {
	sum := sha256.Sum256([]byte(url + "\x00" + content))
	return fmt.Sprintf("%s_%s", idPrefix(source), hex.EncodeToString(sum[:8]))
}

func idPrefix(source Source) string {
	switch source {
	case SourceSlack:
		return "slack_thread"
	case SourceConfluence:
		return "confluence_page"
	}
	return string(source)
}
