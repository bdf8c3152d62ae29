package domain

import "strings"

// SectionMarker starts a new section in wiki-style postmortems.
const SectionMarker = "## "

// BodyFormatter renders raw incident content for a summary.
type BodyFormatter func(content string) string

var bodyFormatters = map[Source]BodyFormatter{
	SourceSlack:      FormatConversation,
	SourceConfluence: FormatSections,
}

// FormatBody picks the formatter registered for the source, falling back to
// the conversation formatter for unknown sources.
func FormatBody(source Source, content string) string {
	if f, ok := bodyFormatters[source]; ok {
		return f(content)
	}
	return FormatConversation(content)
}

// FormatConversation keeps every non-blank line, trimmed, in original order.
func FormatConversation(content string) string {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// FormatSections splits content at "## " lines. A section whose first line
// holds a colon is rendered as a bold "Header:" label followed by the rest;
// other sections are kept verbatim. Sections are separated by a blank line.
func FormatSections(content string) string {
	sections := SplitSections(content)
	parts := make([]string, 0, len(sections))
	for _, section := range sections {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		parts = append(parts, renderSection(section))
	}
	return strings.Join(parts, "\n\n")
}

// SplitSections breaks content into sections. The marker is stripped from the
// line that opens a section; leading indentation before the marker is ignored.
// Text before the first marker forms its own section.
func SplitSections(content string) []string {
	var sections []string
	var current []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, SectionMarker) {
			sections = append(sections, strings.Join(current, "\n"))
			current = []string{strings.TrimPrefix(trimmed, SectionMarker)}
			continue
		}
		current = append(current, line)
	}
	return append(sections, strings.Join(current, "\n"))
}

func renderSection(section string) string {
	first, rest, _ := strings.Cut(section, "\n")
	header, inline, ok := strings.Cut(first, ":")
	if !ok || strings.TrimSpace(header) == "" {
		return section
	}

	body := strings.TrimSpace(inline)
	if rest = strings.TrimSpace(rest); rest != "" {
		if body != "" {
			body += "\n"
		}
		body += rest
	}

	label := "**" + strings.TrimSpace(header) + ":**"
	if body == "" {
		return label
	}
	return label + "\n" + body
}
