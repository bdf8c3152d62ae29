package port

import "incidentkb/internal/domain"

// DocumentStore is an ordered, append-only collection of incidents.
type DocumentStore interface {
	Append(doc domain.IncidentDocument)

	// FindByID returns the first document with the given id.
	FindByID(id string) (domain.IncidentDocument, bool)

	At(pos int) (domain.IncidentDocument, bool)

	All() []domain.IncidentDocument

	Len() int

	// Truncate drops documents from position n onward. It exists only to undo
	// an append whose paired index insert failed.
	Truncate(n int)
}
