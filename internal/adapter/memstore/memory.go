package memstore

import (
	"sync"

	"incidentkb/internal/domain"
)

// MemoryStore keeps incidents in insertion order. Ids are not required to be
// unique; lookups return the first match.
type MemoryStore struct {
	mu   sync.RWMutex
	docs []domain.IncidentDocument
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make([]domain.IncidentDocument, 0),
	}
}

func (s *MemoryStore) Append(doc domain.IncidentDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, doc)
}

func (s *MemoryStore) FindByID(id string) (domain.IncidentDocument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doc := range s.docs {
		if doc.ID == id {
			return doc, true
		}
	}
	return domain.IncidentDocument{}, false
}

func (s *MemoryStore) At(pos int) (domain.IncidentDocument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if pos < 0 || pos >= len(s.docs) {
		return domain.IncidentDocument{}, false
	}
	return s.docs[pos], true
}

func (s *MemoryStore) All() []domain.IncidentDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.IncidentDocument, len(s.docs))
	copy(docs, s.docs)
	return docs
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *MemoryStore) Truncate(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n < len(s.docs) {
		clear(s.docs[n:])
		s.docs = s.docs[:n]
	}
}
