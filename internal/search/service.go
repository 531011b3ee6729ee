package search

import "log"

// Service fronts the text index. All methods tolerate a nil or unhealthy
// Meilisearch; MatchingIDs reports ok=false so the caller can fall back
// to Postgres FTS.
type Service struct {
	meili *Meili
}

// NewService creates a search service. meili may be nil when Meilisearch
// is not configured.
func NewService(meili *Meili) *Service {
	return &Service{meili: meili}
}

// MatchingIDs resolves a text filter to annotation ids. ok is false when
// the index is unavailable and the caller should use the FTS fallback.
func (s *Service) MatchingIDs(text string) (ids []string, ok bool) {
	if s.meili == nil || !s.meili.Healthy() {
		return nil, false
	}
	ids, err := s.meili.MatchingIDs(text)
	if err != nil {
		log.Printf("search: meilisearch error, falling back to pg fts: %v", err)
		return nil, false
	}
	return ids, true
}

// IndexAnnotation pushes one annotation into the index (fire-and-forget).
func (s *Service) IndexAnnotation(record Record) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.Index(record); err != nil {
			log.Printf("search: index annotation %s: %v", record.ID, err)
		}
	}()
}

// DeleteAnnotation removes one annotation from the index (fire-and-forget).
func (s *Service) DeleteAnnotation(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.Delete(id); err != nil {
			log.Printf("search: delete annotation %s: %v", id, err)
		}
	}()
}

// ReindexAll pushes every live annotation into the index, called during
// bootstrap.
func (s *Service) ReindexAll(records []Record) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	if err := s.meili.IndexMany(records); err != nil {
		log.Printf("search: reindex annotations: %v", err)
	}
}
