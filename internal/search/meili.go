package search

import (
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxAnnotations = "catchanno_annotations"

// maxTextMatches caps how many candidate ids one text filter may resolve
// to before the engine intersects them with the other predicates.
const maxTextMatches = 10000

// Meili wraps the Meilisearch client with a background health monitor.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the annotation
// index. An unreachable instance is tolerated; the health loop retries.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxAnnotations,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxAnnotations, err)
	}

	index := m.client.Index(idxAnnotations)
	searchable := []string{"bodyText", "tags"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs for %s: %v", idxAnnotations, err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// MatchingIDs returns the ids of annotations whose body matches the text.
func (m *Meili) MatchingIDs(text string) ([]string, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}

	resp, err := m.client.Index(idxAnnotations).Search(text, &meili.SearchRequest{
		Limit:                maxTextMatches,
		AttributesToRetrieve: []string{"id"},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	ids := make([]string, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		if id := decodeString(hit, "id"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// Index adds or updates one annotation in the text index.
func (m *Meili) Index(record Record) error {
	_, err := m.client.Index(idxAnnotations).AddDocuments([]Record{record}, nil)
	return err
}

// IndexMany bulk-indexes annotations, used for reindexing at boot.
func (m *Meili) IndexMany(records []Record) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxAnnotations).AddDocuments(records, nil)
	return err
}

// Delete removes an annotation from the text index.
func (m *Meili) Delete(id string) error {
	_, err := m.client.Index(idxAnnotations).DeleteDocument(id, nil)
	return err
}
