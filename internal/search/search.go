// Package search maintains a Meilisearch index over annotation body text
// and resolves the `text` search filter against it. When Meilisearch is
// not configured or unreachable, callers fall back to Postgres full-text
// search through the store.
package search

// Record is the slice of an annotation pushed into the text index.
type Record struct {
	ID       string   `json:"id"`
	BodyText string   `json:"bodyText"`
	Tags     []string `json:"tags"`
}
