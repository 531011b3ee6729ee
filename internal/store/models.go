package store

import (
	"encoding/json"
	"time"

	"catchanno/api/internal/query"
)

// Annotation is the persisted shape of a canonical annotation: the raw
// canonical JSON plus the columns extracted for filtering and sorting.
type Annotation struct {
	ID             string
	SchemaVersion  string
	CreatorID      string
	CreatorName    string
	BodyText       string
	Tags           []string
	TargetSources  []string
	TargetMedias   []string
	CanRead        []string
	CanUpdate      []string
	CanDelete      []string
	CanAdmin       []string
	PlatformName   string
	ContextID      string
	CollectionID   string
	TargetSourceID string
	Raw            json.RawMessage
	Deleted        bool
	Created        time.Time
	Modified       time.Time
}

// QueryRecord projects the row into the filterable form the predicate
// combinators evaluate against.
func (a Annotation) QueryRecord() query.Record {
	return query.Record{
		ID:             a.ID,
		CreatorID:      a.CreatorID,
		CreatorName:    a.CreatorName,
		Tags:           a.Tags,
		TargetSources:  a.TargetSources,
		TargetMedias:   a.TargetMedias,
		CanRead:        a.CanRead,
		PlatformName:   a.PlatformName,
		ContextID:      a.ContextID,
		CollectionID:   a.CollectionID,
		TargetSourceID: a.TargetSourceID,
		BodyText:       a.BodyText,
	}
}
