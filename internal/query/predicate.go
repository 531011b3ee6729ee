// Package query turns loosely-typed search parameters into a closed set
// of typed predicate combinators. Every predicate can be evaluated in Go
// against a Record and compiled to SQL by the store.
package query

import "strings"

type Field string

const (
	FieldID             Field = "id"
	FieldCreatorID      Field = "creator_id"
	FieldCreatorName    Field = "creator_name"
	FieldTags           Field = "tags"
	FieldTargetSources  Field = "target_sources"
	FieldTargetMedias   Field = "target_medias"
	FieldPlatformName   Field = "platform_name"
	FieldContextID      Field = "context_id"
	FieldCollectionID   Field = "collection_id"
	FieldTargetSourceID Field = "target_source_id"
)

// Record is the filterable projection of a stored annotation.
type Record struct {
	ID             string
	CreatorID      string
	CreatorName    string
	Tags           []string
	TargetSources  []string
	TargetMedias   []string
	CanRead        []string
	PlatformName   string
	ContextID      string
	CollectionID   string
	TargetSourceID string
	BodyText       string
}

func (r Record) scalar(field Field) string {
	switch field {
	case FieldID:
		return r.ID
	case FieldCreatorID:
		return r.CreatorID
	case FieldCreatorName:
		return r.CreatorName
	case FieldPlatformName:
		return r.PlatformName
	case FieldContextID:
		return r.ContextID
	case FieldCollectionID:
		return r.CollectionID
	case FieldTargetSourceID:
		return r.TargetSourceID
	}
	return ""
}

func (r Record) list(field Field) []string {
	switch field {
	case FieldTags:
		return r.Tags
	case FieldTargetSources:
		return r.TargetSources
	case FieldTargetMedias:
		return r.TargetMedias
	}
	return nil
}

type Predicate interface {
	Matches(r Record) bool
}

// Equals matches a scalar field exactly.
type Equals struct {
	Field Field
	Value string
}

func (p Equals) Matches(r Record) bool {
	return r.scalar(p.Field) == p.Value
}

// AnyOf matches when a scalar field equals any of the given values.
type AnyOf struct {
	Field  Field
	Values []string
}

func (p AnyOf) Matches(r Record) bool {
	value := r.scalar(p.Field)
	for _, candidate := range p.Values {
		if value == candidate {
			return true
		}
	}
	return false
}

// ContainsAny matches when a list field shares at least one element with
// the given values.
type ContainsAny struct {
	Field  Field
	Values []string
}

func (p ContainsAny) Matches(r Record) bool {
	list := r.list(p.Field)
	for _, candidate := range p.Values {
		for _, item := range list {
			if item == candidate {
				return true
			}
		}
	}
	return false
}

// TextMatch matches the annotation body text. The in-memory evaluation is
// a case-insensitive substring check; the store compiles it to full-text
// search.
type TextMatch struct {
	Text string
}

func (p TextMatch) Matches(r Record) bool {
	return strings.Contains(strings.ToLower(r.BodyText), strings.ToLower(p.Text))
}

// ReadableBy matches records the given user may read: public records
// (empty can_read) or records listing the user.
type ReadableBy struct {
	UserID string
}

func (p ReadableBy) Matches(r Record) bool {
	if len(r.CanRead) == 0 {
		return true
	}
	for _, item := range r.CanRead {
		if item == p.UserID {
			return true
		}
	}
	return false
}

// And matches when every member predicate matches. An empty And is the
// identity predicate.
type And []Predicate

func (p And) Matches(r Record) bool {
	for _, member := range p {
		if !member.Matches(r) {
			return false
		}
	}
	return true
}
