package query

import (
	"net/url"
	"strconv"
	"strings"
)

const DefaultLimit = 10

// Params is the typed form of the recognized search parameters. Absent
// fields impose no constraint.
type Params struct {
	Usernames     []string
	UserIDs       []string
	Tags          []string
	TargetSources []string
	Medias        []string
	Text          string
	PlatformName  string
	ContextID     string
	CollectionID  string
	SourceID      string
	Limit         int
	Offset        int
}

// ParseValues extracts Params from raw query values. Limit defaults to
// DefaultLimit and offset to 0 when absent or unparsable; a negative
// limit means "everything from offset to the end".
func ParseValues(values url.Values) Params {
	return Params{
		Usernames:     listParam(values, "username"),
		UserIDs:       listParam(values, "userid"),
		Tags:          listParam(values, "tags"),
		TargetSources: listParam(values, "target_source"),
		Medias:        listParam(values, "media"),
		Text:          strings.TrimSpace(values.Get("text")),
		PlatformName:  strings.TrimSpace(values.Get("platform")),
		ContextID:     strings.TrimSpace(values.Get("contextId")),
		CollectionID:  strings.TrimSpace(values.Get("collectionId")),
		SourceID:      strings.TrimSpace(values.Get("sourceId")),
		Limit:         intParam(values, "limit", DefaultLimit),
		Offset:        intParam(values, "offset", 0),
	}
}

// Build composes one predicate per present parameter, combined with AND
// across keys. collectionId is a sub-filter of contextId and is ignored
// without it. The text parameter is handled by the search engine, which
// resolves it against the text index before querying the store.
func Build(p Params) And {
	var pred And
	if len(p.Usernames) > 0 {
		pred = append(pred, AnyOf{Field: FieldCreatorName, Values: p.Usernames})
	}
	if len(p.UserIDs) > 0 {
		pred = append(pred, AnyOf{Field: FieldCreatorID, Values: p.UserIDs})
	}
	if len(p.Tags) > 0 {
		pred = append(pred, ContainsAny{Field: FieldTags, Values: p.Tags})
	}
	if len(p.TargetSources) > 0 {
		pred = append(pred, ContainsAny{Field: FieldTargetSources, Values: p.TargetSources})
	}
	if len(p.Medias) > 0 {
		pred = append(pred, ContainsAny{Field: FieldTargetMedias, Values: p.Medias})
	}
	if p.PlatformName != "" {
		pred = append(pred, Equals{Field: FieldPlatformName, Value: p.PlatformName})
	}
	if p.ContextID != "" {
		pred = append(pred, Equals{Field: FieldContextID, Value: p.ContextID})
		if p.CollectionID != "" {
			pred = append(pred, Equals{Field: FieldCollectionID, Value: p.CollectionID})
		}
	}
	if p.SourceID != "" {
		pred = append(pred, Equals{Field: FieldTargetSourceID, Value: p.SourceID})
	}
	return pred
}

func listParam(values url.Values, key string) []string {
	raw := values[key]
	items := make([]string, 0, len(raw))
	for _, value := range raw {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				items = append(items, part)
			}
		}
	}
	return items
}

func intParam(values url.Values, key string, fallback int) int {
	raw := values.Get(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
