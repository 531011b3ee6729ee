package catcha

import (
	"encoding/json"
	"strings"
	"time"

	"catchanno/api/internal/perms"
)

// AnnoJS is the legacy AnnotatorJS projection of a canonical annotation.
type AnnoJS struct {
	ID           string            `json:"id"`
	Created      string            `json:"created,omitempty"`
	Updated      string            `json:"updated,omitempty"`
	Text         string            `json:"text"`
	Tags         []string          `json:"tags"`
	Permissions  AnnoJSPermissions `json:"permissions"`
	User         AnnoJSUser        `json:"user"`
	ContextID    string            `json:"contextId,omitempty"`
	CollectionID string            `json:"collectionId,omitempty"`
	Parent       string            `json:"parent"`
	Ranges       []json.RawMessage `json:"ranges"`
	URI          string            `json:"uri"`
	Media        string            `json:"media"`
}

type AnnoJSPermissions struct {
	Read   []string `json:"read"`
	Update []string `json:"update"`
	Delete []string `json:"delete"`
	Admin  []string `json:"admin"`
}

type AnnoJSUser struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ConversionError reports a canonical record the converter cannot
// project, which indicates a data-integrity problem upstream.
type ConversionError struct {
	Reason string
}

func (e *ConversionError) Error() string {
	return "annotatorjs conversion failed: " + e.Reason
}

// ToAnnotatorJS projects a canonical annotation into the legacy shape.
// It is deterministic and tolerates missing optional fields, but refuses
// records without a creator id or without targets.
func ToAnnotatorJS(anno *Annotation) (*AnnoJS, error) {
	if strings.TrimSpace(anno.Creator.ID) == "" {
		return nil, &ConversionError{Reason: "annotation " + anno.ID + " has no creator id"}
	}
	if len(anno.Target.Items) == 0 {
		return nil, &ConversionError{Reason: "annotation " + anno.ID + " has no targets"}
	}

	first := anno.Target.Items[0]
	ranges := make([]json.RawMessage, 0, 1)
	if len(first.Selector) > 0 {
		ranges = append(ranges, first.Selector)
	}

	p := anno.EffectivePermissions()
	annojs := &AnnoJS{
		ID:   anno.ID,
		Text: anno.TextValue(),
		Tags: anno.Tags(),
		Permissions: AnnoJSPermissions{
			Read:   nonNil(p.CanRead),
			Update: nonNil(p.CanUpdate),
			Delete: nonNil(p.CanDelete),
			Admin:  nonNil(p.CanAdmin),
		},
		User:         AnnoJSUser{ID: anno.Creator.ID, Name: anno.Creator.Name},
		ContextID:    anno.Platform.ContextID,
		CollectionID: anno.Platform.CollectionID,
		Parent:       "0",
		Ranges:       ranges,
		URI:          first.Source,
		Media:        strings.ToLower(first.Type),
	}
	if !anno.Created.IsZero() {
		annojs.Created = anno.Created.Format(time.RFC3339)
	}
	if !anno.Modified.IsZero() {
		annojs.Updated = anno.Modified.Format(time.RFC3339)
	}
	return annojs, nil
}

// FromAnnotatorJS lifts a legacy record back into the canonical shape and
// validates the result. Used when re-validating legacy client payloads.
func FromAnnotatorJS(annojs *AnnoJS) (*Annotation, error) {
	items := make([]BodyItem, 0, 1+len(annojs.Tags))
	items = append(items, BodyItem{
		Type:    "TextualBody",
		Purpose: PurposeCommenting,
		Value:   annojs.Text,
		Format:  "text/html",
	})
	for _, tag := range annojs.Tags {
		items = append(items, BodyItem{
			Type:    "TextualBody",
			Purpose: PurposeTagging,
			Value:   tag,
			Format:  "text/html",
		})
	}

	media := capitalize(annojs.Media)
	if media == "" {
		media = "Text"
	}
	target := TargetItem{Source: annojs.URI, Type: media}
	if len(annojs.Ranges) > 0 {
		target.Selector = annojs.Ranges[0]
	}

	anno := &Annotation{
		ID:      annojs.ID,
		Type:    "Annotation",
		Creator: Creator{ID: annojs.User.ID, Name: annojs.User.Name},
		Permissions: &perms.Permissions{
			CanRead:   nonNil(annojs.Permissions.Read),
			CanUpdate: nonNil(annojs.Permissions.Update),
			CanDelete: nonNil(annojs.Permissions.Delete),
			CanAdmin:  nonNil(annojs.Permissions.Admin),
		},
		Platform: Platform{
			ContextID:    annojs.ContextID,
			CollectionID: annojs.CollectionID,
		},
		Body:   Body{Type: "List", Items: items},
		Target: Target{Type: "List", Items: []TargetItem{target}},
	}
	if annojs.Created != "" {
		if created, err := time.Parse(time.RFC3339, annojs.Created); err == nil {
			anno.Created = created
		}
	}
	if annojs.Updated != "" {
		if updated, err := time.Parse(time.RFC3339, annojs.Updated); err == nil {
			anno.Modified = updated
		}
	}
	ApplyDefaults(anno)
	if err := Validate(anno); err != nil {
		return nil, err
	}
	return anno, nil
}

func capitalize(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	return strings.ToUpper(value[:1]) + value[1:]
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
